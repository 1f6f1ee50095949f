package admin

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/protocol"
	"github.com/segmentio/kafka-go/protocol/electleaders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	apiKeys []protocol.ApiKey
	err     error
}

func (f *fakeTransport) RoundTrip(
	ctx context.Context,
	addr net.Addr,
	req kafka.Request,
) (kafka.Response, error) {
	f.apiKeys = append(f.apiKeys, req.ApiKey())
	if f.err != nil {
		return nil, f.err
	}
	return &electleaders.Response{}, nil
}

func testBrokerAdminClient(transport *fakeTransport, readOnly bool) *BrokerAdminClient {
	return &BrokerAdminClient{
		connector: &Connector{
			KafkaClient: &kafka.Client{
				Addr:      kafka.TCP("localhost:9092"),
				Transport: transport,
			},
		},
		readOnly: readOnly,
	}
}

func TestBrokerAdminClientRunLeaderElection(t *testing.T) {
	ctx := context.Background()
	transport := &fakeTransport{}
	client := testBrokerAdminClient(transport, false)

	err := client.RunLeaderElection(
		ctx,
		[]TopicPartition{
			{Topic: "topic-b", Partition: 0},
			{Topic: "topic-a", Partition: 1},
			{Topic: "topic-a", Partition: 3},
		},
	)
	require.NoError(t, err)
	assert.Equal(
		t,
		[]protocol.ApiKey{protocol.ElectLeaders, protocol.ElectLeaders},
		transport.apiKeys,
	)
	assert.True(t, client.GetSupportedFeatures().Elections)
	assert.False(t, client.GetSupportedFeatures().Reassignments)
}

func TestBrokerAdminClientRunLeaderElectionErrors(t *testing.T) {
	ctx := context.Background()
	partitions := []TopicPartition{{Topic: "topic-a", Partition: 0}}

	transport := &fakeTransport{}
	readOnlyClient := testBrokerAdminClient(transport, true)
	assert.Error(t, readOnlyClient.RunLeaderElection(ctx, partitions))
	assert.Empty(t, transport.apiKeys)
	assert.False(t, readOnlyClient.GetSupportedFeatures().Elections)

	failingTransport := &fakeTransport{err: errors.New("connection refused")}
	failingClient := testBrokerAdminClient(failingTransport, false)
	err := failingClient.RunLeaderElection(ctx, partitions)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "topic-a")

	assert.Equal(
		t,
		ErrReassignmentsNotSupported,
		failingClient.AssignPartitions(ctx, ReassignmentPlan{}),
	)
}
