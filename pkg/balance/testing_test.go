package balance

import (
	"context"
	"errors"
	"fmt"

	"github.com/segmentio/rebalancectl/pkg/admin"
	"github.com/segmentio/rebalancectl/pkg/topology"
	"github.com/segmentio/rebalancectl/pkg/zk"
)

type fakeAdminClient struct {
	brokers    []admin.BrokerInfo
	assignment admin.ClusterAssignment
	features   admin.SupportedFeatures

	inProgress bool

	submitted []admin.ReassignmentPlan
	elections [][]admin.TopicPartition
	lockPaths []string
	lockHeld  bool
	lockFreed bool
}

var _ admin.Client = (*fakeAdminClient)(nil)

type fakeLock struct {
	client *fakeAdminClient
}

func (l *fakeLock) Unlock() error {
	l.client.lockHeld = false
	l.client.lockFreed = true
	return nil
}

func (c *fakeAdminClient) GetBrokers(ctx context.Context) ([]admin.BrokerInfo, error) {
	brokers := make([]admin.BrokerInfo, len(c.brokers))
	copy(brokers, c.brokers)
	return brokers, nil
}

func (c *fakeAdminClient) GetAssignment(
	ctx context.Context,
	topics []string,
) (admin.ClusterAssignment, error) {
	topicSet := map[string]struct{}{}
	for _, topic := range topics {
		topicSet[topic] = struct{}{}
	}

	result := admin.ClusterAssignment{}
	for tp, replicas := range c.assignment {
		if _, ok := topicSet[tp.Topic]; len(topics) > 0 && !ok {
			continue
		}
		result[tp] = append([]int{}, replicas...)
	}
	return result, nil
}

func (c *fakeAdminClient) AssignPartitions(ctx context.Context, plan admin.ReassignmentPlan) error {
	if c.inProgress {
		return admin.ErrReassignmentInProgress
	}
	c.submitted = append(c.submitted, plan)
	return nil
}

func (c *fakeAdminClient) RunLeaderElection(
	ctx context.Context,
	partitions []admin.TopicPartition,
) error {
	c.elections = append(c.elections, partitions)
	return nil
}

func (c *fakeAdminClient) ReassignmentInProgress(ctx context.Context) (bool, error) {
	return c.inProgress, nil
}

func (c *fakeAdminClient) AcquireLock(ctx context.Context, path string) (zk.Lock, error) {
	if c.lockHeld {
		return nil, errors.New("lock already held")
	}
	c.lockPaths = append(c.lockPaths, path)
	c.lockHeld = true
	return &fakeLock{client: c}, nil
}

func (c *fakeAdminClient) GetSupportedFeatures() admin.SupportedFeatures {
	return c.features
}

func (c *fakeAdminClient) Close() error {
	return nil
}

func allFeatures() admin.SupportedFeatures {
	return admin.SupportedFeatures{
		Reads:         true,
		Reassignments: true,
		Elections:     true,
		Locks:         true,
	}
}

func testBrokers(racks ...string) []admin.BrokerInfo {
	brokers := []admin.BrokerInfo{}
	for r, rack := range racks {
		brokers = append(
			brokers,
			admin.BrokerInfo{
				ID:   r + 1,
				Host: fmt.Sprintf("10.0.0.%d", r+1),
				Port: 9092,
				Rack: rack,
			},
		)
	}
	return brokers
}

func rackGroup(broker *topology.Broker) string {
	if broker.Metadata() == nil {
		return ""
	}
	return broker.Metadata().Rack
}
