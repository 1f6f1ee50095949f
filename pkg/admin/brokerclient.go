package admin

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/rebalancectl/pkg/util"
	"github.com/segmentio/rebalancectl/pkg/zk"
	log "github.com/sirupsen/logrus"
)

// ErrReassignmentsNotSupported is returned by BrokerAdminClient.AssignPartitions; without
// zookeeper access, plans need to be written to a file and applied with kafka's own
// reassignment tooling.
var ErrReassignmentsNotSupported = errors.New(
	"Applying reassignments requires zookeeper access; write the plan to a file with --output instead",
)

// BrokerAdminClient is a Client implementation that only uses broker APIs, without any
// zookeeper access.
type BrokerAdminClient struct {
	connector *Connector
	readOnly  bool
}

var _ Client = (*BrokerAdminClient)(nil)

// BrokerAdminClientConfig contains the parameters needed to create a BrokerAdminClient.
type BrokerAdminClientConfig struct {
	ConnectorConfig
	ReadOnly bool
}

// NewBrokerAdminClient constructs a BrokerAdminClient.
func NewBrokerAdminClient(
	ctx context.Context,
	config BrokerAdminClientConfig,
) (*BrokerAdminClient, error) {
	connector, err := NewConnector(ctx, config.ConnectorConfig)
	if err != nil {
		return nil, err
	}

	return &BrokerAdminClient{
		connector: connector,
		readOnly:  config.ReadOnly,
	}, nil
}

// GetBrokers gets information on all brokers from the cluster metadata, sorted by ID.
func (c *BrokerAdminClient) GetBrokers(ctx context.Context) ([]BrokerInfo, error) {
	resp, err := c.connector.KafkaClient.Metadata(
		ctx,
		&kafka.MetadataRequest{
			Topics: []string{},
		},
	)
	if err != nil {
		return nil, err
	}

	brokers := []BrokerInfo{}
	for _, broker := range resp.Brokers {
		brokers = append(
			brokers,
			BrokerInfo{
				ID:   broker.ID,
				Host: broker.Host,
				Port: int32(broker.Port),
				Rack: broker.Rack,
			},
		)
	}

	sort.Slice(brokers, func(a, b int) bool {
		return brokers[a].ID < brokers[b].ID
	})

	return brokers, nil
}

// GetAssignment gets the replica assignments of the argument topics from the cluster
// metadata. Internal topics are skipped unless they're explicitly requested.
func (c *BrokerAdminClient) GetAssignment(
	ctx context.Context,
	topics []string,
) (ClusterAssignment, error) {
	var topicNames []string
	if len(topics) > 0 {
		topicNames = topics
	}

	resp, err := c.connector.KafkaClient.Metadata(
		ctx,
		&kafka.MetadataRequest{
			Topics: topicNames,
		},
	)
	if err != nil {
		return nil, err
	}

	assignment := ClusterAssignment{}

	for _, topic := range resp.Topics {
		if topic.Error != nil {
			return nil, fmt.Errorf("Error getting metadata for topic %s: %+v", topic.Name, topic.Error)
		}
		if topic.Internal && len(topics) == 0 {
			log.Debugf("Skipping internal topic %s", topic.Name)
			continue
		}

		for _, partition := range topic.Partitions {
			replicas := []int{}
			for _, replica := range partition.Replicas {
				replicas = append(replicas, replica.ID)
			}
			assignment[TopicPartition{Topic: topic.Name, Partition: partition.ID}] = replicas
		}
	}

	return assignment, nil
}

// AssignPartitions always fails for broker-only clients.
func (c *BrokerAdminClient) AssignPartitions(ctx context.Context, plan ReassignmentPlan) error {
	return ErrReassignmentsNotSupported
}

// RunLeaderElection triggers a preferred leader election via the ElectLeaders API, one
// request per topic.
func (c *BrokerAdminClient) RunLeaderElection(
	ctx context.Context,
	partitions []TopicPartition,
) error {
	if c.readOnly {
		return errors.New("Cannot run leader election in read-only mode")
	}

	partitionsByTopic := map[string][]int{}
	for _, partition := range partitions {
		partitionsByTopic[partition.Topic] = append(
			partitionsByTopic[partition.Topic],
			partition.Partition,
		)
	}

	for _, topic := range util.SortedStringKeys(partitionsByTopic) {
		log.Infof(
			"Running leader election for %d partitions in topic %s",
			len(partitionsByTopic[topic]),
			topic,
		)

		_, err := c.connector.KafkaClient.ElectLeaders(
			ctx,
			&kafka.ElectLeadersRequest{
				Topic:      topic,
				Partitions: partitionsByTopic[topic],
			},
		)
		if err != nil {
			return fmt.Errorf("Error running leader election for topic %s: %+v", topic, err)
		}
	}

	return nil
}

// ReassignmentInProgress always returns false; in-flight reassignments can't be
// detected without zookeeper.
func (c *BrokerAdminClient) ReassignmentInProgress(ctx context.Context) (bool, error) {
	return false, nil
}

// AcquireLock is a no-op for broker-only clients.
func (c *BrokerAdminClient) AcquireLock(ctx context.Context, path string) (zk.Lock, error) {
	return nil, nil
}

// GetSupportedFeatures returns the features that are supported by this client.
func (c *BrokerAdminClient) GetSupportedFeatures() SupportedFeatures {
	return SupportedFeatures{
		Reads:     true,
		Elections: !c.readOnly,
	}
}

// Close is a no-op; the underlying kafka client doesn't hold persistent connections.
func (c *BrokerAdminClient) Close() error {
	return nil
}
