package admin

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"time"

	"github.com/segmentio/rebalancectl/pkg/zk"
	log "github.com/sirupsen/logrus"
)

const (
	// Various paths in zookeeper, relative to the cluster prefix
	reassignmentPath = "/admin/reassign_partitions"
	electionPath     = "/admin/preferred_replica_election"
	brokersPath      = "/brokers/ids"
	topicsPath       = "/brokers/topics"

	// The maximum number of topics to fetch in parallel
	maxPoolSize = 20
)

var (
	// ErrReassignmentInProgress is returned when a new reassignment is submitted before the
	// previous one has finished.
	ErrReassignmentInProgress = errors.New("A partition reassignment is already in progress")

	// ErrElectionInProgress is returned when a leader election is requested before the
	// previous one has finished.
	ErrElectionInProgress = errors.New("A preferred leader election is already in progress")
)

type zkBrokerInfo struct {
	Endpoints    []string `json:"endpoints"`
	Host         string   `json:"host"`
	Port         int32    `json:"port"`
	Rack         string   `json:"rack"`
	TimestampStr string   `json:"timestamp"`
	Version      int      `json:"version"`
}

type zkTopicInfo struct {
	Version    int              `json:"version"`
	Partitions map[string][]int `json:"partitions"`
}

type zkElectionPartition struct {
	Topic     string `json:"topic"`
	Partition int    `json:"partition"`
}

type zkElection struct {
	Version    int                   `json:"version"`
	Partitions []zkElectionPartition `json:"partitions"`
}

// ZKAdminClient is a Client that reads and writes cluster state directly in zookeeper.
type ZKAdminClient struct {
	zkClient zk.Client
	readOnly bool
}

var _ Client = (*ZKAdminClient)(nil)

// ZKAdminClientConfig contains all of the parameters necessary to create a ZKAdminClient.
type ZKAdminClientConfig struct {
	ZKAddrs  []string
	ZKPrefix string
	ReadOnly bool
}

// NewZKAdminClient connects to zookeeper and returns a new ZKAdminClient.
func NewZKAdminClient(config ZKAdminClientConfig) (*ZKAdminClient, error) {
	zkClient, err := zk.NewPooledClient(
		zk.ClientConfig{
			Addrs:          config.ZKAddrs,
			Prefix:         config.ZKPrefix,
			PoolSize:       maxPoolSize / 2,
			SessionTimeout: time.Minute,
			ReadOnly:       config.ReadOnly,
		},
	)
	if err != nil {
		return nil, err
	}

	return NewZKAdminClientWithClient(zkClient, config.ReadOnly), nil
}

// NewZKAdminClientWithClient returns a ZKAdminClient that uses an existing zk client.
func NewZKAdminClientWithClient(zkClient zk.Client, readOnly bool) *ZKAdminClient {
	return &ZKAdminClient{
		zkClient: zkClient,
		readOnly: readOnly,
	}
}

// GetBrokers gets information on all registered brokers, sorted by ID.
func (c *ZKAdminClient) GetBrokers(ctx context.Context) ([]BrokerInfo, error) {
	idStrs, _, err := c.zkClient.Children(ctx, brokersPath)
	if err != nil {
		return nil, fmt.Errorf("Error getting children at path %s: %+v", brokersPath, err)
	}

	brokers := []BrokerInfo{}

	for _, idStr := range idStrs {
		id, err := strconv.Atoi(idStr)
		if err != nil {
			return nil, fmt.Errorf("Invalid broker id %q in zookeeper: %+v", idStr, err)
		}

		info := zkBrokerInfo{}
		_, err = c.zkClient.GetJSON(ctx, path.Join(brokersPath, idStr), &info)
		if err != nil {
			if zk.IsNoNode(err) {
				// The broker deregistered between the two calls
				log.Warnf("Broker %d disappeared while fetching brokers", id)
				continue
			}
			return nil, err
		}

		var timestamp time.Time
		if info.TimestampStr != "" {
			epochMillis, err := strconv.ParseInt(info.TimestampStr, 10, 64)
			if err != nil {
				return nil, err
			}
			timestamp = time.Unix(epochMillis/1000, 0)
		}

		brokers = append(
			brokers,
			BrokerInfo{
				ID:        id,
				Endpoints: info.Endpoints,
				Host:      info.Host,
				Port:      info.Port,
				Rack:      info.Rack,
				Version:   info.Version,
				Timestamp: timestamp,
			},
		)
	}

	sort.Slice(brokers, func(a, b int) bool {
		return brokers[a].ID < brokers[b].ID
	})

	return brokers, nil
}

// GetAssignment gets the replica assignments of the argument topics from zookeeper,
// fetching up to maxPoolSize topics in parallel.
func (c *ZKAdminClient) GetAssignment(
	ctx context.Context,
	topics []string,
) (ClusterAssignment, error) {
	topicNames := topics
	if len(topicNames) == 0 {
		var err error
		topicNames, _, err = c.zkClient.Children(ctx, topicsPath)
		if err != nil {
			return nil, fmt.Errorf("Error getting children at path %s: %+v", topicsPath, err)
		}
	}

	type topicResp struct {
		topic string
		info  zkTopicInfo
		err   error
	}

	topicChan := make(chan string, len(topicNames))
	respChan := make(chan topicResp, len(topicNames))

	for _, topic := range topicNames {
		topicChan <- topic
	}
	close(topicChan)

	poolSize := maxPoolSize
	if len(topicNames) < poolSize {
		poolSize = len(topicNames)
	}

	for i := 0; i < poolSize; i++ {
		go func() {
			for topic := range topicChan {
				info := zkTopicInfo{}
				_, err := c.zkClient.GetJSON(ctx, path.Join(topicsPath, topic), &info)
				respChan <- topicResp{topic: topic, info: info, err: err}
			}
		}()
	}

	assignment := ClusterAssignment{}

	for i := 0; i < len(topicNames); i++ {
		resp := <-respChan
		if resp.err != nil {
			return nil, fmt.Errorf("Error getting topic %s: %+v", resp.topic, resp.err)
		}

		for partitionStr, replicas := range resp.info.Partitions {
			partition, err := strconv.Atoi(partitionStr)
			if err != nil {
				return nil, fmt.Errorf(
					"Invalid partition %q in topic %s: %+v",
					partitionStr,
					resp.topic,
					err,
				)
			}
			assignment[TopicPartition{Topic: resp.topic, Partition: partition}] = replicas
		}
	}

	return assignment, nil
}

// AssignPartitions writes the argument plan to the reassignment node, which the
// controller picks up and executes.
func (c *ZKAdminClient) AssignPartitions(ctx context.Context, plan ReassignmentPlan) error {
	if c.readOnly {
		return errors.New("Cannot assign partitions in read-only mode")
	}
	if len(plan.Partitions) == 0 {
		return nil
	}

	inProgress, err := c.ReassignmentInProgress(ctx)
	if err != nil {
		return err
	}
	if inProgress {
		return ErrReassignmentInProgress
	}

	log.Infof(
		"Writing reassignment of %d partitions to zk path %s",
		len(plan.Partitions),
		reassignmentPath,
	)
	return c.zkClient.CreateJSON(ctx, reassignmentPath, plan)
}

// RunLeaderElection writes the argument partitions to the preferred replica election node.
func (c *ZKAdminClient) RunLeaderElection(
	ctx context.Context,
	partitions []TopicPartition,
) error {
	if c.readOnly {
		return errors.New("Cannot run leader election in read-only mode")
	}
	if len(partitions) == 0 {
		return nil
	}

	exists, _, err := c.zkClient.Exists(ctx, electionPath)
	if err != nil {
		return err
	}
	if exists {
		return ErrElectionInProgress
	}

	election := zkElection{
		Version:    1,
		Partitions: []zkElectionPartition{},
	}
	for _, partition := range partitions {
		election.Partitions = append(
			election.Partitions,
			zkElectionPartition{
				Topic:     partition.Topic,
				Partition: partition.Partition,
			},
		)
	}

	log.Infof(
		"Writing leader election for %d partitions to zk path %s",
		len(partitions),
		electionPath,
	)
	return c.zkClient.CreateJSON(ctx, electionPath, election)
}

// ReassignmentInProgress returns whether the reassignment node exists.
func (c *ZKAdminClient) ReassignmentInProgress(ctx context.Context) (bool, error) {
	exists, _, err := c.zkClient.Exists(ctx, reassignmentPath)
	return exists, err
}

// AcquireLock acquires and returns a lock from the underlying zookeeper client.
// The Unlock method should be called on the lock when it's safe to release.
func (c *ZKAdminClient) AcquireLock(ctx context.Context, lockPath string) (zk.Lock, error) {
	return c.zkClient.AcquireLock(ctx, lockPath)
}

// GetSupportedFeatures returns the features that are supported by this client.
func (c *ZKAdminClient) GetSupportedFeatures() SupportedFeatures {
	return SupportedFeatures{
		Reads:         true,
		Reassignments: !c.readOnly,
		Elections:     !c.readOnly,
		Locks:         !c.readOnly,
	}
}

// Close closes the connections in the underlying zookeeper client.
func (c *ZKAdminClient) Close() error {
	return c.zkClient.Close()
}
