package admin

import (
	"context"

	"github.com/segmentio/rebalancectl/pkg/zk"
)

// Client is an interface for reading a cluster's placement and submitting changes to it.
type Client interface {
	// GetBrokers gets information about all brokers registered in the cluster.
	GetBrokers(ctx context.Context) ([]BrokerInfo, error)

	// GetAssignment gets the current replica assignment of the argument topics, or of all
	// topics if none are provided.
	GetAssignment(ctx context.Context, topics []string) (ClusterAssignment, error)

	// AssignPartitions starts a reassignment of the partitions in the argument plan.
	AssignPartitions(ctx context.Context, plan ReassignmentPlan) error

	// RunLeaderElection triggers a preferred leader election for the argument partitions.
	RunLeaderElection(ctx context.Context, partitions []TopicPartition) error

	// ReassignmentInProgress returns whether a previous reassignment hasn't finished yet.
	ReassignmentInProgress(ctx context.Context) (bool, error)

	// AcquireLock acquires a lock that prevents simultaneous rebalances of the cluster.
	AcquireLock(ctx context.Context, path string) (zk.Lock, error)

	// GetSupportedFeatures gets the features supported by the cluster for this client.
	GetSupportedFeatures() SupportedFeatures

	// Close closes the client.
	Close() error
}
