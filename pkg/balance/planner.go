package balance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/rebalancectl/pkg/admin"
	"github.com/segmentio/rebalancectl/pkg/topology"
	"github.com/segmentio/rebalancectl/pkg/zk"
	log "github.com/sirupsen/logrus"
)

const lockTimeout = 30 * time.Second

// PlannerConfig stores the settings for a Planner.
type PlannerConfig struct {
	// Topics restricts the plan to the argument topics. If empty, all topics are used.
	Topics []string

	RebalanceReplicationGroups bool
	RebalanceBrokers           bool
	RebalanceLeaders           bool

	// BrokersToDecommission are emptied before any other balancing is done, so later
	// steps treat them as ineligible.
	BrokersToDecommission []int

	// MaxPartitionMovements and MaxLeaderChanges cap the size of the plan. Zero means
	// unlimited.
	MaxPartitionMovements int
	MaxLeaderChanges      int

	// Extractor maps brokers to replication groups. If nil, all brokers are put into a
	// single group.
	Extractor topology.GroupExtractor

	// EC2Client, if set, is used to look up the availability zones of the brokers before
	// the topology is built.
	EC2Client admin.EC2Client
}

// Planner generates and applies rebalancing plans for a cluster.
type Planner struct {
	config      PlannerConfig
	adminClient admin.Client
}

// NewPlanner returns a new Planner instance.
func NewPlanner(adminClient admin.Client, config PlannerConfig) *Planner {
	return &Planner{
		config:      config,
		adminClient: adminClient,
	}
}

// Plan reads the current state of the cluster, runs the configured rebalancing steps
// against an in-memory topology, and returns the resulting changes. Nothing in the
// cluster is modified.
func (p *Planner) Plan(ctx context.Context) (*Plan, error) {
	brokers, err := p.adminClient.GetBrokers(ctx)
	if err != nil {
		return nil, fmt.Errorf("Error getting brokers: %+v", err)
	}

	if p.config.EC2Client != nil {
		log.Infof("Looking up availability zones for %d brokers", len(brokers))
		if err := admin.LookupAvailabilityZones(ctx, p.config.EC2Client, brokers); err != nil {
			return nil, err
		}
	}

	assignment, err := p.adminClient.GetAssignment(ctx, p.config.Topics)
	if err != nil {
		return nil, fmt.Errorf("Error getting assignment: %+v", err)
	}
	if err := admin.CheckAssignment(assignment); err != nil {
		return nil, err
	}

	brokersByID := admin.BrokersByID(brokers)
	ct := topology.New(assignment, brokersByID, p.config.Extractor)

	log.Infof(
		"Loaded %d partitions across %d topics, %d brokers, and %d replication groups",
		len(ct.Partitions()),
		len(ct.Topics()),
		len(ct.Brokers()),
		len(ct.ReplicationGroups()),
	)

	before := ct.Stats()
	current := ct.Assignment()

	if len(p.config.BrokersToDecommission) > 0 {
		log.Infof("Decommissioning brokers %v", p.config.BrokersToDecommission)
		if err := ct.DecommissionBrokers(p.config.BrokersToDecommission); err != nil {
			return nil, err
		}
	}
	if p.config.RebalanceReplicationGroups {
		log.Info("Rebalancing replication groups")
		ct.RebalanceReplicationGroups()
	}
	if p.config.RebalanceBrokers {
		log.Info("Rebalancing brokers")
		ct.RebalanceBrokers()
	}
	if p.config.RebalanceLeaders {
		log.Info("Rebalancing leaders")
		ct.RebalanceLeaders()
	}

	proposed, truncated := LimitChanges(
		current,
		ct.Assignment(),
		p.config.MaxPartitionMovements,
		p.config.MaxLeaderChanges,
	)

	after := ct.Stats()
	if truncated {
		log.Warnf("Plan was truncated to respect the movement and leader change limits")

		limitedCT := topology.New(admin.ToClusterAssignment(proposed), brokersByID, p.config.Extractor)
		if _, err := limitedCT.MarkDecommissioned(p.config.BrokersToDecommission); err != nil {
			return nil, err
		}
		after = limitedCT.Stats()
	}

	return &Plan{
		Brokers:   brokers,
		Current:   current,
		Proposed:  proposed,
		Before:    before,
		After:     after,
		Truncated: truncated,
	}, nil
}

// Apply submits the argument plan to the cluster. If lockPath is set and the client
// supports locks, the lock is held while the plan is submitted.
func (p *Planner) Apply(ctx context.Context, plan *Plan, lockPath string) error {
	if plan.Empty() {
		log.Info("Plan is empty, nothing to apply")
		return nil
	}

	features := p.adminClient.GetSupportedFeatures()
	if !features.Reassignments {
		return admin.ErrReassignmentsNotSupported
	}

	if lockPath != "" && features.Locks {
		lock, err := p.acquireLock(ctx, lockPath)
		if err != nil {
			return err
		}
		defer func() {
			log.Infof("Releasing lock: %s", lockPath)
			zk.ReleaseLock(lock)
		}()
	}

	inProgress, err := p.adminClient.ReassignmentInProgress(ctx)
	if err != nil {
		return err
	}
	if inProgress {
		return admin.ErrReassignmentInProgress
	}

	reassignment := plan.ReassignmentPlan()
	log.Infof(
		"Submitting reassignment of %d partitions (%d replica movements, %d leader changes)",
		len(reassignment.Partitions),
		plan.Movements(),
		plan.LeaderChanges(),
	)

	return p.adminClient.AssignPartitions(ctx, reassignment)
}

// ElectLeaders triggers a preferred leader election for all partitions of the argument
// topics, or of all topics if none are provided.
func (p *Planner) ElectLeaders(ctx context.Context, topics []string) error {
	if !p.adminClient.GetSupportedFeatures().Elections {
		return errors.New("Leader elections are not supported by this client")
	}

	assignment, err := p.adminClient.GetAssignment(ctx, topics)
	if err != nil {
		return err
	}

	partitions := []admin.TopicPartition{}
	for _, replicaAssignment := range admin.SortedAssignments(assignment) {
		partitions = append(partitions, replicaAssignment.TopicPartition())
	}

	return p.adminClient.RunLeaderElection(ctx, partitions)
}

func (p *Planner) acquireLock(ctx context.Context, lockPath string) (zk.Lock, error) {
	log.Infof("Acquiring lock: %s", lockPath)
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	lock, err := p.adminClient.AcquireLock(lockCtx, lockPath)
	if err != nil {
		return nil, fmt.Errorf("Error acquiring lock %s: %+v", lockPath, err)
	}
	return lock, nil
}
