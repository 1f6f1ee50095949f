package topology

import (
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/segmentio/rebalancectl/pkg/admin"
	"github.com/segmentio/rebalancectl/pkg/util"
	log "github.com/sirupsen/logrus"
)

// GroupExtractor classifies a broker into a replication group. The broker's metadata may
// be nil for brokers that are referenced by the assignment but aren't registered in the
// cluster.
type GroupExtractor func(broker *Broker) string

// DefaultGroup puts every broker into a single, unnamed replication group. With a single
// group, all of the cross-group balancing operations are no-ops.
func DefaultGroup(broker *Broker) string {
	return ""
}

// ClusterTopology is an in-memory model of a cluster's partition placement. It's built
// from the current assignment and the broker registry, mutated in place by the
// rebalancing operations, and projected back into an assignment via Assignment.
//
// A ClusterTopology is not safe for concurrent use.
type ClusterTopology struct {
	brokers      map[int]*Broker
	groups       map[string]*ReplicationGroup
	topics       map[string]*Topic
	partitions   map[admin.TopicPartition]*Partition
	extractGroup GroupExtractor
}

// New builds a ClusterTopology from the argument assignment and broker registry.
//
// Brokers that appear in the assignment but not in the registry are logged and added as
// inactive brokers.
func New(
	assignment admin.ClusterAssignment,
	brokers map[int]*admin.BrokerInfo,
	extractGroup GroupExtractor,
) *ClusterTopology {
	if extractGroup == nil {
		extractGroup = DefaultGroup
	}

	ct := &ClusterTopology{
		brokers:      map[int]*Broker{},
		groups:       map[string]*ReplicationGroup{},
		topics:       map[string]*Topic{},
		partitions:   map[admin.TopicPartition]*Partition{},
		extractGroup: extractGroup,
	}

	brokerIDs := make([]int, 0, len(brokers))
	for id := range brokers {
		brokerIDs = append(brokerIDs, id)
	}
	sort.Ints(brokerIDs)

	for _, id := range brokerIDs {
		ct.upsertBroker(id, brokers[id])
	}

	tps := make([]admin.TopicPartition, 0, len(assignment))
	for tp := range assignment {
		tps = append(tps, tp)
	}
	sort.Slice(tps, func(a, b int) bool {
		return tps[a].Less(tps[b])
	})

	for _, tp := range tps {
		replicaIDs := assignment[tp]

		topic, ok := ct.topics[tp.Topic]
		if !ok {
			topic = newTopic(tp.Topic, len(replicaIDs))
			ct.topics[tp.Topic] = topic
		}

		partition := newPartition(topic, tp.Partition)
		topic.addPartition(partition)
		ct.partitions[tp] = partition

		for _, id := range replicaIDs {
			broker, ok := ct.brokers[id]
			if !ok {
				log.Warnf(
					"Broker %d hosts partition %s but is missing from the broker registry; treating it as inactive",
					id,
					tp,
				)
				broker = ct.upsertBroker(id, nil)
			}
			broker.addPartition(partition)
		}
	}

	return ct
}

// upsertBroker returns the broker with the argument ID, creating it and classifying it
// into a replication group if it doesn't exist yet.
func (ct *ClusterTopology) upsertBroker(id int, metadata *admin.BrokerInfo) *Broker {
	if broker, ok := ct.brokers[id]; ok {
		return broker
	}

	broker := newBroker(id, metadata)
	ct.brokers[id] = broker

	groupID := ct.extractGroup(broker)
	group, ok := ct.groups[groupID]
	if !ok {
		group = newReplicationGroup(groupID)
		ct.groups[groupID] = group
	}
	group.addBroker(broker)

	return broker
}

// Assignment returns the current placement of all partitions, sorted by topic and
// partition.
func (ct *ClusterTopology) Assignment() []admin.ReplicaAssignment {
	assignments := make([]admin.ReplicaAssignment, 0, len(ct.partitions))

	for _, partition := range ct.Partitions() {
		assignments = append(
			assignments,
			admin.ReplicaAssignment{
				Topic:     partition.topic.id,
				Partition: partition.id,
				Replicas:  partition.ReplicaIDs(),
			},
		)
	}

	return assignments
}

// ClusterAssignment returns the current placement in map form.
func (ct *ClusterTopology) ClusterAssignment() admin.ClusterAssignment {
	return admin.ToClusterAssignment(ct.Assignment())
}

// Broker returns the broker with the argument ID, or nil if it doesn't exist.
func (ct *ClusterTopology) Broker(id int) *Broker {
	return ct.brokers[id]
}

// Brokers returns all brokers, including inactive ones, sorted by ID.
func (ct *ClusterTopology) Brokers() []*Broker {
	brokers := make([]*Broker, 0, len(ct.brokers))
	for _, broker := range ct.brokers {
		brokers = append(brokers, broker)
	}
	sortBrokers(brokers)
	return brokers
}

// ReplicationGroups returns all replication groups, sorted by ID.
func (ct *ClusterTopology) ReplicationGroups() []*ReplicationGroup {
	groups := make([]*ReplicationGroup, 0, len(ct.groups))
	for _, group := range ct.groups {
		groups = append(groups, group)
	}
	sort.Slice(groups, func(a, b int) bool {
		return groups[a].id < groups[b].id
	})
	return groups
}

// Topics returns all topics, sorted by name.
func (ct *ClusterTopology) Topics() []*Topic {
	topics := make([]*Topic, 0, len(ct.topics))
	for _, name := range util.SortedStringKeys(ct.topics) {
		topics = append(topics, ct.topics[name])
	}
	return topics
}

// Partitions returns all partitions, sorted by topic and ID.
func (ct *ClusterTopology) Partitions() []*Partition {
	partitions := make([]*Partition, 0, len(ct.partitions))
	for _, partition := range ct.partitions {
		partitions = append(partitions, partition)
	}
	sort.Slice(partitions, func(a, b int) bool {
		return partitions[a].less(partitions[b])
	})
	return partitions
}

// PartitionReplicas returns one entry per partition replica in the cluster, i.e. every
// partition repeated once for each broker hosting it.
func (ct *ClusterTopology) PartitionReplicas() []*Partition {
	replicas := []*Partition{}
	for _, partition := range ct.Partitions() {
		for range partition.replicas {
			replicas = append(replicas, partition)
		}
	}
	return replicas
}

// RebalanceReplicationGroups spreads the replicas of every partition evenly across the
// replication groups, and then balances the number of partition replicas held by each
// group without undoing the per-partition balance.
func (ct *ClusterTopology) RebalanceReplicationGroups() {
	groups := ct.ReplicationGroups()
	if len(groups) < 2 {
		log.Debug("Fewer than two replication groups; skipping cross-group rebalance")
		return
	}

	for _, partition := range ct.Partitions() {
		ct.rebalancePartition(groups, partition)
	}

	ct.rebalanceGroupsReplicaCount(groups)
}

// rebalancePartition moves replicas of a single partition from the group holding the
// most of them to the group holding the fewest until the groups are within one replica
// of each other.
func (ct *ClusterTopology) rebalancePartition(
	groups []*ReplicationGroup,
	partition *Partition,
) {
	countReplica := func(g *ReplicationGroup) int {
		return g.CountReplica(partition)
	}
	total := partition.ReplicationFactor()

	for {
		over, under := util.SeparateGroups(groups, countReplica, total)
		if len(over) == 0 || len(under) == 0 {
			return
		}

		source := maxGroup(over, countReplica)
		sourceCount := source.CountReplica(partition)

		candidates := make([]*ReplicationGroup, len(under))
		copy(candidates, under)
		sortGroupsBy(candidates, countReplica)

		moved := false
		for _, dest := range candidates {
			if dest.CountReplica(partition) >= sourceCount-1 {
				break
			}
			if source.MovePartition(dest, partition) {
				log.Debugf(
					"Moved a replica of partition %s from replication group %s to %s",
					partition.Name(),
					source,
					dest,
				)
				moved = true
				break
			}
		}

		if !moved {
			log.Debugf(
				"Replicas of partition %s cannot be balanced further across replication groups",
				partition.Name(),
			)
			return
		}
	}
}

// rebalanceGroupsReplicaCount balances the number of partition replicas held by each
// replication group. Only replicas that the source group holds in excess of the
// partition's per-group fair share, and that the destination group holds no more than
// that fair share of, are moved. This keeps the per-partition balance intact.
func (ct *ClusterTopology) rebalanceGroupsReplicaCount(groups []*ReplicationGroup) {
	total := 0
	for _, group := range groups {
		total += group.ReplicaCount()
	}

	over, under := util.SeparateGroups(groups, (*ReplicationGroup).ReplicaCount, total)
	if len(over) == 0 || len(under) == 0 {
		log.Info("Replication groups are balanced based on partition count")
		return
	}

	log.Infof(
		"Over-loaded replication groups %v, under-loaded replication groups %v based on partition count",
		over,
		under,
	)

	for {
		over, under = util.SeparateGroups(groups, (*ReplicationGroup).ReplicaCount, total)
		if len(over) == 0 || len(under) == 0 {
			return
		}

		if !ct.moveEligibleReplica(groups, over, under) {
			log.Infof(
				"Replication groups cannot be balanced further; over-loaded %v, under-loaded %v",
				over,
				under,
			)
			return
		}
	}
}

func (ct *ClusterTopology) moveEligibleReplica(
	groups []*ReplicationGroup,
	over []*ReplicationGroup,
	under []*ReplicationGroup,
) bool {
	for _, source := range over {
		for _, dest := range under {
			for _, partition := range source.Partitions() {
				fairShare := partition.ReplicationFactor() / len(groups)
				if source.CountReplica(partition) <= fairShare ||
					dest.CountReplica(partition) > fairShare {
					continue
				}

				if source.MovePartition(dest, partition) {
					log.Debugf(
						"Moved a replica of partition %s from replication group %s to %s",
						partition.Name(),
						source,
						dest,
					)
					return true
				}
			}
		}
	}

	return false
}

// DecommissionBrokers marks the argument brokers as decommissioned and moves all of
// their partitions elsewhere. Partitions are kept within each broker's replication group
// when possible; otherwise they're moved to the groups holding the fewest replicas of
// each partition.
//
// All IDs are validated before anything is changed. If a broker can't be emptied, a
// BrokerDecommissionError is returned and the changes made so far are kept.
func (ct *ClusterTopology) DecommissionBrokers(ids []int) error {
	brokers, err := ct.MarkDecommissioned(ids)
	if err != nil {
		return err
	}

	groupsMap := map[string]*ReplicationGroup{}
	for _, broker := range brokers {
		groupsMap[broker.group.id] = broker.group
	}

	for _, groupID := range util.SortedStringKeys(groupsMap) {
		group := groupsMap[groupID]

		err := group.RebalanceBrokers()
		if err == nil {
			continue
		}

		switch err.(type) {
		case *GroupDecommissionError, *EmptyReplicationGroupError:
		default:
			return err
		}

		var failures *multierror.Error

		for _, broker := range group.Brokers() {
			if broker.decommissioned && !broker.Empty() {
				log.Infof(
					"Broker %d can't be decommissioned within replication group %s; moving its partitions to other groups",
					broker.id,
					group,
				)
				ct.forceBrokerDecommission(broker)
			}

			if broker.decommissioned && !broker.Empty() {
				log.Errorf(
					"Impossible to decommission broker %d; still hosting partitions %v",
					broker.id,
					broker.Partitions(),
				)
				failures = multierror.Append(failures, stuckBrokerError(broker))
			}
		}

		if failures != nil {
			return &BrokerDecommissionError{GroupID: group.id, Err: failures}
		}
	}

	return nil
}

func stuckBrokerError(broker *Broker) *StuckBrokerError {
	names := []string{}
	for _, partition := range broker.Partitions() {
		names = append(names, partition.Name())
	}
	return &StuckBrokerError{ID: broker.id, Partitions: names}
}

// MarkDecommissioned marks the argument brokers as decommissioned without moving any
// partitions. Nothing is marked if any of the IDs is invalid.
func (ct *ClusterTopology) MarkDecommissioned(ids []int) ([]*Broker, error) {
	brokers := []*Broker{}
	for _, id := range ids {
		broker, ok := ct.brokers[id]
		if !ok {
			log.Errorf("Invalid broker id %d", id)
			return nil, &InvalidBrokerIDError{ID: id}
		}
		brokers = append(brokers, broker)
	}

	for _, broker := range brokers {
		broker.markDecommissioned()
	}

	return brokers, nil
}

// forceBrokerDecommission moves each partition of the argument broker to the other
// replication group that holds the fewest replicas of it.
func (ct *ClusterTopology) forceBrokerDecommission(broker *Broker) {
	others := []*ReplicationGroup{}
	for _, group := range ct.ReplicationGroups() {
		if group != broker.group {
			others = append(others, group)
		}
	}

	for _, partition := range broker.Partitions() {
		candidates := make([]*ReplicationGroup, len(others))
		copy(candidates, others)
		sortGroupsBy(candidates, func(g *ReplicationGroup) int {
			return g.CountReplica(partition)
		})

		for _, group := range candidates {
			log.Debugf(
				"Trying to move partition %s from broker %d to replication group %s",
				partition.Name(),
				broker.id,
				group,
			)
			if group.AcquirePartition(partition, broker) {
				break
			}
		}
	}
}

// RebalanceBrokers balances the partition counts of the brokers within each replication
// group. Groups that can't be balanced are logged and skipped.
func (ct *ClusterTopology) RebalanceBrokers() {
	for _, group := range ct.ReplicationGroups() {
		if err := group.RebalanceBrokers(); err != nil {
			log.Warnf("Could not rebalance brokers in replication group %s: %+v", group, err)
		}
	}
}

func maxGroup(
	groups []*ReplicationGroup,
	key func(*ReplicationGroup) int,
) *ReplicationGroup {
	var result *ReplicationGroup
	for _, group := range groups {
		if result == nil || key(group) > key(result) ||
			(key(group) == key(result) && group.id < result.id) {
			result = group
		}
	}
	return result
}

// sortGroupsBy sorts groups by ascending key, then by ID.
func sortGroupsBy(groups []*ReplicationGroup, key func(*ReplicationGroup) int) {
	sort.Slice(groups, func(a, b int) bool {
		keyA := key(groups[a])
		keyB := key(groups[b])
		if keyA != keyB {
			return keyA < keyB
		}
		return groups[a].id < groups[b].id
	})
}
