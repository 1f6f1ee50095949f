package topology

import (
	"sort"

	"github.com/segmentio/rebalancectl/pkg/util"
	log "github.com/sirupsen/logrus"
)

// ReplicationGroup is a failure domain (e.g., a rack or availability zone) containing a
// subset of the cluster's brokers. Replicas of a partition should be spread across groups.
type ReplicationGroup struct {
	id      string
	brokers map[int]*Broker
}

func newReplicationGroup(id string) *ReplicationGroup {
	return &ReplicationGroup{
		id:      id,
		brokers: map[int]*Broker{},
	}
}

// ID returns the group identifier. The default group has an empty ID.
func (g *ReplicationGroup) ID() string {
	return g.id
}

func (g *ReplicationGroup) String() string {
	if g.id == "" {
		return "<default>"
	}
	return g.id
}

// Brokers returns the member brokers, sorted by ID.
func (g *ReplicationGroup) Brokers() []*Broker {
	brokers := make([]*Broker, 0, len(g.brokers))
	for _, broker := range g.brokers {
		brokers = append(brokers, broker)
	}
	sortBrokers(brokers)
	return brokers
}

// ActiveBrokers returns the members that are neither inactive nor decommissioned,
// sorted by ID.
func (g *ReplicationGroup) ActiveBrokers() []*Broker {
	active := []*Broker{}
	for _, broker := range g.Brokers() {
		if broker.Eligible() {
			active = append(active, broker)
		}
	}
	return active
}

// CountReplica returns the number of replicas of the argument partition hosted by
// members of this group.
func (g *ReplicationGroup) CountReplica(partition *Partition) int {
	count := 0
	for _, replica := range partition.replicas {
		if replica.group == g {
			count++
		}
	}
	return count
}

// Partitions returns the distinct partitions that have at least one replica in this
// group, sorted by topic and ID.
func (g *ReplicationGroup) Partitions() []*Partition {
	seen := map[*Partition]struct{}{}
	partitions := []*Partition{}

	for _, broker := range g.brokers {
		for partition := range broker.partitions {
			if _, ok := seen[partition]; !ok {
				seen[partition] = struct{}{}
				partitions = append(partitions, partition)
			}
		}
	}

	sort.Slice(partitions, func(i, j int) bool {
		return partitions[i].less(partitions[j])
	})
	return partitions
}

// ReplicaCount returns the number of partition replicas hosted by members of this
// group. This is the load metric used when balancing partition counts across groups.
func (g *ReplicationGroup) ReplicaCount() int {
	count := 0
	for _, broker := range g.brokers {
		count += len(broker.partitions)
	}
	return count
}

func (g *ReplicationGroup) addBroker(broker *Broker) {
	g.brokers[broker.id] = broker
	broker.group = g
}

// MovePartition moves a single replica of the argument partition from one of this
// group's brokers to a broker in dest. It returns false, without changing anything, if
// no member hosts the partition or no broker in dest can take it.
func (g *ReplicationGroup) MovePartition(
	dest *ReplicationGroup,
	partition *Partition,
) bool {
	source := g.electSourceBroker(partition)
	if source == nil {
		return false
	}

	return dest.AcquirePartition(partition, source)
}

// AcquirePartition moves the replica of partition hosted on source to the best-fit
// broker of this group. It returns false if no member is able to take it.
func (g *ReplicationGroup) AcquirePartition(partition *Partition, source *Broker) bool {
	dest := g.electDestBroker(partition)
	if dest == nil {
		log.Debugf(
			"No broker in replication group %s can take partition %s",
			g,
			partition.Name(),
		)
		return false
	}

	source.movePartition(partition, dest)
	return true
}

// RebalanceBrokers balances the number of partition replicas across the active
// members of the group. Decommissioned and inactive members are treated as over-loaded
// until they're empty.
//
// The algorithm is:
//
//	while there are over-loaded and under-loaded brokers:
//	  for each (over-loaded, under-loaded) pair, with decommissioned/inactive first:
//	    pick the partition on the source that isn't on the destination and whose
//	      topic is most over-represented on the source relative to the destination
//	    move it and re-evaluate
//	  stop if no pair has a movable partition
//
// A GroupDecommissionError is returned if a decommissioned broker couldn't be emptied.
func (g *ReplicationGroup) RebalanceBrokers() error {
	active := g.ActiveBrokers()

	if len(active) == 0 {
		if stuck := g.nonEmptyDecommissioned(); len(stuck) > 0 {
			return &GroupDecommissionError{GroupID: g.id, Brokers: brokerIDs(stuck)}
		}
		return &EmptyReplicationGroupError{GroupID: g.id}
	}

	total := g.ReplicaCount()

	for {
		over, under := util.SeparateGroups(active, (*Broker).NumPartitions, total)
		over = append(g.nonEmptyIneligible(), over...)

		if len(over) == 0 || len(under) == 0 {
			break
		}

		source, dest, partition := selectBrokerMove(over, under)
		if partition == nil {
			log.Debugf(
				"Brokers in replication group %s cannot be balanced further",
				g,
			)
			break
		}

		source.movePartition(partition, dest)
	}

	if stuck := g.nonEmptyDecommissioned(); len(stuck) > 0 {
		return &GroupDecommissionError{GroupID: g.id, Brokers: brokerIDs(stuck)}
	}
	return nil
}

func (g *ReplicationGroup) nonEmptyIneligible() []*Broker {
	brokers := []*Broker{}
	for _, broker := range g.Brokers() {
		if !broker.Eligible() && !broker.Empty() {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}

func (g *ReplicationGroup) nonEmptyDecommissioned() []*Broker {
	brokers := []*Broker{}
	for _, broker := range g.Brokers() {
		if broker.decommissioned && !broker.Empty() {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}

// electSourceBroker picks the member that should give up its replica of partition:
// decommissioned or inactive members first, then the one with the most partitions, then
// the one with the most partitions of the same topic.
func (g *ReplicationGroup) electSourceBroker(partition *Partition) *Broker {
	candidates := []*Broker{}
	for _, broker := range g.Brokers() {
		if broker.HasPartition(partition) {
			candidates = append(candidates, broker)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Eligible() != b.Eligible() {
			return !a.Eligible()
		}
		if a.NumPartitions() != b.NumPartitions() {
			return a.NumPartitions() > b.NumPartitions()
		}
		return a.CountPartitions(partition.topic) > b.CountPartitions(partition.topic)
	})
	return candidates[0]
}

// electDestBroker picks the eligible member without a replica of partition that has the
// fewest partitions of the same topic, then the fewest partitions overall.
func (g *ReplicationGroup) electDestBroker(partition *Partition) *Broker {
	candidates := []*Broker{}
	for _, broker := range g.ActiveBrokers() {
		if !broker.HasPartition(partition) {
			candidates = append(candidates, broker)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		aSiblings := a.CountPartitions(partition.topic)
		bSiblings := b.CountPartitions(partition.topic)
		if aSiblings != bSiblings {
			return aSiblings < bSiblings
		}
		return a.NumPartitions() < b.NumPartitions()
	})
	return candidates[0]
}

// selectBrokerMove finds the first (source, dest) pair with a partition that can move
// between them. Destinations are tried fewest partitions first, then by ID. Active
// sources only give to destinations with at least two fewer partitions so that moves
// never oscillate.
func selectBrokerMove(over []*Broker, under []*Broker) (*Broker, *Broker, *Partition) {
	dests := make([]*Broker, len(under))
	copy(dests, under)
	sort.Slice(dests, func(i, j int) bool {
		if dests[i].NumPartitions() != dests[j].NumPartitions() {
			return dests[i].NumPartitions() < dests[j].NumPartitions()
		}
		return dests[i].id < dests[j].id
	})

	for _, source := range over {
		for _, dest := range dests {
			if source == dest {
				continue
			}
			if source.Eligible() && source.NumPartitions()-dest.NumPartitions() < 2 {
				continue
			}

			var best *Partition
			bestDistance := 0

			for _, partition := range source.Partitions() {
				if dest.HasPartition(partition) {
					continue
				}
				distance := source.CountPartitions(partition.topic) -
					dest.CountPartitions(partition.topic)
				if best == nil || distance > bestDistance {
					best = partition
					bestDistance = distance
				}
			}

			if best != nil {
				return source, dest, best
			}
		}
	}

	return nil, nil, nil
}

func sortBrokers(brokers []*Broker) {
	sort.Slice(brokers, func(i, j int) bool {
		return brokers[i].id < brokers[j].id
	})
}

func brokerIDs(brokers []*Broker) []int {
	ids := make([]int, 0, len(brokers))
	for _, broker := range brokers {
		ids = append(ids, broker.id)
	}
	return ids
}
