package topology

import (
	"fmt"
	"sort"

	"github.com/segmentio/rebalancectl/pkg/admin"
	log "github.com/sirupsen/logrus"
)

// Broker is a single kafka broker along with the partitions it currently hosts.
//
// A broker without metadata is inactive: it appears in the assignment but isn't
// registered in the cluster. Inactive and decommissioned brokers are never chosen as
// destinations for replicas or leadership, and the rebalancing operations try to move
// everything off of them.
type Broker struct {
	id             int
	metadata       *admin.BrokerInfo
	partitions     map[*Partition]struct{}
	group          *ReplicationGroup
	inactive       bool
	decommissioned bool
}

func newBroker(id int, metadata *admin.BrokerInfo) *Broker {
	return &Broker{
		id:         id,
		metadata:   metadata,
		partitions: map[*Partition]struct{}{},
		inactive:   metadata == nil,
	}
}

// ID returns the broker ID.
func (b *Broker) ID() int {
	return b.id
}

// Metadata returns the registry information for this broker, or nil if the broker is
// inactive.
func (b *Broker) Metadata() *admin.BrokerInfo {
	return b.metadata
}

// Group returns the replication group that the broker belongs to.
func (b *Broker) Group() *ReplicationGroup {
	return b.group
}

// Inactive returns whether the broker is missing from the broker registry.
func (b *Broker) Inactive() bool {
	return b.inactive
}

// Decommissioned returns whether the broker has been marked for removal.
func (b *Broker) Decommissioned() bool {
	return b.decommissioned
}

// Eligible returns whether the broker can receive new replicas or leadership.
func (b *Broker) Eligible() bool {
	return !b.inactive && !b.decommissioned
}

// Empty returns whether the broker hosts no partitions.
func (b *Broker) Empty() bool {
	return len(b.partitions) == 0
}

// NumPartitions returns the number of partition replicas hosted on the broker.
func (b *Broker) NumPartitions() int {
	return len(b.partitions)
}

// Partitions returns the partitions hosted on the broker, sorted by topic and ID.
func (b *Broker) Partitions() []*Partition {
	partitions := make([]*Partition, 0, len(b.partitions))
	for partition := range b.partitions {
		partitions = append(partitions, partition)
	}
	sort.Slice(partitions, func(i, j int) bool {
		return partitions[i].less(partitions[j])
	})
	return partitions
}

// HasPartition returns whether the broker hosts a replica of the argument partition.
func (b *Broker) HasPartition(partition *Partition) bool {
	_, ok := b.partitions[partition]
	return ok
}

// CountPartitions returns the number of partitions of the argument topic hosted on the
// broker.
func (b *Broker) CountPartitions(topic *Topic) int {
	count := 0
	for partition := range b.partitions {
		if partition.topic == topic {
			count++
		}
	}
	return count
}

// CountPreferredReplica returns the number of partitions for which the broker is the
// preferred leader.
func (b *Broker) CountPreferredReplica() int {
	count := 0
	for partition := range b.partitions {
		if partition.Leader() == b {
			count++
		}
	}
	return count
}

func (b *Broker) String() string {
	return fmt.Sprintf("%d", b.id)
}

func (b *Broker) markDecommissioned() {
	b.decommissioned = true
}

func (b *Broker) addPartition(partition *Partition) {
	b.partitions[partition] = struct{}{}
	partition.addReplica(b)
}

// movePartition moves the replica of partition hosted on this broker to dest, in place
// in the replica order.
func (b *Broker) movePartition(partition *Partition, dest *Broker) {
	log.Debugf(
		"Moving partition %s from broker %d to broker %d",
		partition.Name(),
		b.id,
		dest.id,
	)

	partition.replaceReplica(b, dest)
	delete(b.partitions, partition)
	dest.partitions[partition] = struct{}{}
}
