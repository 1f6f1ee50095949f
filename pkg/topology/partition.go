package topology

import (
	"fmt"
)

// Partition is a single topic partition along with its ordered replica brokers. The
// first replica is the preferred leader.
type Partition struct {
	topic    *Topic
	id       int
	replicas []*Broker
}

func newPartition(topic *Topic, id int) *Partition {
	return &Partition{
		topic:    topic,
		id:       id,
		replicas: []*Broker{},
	}
}

// Topic returns the topic this partition belongs to.
func (p *Partition) Topic() *Topic {
	return p.topic
}

// ID returns the partition index within its topic.
func (p *Partition) ID() int {
	return p.id
}

// Name returns a human-readable identifier for the partition.
func (p *Partition) Name() string {
	return fmt.Sprintf("%s:%d", p.topic.id, p.id)
}

func (p *Partition) String() string {
	return p.Name()
}

// Replicas returns a copy of the ordered replica list.
func (p *Partition) Replicas() []*Broker {
	replicas := make([]*Broker, len(p.replicas))
	copy(replicas, p.replicas)
	return replicas
}

// ReplicaIDs returns the IDs of the replicas, in order.
func (p *Partition) ReplicaIDs() []int {
	ids := make([]int, 0, len(p.replicas))
	for _, replica := range p.replicas {
		ids = append(ids, replica.id)
	}
	return ids
}

// ReplicationFactor returns the number of replicas of this partition.
func (p *Partition) ReplicationFactor() int {
	return len(p.replicas)
}

// Leader returns the preferred leader, or nil for a partition without replicas.
func (p *Partition) Leader() *Broker {
	if len(p.replicas) == 0 {
		return nil
	}
	return p.replicas[0]
}

// Followers returns the non-leader replicas, in order.
func (p *Partition) Followers() []*Broker {
	if len(p.replicas) < 2 {
		return []*Broker{}
	}
	followers := make([]*Broker, len(p.replicas)-1)
	copy(followers, p.replicas[1:])
	return followers
}

func (p *Partition) less(other *Partition) bool {
	if p.topic.id != other.topic.id {
		return p.topic.id < other.topic.id
	}
	return p.id < other.id
}

func (p *Partition) index(broker *Broker) int {
	for r, replica := range p.replicas {
		if replica == broker {
			return r
		}
	}
	return -1
}

func (p *Partition) hasReplica(broker *Broker) bool {
	return p.index(broker) != -1
}

func (p *Partition) addReplica(broker *Broker) {
	p.replicas = append(p.replicas, broker)
}

// replaceReplica puts dest in the slot currently held by source, keeping the replica
// order intact.
func (p *Partition) replaceReplica(source *Broker, dest *Broker) {
	r := p.index(source)
	if r == -1 || p.hasReplica(dest) {
		panic(
			fmt.Sprintf(
				"invalid replica replacement in %s: %d -> %d",
				p.Name(),
				source.id,
				dest.id,
			),
		)
	}
	p.replicas[r] = dest
}

// swapLeader makes newLeader the preferred leader; the previous leader takes
// newLeader's old slot. It returns the previous leader.
func (p *Partition) swapLeader(newLeader *Broker) *Broker {
	prevLeader := p.replicas[0]
	r := p.index(newLeader)
	if r <= 0 {
		return prevLeader
	}

	p.replicas[0], p.replicas[r] = p.replicas[r], p.replicas[0]
	return prevLeader
}
