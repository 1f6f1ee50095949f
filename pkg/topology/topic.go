package topology

// Topic groups the partitions that share a topic name.
type Topic struct {
	id                string
	replicationFactor int
	partitions        []*Partition
}

func newTopic(id string, replicationFactor int) *Topic {
	return &Topic{
		id:                id,
		replicationFactor: replicationFactor,
		partitions:        []*Partition{},
	}
}

// ID returns the topic name.
func (t *Topic) ID() string {
	return t.id
}

// ReplicationFactor returns the replication factor declared when the topic was first
// seen.
func (t *Topic) ReplicationFactor() int {
	return t.replicationFactor
}

// Partitions returns the topic's partitions in the order they were added.
func (t *Topic) Partitions() []*Partition {
	partitions := make([]*Partition, len(t.partitions))
	copy(partitions, t.partitions)
	return partitions
}

func (t *Topic) addPartition(partition *Partition) {
	t.partitions = append(t.partitions, partition)
}
