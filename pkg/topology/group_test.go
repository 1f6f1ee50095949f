package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplicationGroupMovePartition(t *testing.T) {
	ct := New(
		testAssignment("topic", [][]int{{1, 2}, {1, 3}, {2, 4}}),
		testRackBrokers(
			map[string][]int{
				"a": {1, 2},
				"b": {3, 4},
			},
		),
		rackGroup,
	)
	groups := ct.ReplicationGroups()
	require.Len(t, groups, 2)
	groupA, groupB := groups[0], groups[1]

	partitions := ct.Partitions()
	assert.Equal(t, 2, groupA.CountReplica(partitions[0]))
	assert.Equal(t, 0, groupB.CountReplica(partitions[0]))
	assert.False(t, groupB.MovePartition(groupA, partitions[0]))

	// Brokers 1 and 2 tie on partitions and siblings, as do brokers 3 and 4, so the
	// lowest IDs win.
	require.True(t, groupA.MovePartition(groupB, partitions[0]))
	assert.Equal(t, []int{3, 2}, partitions[0].ReplicaIDs())
	assert.Equal(t, 1, groupA.CountReplica(partitions[0]))
	assert.Equal(t, 1, groupB.CountReplica(partitions[0]))

	// Broker 2 already hosts partition 2.
	require.True(t, groupB.MovePartition(groupA, partitions[2]))
	assert.Equal(t, []int{2, 1}, partitions[2].ReplicaIDs())
}

func TestReplicationGroupAcquirePartitionNoCapacity(t *testing.T) {
	ct := New(
		testAssignment("topic", [][]int{{1, 3}}),
		testRackBrokers(
			map[string][]int{
				"a": {1},
				"b": {3},
			},
		),
		rackGroup,
	)
	groups := ct.ReplicationGroups()
	partition := ct.Partitions()[0]

	assert.False(t, groups[1].AcquirePartition(partition, ct.Broker(1)))
	assert.Equal(t, []int{1, 3}, partition.ReplicaIDs())
}

func TestPartitionSwapLeader(t *testing.T) {
	ct := New(
		testAssignment("topic", [][]int{{1, 2, 3}}),
		testBrokers(3, 1),
		nil,
	)
	partition := ct.Partitions()[0]

	prev := partition.swapLeader(ct.Broker(3))
	assert.Equal(t, 1, prev.ID())
	assert.Equal(t, []int{3, 2, 1}, partition.ReplicaIDs())
	assert.Equal(t, 3, partition.Leader().ID())
	assert.Equal(t, []int{2, 1}, brokerIDs(partition.Followers()))
	assert.Equal(t, "topic:0", partition.Name())
}
