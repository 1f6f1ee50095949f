package topology

import (
	"errors"
	"fmt"
	"testing"

	"github.com/segmentio/rebalancectl/pkg/admin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClusterTopology(t *testing.T) {
	brokers := testBrokers(4, 2)
	assignment := admin.ClusterAssignment{
		{Topic: "b-topic", Partition: 1}: {4, 1},
		{Topic: "a-topic", Partition: 0}: {1, 2},
		{Topic: "b-topic", Partition: 0}: {2, 9},
		{Topic: "a-topic", Partition: 1}: {3, 4},
	}

	ct := New(assignment, brokers, rackGroup)

	assert.Equal(
		t,
		[]admin.ReplicaAssignment{
			{Topic: "a-topic", Partition: 0, Replicas: []int{1, 2}},
			{Topic: "a-topic", Partition: 1, Replicas: []int{3, 4}},
			{Topic: "b-topic", Partition: 0, Replicas: []int{2, 9}},
			{Topic: "b-topic", Partition: 1, Replicas: []int{4, 1}},
		},
		ct.Assignment(),
	)
	assert.Equal(t, ct.Assignment(), ct.Assignment())
	assert.Equal(t, admin.ToClusterAssignment(ct.Assignment()), ct.ClusterAssignment())

	require.Len(t, ct.Brokers(), 5)
	inactive := ct.Broker(9)
	require.NotNil(t, inactive)
	assert.True(t, inactive.Inactive())
	assert.False(t, inactive.Eligible())
	assert.Nil(t, inactive.Metadata())
	assert.Equal(t, "", inactive.Group().ID())
	assert.Nil(t, ct.Broker(10))

	groupIDs := []string{}
	for _, group := range ct.ReplicationGroups() {
		groupIDs = append(groupIDs, group.ID())
	}
	assert.Equal(t, []string{"", "zone1", "zone2"}, groupIDs)

	topicIDs := []string{}
	for _, topic := range ct.Topics() {
		topicIDs = append(topicIDs, topic.ID())
		assert.Equal(t, 2, topic.ReplicationFactor())
		assert.Len(t, topic.Partitions(), 2)
	}
	assert.Equal(t, []string{"a-topic", "b-topic"}, topicIDs)

	broker1 := ct.Broker(1)
	assert.Equal(t, 2, broker1.NumPartitions())
	assert.Equal(t, 1, broker1.CountPreferredReplica())
	assert.Equal(t, "zone1", broker1.Group().ID())
	assert.Len(t, ct.PartitionReplicas(), 8)
}

func TestNewClusterTopologyDefaultGroup(t *testing.T) {
	ct := New(
		testAssignment("topic", [][]int{{1, 2}, {2, 3}}),
		testBrokers(3, 3),
		nil,
	)

	groups := ct.ReplicationGroups()
	require.Len(t, groups, 1)
	assert.Equal(t, "", groups[0].ID())
	assert.Len(t, groups[0].Brokers(), 3)
	assert.Equal(t, 4, groups[0].ReplicaCount())
	assert.Len(t, groups[0].Partitions(), 2)

	before := ct.Assignment()
	ct.RebalanceReplicationGroups()
	assert.Equal(t, before, ct.Assignment())
}

func TestRebalanceReplicationGroups(t *testing.T) {
	type testCase struct {
		description string
		racks       map[string][]int
		curr        [][]int
		expected    [][]int
		groupCounts map[string]int
	}

	testCases := []testCase{
		{
			description: "Replication factor above number of groups",
			racks: map[string][]int{
				"g1": {1, 2},
				"g2": {3, 4},
			},
			curr: [][]int{
				{1, 2, 3},
			},
			expected: [][]int{
				{1, 2, 3},
			},
			groupCounts: map[string]int{
				"g1": 2,
				"g2": 1,
			},
		},
		{
			description: "Partition count balanced across groups",
			racks: map[string][]int{
				"a": {1, 2},
				"b": {3, 4},
			},
			curr: [][]int{
				{1, 2, 3},
				{2, 1, 4},
				{1, 3, 2},
			},
			expected: [][]int{
				{4, 2, 3},
				{2, 1, 4},
				{1, 3, 2},
			},
			groupCounts: map[string]int{
				"a": 5,
				"b": 4,
			},
		},
		{
			description: "Replicas moved to empty group",
			racks: map[string][]int{
				"a": {1, 2},
				"b": {3, 4},
				"c": {5, 6},
			},
			curr: [][]int{
				{1, 2, 3},
			},
			expected: [][]int{
				{5, 2, 3},
			},
			groupCounts: map[string]int{
				"a": 1,
				"b": 1,
				"c": 1,
			},
		},
	}

	for _, testCase := range testCases {
		ct := New(
			testAssignment("topic", testCase.curr),
			testRackBrokers(testCase.racks),
			rackGroup,
		)
		before := ct.Assignment()
		ct.RebalanceReplicationGroups()
		checkInvariants(t, ct, before, testCase.description)

		assert.Equal(
			t,
			testCase.expected,
			assignmentReplicas(ct.Assignment()),
			testCase.description,
		)

		groupCounts := map[string]int{}
		for _, group := range ct.ReplicationGroups() {
			groupCounts[group.ID()] = group.ReplicaCount()
		}
		assert.Equal(t, testCase.groupCounts, groupCounts, testCase.description)
	}
}

func TestRebalanceReplicationGroupsConvergence(t *testing.T) {
	for seed := int64(1); seed <= 10; seed++ {
		for _, replicationFactor := range []int{2, 3} {
			description := fmt.Sprintf("seed=%d, replication factor=%d", seed, replicationFactor)

			ct := New(
				randomAssignment(seed, 3, 12, replicationFactor, 9),
				testBrokers(9, 3),
				rackGroup,
			)
			before := ct.Assignment()
			beforeStats := ct.Stats()

			ct.RebalanceReplicationGroups()
			checkInvariants(t, ct, before, description)

			groups := ct.ReplicationGroups()
			require.Len(t, groups, 3)

			for _, partition := range ct.Partitions() {
				for _, group := range groups {
					assert.LessOrEqual(t, group.CountReplica(partition), 1, description)
				}
			}

			total := 0
			for _, group := range groups {
				total += group.ReplicaCount()
			}
			optimum := total / len(groups)
			for _, group := range groups {
				assert.InDelta(t, optimum, group.ReplicaCount(), 1, description)
			}

			afterStats := ct.Stats()
			assert.Equal(t, 0, afterStats.ReplicationGroupImbalance, description)
			assert.LessOrEqual(
				t,
				afterStats.ReplicationGroupImbalance,
				beforeStats.ReplicationGroupImbalance,
				description,
			)

			ct.RebalanceReplicationGroups()
			assert.Equal(t, 0, ct.Stats().ReplicationGroupImbalance, description)
		}
	}
}

func TestDecommissionBrokers(t *testing.T) {
	type testCase struct {
		description string
		racks       map[string][]int
		curr        [][]int
		decommision []int
		expected    [][]int
	}

	testCases := []testCase{
		{
			description: "Within replication group",
			racks: map[string][]int{
				"a": {1, 2, 3},
				"b": {4, 5, 6},
			},
			curr: [][]int{
				{1, 4},
				{2, 5},
				{3, 6},
				{1, 5},
			},
			decommision: []int{1},
			expected: [][]int{
				{2, 4},
				{2, 5},
				{3, 6},
				{3, 5},
			},
		},
		{
			description: "Least loaded brokers receive first",
			racks: map[string][]int{
				"a": {1, 2, 3, 4},
			},
			curr: [][]int{
				{1},
				{1},
				{1},
				{2},
				{2},
				{3},
			},
			decommision: []int{1},
			expected: [][]int{
				{4},
				{3},
				{4},
				{2},
				{2},
				{3},
			},
		},
		{
			description: "Forced to other replication group",
			racks: map[string][]int{
				"a": {1},
				"b": {2},
				"c": {3},
			},
			curr: [][]int{
				{1, 2},
			},
			decommision: []int{1},
			expected: [][]int{
				{3, 2},
			},
		},
		{
			description: "Forced when group peer already hosts partition",
			racks: map[string][]int{
				"a": {1, 2},
				"b": {3, 4},
			},
			curr: [][]int{
				{1, 2},
			},
			decommision: []int{1},
			expected: [][]int{
				{3, 2},
			},
		},
	}

	for _, testCase := range testCases {
		ct := New(
			testAssignment("topic", testCase.curr),
			testRackBrokers(testCase.racks),
			rackGroup,
		)
		before := ct.Assignment()

		err := ct.DecommissionBrokers(testCase.decommision)
		require.NoError(t, err, testCase.description)
		checkInvariants(t, ct, before, testCase.description)

		assert.Equal(
			t,
			testCase.expected,
			assignmentReplicas(ct.Assignment()),
			testCase.description,
		)
		for _, id := range testCase.decommision {
			assert.True(t, ct.Broker(id).Decommissioned(), testCase.description)
			assert.True(t, ct.Broker(id).Empty(), testCase.description)
		}
	}
}

func TestDecommissionBrokersRandom(t *testing.T) {
	for seed := int64(1); seed <= 10; seed++ {
		description := fmt.Sprintf("seed=%d", seed)

		ct := New(
			randomAssignment(seed, 2, 10, 3, 6),
			testBrokers(6, 3),
			rackGroup,
		)
		before := ct.Assignment()

		require.NoError(t, ct.DecommissionBrokers([]int{1, 2}), description)
		checkInvariants(t, ct, before, description)

		assert.True(t, ct.Broker(1).Empty(), description)
		assert.True(t, ct.Broker(2).Empty(), description)
		for _, assignment := range ct.Assignment() {
			assert.NotContains(t, assignment.Replicas, 1, description)
			assert.NotContains(t, assignment.Replicas, 2, description)
		}
	}
}

func TestDecommissionBrokersInvalidID(t *testing.T) {
	ct := New(
		testAssignment("topic", [][]int{{1, 2}, {2, 3}}),
		testBrokers(3, 3),
		rackGroup,
	)
	before := ct.Assignment()

	err := ct.DecommissionBrokers([]int{1, 99, 100})
	require.Error(t, err)

	var invalidErr *InvalidBrokerIDError
	require.True(t, errors.As(err, &invalidErr))
	assert.Equal(t, 99, invalidErr.ID)

	for _, broker := range ct.Brokers() {
		assert.False(t, broker.Decommissioned())
	}
	assert.Equal(t, before, ct.Assignment())
}

func TestDecommissionBrokersInfeasible(t *testing.T) {
	ct := New(
		testAssignment("topic", [][]int{{1, 2}, {2, 3}, {3, 1}}),
		testBrokers(3, 3),
		rackGroup,
	)

	err := ct.DecommissionBrokers([]int{1, 2, 3})
	require.Error(t, err)

	var decommissionErr *BrokerDecommissionError
	require.True(t, errors.As(err, &decommissionErr))
	assert.Equal(t, "zone1", decommissionErr.GroupID)
	assert.Len(t, decommissionErr.Err.Errors, 1)

	var stuckErr *StuckBrokerError
	require.True(t, errors.As(err, &stuckErr))
	assert.Equal(t, 1, stuckErr.ID)
	assert.Equal(t, []string{"topic:0", "topic:2"}, stuckErr.Partitions)

	var groupErr *GroupDecommissionError
	assert.False(t, errors.As(err, &groupErr))
}

func TestRebalanceBrokers(t *testing.T) {
	type testCase struct {
		description string
		racks       map[string][]int
		curr        [][]int
		expected    [][]int
	}

	testCases := []testCase{
		{
			description: "Single group",
			racks: map[string][]int{
				"a": {1, 2, 3},
			},
			curr: [][]int{
				{1, 2},
				{1, 2},
				{1, 2},
			},
			expected: [][]int{
				{3, 2},
				{1, 3},
				{1, 2},
			},
		},
		{
			description: "Already balanced",
			racks: map[string][]int{
				"a": {1, 2},
				"b": {3, 4},
			},
			curr: [][]int{
				{1, 3},
				{2, 4},
			},
			expected: [][]int{
				{1, 3},
				{2, 4},
			},
		},
	}

	for _, testCase := range testCases {
		ct := New(
			testAssignment("topic", testCase.curr),
			testRackBrokers(testCase.racks),
			rackGroup,
		)
		before := ct.Assignment()
		groupCounts := map[string]int{}
		for _, group := range ct.ReplicationGroups() {
			groupCounts[group.ID()] = group.ReplicaCount()
		}

		ct.RebalanceBrokers()
		checkInvariants(t, ct, before, testCase.description)

		assert.Equal(
			t,
			testCase.expected,
			assignmentReplicas(ct.Assignment()),
			testCase.description,
		)
		for _, group := range ct.ReplicationGroups() {
			assert.Equal(
				t,
				groupCounts[group.ID()],
				group.ReplicaCount(),
				testCase.description,
			)
		}
	}
}

func TestRebalanceBrokersRandom(t *testing.T) {
	for seed := int64(1); seed <= 10; seed++ {
		description := fmt.Sprintf("seed=%d", seed)

		ct := New(
			randomAssignment(seed, 4, 8, 2, 8),
			testBrokers(8, 2),
			rackGroup,
		)
		before := ct.Assignment()

		ct.RebalanceBrokers()
		checkInvariants(t, ct, before, description)

		for _, group := range ct.ReplicationGroups() {
			min, max := -1, -1
			for _, broker := range group.Brokers() {
				count := broker.NumPartitions()
				if min == -1 || count < min {
					min = count
				}
				if max == -1 || count > max {
					max = count
				}
			}
			assert.LessOrEqual(t, max-min, 1, description)
		}
	}
}

func TestRebalanceBrokersInactive(t *testing.T) {
	ct := New(
		testAssignment("topic", [][]int{{1, 9}, {2, 9}}),
		testBrokers(3, 1),
		rackGroup,
	)
	before := ct.Assignment()

	ct.RebalanceBrokers()
	checkInvariants(t, ct, before, "inactive broker")

	// Broker 9 is alone in the default group, so it can't be emptied.
	assert.Equal(t, 2, ct.Broker(9).NumPartitions())

	err := ct.Broker(9).Group().RebalanceBrokers()
	var emptyErr *EmptyReplicationGroupError
	require.True(t, errors.As(err, &emptyErr))
	assert.Equal(t, "", emptyErr.GroupID)
}

func TestRebalanceDeterministic(t *testing.T) {
	rebalanced := func(seed int64) []admin.ReplicaAssignment {
		ct := New(
			randomAssignment(seed, 4, 12, 3, 9),
			testBrokers(9, 3),
			rackGroup,
		)
		require.NoError(t, ct.DecommissionBrokers([]int{5}))
		ct.RebalanceReplicationGroups()
		ct.RebalanceBrokers()
		ct.RebalanceLeaders()

		assert.Equal(t, ct.Assignment(), ct.Assignment())
		return ct.Assignment()
	}

	for seed := int64(1); seed <= 10; seed++ {
		assert.Equal(t, rebalanced(seed), rebalanced(seed), fmt.Sprintf("seed=%d", seed))
	}
}
