package topology

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStats(t *testing.T) {
	ct := New(
		testAssignment("topic", [][]int{{1, 2}, {1, 3}}),
		testRackBrokers(
			map[string][]int{
				"a": {1, 2},
				"b": {3, 4},
			},
		),
		rackGroup,
	)

	stats := ct.Stats()
	assert.Equal(t, 1, stats.ReplicationGroupImbalance)
	assert.Equal(t, map[int]int{1: 2, 2: 1, 3: 1, 4: 0}, stats.BrokerPartitionCounts)
	assert.Equal(t, map[int]int{1: 2, 2: 0, 3: 0, 4: 0}, stats.BrokerLeaderCounts)
	assert.Equal(t, map[string]int{"a": 3, "b": 1}, stats.GroupReplicaCounts)
	assert.InDelta(t, math.Sqrt(0.5), stats.PartitionCountStdDev, 0.0001)
	assert.InDelta(t, math.Sqrt(0.75), stats.LeaderCountStdDev, 0.0001)
	assert.Equal(t, 0, stats.LeaderTarget)
	assert.Equal(t, 1, stats.LeaderBandOutliers)
}

func TestStatsIgnoresIneligibleBrokers(t *testing.T) {
	ct := New(
		testAssignment("topic", [][]int{{1, 9}, {2, 9}}),
		testBrokers(2, 1),
		rackGroup,
	)

	stats := ct.Stats()
	assert.Equal(t, 2, stats.BrokerPartitionCounts[9])
	assert.Equal(t, 0.0, stats.PartitionCountStdDev)
	assert.Equal(t, 0.0, stats.LeaderCountStdDev)

	ct = New(
		testAssignment("topic", [][]int{{9, 1}, {2, 9}, {1, 2}}),
		testBrokers(2, 1),
		rackGroup,
	)

	stats = ct.Stats()
	assert.Equal(t, 1, stats.LeaderTarget)
	assert.Equal(t, 0, stats.LeaderBandOutliers)
	assert.Equal(t, 1, stats.BrokerLeaderCounts[9])
}
