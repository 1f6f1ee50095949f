package topology

import (
	"math"
	"sort"

	"github.com/segmentio/rebalancectl/pkg/util"
)

// ClusterStats summarizes how balanced a topology is.
type ClusterStats struct {
	// ReplicationGroupImbalance is the number of partition replicas held by replication
	// groups in excess of their per-partition fair share, summed over all partitions.
	ReplicationGroupImbalance int

	// PartitionCountStdDev and LeaderCountStdDev are computed over the active brokers.
	PartitionCountStdDev float64
	LeaderCountStdDev    float64

	BrokerPartitionCounts map[int]int
	BrokerLeaderCounts    map[int]int
	GroupReplicaCounts    map[string]int

	// LeaderTarget is the lower bound of the balanced leader band
	// [LeaderTarget, LeaderTarget+1].
	LeaderTarget int

	// LeaderBandOutliers is the number of active brokers whose leader count is outside of
	// the balanced band.
	LeaderBandOutliers int
}

// Stats computes the current ClusterStats of the topology.
func (ct *ClusterTopology) Stats() ClusterStats {
	stats := ClusterStats{
		BrokerPartitionCounts: map[int]int{},
		BrokerLeaderCounts:    map[int]int{},
		GroupReplicaCounts:    map[string]int{},
	}

	groups := ct.ReplicationGroups()
	for _, partition := range ct.Partitions() {
		stats.ReplicationGroupImbalance += replicaExcess(groups, partition)
	}
	for _, group := range groups {
		stats.GroupReplicaCounts[group.id] = group.ReplicaCount()
	}

	partitionCounts := []int{}
	leaderCounts := []int{}

	for _, broker := range ct.Brokers() {
		stats.BrokerPartitionCounts[broker.id] = broker.NumPartitions()
		stats.BrokerLeaderCounts[broker.id] = broker.CountPreferredReplica()

		if broker.Eligible() {
			partitionCounts = append(partitionCounts, broker.NumPartitions())
			leaderCounts = append(leaderCounts, broker.CountPreferredReplica())
		}
	}

	stats.PartitionCountStdDev = stdDev(partitionCounts)
	stats.LeaderCountStdDev = stdDev(leaderCounts)
	stats.LeaderTarget, stats.LeaderBandOutliers = ct.leaderBandOutliers()

	return stats
}

func (ct *ClusterTopology) leaderBandOutliers() (int, int) {
	optimum, ok := ct.leaderTarget()
	if !ok {
		return 0, 0
	}

	outliers := 0

	for _, broker := range ct.brokers {
		if !broker.Eligible() {
			continue
		}
		count := broker.CountPreferredReplica()
		if count < optimum || count > optimum+1 {
			outliers++
		}
	}

	return optimum, outliers
}

// replicaExcess returns the number of replicas of partition held above each group's
// fair share.
func replicaExcess(groups []*ReplicationGroup, partition *Partition) int {
	optimum, extra := util.ComputeOptimum(len(groups), partition.ReplicationFactor())

	counts := make([]int, 0, len(groups))
	for _, group := range groups {
		counts = append(counts, group.CountReplica(partition))
	}
	sort.Sort(sort.Reverse(sort.IntSlice(counts)))

	excess := 0
	for c, count := range counts {
		entitlement := optimum
		if c < extra {
			entitlement++
		}
		if count > entitlement {
			excess += count - entitlement
		}
	}

	return excess
}

func stdDev(values []int) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0
	for _, value := range values {
		sum += value
	}
	mean := float64(sum) / float64(len(values))

	variance := 0.0
	for _, value := range values {
		diff := float64(value) - mean
		variance += diff * diff
	}

	return math.Sqrt(variance / float64(len(values)))
}
