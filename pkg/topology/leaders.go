package topology

import (
	log "github.com/sirupsen/logrus"
)

// RebalanceLeaders reorders partition replicas so that each broker is the preferred
// leader for roughly the same number of partitions.
//
// Consider the graph whose nodes are brokers and whose edges go from each partition's
// leader to each of its followers. The target leader count is
// floor(partitions / brokers), and a broker is balanced when its count is in
// [target, target+1]. Only active, non-decommissioned brokers count toward the target
// and the band. The balancing runs in two passes:
//
//  1. Pull: each broker below target searches depth-first for a partition it follows
//     whose leader can give up leadership, either because it stays at or above target or
//     because it can recursively take leadership from someone else.
//  2. Push: each broker above target+1 searches depth-first for a follower that can
//     accept leadership, either because it stays at or below target+1 or because it can
//     recursively hand leadership to someone else.
//
// Both passes are best-effort. Brokers that are inactive or decommissioned never receive
// leadership and give up all of theirs in the push pass.
func (ct *ClusterTopology) RebalanceLeaders() {
	optimum, ok := ct.leaderTarget()
	if !ok {
		return
	}
	brokers := ct.Brokers()

	log.Debugf("Rebalancing leaders with target count %d", optimum)

	puller := newLeaderBalancer(optimum)
	for _, broker := range brokers {
		if !broker.Eligible() || broker.CountPreferredReplica() >= optimum {
			continue
		}
		puller.skipBrokers[broker] = struct{}{}
		puller.requestLeadership(broker)
	}

	pusher := newLeaderBalancer(optimum)
	for _, broker := range brokers {
		if broker.CountPreferredReplica() <= pusher.upperLimit(broker) {
			continue
		}
		pusher.skipBrokers[broker] = struct{}{}
		pusher.donateLeadership(broker)
	}
}

// leaderTarget returns the lower bound of the balanced leader band. It's false if there
// are no brokers that can lead.
func (ct *ClusterTopology) leaderTarget() (int, bool) {
	eligible := 0
	for _, broker := range ct.brokers {
		if broker.Eligible() {
			eligible++
		}
	}
	if eligible == 0 {
		return 0, false
	}
	return len(ct.partitions) / eligible, true
}

type leaderEdge struct {
	partition *Partition
	from      *Broker
	to        *Broker
}

// leaderBalancer holds the search state for one pass of leader balancing.
type leaderBalancer struct {
	optimum        int
	skipBrokers    map[*Broker]struct{}
	skipPartitions map[*Partition]struct{}
	usedEdges      map[leaderEdge]struct{}
}

func newLeaderBalancer(optimum int) *leaderBalancer {
	return &leaderBalancer{
		optimum:        optimum,
		skipBrokers:    map[*Broker]struct{}{},
		skipPartitions: map[*Partition]struct{}{},
		usedEdges:      map[leaderEdge]struct{}{},
	}
}

// upperLimit is the number of partitions a broker may lead before it needs to donate.
func (l *leaderBalancer) upperLimit(broker *Broker) int {
	if !broker.Eligible() {
		return 0
	}
	return l.optimum + 1
}

// balancedDonor returns whether the argument broker may give up a leadership without
// needing to be compensated.
func (l *leaderBalancer) balancedDonor(broker *Broker) bool {
	return !broker.Eligible() || broker.CountPreferredReplica() >= l.optimum
}

// requestLeadership takes leadership for the argument broker from the leaders of the
// partitions it follows, until it reaches the target count or runs out of options. A
// donor that drops below target is recursively asked to take leadership from someone
// else; if it can't, the swap is reverted.
func (l *leaderBalancer) requestLeadership(broker *Broker) {
	for _, partition := range broker.Partitions() {
		if broker.CountPreferredReplica() >= l.optimum {
			return
		}

		leader := partition.Leader()
		if leader == broker || len(partition.replicas) < 2 {
			continue
		}
		if _, ok := l.skipBrokers[leader]; ok {
			continue
		}
		if _, ok := l.skipPartitions[partition]; ok {
			continue
		}

		prevLeader := partition.swapLeader(broker)
		l.skipPartitions[partition] = struct{}{}

		if l.balancedDonor(prevLeader) {
			continue
		}

		l.skipBrokers[prevLeader] = struct{}{}
		l.requestLeadership(prevLeader)

		if prevLeader.CountPreferredReplica() < l.optimum {
			delete(l.skipPartitions, partition)
			partition.swapLeader(prevLeader)
			continue
		}

		delete(l.skipBrokers, prevLeader)
	}
}

// donateLeadership hands leadership of the argument broker's partitions to eligible
// followers until the broker is at or below its limit. A follower that goes above
// target+1 is recursively asked to donate; if it can't, the swap is reverted.
func (l *leaderBalancer) donateLeadership(broker *Broker) {
	for _, partition := range broker.Partitions() {
		if broker.CountPreferredReplica() <= l.upperLimit(broker) {
			return
		}
		if partition.Leader() != broker || len(partition.replicas) < 2 {
			continue
		}

		for _, follower := range partition.Followers() {
			if !follower.Eligible() {
				continue
			}
			if _, ok := l.skipBrokers[follower]; ok {
				continue
			}
			edge := leaderEdge{partition: partition, from: broker, to: follower}
			if _, ok := l.usedEdges[edge]; ok {
				continue
			}

			partition.swapLeader(follower)
			l.usedEdges[leaderEdge{partition: partition, from: follower, to: broker}] =
				struct{}{}

			if follower.CountPreferredReplica() > l.upperLimit(follower) {
				l.skipBrokers[follower] = struct{}{}
				l.donateLeadership(follower)

				if follower.CountPreferredReplica() > l.upperLimit(follower) &&
					partition.Leader() == follower {
					partition.swapLeader(broker)
					l.usedEdges[edge] = struct{}{}
				}
			}

			if partition.Leader() != broker {
				break
			}
		}
	}
}
