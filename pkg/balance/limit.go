package balance

import (
	"sort"

	"github.com/segmentio/rebalancectl/pkg/admin"
	"github.com/segmentio/rebalancectl/pkg/util"
	log "github.com/sirupsen/logrus"
)

// LimitChanges returns the proposed assignment restricted so that the number of replica
// movements and preferred leader changes stay within the argument limits. A limit of
// zero means unlimited.
//
// Changed partitions are taken round-robin across topics in name order, and in
// partition order within each topic, so that a limited plan touches as many topics as
// possible. Changes that don't fit are skipped; partitions that aren't selected keep
// their current replicas. The second return value is true if anything was skipped.
func LimitChanges(
	current []admin.ReplicaAssignment,
	proposed []admin.ReplicaAssignment,
	maxMovements int,
	maxLeaderChanges int,
) ([]admin.ReplicaAssignment, bool) {
	diffsByTopic := map[string][]admin.AssignmentDiff{}
	for _, diff := range admin.AssignmentDiffs(current, proposed) {
		if diff.Changed() && len(diff.New) > 0 {
			diffsByTopic[diff.Topic] = append(diffsByTopic[diff.Topic], diff)
		}
	}

	topics := make([]string, 0, len(diffsByTopic))
	for topic := range diffsByTopic {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	selected := map[admin.TopicPartition][]int{}
	movements := 0
	leaderChanges := 0
	truncated := false

	for round := 0; ; round++ {
		remaining := false

		for _, topic := range topics {
			if round >= len(diffsByTopic[topic]) {
				continue
			}
			remaining = true

			diff := diffsByTopic[topic][round]
			diffMovements := diff.Movements()
			diffLeaderChanges := 0
			if diff.NewLeader() {
				diffLeaderChanges = 1
			}

			if (maxMovements > 0 && movements+diffMovements > maxMovements) ||
				(maxLeaderChanges > 0 && leaderChanges+diffLeaderChanges > maxLeaderChanges) {
				log.Debugf("Skipping change to %s because of plan limits", diff.TopicPartition)
				truncated = true
				continue
			}

			movements += diffMovements
			leaderChanges += diffLeaderChanges
			selected[diff.TopicPartition] = diff.New
		}

		if !remaining {
			break
		}
	}

	limited := make([]admin.ReplicaAssignment, 0, len(current))
	for _, assignment := range current {
		result := assignment.Copy()
		if replicas, ok := selected[assignment.TopicPartition()]; ok {
			result.Replicas = util.CopyInts(replicas)
		}
		limited = append(limited, result)
	}

	return limited, truncated
}
