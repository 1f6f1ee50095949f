package balance

import (
	"github.com/segmentio/rebalancectl/pkg/admin"
	"github.com/segmentio/rebalancectl/pkg/topology"
)

// Plan is the outcome of a planning run.
type Plan struct {
	Brokers []admin.BrokerInfo

	// Current is the assignment when the plan was generated, and Proposed is the
	// assignment after the plan is applied. Both are sorted by topic and partition.
	Current  []admin.ReplicaAssignment
	Proposed []admin.ReplicaAssignment

	Before topology.ClusterStats
	After  topology.ClusterStats

	// Truncated is set if some changes were dropped to respect the plan limits.
	Truncated bool
}

// Diffs returns the changed partitions of the plan.
func (p *Plan) Diffs() []admin.AssignmentDiff {
	diffs := []admin.AssignmentDiff{}
	for _, diff := range admin.AssignmentDiffs(p.Current, p.Proposed) {
		if diff.Changed() {
			diffs = append(diffs, diff)
		}
	}
	return diffs
}

// Empty returns whether the plan doesn't change anything.
func (p *Plan) Empty() bool {
	return len(p.Diffs()) == 0
}

// Movements returns the number of replicas that need to be copied to new brokers.
func (p *Plan) Movements() int {
	movements := 0
	for _, diff := range p.Diffs() {
		movements += diff.Movements()
	}
	return movements
}

// LeaderChanges returns the number of partitions whose preferred leader changes.
func (p *Plan) LeaderChanges() int {
	changes := 0
	for _, diff := range p.Diffs() {
		if diff.NewLeader() {
			changes++
		}
	}
	return changes
}

// ReassignmentPlan returns the reassignment document for the changed partitions.
func (p *Plan) ReassignmentPlan() admin.ReassignmentPlan {
	return admin.NewReassignmentPlan(admin.AssignmentsToUpdate(p.Current, p.Proposed))
}

// WritePlanFile writes the reassignment document of the plan to the argument path.
func (p *Plan) WritePlanFile(path string) error {
	return admin.WriteReassignmentPlan(path, p.ReassignmentPlan())
}
