package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"reflect"
	"sort"
	"time"

	"github.com/segmentio/rebalancectl/pkg/util"
)

// BrokerInfo represents the information stored about a broker in zookeeper or returned
// by the broker metadata API.
type BrokerInfo struct {
	ID               int       `json:"id"`
	Endpoints        []string  `json:"endpoints"`
	Host             string    `json:"host"`
	Port             int32     `json:"port"`
	Rack             string    `json:"rack"`
	InstanceID       string    `json:"instanceID"`
	InstanceType     string    `json:"instanceType"`
	AvailabilityZone string    `json:"availabilityZone"`
	Version          int       `json:"version"`
	Timestamp        time.Time `json:"timestamp"`
}

// Addr returns the address of the current BrokerInfo.
func (b BrokerInfo) Addr() string {
	return fmt.Sprintf("%s:%d", b.Host, b.Port)
}

// BrokerIDs returns a slice of the IDs of the argument brokers.
func BrokerIDs(brokers []BrokerInfo) []int {
	brokerIDs := []int{}

	for _, broker := range brokers {
		brokerIDs = append(brokerIDs, broker.ID)
	}

	return brokerIDs
}

// BrokersByID returns a mapping of broker ID -> broker info.
func BrokersByID(brokers []BrokerInfo) map[int]*BrokerInfo {
	brokersMap := map[int]*BrokerInfo{}

	for b := range brokers {
		brokersMap[brokers[b].ID] = &brokers[b]
	}

	return brokersMap
}

// TopicPartition identifies a single partition in the cluster.
type TopicPartition struct {
	Topic     string `json:"topic"`
	Partition int    `json:"partition"`
}

func (tp TopicPartition) String() string {
	return fmt.Sprintf("%s:%d", tp.Topic, tp.Partition)
}

// Less orders topic partitions by topic name and then partition ID.
func (tp TopicPartition) Less(other TopicPartition) bool {
	if tp.Topic != other.Topic {
		return tp.Topic < other.Topic
	}
	return tp.Partition < other.Partition
}

// ClusterAssignment maps each partition in the cluster to its ordered replica broker
// IDs. The first replica is the preferred leader.
type ClusterAssignment map[TopicPartition][]int

// ReplicaAssignment contains the actual or desired assignment of replicas in a single
// partition. Slices of these are the ordered form of a ClusterAssignment.
type ReplicaAssignment struct {
	Topic     string `json:"topic"`
	Partition int    `json:"partition"`
	Replicas  []int  `json:"replicas"`
}

// TopicPartition returns the partition key of this assignment.
func (a ReplicaAssignment) TopicPartition() TopicPartition {
	return TopicPartition{Topic: a.Topic, Partition: a.Partition}
}

// Index returns the index of the argument replica, or -1 if it can't
// be found.
func (a ReplicaAssignment) Index(replica int) int {
	for v, value := range a.Replicas {
		if value == replica {
			return v
		}
	}

	return -1
}

// Leader returns the preferred leader of this assignment, or -1 if there are no replicas.
func (a ReplicaAssignment) Leader() int {
	if len(a.Replicas) == 0 {
		return -1
	}
	return a.Replicas[0]
}

// Copy returns a deep copy of this ReplicaAssignment.
func (a ReplicaAssignment) Copy() ReplicaAssignment {
	return ReplicaAssignment{
		Topic:     a.Topic,
		Partition: a.Partition,
		Replicas:  util.CopyInts(a.Replicas),
	}
}

// SortedAssignments converts a ClusterAssignment into a slice sorted by topic and
// partition.
func SortedAssignments(assignment ClusterAssignment) []ReplicaAssignment {
	results := make([]ReplicaAssignment, 0, len(assignment))

	for tp, replicas := range assignment {
		results = append(
			results,
			ReplicaAssignment{
				Topic:     tp.Topic,
				Partition: tp.Partition,
				Replicas:  util.CopyInts(replicas),
			},
		)
	}

	sort.Slice(results, func(a, b int) bool {
		return results[a].TopicPartition().Less(results[b].TopicPartition())
	})

	return results
}

// ToClusterAssignment is the inverse of SortedAssignments.
func ToClusterAssignment(assignments []ReplicaAssignment) ClusterAssignment {
	result := ClusterAssignment{}

	for _, assignment := range assignments {
		result[assignment.TopicPartition()] = util.CopyInts(assignment.Replicas)
	}

	return result
}

// CheckAssignment does some basic sanity checks on an assignment before it's used to
// build a topology so that we can fail early if something is obviously wrong.
func CheckAssignment(assignment ClusterAssignment) error {
	if len(assignment) == 0 {
		return errors.New("Got empty assignment")
	}

	for tp, replicas := range assignment {
		if len(replicas) == 0 {
			return fmt.Errorf("Partition %s has no replicas", tp)
		}
		if util.HasRepeats(replicas) {
			return fmt.Errorf(
				"Found repeated broker in assignment for partition %s: %+v",
				tp,
				replicas,
			)
		}
	}

	return nil
}

// AssignmentDiff represents the diff in a single partition reassignment.
type AssignmentDiff struct {
	TopicPartition
	Old []int
	New []int
}

// Changed returns whether the replica order differs between the old and new states.
func (d AssignmentDiff) Changed() bool {
	return !reflect.DeepEqual(d.Old, d.New)
}

// NewLeader returns whether the preferred leader differs between the old and new states.
func (d AssignmentDiff) NewLeader() bool {
	return len(d.Old) > 0 && len(d.New) > 0 && d.Old[0] != d.New[0]
}

// Movements returns the number of replicas that need to be copied to a new broker.
func (d AssignmentDiff) Movements() int {
	return len(util.NewElements(d.Old, d.New))
}

// AssignmentDiffs returns the diffs implied by the argument current and
// desired assignments, sorted by topic and partition. Used for displaying diffs to the
// user and for building reassignment plans.
func AssignmentDiffs(
	current []ReplicaAssignment,
	desired []ReplicaAssignment,
) []AssignmentDiff {
	diffsMap := map[TopicPartition]AssignmentDiff{}

	for _, assignment := range current {
		tp := assignment.TopicPartition()
		diffsMap[tp] = AssignmentDiff{
			TopicPartition: tp,
			Old:            assignment.Replicas,
		}
	}

	for _, assignment := range desired {
		tp := assignment.TopicPartition()
		currDiff := diffsMap[tp]
		diffsMap[tp] = AssignmentDiff{
			TopicPartition: tp,
			Old:            currDiff.Old,
			New:            assignment.Replicas,
		}
	}

	results := make([]AssignmentDiff, 0, len(diffsMap))
	for _, diff := range diffsMap {
		results = append(results, diff)
	}
	sort.Slice(results, func(a, b int) bool {
		return results[a].TopicPartition.Less(results[b].TopicPartition)
	})

	return results
}

// AssignmentsToUpdate returns the subset of desired assignments that differ from the
// current ones.
func AssignmentsToUpdate(
	current []ReplicaAssignment,
	desired []ReplicaAssignment,
) []ReplicaAssignment {
	updates := []ReplicaAssignment{}

	for _, diff := range AssignmentDiffs(current, desired) {
		if diff.Changed() && len(diff.New) > 0 {
			updates = append(
				updates,
				ReplicaAssignment{
					Topic:     diff.Topic,
					Partition: diff.Partition,
					Replicas:  util.CopyInts(diff.New),
				},
			)
		}
	}

	return updates
}

// ReassignmentPlan is the JSON document understood by kafka's partition reassignment
// tooling and stored under /admin/reassign_partitions in zookeeper.
type ReassignmentPlan struct {
	Version    int                 `json:"version"`
	Partitions []ReplicaAssignment `json:"partitions"`
}

// NewReassignmentPlan returns a plan for the argument assignments.
func NewReassignmentPlan(assignments []ReplicaAssignment) ReassignmentPlan {
	partitions := make([]ReplicaAssignment, 0, len(assignments))
	for _, assignment := range assignments {
		partitions = append(partitions, assignment.Copy())
	}

	return ReassignmentPlan{
		Version:    1,
		Partitions: partitions,
	}
}

// WriteReassignmentPlan writes the argument plan as indented JSON to path.
func WriteReassignmentPlan(path string, plan ReassignmentPlan) error {
	contents, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return err
	}

	return ioutil.WriteFile(path, append(contents, '\n'), 0644)
}

// LoadReassignmentPlan reads a plan previously written by WriteReassignmentPlan.
func LoadReassignmentPlan(path string) (ReassignmentPlan, error) {
	plan := ReassignmentPlan{}

	contents, err := ioutil.ReadFile(path)
	if err != nil {
		return plan, err
	}

	if err := json.Unmarshal(contents, &plan); err != nil {
		return plan, fmt.Errorf("Error parsing reassignment plan %s: %+v", path, err)
	}
	if plan.Version != 1 {
		return plan, fmt.Errorf("Unsupported reassignment plan version: %d", plan.Version)
	}

	return plan, nil
}
