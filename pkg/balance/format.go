package balance

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/segmentio/rebalancectl/pkg/admin"
	"github.com/segmentio/rebalancectl/pkg/topology"
	"github.com/segmentio/rebalancectl/pkg/util"
)

// FormatPlanDiffs creates a pretty table of the partitions changed by the argument plan.
func FormatPlanDiffs(plan *Plan) string {
	buf := &bytes.Buffer{}

	table := newTable(
		buf,
		[]string{
			"Topic",
			"Partition",
			"Curr\nReplicas",
			"Proposed\nReplicas",
			"Movements",
			"New\nLeader?",
		},
	)

	for _, diff := range plan.Diffs() {
		var newLeaderStr string
		if diff.NewLeader() {
			newLeaderStr = "Y"
		}

		table.Append(
			[]string{
				diff.Topic,
				fmt.Sprintf("%d", diff.Partition),
				replicasStr(diff.Old),
				replicasDiffStr(diff.Old, diff.New),
				fmt.Sprintf("%d", diff.Movements()),
				newLeaderStr,
			},
		)
	}

	table.Render()
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}

// FormatPlanSummary creates a pretty table comparing the imbalance before and after the
// argument plan.
func FormatPlanSummary(plan *Plan) string {
	buf := &bytes.Buffer{}

	table := newTable(buf, []string{"Metric", "Current", "Proposed"})

	table.Append(
		[]string{
			"Replication group imbalance",
			fmt.Sprintf("%d", plan.Before.ReplicationGroupImbalance),
			fmt.Sprintf(
				"%d%s",
				plan.After.ReplicationGroupImbalance,
				intDiffStr(plan.After.ReplicationGroupImbalance-plan.Before.ReplicationGroupImbalance),
			),
		},
	)
	table.Append(
		[]string{
			"Partition count std dev",
			fmt.Sprintf("%.3f", plan.Before.PartitionCountStdDev),
			fmt.Sprintf("%.3f", plan.After.PartitionCountStdDev),
		},
	)
	table.Append(
		[]string{
			"Leader count std dev",
			fmt.Sprintf("%.3f", plan.Before.LeaderCountStdDev),
			fmt.Sprintf("%.3f", plan.After.LeaderCountStdDev),
		},
	)
	table.Append(
		[]string{
			fmt.Sprintf(
				"Brokers outside leader band [%d, %d]",
				plan.After.LeaderTarget,
				plan.After.LeaderTarget+1,
			),
			fmt.Sprintf("%d", plan.Before.LeaderBandOutliers),
			fmt.Sprintf(
				"%d%s",
				plan.After.LeaderBandOutliers,
				intDiffStr(plan.After.LeaderBandOutliers-plan.Before.LeaderBandOutliers),
			),
		},
	)
	table.Append(
		[]string{
			"Changed partitions",
			"",
			fmt.Sprintf("%d", len(plan.Diffs())),
		},
	)
	table.Append(
		[]string{
			"Replica movements",
			"",
			fmt.Sprintf("%d", plan.Movements()),
		},
	)
	table.Append(
		[]string{
			"Leader changes",
			"",
			fmt.Sprintf("%d", plan.LeaderChanges()),
		},
	)

	table.Render()
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}

// FormatBrokerStats creates a pretty table of the per-broker partition and leader counts
// in the argument stats. If after is non-nil, the changes are shown next to the counts.
func FormatBrokerStats(
	brokers []admin.BrokerInfo,
	before topology.ClusterStats,
	after *topology.ClusterStats,
) string {
	buf := &bytes.Buffer{}

	table := newTable(
		buf,
		[]string{
			"ID",
			"Host",
			"Rack",
			"Zone",
			"Partitions",
			"Leaders",
		},
	)

	brokersByID := admin.BrokersByID(brokers)

	for _, brokerID := range util.SortedKeys(before.BrokerPartitionCounts) {
		var host, rack, zone string
		if info, ok := brokersByID[brokerID]; ok {
			host = info.Host
			rack = info.Rack
			zone = info.AvailabilityZone
		} else {
			host = "(not registered)"
		}

		partitionsStr := fmt.Sprintf("%d", before.BrokerPartitionCounts[brokerID])
		leadersStr := fmt.Sprintf("%d", before.BrokerLeaderCounts[brokerID])

		if after != nil {
			partitionsStr += intDiffStr(
				after.BrokerPartitionCounts[brokerID] - before.BrokerPartitionCounts[brokerID],
			)
			leadersStr += intDiffStr(
				after.BrokerLeaderCounts[brokerID] - before.BrokerLeaderCounts[brokerID],
			)
		}

		table.Append(
			[]string{
				fmt.Sprintf("%d", brokerID),
				host,
				rack,
				zone,
				partitionsStr,
				leadersStr,
			},
		)
	}

	table.Render()
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}

// FormatGroupStats creates a pretty table of the replicas held by each replication group.
func FormatGroupStats(stats topology.ClusterStats) string {
	buf := &bytes.Buffer{}

	table := newTable(buf, []string{"Replication\nGroup", "Replicas"})

	for _, groupID := range util.SortedStringKeys(stats.GroupReplicaCounts) {
		name := groupID
		if name == "" {
			name = "<default>"
		}
		table.Append(
			[]string{
				name,
				fmt.Sprintf("%d", stats.GroupReplicaCounts[groupID]),
			},
		)
	}

	table.Render()
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}

// FormatAssignment creates a pretty table of the argument assignment.
func FormatAssignment(assignments []admin.ReplicaAssignment) string {
	buf := &bytes.Buffer{}

	table := newTable(buf, []string{"Topic", "Partition", "Replicas"})

	for _, assignment := range assignments {
		table.Append(
			[]string{
				assignment.Topic,
				fmt.Sprintf("%d", assignment.Partition),
				replicasStr(assignment.Replicas),
			},
		)
	}

	table.Render()
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}

func newTable(buf *bytes.Buffer, headers []string) *tablewriter.Table {
	table := tablewriter.NewWriter(buf)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)

	alignments := make([]int, len(headers))
	for i := range alignments {
		alignments[i] = tablewriter.ALIGN_LEFT
	}
	table.SetColumnAlignment(alignments)

	table.SetBorders(
		tablewriter.Border{
			Left:   false,
			Top:    true,
			Right:  false,
			Bottom: true,
		},
	)

	return table
}

func replicasStr(replicas []int) string {
	elements := make([]string, 0, len(replicas))
	for _, replica := range replicas {
		elements = append(elements, fmt.Sprintf("%d", replica))
	}
	return strings.Join(elements, ", ")
}

// replicasDiffStr colors replicas that are new to the partition red and replicas that
// changed position cyan.
func replicasDiffStr(old []int, new []int) string {
	if !util.InTerminal() {
		return replicasStr(new)
	}

	added := color.New(color.FgRed).SprintfFunc()
	moved := color.New(color.FgCyan).SprintfFunc()

	oldAssignment := admin.ReplicaAssignment{Replicas: old}
	elements := make([]string, 0, len(new))

	for r, replica := range new {
		switch {
		case r < len(old) && replica == old[r]:
			elements = append(elements, fmt.Sprintf("%d", replica))
		case oldAssignment.Index(replica) != -1:
			elements = append(elements, moved("%d", replica))
		default:
			elements = append(elements, added("%d", replica))
		}
	}

	return strings.Join(elements, ", ")
}

func intDiffStr(diffValue int) string {
	if diffValue == 0 {
		return ""
	}

	var increasedSprintf func(format string, a ...interface{}) string
	var decreasedSprintf func(format string, a ...interface{}) string

	if !util.InTerminal() {
		increasedSprintf = fmt.Sprintf
		decreasedSprintf = fmt.Sprintf
	} else {
		increasedSprintf = color.New(color.FgRed).SprintfFunc()
		decreasedSprintf = color.New(color.FgCyan).SprintfFunc()
	}

	if diffValue > 0 {
		return fmt.Sprintf(" (%s)", increasedSprintf("%+d", diffValue))
	}
	return fmt.Sprintf(" (%s)", decreasedSprintf("%-d", diffValue))
}
