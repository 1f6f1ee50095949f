package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/segmentio/rebalancectl/pkg/admin"
	"github.com/segmentio/rebalancectl/pkg/balance"
	"github.com/segmentio/rebalancectl/pkg/zk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePrinter struct {
	outputs []string
}

func (c *capturePrinter) printf(f string, a ...interface{}) {
	c.outputs = append(c.outputs, fmt.Sprintf(f, a...))
}

func (c *capturePrinter) String() string {
	return strings.Join(c.outputs, "\n")
}

func testRunner(t *testing.T) (*CLIRunner, *zk.MemoryClient, *capturePrinter) {
	zkClient, err := zk.NewMemoryClient(
		[]zk.TestNode{
			{
				Path: "/brokers/ids/1",
				Obj:  map[string]interface{}{"host": "10.0.0.1", "port": 9092, "rack": "a"},
			},
			{
				Path: "/brokers/ids/2",
				Obj:  map[string]interface{}{"host": "10.0.0.2", "port": 9092, "rack": "b"},
			},
			{
				Path: "/brokers/topics/events",
				Obj: map[string]interface{}{
					"version": 1,
					"partitions": map[string][]int{
						"0": {1, 2},
						"1": {1, 2},
					},
				},
			},
		},
	)
	require.NoError(t, err)

	printer := &capturePrinter{}
	runner := NewCLIRunner(
		admin.NewZKAdminClientWithClient(zkClient, false),
		printer.printf,
		false,
	)
	return runner, zkClient, printer
}

func TestCLIRunnerRebalance(t *testing.T) {
	ctx := context.Background()
	runner, zkClient, printer := testRunner(t)

	outputPath := filepath.Join(t.TempDir(), "plan.json")
	err := runner.Rebalance(
		ctx,
		balance.PlannerConfig{RebalanceLeaders: true},
		RebalanceOptions{
			OutputPath:  outputPath,
			Apply:       true,
			SkipConfirm: true,
			LockPath:    "/rebalancectl/locks",
		},
	)
	require.NoError(t, err)

	written, err := admin.LoadReassignmentPlan(outputPath)
	require.NoError(t, err)
	assert.Equal(t, 1, len(written.Partitions))

	submitted := admin.ReassignmentPlan{}
	_, err = zkClient.GetJSON(ctx, "/admin/reassign_partitions", &submitted)
	require.NoError(t, err)
	assert.Equal(t, written, submitted)
	assert.False(t, zkClient.Locked("/rebalancectl/locks"))

	assert.Contains(t, printer.String(), "Proposed changes")
}

func TestCLIRunnerRebalanceBalanced(t *testing.T) {
	ctx := context.Background()
	runner, zkClient, printer := testRunner(t)

	err := runner.Rebalance(
		ctx,
		balance.PlannerConfig{RebalanceBrokers: true},
		RebalanceOptions{Apply: true, SkipConfirm: true},
	)
	require.NoError(t, err)

	exists, _, err := zkClient.Exists(ctx, "/admin/reassign_partitions")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NotContains(t, printer.String(), "Proposed changes")
}

func TestCLIRunnerGets(t *testing.T) {
	ctx := context.Background()
	runner, _, printer := testRunner(t)

	require.NoError(t, runner.GetBrokers(ctx, balance.PlannerConfig{}))
	require.NoError(t, runner.GetStats(ctx, balance.PlannerConfig{}))
	require.NoError(t, runner.GetAssignment(ctx, []string{"events"}))

	output := printer.String()
	assert.Contains(t, output, "10.0.0.2")
	assert.Contains(t, output, "Replication groups")
	assert.Contains(t, output, "events")
}

func TestCLIRunnerElectLeaders(t *testing.T) {
	ctx := context.Background()
	runner, zkClient, _ := testRunner(t)

	require.NoError(t, runner.ElectLeaders(ctx, nil, true))

	exists, _, err := zkClient.Exists(ctx, "/admin/preferred_replica_election")
	require.NoError(t, err)
	assert.True(t, exists)
}
