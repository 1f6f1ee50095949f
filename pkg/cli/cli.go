package cli

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/segmentio/rebalancectl/pkg/admin"
	"github.com/segmentio/rebalancectl/pkg/balance"
	log "github.com/sirupsen/logrus"
)

const (
	spinnerCharSet  = 36
	spinnerDuration = 200 * time.Millisecond
)

// RebalanceOptions controls what happens to a plan after it's generated.
type RebalanceOptions struct {
	// OutputPath, if set, is where the reassignment JSON is written.
	OutputPath string

	// Apply submits the plan to the cluster after confirmation.
	Apply       bool
	SkipConfirm bool
	LockPath    string
}

// CLIRunner runs the actions behind the rebalancectl subcommands.
type CLIRunner struct {
	adminClient admin.Client
	printer     func(f string, a ...interface{})
	spinnerObj  *spinner.Spinner
}

// NewCLIRunner returns a CLIRunner that prints through the argument printer.
func NewCLIRunner(
	adminClient admin.Client,
	printer func(f string, a ...interface{}),
	showSpinner bool,
) *CLIRunner {
	var spinnerObj *spinner.Spinner

	if showSpinner {
		spinnerObj = spinner.New(
			spinner.CharSets[spinnerCharSet],
			spinnerDuration,
			spinner.WithWriter(os.Stderr),
			spinner.WithHiddenCursor(true),
		)
		spinnerObj.Prefix = "Loading: "
	}

	return &CLIRunner{
		adminClient: adminClient,
		printer:     printer,
		spinnerObj:  spinnerObj,
	}
}

// GetBrokers prints the brokers in the cluster along with their partition and leader
// counts.
func (c *CLIRunner) GetBrokers(ctx context.Context, plannerConfig balance.PlannerConfig) error {
	plan, err := c.currentState(ctx, plannerConfig)
	if err != nil {
		return err
	}

	c.printer("Brokers:\n%s", balance.FormatBrokerStats(plan.Brokers, plan.Before, nil))
	return nil
}

// GetStats prints the current imbalance of the cluster.
func (c *CLIRunner) GetStats(ctx context.Context, plannerConfig balance.PlannerConfig) error {
	plan, err := c.currentState(ctx, plannerConfig)
	if err != nil {
		return err
	}

	c.printer("Replication groups:\n%s", balance.FormatGroupStats(plan.Before))
	c.printer("Brokers:\n%s", balance.FormatBrokerStats(plan.Brokers, plan.Before, nil))
	log.Infof(
		"Replication group imbalance: %d, partition count std dev: %.3f, leader count std dev: %.3f, brokers outside leader band: %d",
		plan.Before.ReplicationGroupImbalance,
		plan.Before.PartitionCountStdDev,
		plan.Before.LeaderCountStdDev,
		plan.Before.LeaderBandOutliers,
	)
	return nil
}

// GetAssignment prints the current assignment of the argument topics.
func (c *CLIRunner) GetAssignment(ctx context.Context, topics []string) error {
	c.startSpinner()
	assignment, err := c.adminClient.GetAssignment(ctx, topics)
	c.stopSpinner()
	if err != nil {
		return err
	}

	c.printer("Assignment:\n%s", balance.FormatAssignment(admin.SortedAssignments(assignment)))
	return nil
}

// Rebalance generates a plan, prints it, and optionally writes it to a file and applies
// it.
func (c *CLIRunner) Rebalance(
	ctx context.Context,
	plannerConfig balance.PlannerConfig,
	options RebalanceOptions,
) error {
	planner := balance.NewPlanner(c.adminClient, plannerConfig)

	c.startSpinner()
	plan, err := planner.Plan(ctx)
	c.stopSpinner()
	if err != nil {
		return err
	}

	c.printer("Summary:\n%s", balance.FormatPlanSummary(plan))

	if plan.Empty() {
		log.Info("Cluster is already balanced, nothing to do")
		return nil
	}

	c.printer("Proposed changes:\n%s", balance.FormatPlanDiffs(plan))
	c.printer(
		"Brokers after changes:\n%s",
		balance.FormatBrokerStats(plan.Brokers, plan.Before, &plan.After),
	)

	if options.OutputPath != "" {
		if err := plan.WritePlanFile(options.OutputPath); err != nil {
			return err
		}
		log.Infof("Wrote reassignment plan to %s", options.OutputPath)
	}

	if !options.Apply {
		return nil
	}

	ok, _ := Confirm("OK to apply?", options.SkipConfirm)
	if !ok {
		return errors.New("Stopping because of user response")
	}

	if err := planner.Apply(ctx, plan, options.LockPath); err != nil {
		return err
	}
	log.Info("Reassignment submitted; kafka will move the replicas in the background")
	return nil
}

// ElectLeaders runs a preferred leader election for the argument topics.
func (c *CLIRunner) ElectLeaders(ctx context.Context, topics []string, skipConfirm bool) error {
	ok, _ := Confirm("OK to run a preferred leader election?", skipConfirm)
	if !ok {
		return errors.New("Stopping because of user response")
	}

	return balance.NewPlanner(c.adminClient, balance.PlannerConfig{}).ElectLeaders(ctx, topics)
}

// currentState runs the planner without any balancing steps so that only the current
// state is computed.
func (c *CLIRunner) currentState(
	ctx context.Context,
	plannerConfig balance.PlannerConfig,
) (*balance.Plan, error) {
	c.startSpinner()
	defer c.stopSpinner()

	return balance.NewPlanner(
		c.adminClient,
		balance.PlannerConfig{
			Topics:    plannerConfig.Topics,
			Extractor: plannerConfig.Extractor,
			EC2Client: plannerConfig.EC2Client,
		},
	).Plan(ctx)
}

func (c *CLIRunner) startSpinner() {
	if c.spinnerObj != nil {
		c.spinnerObj.Start()
	}
}

func (c *CLIRunner) stopSpinner() {
	if c.spinnerObj != nil && c.spinnerObj.Active() {
		c.spinnerObj.Stop()
	}
}
