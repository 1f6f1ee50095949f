package subcmd

import (
	"context"
	"errors"
	"strings"

	"github.com/segmentio/rebalancectl/pkg/balance"
	"github.com/segmentio/rebalancectl/pkg/cli"
	"github.com/spf13/cobra"
)

var rebalanceCmd = &cobra.Command{
	Use:   "rebalance",
	Short: "generate and optionally apply a plan that balances the cluster",
	Long: strings.Join(
		[]string{
			"Generate a plan that balances the placement of partitions in the cluster.",
			"At least one of --replication-groups, --brokers, or --leaders must be set. The steps",
			"run in that order. The plan is printed and can be written to a reassignment JSON file",
			"or applied directly through zookeeper.",
		},
		"\n",
	),
	Args:    cobra.NoArgs,
	PreRunE: rebalancePreRun,
	RunE:    rebalanceRun,
}

type planOptions struct {
	apply                 bool
	maxLeaderChanges      int
	maxPartitionMovements int
	output                string
	skipConfirm           bool
}

type rebalanceCmdConfig struct {
	replicationGroups bool
	brokers           bool
	leaders           bool

	plan   planOptions
	shared sharedOptions
}

var rebalanceConfig rebalanceCmdConfig

func init() {
	rebalanceCmd.Flags().BoolVar(
		&rebalanceConfig.replicationGroups,
		"replication-groups",
		false,
		"Balance replicas across replication groups",
	)
	rebalanceCmd.Flags().BoolVar(
		&rebalanceConfig.brokers,
		"brokers",
		false,
		"Balance partition counts across the brokers of each replication group",
	)
	rebalanceCmd.Flags().BoolVar(
		&rebalanceConfig.leaders,
		"leaders",
		false,
		"Balance preferred leaders across brokers",
	)

	addPlanFlags(rebalanceCmd, &rebalanceConfig.plan)
	addSharedFlags(rebalanceCmd, &rebalanceConfig.shared)
	RootCmd.AddCommand(rebalanceCmd)
}

func rebalancePreRun(cmd *cobra.Command, args []string) error {
	if !rebalanceConfig.replicationGroups && !rebalanceConfig.brokers && !rebalanceConfig.leaders {
		return errors.New("Must set at least one of --replication-groups, --brokers, or --leaders")
	}
	if err := rebalanceConfig.plan.validate(); err != nil {
		return err
	}
	return rebalanceConfig.shared.validate()
}

func rebalanceRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	return runPlan(
		ctx,
		rebalanceConfig.shared,
		rebalanceConfig.plan,
		func(plannerConfig *balance.PlannerConfig) {
			plannerConfig.RebalanceReplicationGroups = rebalanceConfig.replicationGroups
			plannerConfig.RebalanceBrokers = rebalanceConfig.brokers
			plannerConfig.RebalanceLeaders = rebalanceConfig.leaders
		},
	)
}

func addPlanFlags(cmd *cobra.Command, options *planOptions) {
	cmd.Flags().BoolVar(
		&options.apply,
		"apply",
		false,
		"Submit the plan to the cluster after confirmation; requires zookeeper access",
	)
	cmd.Flags().IntVar(
		&options.maxLeaderChanges,
		"max-leader-changes",
		0,
		"Maximum number of preferred leader changes; overrides the cluster config, 0 keeps it",
	)
	cmd.Flags().IntVar(
		&options.maxPartitionMovements,
		"max-partition-movements",
		0,
		"Maximum number of replica movements; overrides the cluster config, 0 keeps it",
	)
	cmd.Flags().StringVarP(
		&options.output,
		"output",
		"o",
		"",
		"Path to write the reassignment plan JSON to",
	)
	cmd.Flags().BoolVar(
		&options.skipConfirm,
		"skip-confirm",
		false,
		"Skip confirmation prompts",
	)
}

func (p planOptions) validate() error {
	if p.maxLeaderChanges < 0 || p.maxPartitionMovements < 0 {
		return errors.New("Limits can't be negative")
	}
	return nil
}

// runPlan generates a plan with the settings from the shared options, the plan options,
// and the argument setup function, and then prints, writes, or applies it.
func runPlan(
	ctx context.Context,
	shared sharedOptions,
	options planOptions,
	setup func(plannerConfig *balance.PlannerConfig),
) error {
	cliRunner, clusterConfig, adminClient, err := shared.getCliRunner(ctx, !options.apply)
	if err != nil {
		return err
	}
	defer adminClient.Close()

	plannerConfig, err := shared.plannerConfig(ctx, clusterConfig)
	if err != nil {
		return err
	}
	if options.maxPartitionMovements > 0 {
		plannerConfig.MaxPartitionMovements = options.maxPartitionMovements
	}
	if options.maxLeaderChanges > 0 {
		plannerConfig.MaxLeaderChanges = options.maxLeaderChanges
	}
	setup(&plannerConfig)

	return cliRunner.Rebalance(
		ctx,
		plannerConfig,
		cli.RebalanceOptions{
			OutputPath:  options.output,
			Apply:       options.apply,
			SkipConfirm: options.skipConfirm,
			LockPath:    clusterConfig.Spec.ZKLockPath,
		},
	)
}
