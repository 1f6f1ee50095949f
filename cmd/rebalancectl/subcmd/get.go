package subcmd

import (
	"context"
	"strings"

	"github.com/segmentio/rebalancectl/pkg/balance"
	"github.com/segmentio/rebalancectl/pkg/cli"
	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get [resource type]",
	Short: "get information about the cluster",
	Long: strings.Join(
		[]string{
			"Get information about the brokers, assignment, or balance of the cluster.",
		},
		"\n",
	),
	PersistentPreRunE: getPreRun,
}

type getCmdConfig struct {
	shared sharedOptions
}

var getConfig getCmdConfig

func init() {
	addSharedFlags(getCmd, &getConfig.shared)
	getCmd.AddCommand(
		assignmentCmd(),
		brokersCmd(),
		statsCmd(),
	)
	RootCmd.AddCommand(getCmd)
}

func getPreRun(cmd *cobra.Command, args []string) error {
	if err := preRun(cmd, args); err != nil {
		return err
	}
	return getConfig.shared.validate()
}

// runGet runs the argument function with a read-only CLI runner.
func runGet(
	getter func(
		ctx context.Context,
		cliRunner *cli.CLIRunner,
		plannerConfig balance.PlannerConfig,
	) error,
) error {
	ctx := context.Background()

	cliRunner, clusterConfig, adminClient, err := getConfig.shared.getCliRunner(ctx, true)
	if err != nil {
		return err
	}
	defer adminClient.Close()

	plannerConfig, err := getConfig.shared.plannerConfig(ctx, clusterConfig)
	if err != nil {
		return err
	}

	return getter(ctx, cliRunner, plannerConfig)
}

func assignmentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assignment",
		Short: "Displays the replicas of each partition.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(
				func(
					ctx context.Context,
					cliRunner *cli.CLIRunner,
					plannerConfig balance.PlannerConfig,
				) error {
					return cliRunner.GetAssignment(ctx, plannerConfig.Topics)
				},
			)
		},
	}
}

func brokersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "brokers",
		Short: "Displays each broker with its partition and leader counts.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(
				func(
					ctx context.Context,
					cliRunner *cli.CLIRunner,
					plannerConfig balance.PlannerConfig,
				) error {
					return cliRunner.GetBrokers(ctx, plannerConfig)
				},
			)
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Displays the imbalance of replication groups, brokers, and leaders.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(
				func(
					ctx context.Context,
					cliRunner *cli.CLIRunner,
					plannerConfig balance.PlannerConfig,
				) error {
					return cliRunner.GetStats(ctx, plannerConfig)
				},
			)
		},
	}
}
