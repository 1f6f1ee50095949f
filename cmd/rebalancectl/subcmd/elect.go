package subcmd

import (
	"context"

	"github.com/spf13/cobra"
)

var electCmd = &cobra.Command{
	Use:     "elect-leaders",
	Short:   "run a preferred leader election so that leadership follows the assignment",
	Args:    cobra.NoArgs,
	PreRunE: electPreRun,
	RunE:    electRun,
}

type electCmdConfig struct {
	skipConfirm bool

	shared sharedOptions
}

var electConfig electCmdConfig

func init() {
	electCmd.Flags().BoolVar(
		&electConfig.skipConfirm,
		"skip-confirm",
		false,
		"Skip confirmation prompts",
	)

	addSharedFlags(electCmd, &electConfig.shared)
	RootCmd.AddCommand(electCmd)
}

func electPreRun(cmd *cobra.Command, args []string) error {
	return electConfig.shared.validate()
}

func electRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cliRunner, _, adminClient, err := electConfig.shared.getCliRunner(ctx, false)
	if err != nil {
		return err
	}
	defer adminClient.Close()

	return cliRunner.ElectLeaders(ctx, electConfig.shared.topics, electConfig.skipConfirm)
}
