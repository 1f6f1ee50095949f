package subcmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/segmentio/rebalancectl/pkg/balance"
	"github.com/spf13/cobra"
)

var decommissionCmd = &cobra.Command{
	Use:   "decommission [broker ids]",
	Short: "generate and optionally apply a plan that empties brokers",
	Long: strings.Join(
		[]string{
			"Generate a plan that moves all partitions off of the argument brokers.",
			"Partitions stay in the replication group of their broker when possible. With",
			"--rebalance, the remaining brokers and leaders are balanced afterwards.",
		},
		"\n",
	),
	Args:    cobra.MinimumNArgs(1),
	PreRunE: decommissionPreRun,
	RunE:    decommissionRun,
}

type decommissionCmdConfig struct {
	rebalance bool

	plan   planOptions
	shared sharedOptions
}

var decommissionConfig decommissionCmdConfig

func init() {
	decommissionCmd.Flags().BoolVar(
		&decommissionConfig.rebalance,
		"rebalance",
		false,
		"Also balance brokers and leaders after decommissioning",
	)

	addPlanFlags(decommissionCmd, &decommissionConfig.plan)
	addSharedFlags(decommissionCmd, &decommissionConfig.shared)
	RootCmd.AddCommand(decommissionCmd)
}

func decommissionPreRun(cmd *cobra.Command, args []string) error {
	if _, err := stringsToInts(args); err != nil {
		return err
	}
	if err := decommissionConfig.plan.validate(); err != nil {
		return err
	}
	return decommissionConfig.shared.validate()
}

func decommissionRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	brokerIDs, err := stringsToInts(args)
	if err != nil {
		return err
	}

	return runPlan(
		ctx,
		decommissionConfig.shared,
		decommissionConfig.plan,
		func(plannerConfig *balance.PlannerConfig) {
			plannerConfig.BrokersToDecommission = brokerIDs
			plannerConfig.RebalanceBrokers = decommissionConfig.rebalance
			plannerConfig.RebalanceLeaders = decommissionConfig.rebalance
		},
	)
}

func stringsToInts(strs []string) ([]int, error) {
	ints := []int{}

	for _, str := range strs {
		nextInt, err := strconv.ParseInt(str, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("Invalid broker id %q: %+v", str, err)
		}
		ints = append(ints, int(nextInt))
	}

	return ints, nil
}
