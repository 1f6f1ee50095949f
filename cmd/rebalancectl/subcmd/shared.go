package subcmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/hashicorp/go-multierror"
	"github.com/segmentio/rebalancectl/pkg/admin"
	"github.com/segmentio/rebalancectl/pkg/balance"
	"github.com/segmentio/rebalancectl/pkg/cli"
	"github.com/segmentio/rebalancectl/pkg/config"
	"github.com/segmentio/rebalancectl/pkg/util"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type sharedOptions struct {
	brokerAddr            string
	clusterConfig         string
	expandEnv             bool
	groupStrategy         string
	groupHostPattern      string
	saslMechanism         string
	saslPassword          string
	saslUsername          string
	saslSecretsManagerArn string
	tlsCACert             string
	tlsCert               string
	tlsEnabled            bool
	tlsKey                string
	tlsSkipVerify         bool
	tlsServerName         string
	topics                []string
	zkAddr                string
	zkLockPath            string
	zkPrefix              string
}

func (s sharedOptions) validate() error {
	var err error

	if s.clusterConfig == "" && s.zkAddr == "" && s.brokerAddr == "" {
		err = multierror.Append(
			err,
			errors.New("Must set either broker-addr, cluster-config, or zk-addr"),
		)
	}

	if s.clusterConfig != "" {
		clusterConfig, clusterConfigErr := config.LoadClusterFile(s.clusterConfig, s.expandEnv)
		if clusterConfigErr != nil {
			err = multierror.Append(err, clusterConfigErr)
		} else if validateErr := clusterConfig.Validate(); validateErr != nil {
			err = multierror.Append(err, validateErr)
		}

		if s.zkAddr != "" || s.zkPrefix != "" || s.brokerAddr != "" || s.tlsCACert != "" ||
			s.tlsCert != "" || s.tlsKey != "" || s.tlsServerName != "" || s.saslMechanism != "" ||
			s.groupStrategy != "" {
			log.Warn("Broker, zk, and grouping flags are ignored when using cluster-config")
		}

		return err
	}

	if s.zkAddr != "" && s.brokerAddr != "" {
		err = multierror.Append(
			err,
			errors.New("Cannot set both zk-addr and broker-addr"),
		)
	}

	useTLS := s.tlsEnabled || s.tlsCACert != "" || s.tlsCert != "" || s.tlsKey != ""
	useSASL := s.saslMechanism != "" || s.saslPassword != "" || s.saslUsername != "" ||
		s.saslSecretsManagerArn != ""

	if useTLS && s.zkAddr != "" {
		log.Warn("TLS flags are ignored accessing cluster via zookeeper")
	}
	if useSASL && s.zkAddr != "" {
		log.Warn("SASL flags are ignored accessing cluster via zookeeper")
	}

	if useSASL {
		saslMechanism, saslErr := admin.SASLNameToMechanism(s.saslMechanism)
		if saslErr != nil {
			err = multierror.Append(err, saslErr)
		}

		if saslMechanism == admin.SASLMechanismAWSMSKIAM &&
			(s.saslUsername != "" || s.saslPassword != "") {
			log.Warn("Username and password are ignored if using SASL AWS-MSK-IAM")
		}

		if (s.saslUsername != "" || s.saslPassword != "") && s.saslSecretsManagerArn != "" {
			err = multierror.Append(
				err,
				errors.New("Cannot set both sasl-username or sasl-password and sasl-secrets-manager-arn"),
			)
		}
	}

	if groupErr := s.groupingConfig().Validate(); groupErr != nil {
		err = multierror.Append(err, groupErr)
	}

	return err
}

// loadClusterConfig returns the cluster config referenced by the flags, or a config
// assembled from the individual flags if there isn't one.
func (s sharedOptions) loadClusterConfig() (config.ClusterConfig, error) {
	if s.clusterConfig != "" {
		return config.LoadClusterFile(s.clusterConfig, s.expandEnv)
	}

	clusterConfig := config.ClusterConfig{
		Spec: config.ClusterSpec{
			ZKPrefix:          s.zkPrefix,
			ZKLockPath:        s.zkLockPath,
			ReplicationGroups: s.groupingConfig(),
		},
	}

	if s.brokerAddr != "" {
		clusterConfig.Spec.UseBrokerAdmin = true
		clusterConfig.Spec.BootstrapAddrs = []string{s.brokerAddr}
		clusterConfig.Spec.TLS = config.TLSConfig{
			Enabled:    s.tlsEnabled || s.tlsCACert != "" || s.tlsCert != "" || s.tlsKey != "",
			CACertPath: s.tlsCACert,
			CertPath:   s.tlsCert,
			KeyPath:    s.tlsKey,
			ServerName: s.tlsServerName,
			SkipVerify: s.tlsSkipVerify,
		}
		clusterConfig.Spec.SASL = config.SASLConfig{
			Enabled: s.saslMechanism != "" || s.saslPassword != "" || s.saslUsername != "" ||
				s.saslSecretsManagerArn != "",
			Mechanism:         s.saslMechanism,
			Username:          s.saslUsername,
			Password:          s.saslPassword,
			SecretsManagerARN: s.saslSecretsManagerArn,
		}
	} else {
		clusterConfig.Spec.ZKAddrs = []string{s.zkAddr}
	}

	return clusterConfig, nil
}

func (s sharedOptions) groupingConfig() config.GroupingConfig {
	return config.GroupingConfig{
		Strategy:    config.GroupingStrategy(s.groupStrategy),
		HostPattern: s.groupHostPattern,
	}
}

// plannerConfig returns the parts of the planner config that come from the cluster
// config: the topics, the replication group extractor, and the EC2 client used for
// zone lookups.
func (s sharedOptions) plannerConfig(
	ctx context.Context,
	clusterConfig config.ClusterConfig,
) (balance.PlannerConfig, error) {
	grouping := clusterConfig.Spec.ReplicationGroups

	extractor, err := grouping.Extractor()
	if err != nil {
		return balance.PlannerConfig{}, err
	}

	plannerConfig := balance.PlannerConfig{
		Topics:                s.topics,
		Extractor:             extractor,
		MaxPartitionMovements: clusterConfig.Spec.Limits.MaxPartitionMovements,
		MaxLeaderChanges:      clusterConfig.Spec.Limits.MaxLeaderChanges,
	}

	if grouping.NeedsInstanceLookup() {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return plannerConfig, fmt.Errorf("Error loading AWS config: %+v", err)
		}
		plannerConfig.EC2Client = admin.NewEC2Client(awsCfg)
	}

	return plannerConfig, nil
}

// getCliRunner builds the admin client and CLI runner for a command. The returned
// admin client should be closed by the caller.
func (s sharedOptions) getCliRunner(
	ctx context.Context,
	readOnly bool,
) (*cli.CLIRunner, config.ClusterConfig, admin.Client, error) {
	clusterConfig, err := s.loadClusterConfig()
	if err != nil {
		return nil, clusterConfig, nil, err
	}

	adminClient, err := clusterConfig.NewAdminClient(ctx, readOnly)
	if err != nil {
		return nil, clusterConfig, nil, err
	}

	cliRunner := cli.NewCLIRunner(
		adminClient,
		log.Infof,
		!noSpinner && util.StderrInTerminal(),
	)
	return cliRunner, clusterConfig, adminClient, nil
}

func addSharedFlags(cmd *cobra.Command, options *sharedOptions) {
	cmd.PersistentFlags().StringVarP(
		&options.brokerAddr,
		"broker-addr",
		"b",
		"",
		"Broker address",
	)
	cmd.PersistentFlags().StringVar(
		&options.clusterConfig,
		"cluster-config",
		os.Getenv("REBALANCECTL_CLUSTER_CONFIG"),
		"Cluster config",
	)
	cmd.PersistentFlags().BoolVarP(
		&options.expandEnv,
		"expand-env",
		"",
		false,
		"Expand environment in cluster config",
	)
	cmd.PersistentFlags().StringVar(
		&options.groupStrategy,
		"group-strategy",
		"",
		"Replication group strategy if not using a cluster config (choices: none, rack, availabilityZone, or hostPattern)",
	)
	cmd.PersistentFlags().StringVar(
		&options.groupHostPattern,
		"group-host-pattern",
		"",
		"Regexp with one capture group that extracts the replication group from broker hosts",
	)
	cmd.PersistentFlags().StringVar(
		&options.saslMechanism,
		"sasl-mechanism",
		"",
		"SASL mechanism if using SASL (choices: AWS-MSK-IAM, PLAIN, SCRAM-SHA-256, or SCRAM-SHA-512)",
	)
	cmd.PersistentFlags().StringVar(
		&options.saslPassword,
		"sasl-password",
		os.Getenv("REBALANCECTL_SASL_PASSWORD"),
		"SASL password if using SASL",
	)
	cmd.PersistentFlags().StringVar(
		&options.saslUsername,
		"sasl-username",
		os.Getenv("REBALANCECTL_SASL_USERNAME"),
		"SASL username if using SASL",
	)
	cmd.PersistentFlags().StringVar(
		&options.saslSecretsManagerArn,
		"sasl-secrets-manager-arn",
		"",
		"ARN of an AWS Secrets Manager secret containing the SASL username and password",
	)
	cmd.PersistentFlags().StringVar(
		&options.tlsCACert,
		"tls-ca-cert",
		"",
		"Path to client CA cert PEM file if using TLS",
	)
	cmd.PersistentFlags().StringVar(
		&options.tlsCert,
		"tls-cert",
		"",
		"Path to client cert PEM file if using TLS",
	)
	cmd.PersistentFlags().BoolVar(
		&options.tlsEnabled,
		"tls-enabled",
		false,
		"Use TLS for communication with brokers",
	)
	cmd.PersistentFlags().StringVar(
		&options.tlsKey,
		"tls-key",
		"",
		"Path to client private key PEM file if using TLS",
	)
	cmd.PersistentFlags().StringVar(
		&options.tlsServerName,
		"tls-server-name",
		"",
		"Server name to use for TLS cert verification",
	)
	cmd.PersistentFlags().BoolVar(
		&options.tlsSkipVerify,
		"tls-skip-verify",
		false,
		"Skip hostname verification when using TLS",
	)
	cmd.PersistentFlags().StringSliceVar(
		&options.topics,
		"topics",
		[]string{},
		"Topics to consider; all topics are used if unset",
	)
	cmd.PersistentFlags().StringVarP(
		&options.zkAddr,
		"zk-addr",
		"z",
		"",
		"ZooKeeper address",
	)
	cmd.PersistentFlags().StringVar(
		&options.zkLockPath,
		"zk-lock-path",
		"",
		"Path of the zk lock held while applying changes; no lock is used if unset",
	)
	cmd.PersistentFlags().StringVar(
		&options.zkPrefix,
		"zk-prefix",
		"",
		"Prefix for cluster-related nodes in zk",
	)
}
