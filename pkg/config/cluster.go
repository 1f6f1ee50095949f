package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/segmentio/rebalancectl/pkg/admin"
)

// ClusterConfig stores information about a cluster that's going to be rebalanced. These
// configs should reflect the reality of what's been set up externally.
type ClusterConfig struct {
	Meta ClusterMeta `json:"meta"`
	Spec ClusterSpec `json:"spec"`

	// RootDir is the directory of the config file, used to resolve relative cert paths.
	RootDir string `json:"-"`
}

// ClusterMeta contains (mostly immutable) metadata about the cluster. Inspired
// by the meta fields in Kubernetes objects.
type ClusterMeta struct {
	Name        string `json:"name"`
	Region      string `json:"region"`
	Environment string `json:"environment"`
	Description string `json:"description"`
}

// ClusterSpec contains the details necessary to communicate with a kafka cluster and to
// rebalance it.
type ClusterSpec struct {
	// BootstrapAddrs is a list of one or more broker bootstrap addresses. These can use IPs
	// or DNS names.
	BootstrapAddrs []string `json:"bootstrapAddrs"`

	// ZKAddrs is a list of one or more zookeeper addresses. These can use IPs
	// or DNS names.
	ZKAddrs []string `json:"zkAddrs"`

	// ZKPrefix is the prefix under which all zk nodes for the cluster are stored. If blank,
	// these are assumed to be under the zk root.
	ZKPrefix string `json:"zkPrefix"`

	// ZKLockPath indicates where locks are stored in zookeeper. If blank, then
	// no locking will be used when applying plans.
	ZKLockPath string `json:"zkLockPath"`

	// UseBrokerAdmin indicates whether we should use a broker-api-based admin (if true) or
	// the zk-based admin (if false). Plans can't be applied in broker mode.
	UseBrokerAdmin bool `json:"useBrokerAdmin"`

	// ConnTimeout is the timeout for broker connections, e.g. "10s". Optional.
	ConnTimeout string `json:"connTimeout"`

	TLS  TLSConfig  `json:"tls"`
	SASL SASLConfig `json:"sasl"`

	// ReplicationGroups configures how brokers are mapped to replication groups.
	ReplicationGroups GroupingConfig `json:"replicationGroups"`

	// Limits caps the size of each generated plan.
	Limits LimitsConfig `json:"limits"`
}

// TLSConfig stores the (optional) TLS configuration for broker connections.
type TLSConfig struct {
	Enabled    bool   `json:"enabled"`
	CACertPath string `json:"caCertPath"`
	CertPath   string `json:"certPath"`
	KeyPath    string `json:"keyPath"`
	ServerName string `json:"serverName"`
	SkipVerify bool   `json:"skipVerify"`
}

// SASLConfig stores the (optional) SASL configuration for broker connections.
type SASLConfig struct {
	Enabled           bool   `json:"enabled"`
	Mechanism         string `json:"mechanism"`
	Username          string `json:"username"`
	Password          string `json:"password"`
	SecretsManagerARN string `json:"secretsManagerArn"`
}

// LimitsConfig caps how much a single plan is allowed to change. Zero means unlimited.
type LimitsConfig struct {
	MaxPartitionMovements int `json:"maxPartitionMovements"`
	MaxLeaderChanges      int `json:"maxLeaderChanges"`
}

// Validate evaluates whether the cluster config is valid.
func (c ClusterConfig) Validate() error {
	var err error

	if c.Meta.Name == "" {
		err = multierror.Append(err, errors.New("Name must be set"))
	}
	if c.Meta.Region == "" {
		err = multierror.Append(err, errors.New("Region must be set"))
	}
	if c.Meta.Environment == "" {
		err = multierror.Append(err, errors.New("Environment must be set"))
	}

	if c.Spec.UseBrokerAdmin && len(c.Spec.BootstrapAddrs) == 0 {
		err = multierror.Append(
			err,
			errors.New("At least one bootstrap broker address must be set with useBrokerAdmin"),
		)
	}
	if !c.Spec.UseBrokerAdmin && len(c.Spec.ZKAddrs) == 0 {
		err = multierror.Append(err, errors.New("At least one zookeeper address must be set"))
	}

	if _, parseErr := c.GetConnTimeout(); parseErr != nil {
		err = multierror.Append(
			err,
			fmt.Errorf("Error parsing connection timeout: %+v", parseErr),
		)
	}

	if c.Spec.SASL.Enabled {
		if _, saslErr := admin.SASLNameToMechanism(c.Spec.SASL.Mechanism); saslErr != nil {
			err = multierror.Append(err, saslErr)
		}
		if c.Spec.SASL.SecretsManagerARN != "" &&
			(c.Spec.SASL.Username != "" || c.Spec.SASL.Password != "") {
			err = multierror.Append(
				err,
				errors.New("SASL username and password can't be set with secretsManagerArn"),
			)
		}
	}

	if c.Spec.Limits.MaxPartitionMovements < 0 || c.Spec.Limits.MaxLeaderChanges < 0 {
		err = multierror.Append(err, errors.New("Limits can't be negative"))
	}

	if groupErr := c.Spec.ReplicationGroups.Validate(); groupErr != nil {
		err = multierror.Append(err, groupErr)
	}

	return err
}

// GetConnTimeout returns the parsed connection timeout, or zero if it isn't set.
func (c ClusterConfig) GetConnTimeout() (time.Duration, error) {
	if c.Spec.ConnTimeout == "" {
		return 0, nil
	}

	return time.ParseDuration(c.Spec.ConnTimeout)
}

// ConnectorConfig converts the broker connection settings into an admin.ConnectorConfig.
func (c ClusterConfig) ConnectorConfig() (admin.ConnectorConfig, error) {
	config := admin.ConnectorConfig{}

	if len(c.Spec.BootstrapAddrs) == 0 {
		return config, errors.New("At least one bootstrap broker address must be set")
	}
	config.BrokerAddr = c.Spec.BootstrapAddrs[0]

	timeout, err := c.GetConnTimeout()
	if err != nil {
		return config, err
	}
	config.ConnTimeout = timeout

	config.TLS = admin.TLSConfig{
		Enabled:    c.Spec.TLS.Enabled,
		CACertPath: c.absPath(c.Spec.TLS.CACertPath),
		CertPath:   c.absPath(c.Spec.TLS.CertPath),
		KeyPath:    c.absPath(c.Spec.TLS.KeyPath),
		ServerName: c.Spec.TLS.ServerName,
		SkipVerify: c.Spec.TLS.SkipVerify,
	}

	if c.Spec.SASL.Enabled {
		mechanism, err := admin.SASLNameToMechanism(c.Spec.SASL.Mechanism)
		if err != nil {
			return config, err
		}
		config.SASL = admin.SASLConfig{
			Enabled:           true,
			Mechanism:         mechanism,
			Username:          c.Spec.SASL.Username,
			Password:          c.Spec.SASL.Password,
			SecretsManagerARN: c.Spec.SASL.SecretsManagerARN,
		}
	}

	return config, nil
}

// NewAdminClient returns a new admin client using the parameters in the current cluster config.
func (c ClusterConfig) NewAdminClient(
	ctx context.Context,
	readOnly bool,
) (admin.Client, error) {
	if c.Spec.UseBrokerAdmin {
		connectorConfig, err := c.ConnectorConfig()
		if err != nil {
			return nil, err
		}

		return admin.NewBrokerAdminClient(
			ctx,
			admin.BrokerAdminClientConfig{
				ConnectorConfig: connectorConfig,
				ReadOnly:        readOnly,
			},
		)
	}

	return admin.NewZKAdminClient(
		admin.ZKAdminClientConfig{
			ZKAddrs:  c.Spec.ZKAddrs,
			ZKPrefix: c.Spec.ZKPrefix,
			ReadOnly: readOnly,
		},
	)
}

func (c ClusterConfig) absPath(path string) string {
	if path == "" || filepath.IsAbs(path) || c.RootDir == "" {
		return path
	}
	return filepath.Join(c.RootDir, path)
}
