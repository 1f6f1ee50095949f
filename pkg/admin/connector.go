package admin

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io/ioutil"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/aws_msk_iam_v2"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
	log "github.com/sirupsen/logrus"
)

const defaultConnTimeout = 10 * time.Second

// SASLMechanism is the name of a SASL mechanism that will be used for client authentication.
type SASLMechanism string

const (
	SASLMechanismAWSMSKIAM   SASLMechanism = "aws-msk-iam"
	SASLMechanismPlain       SASLMechanism = "plain"
	SASLMechanismScramSHA256 SASLMechanism = "scram-sha-256"
	SASLMechanismScramSHA512 SASLMechanism = "scram-sha-512"
)

// ConnectorConfig contains the configuration used to construct a connector.
type ConnectorConfig struct {
	BrokerAddr  string
	ConnTimeout time.Duration
	TLS         TLSConfig
	SASL        SASLConfig
}

// TLSConfig stores the TLS-related configuration for a connection.
type TLSConfig struct {
	Enabled    bool
	CertPath   string
	KeyPath    string
	CACertPath string
	ServerName string
	SkipVerify bool
}

// SASLConfig stores the SASL-related configuration for a connection.
type SASLConfig struct {
	Enabled   bool
	Mechanism SASLMechanism
	Username  string
	Password  string

	// SecretsManagerARN, if set, is the ARN of an AWS Secrets Manager secret holding the
	// username and password as JSON. It takes precedence over Username and Password.
	SecretsManagerARN string
}

// Connector is a wrapper around the low-level, kafka-go dialer and client.
type Connector struct {
	Config      ConnectorConfig
	Dialer      *kafka.Dialer
	KafkaClient *kafka.Client
}

// NewConnector constructs a new Connector instance given the argument config. AWS
// credentials are only loaded if the config needs them.
func NewConnector(ctx context.Context, config ConnectorConfig) (*Connector, error) {
	timeout := config.ConnTimeout
	if timeout <= 0 {
		timeout = defaultConnTimeout
	}

	mechanism, err := saslMechanism(ctx, config.SASL)
	if err != nil {
		return nil, err
	}

	tlsConfig, err := tlsClientConfig(config.TLS)
	if err != nil {
		return nil, err
	}

	dialer := &kafka.Dialer{
		SASLMechanism: mechanism,
		Timeout:       timeout,
		TLS:           tlsConfig,
	}

	log.Debugf(
		"Connecting to cluster on address %s with TLS enabled=%v, SASL enabled=%v",
		config.BrokerAddr,
		config.TLS.Enabled,
		config.SASL.Enabled,
	)

	return &Connector{
		Config: config,
		Dialer: dialer,
		KafkaClient: &kafka.Client{
			Addr:    kafka.TCP(config.BrokerAddr),
			Timeout: timeout,
			Transport: &kafka.Transport{
				Dial:        dialer.DialFunc,
				DialTimeout: timeout,
				SASL:        mechanism,
				TLS:         tlsConfig,
				MetadataTTL: 10 * time.Minute,
			},
		},
	}, nil
}

func saslMechanism(ctx context.Context, config SASLConfig) (sasl.Mechanism, error) {
	if !config.Enabled {
		return nil, nil
	}

	if config.Mechanism == SASLMechanismAWSMSKIAM {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("Error loading AWS config: %+v", err)
		}
		return aws_msk_iam_v2.NewMechanism(awsCfg), nil
	}

	username, password := config.Username, config.Password
	if config.SecretsManagerARN != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("Error loading AWS config: %+v", err)
		}
		credentials, err := LoadSASLSecret(ctx, NewSecretsManagerClient(awsCfg), config.SecretsManagerARN)
		if err != nil {
			return nil, err
		}
		username, password = credentials.Username, credentials.Password
	}

	switch config.Mechanism {
	case SASLMechanismPlain:
		return plain.Mechanism{
			Username: username,
			Password: password,
		}, nil
	case SASLMechanismScramSHA256:
		return scram.Mechanism(scram.SHA256, username, password)
	case SASLMechanismScramSHA512:
		return scram.Mechanism(scram.SHA512, username, password)
	default:
		return nil, fmt.Errorf("Unrecognized SASL mechanism: %s", config.Mechanism)
	}
}

func tlsClientConfig(config TLSConfig) (*tls.Config, error) {
	if !config.Enabled {
		return nil, nil
	}

	var certs []tls.Certificate
	var caCertPool *x509.CertPool

	if config.CertPath != "" && config.KeyPath != "" {
		log.Debugf("Loading key pair from %s and %s", config.CertPath, config.KeyPath)
		cert, err := tls.LoadX509KeyPair(config.CertPath, config.KeyPath)
		if err != nil {
			return nil, err
		}
		certs = append(certs, cert)
	}

	if config.CACertPath != "" {
		log.Debugf("Adding CA certs from %s", config.CACertPath)
		caCertPool = x509.NewCertPool()
		caCertContents, err := ioutil.ReadFile(config.CACertPath)
		if err != nil {
			return nil, err
		}
		if ok := caCertPool.AppendCertsFromPEM(caCertContents); !ok {
			return nil, fmt.Errorf("Could not append CA certs from %s", config.CACertPath)
		}
	}

	return &tls.Config{
		Certificates:       certs,
		RootCAs:            caCertPool,
		InsecureSkipVerify: config.SkipVerify,
		ServerName:         config.ServerName,
	}, nil
}

// SASLNameToMechanism converts the argument SASL mechanism name string to a valid instance of
// the SASLMechanism enum.
func SASLNameToMechanism(name string) (SASLMechanism, error) {
	normalizedName := strings.ReplaceAll(strings.ToLower(name), "_", "-")
	mechanism := SASLMechanism(normalizedName)

	switch mechanism {
	case SASLMechanismAWSMSKIAM,
		SASLMechanismPlain,
		SASLMechanismScramSHA256,
		SASLMechanismScramSHA512:
		return mechanism, nil
	default:
		return mechanism, fmt.Errorf(
			"SASL mechanism '%s' is not valid; choices are AWS-MSK-IAM, PLAIN, SCRAM-SHA-256, and SCRAM-SHA-512",
			mechanism,
		)
	}
}
