package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	log "github.com/sirupsen/logrus"
)

// SecretsManagerClient is the subset of the AWS Secrets Manager API used to load SASL
// credentials.
type SecretsManagerClient interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

var _ SecretsManagerClient = (*secretsmanager.Client)(nil)

// NewSecretsManagerClient returns a Secrets Manager client for the argument AWS config.
func NewSecretsManagerClient(awsCfg aws.Config) *secretsmanager.Client {
	return secretsmanager.NewFromConfig(awsCfg)
}

// SASLCredentials is the JSON layout of SASL secrets in Secrets Manager.
type SASLCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoadSASLSecret fetches and parses the SASL credentials stored in the argument secret.
func LoadSASLSecret(
	ctx context.Context,
	client SecretsManagerClient,
	arn string,
) (SASLCredentials, error) {
	credentials := SASLCredentials{}

	log.Debugf("Loading SASL credentials from secret %s", arn)
	resp, err := client.GetSecretValue(
		ctx,
		&secretsmanager.GetSecretValueInput{
			SecretId: aws.String(arn),
		},
	)
	if err != nil {
		return credentials, fmt.Errorf("Error getting secret %s: %+v", arn, err)
	}

	secret := aws.ToString(resp.SecretString)
	if secret == "" {
		return credentials, fmt.Errorf("Secret %s does not have a string value", arn)
	}

	if err := json.Unmarshal([]byte(secret), &credentials); err != nil {
		return credentials, fmt.Errorf("Error parsing secret %s: %+v", arn, err)
	}
	if credentials.Username == "" || credentials.Password == "" {
		return credentials, errors.New("SASL secret must contain a username and password")
	}

	return credentials, nil
}
