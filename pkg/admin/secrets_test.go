package admin

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecretsManager struct {
	secrets map[string]string
}

func (f *fakeSecretsManager) GetSecretValue(
	ctx context.Context,
	params *secretsmanager.GetSecretValueInput,
	optFns ...func(*secretsmanager.Options),
) (*secretsmanager.GetSecretValueOutput, error) {
	secret, ok := f.secrets[aws.ToString(params.SecretId)]
	if !ok {
		return nil, errors.New("ResourceNotFoundException")
	}
	return &secretsmanager.GetSecretValueOutput{
		ARN:          params.SecretId,
		SecretString: aws.String(secret),
	}, nil
}

func TestLoadSASLSecret(t *testing.T) {
	client := &fakeSecretsManager{
		secrets: map[string]string{
			"arn:good":     `{"username": "kafka-user", "password": "hunter2"}`,
			"arn:partial":  `{"username": "kafka-user"}`,
			"arn:invalid":  `not json`,
			"arn:no-value": ``,
		},
	}

	type testCase struct {
		description string
		arn         string
		expected    SASLCredentials
		expectedErr bool
	}

	testCases := []testCase{
		{
			description: "valid secret",
			arn:         "arn:good",
			expected: SASLCredentials{
				Username: "kafka-user",
				Password: "hunter2",
			},
		},
		{
			description: "missing password",
			arn:         "arn:partial",
			expectedErr: true,
		},
		{
			description: "invalid JSON",
			arn:         "arn:invalid",
			expectedErr: true,
		},
		{
			description: "empty secret",
			arn:         "arn:no-value",
			expectedErr: true,
		},
		{
			description: "missing secret",
			arn:         "arn:missing",
			expectedErr: true,
		},
	}

	for _, testCase := range testCases {
		credentials, err := LoadSASLSecret(context.Background(), client, testCase.arn)
		if testCase.expectedErr {
			assert.Error(t, err, testCase.description)
			continue
		}
		require.NoError(t, err, testCase.description)
		assert.Equal(t, testCase.expected, credentials, testCase.description)
	}
}
