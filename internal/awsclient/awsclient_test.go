package awsclient

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notifyhub/suggestion-worker/internal/config"
)

func TestLoad_StaticCredentialsAndEndpoint(t *testing.T) {
	cfg := &config.Config{
		Region:         "eu-west-1",
		AWSEndpointURL: "http://localhost:4566",
		AWSAccessKeyID: "test",
		AWSSecretKey:   "secret",
	}

	awsCfg, err := Load(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, "eu-west-1", awsCfg.Region)
	assert.Equal(t, "http://localhost:4566", aws.ToString(awsCfg.BaseEndpoint))

	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test", creds.AccessKeyID)
	assert.Equal(t, "secret", creds.SecretAccessKey)
}

func TestLoad_NoEndpointOverride(t *testing.T) {
	t.Setenv("AWS_ENDPOINT_URL", "")
	awsCfg, err := Load(context.Background(), &config.Config{Region: "us-east-1"})
	require.NoError(t, err)
	assert.Nil(t, awsCfg.BaseEndpoint)
}
