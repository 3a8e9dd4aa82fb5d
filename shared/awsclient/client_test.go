package awsclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_StaticCredentials(t *testing.T) {
	awsCfg, err := LoadConfig(context.Background(), &Config{
		Region:          "eu-west-1",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", awsCfg.Region)

	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKIDEXAMPLE", creds.AccessKeyID)
}

func TestNew_CustomEndpoint(t *testing.T) {
	clients, err := New(context.Background(), &Config{
		Region:          "us-east-1",
		Endpoint:        "http://localhost:4566",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	})
	require.NoError(t, err)

	require.NotNil(t, clients.Textract)
	require.NotNil(t, clients.S3)
	assert.True(t, clients.S3.Options().UsePathStyle)
	assert.Equal(t, "http://localhost:4566", *clients.Textract.Options().BaseEndpoint)
}
