package store

import (
	"testing"

	minio "github.com/minio/minio-go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestConfigFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"S3_ENDPOINT", "ACCESS_KEY", "SECRET_KEY", "S3_SECURE", "S3_BUCKET", "S3_REGION"} {
		t.Setenv(key, "")
	}

	assert.Equal(t, Config{
		Endpoint: "localhost:9000",
		Secure:   true,
		Bucket:   "vjcascade",
		Region:   "us-east-1",
	}, ConfigFromEnv())
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("S3_ENDPOINT", "s3.example.com")
	t.Setenv("ACCESS_KEY", "ak")
	t.Setenv("SECRET_KEY", "sk")
	t.Setenv("S3_SECURE", "false")
	t.Setenv("S3_BUCKET", "faces")
	t.Setenv("S3_REGION", "eu-west-1")

	assert.Equal(t, Config{
		Endpoint:  "s3.example.com",
		AccessKey: "ak",
		SecretKey: "sk",
		Secure:    false,
		Bucket:    "faces",
		Region:    "eu-west-1",
	}, ConfigFromEnv())
}

func TestMustParseBool(t *testing.T) {
	assert.True(t, mustParseBool(""))
	assert.True(t, mustParseBool("yes please"))
	assert.False(t, mustParseBool("0"))
}

func TestIsNotFound(t *testing.T) {
	missing := minio.ErrorResponse{Code: "NoSuchKey", Message: "The specified key does not exist."}

	assert.True(t, IsNotFound(missing))
	assert.True(t, IsNotFound(errors.Wrap(missing, "download")))
	assert.False(t, IsNotFound(minio.ErrorResponse{Code: "AccessDenied"}))
	assert.False(t, IsNotFound(errors.New("timeout")))
}
