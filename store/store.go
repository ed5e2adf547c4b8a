// Package store keeps a remote copy of the training files in an S3 compatible
// bucket, so an interrupted training can be resumed on another machine.
//
// The connection is configured through the environment:
//
//	S3_ENDPOINT  host:port of the server (default localhost:9000)
//	ACCESS_KEY   access key
//	SECRET_KEY   secret key
//	S3_SECURE    use TLS (default true)
//	S3_BUCKET    bucket name (default vjcascade)
//	S3_REGION    bucket region (default us-east-1)
package store

import (
	"context"
	"os"
	"strconv"

	minio "github.com/minio/minio-go"
	"github.com/pkg/errors"
)

// Config holds the connection parameters of the remote store.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Secure    bool
	Bucket    string
	Region    string
}

// ConfigFromEnv reads the configuration from the environment.
func ConfigFromEnv() Config {
	return Config{
		Endpoint:  getenv("S3_ENDPOINT", "localhost:9000"),
		AccessKey: os.Getenv("ACCESS_KEY"),
		SecretKey: os.Getenv("SECRET_KEY"),
		Secure:    mustParseBool(os.Getenv("S3_SECURE")),
		Bucket:    getenv("S3_BUCKET", "vjcascade"),
		Region:    getenv("S3_REGION", "us-east-1"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Convert string to bool and always return true if any error
func mustParseBool(str string) bool {
	b, err := strconv.ParseBool(str)
	if err != nil {
		return true
	}
	return b
}

// Store copies files to and from one bucket.
type Store struct {
	client *minio.Client
	bucket string
}

// New connects to the server and creates the bucket if it does not exist yet.
func New(cfg Config) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, cfg.AccessKey, cfg.SecretKey, cfg.Secure)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create S3 client")
	}

	exists, err := client.BucketExists(cfg.Bucket)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot access bucket %s", cfg.Bucket)
	}
	if !exists {
		if err := client.MakeBucket(cfg.Bucket, cfg.Region); err != nil {
			return nil, errors.Wrapf(err, "cannot create bucket %s", cfg.Bucket)
		}
	}
	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// Push uploads the local file under key.
func (s *Store) Push(ctx context.Context, key, path string) error {
	_, err := s.client.FPutObjectWithContext(ctx, s.bucket, key, path,
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	return errors.Wrapf(err, "cannot upload %s to %s/%s", path, s.bucket, key)
}

// Pull downloads key into the local file. It returns false, and leaves the
// file untouched, when the object does not exist.
func (s *Store) Pull(ctx context.Context, key, path string) (bool, error) {
	err := s.client.FGetObjectWithContext(ctx, s.bucket, key, path, minio.GetObjectOptions{})
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "cannot download %s/%s", s.bucket, key)
	}
	return true, nil
}

// IsNotFound reports whether err is the server's answer for a missing object.
func IsNotFound(err error) bool {
	code := minio.ToErrorResponse(errors.Cause(err)).Code
	return code == "NoSuchKey" || code == "NoSuchBucket"
}
