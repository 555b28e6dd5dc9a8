package minio

import (
	"context"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/turtacn/NERRecon/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NERRecon/pkg/errors"
)

// ObjectAPI is the subset of object-storage operations the store needs.  It
// is satisfied by a wrapped *minio.Client and mocked in tests.
type ObjectAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket, region string) error
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	StatObject(ctx context.Context, bucket, key string) (minio.ObjectInfo, error)
	ListObjects(ctx context.Context, bucket, prefix string) <-chan minio.ObjectInfo
}

// MinIOConfig holds the connection and bucket layout.
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key"`
	SecretAccessKey string `mapstructure:"secret_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	// Prefix is prepended to every object key.
	Prefix string `mapstructure:"prefix"`
}

// MinIOClient owns the connection to an S3-compatible endpoint.
type MinIOClient struct {
	api    ObjectAPI
	config *MinIOConfig
	logger logging.Logger
}

// NewMinIOClient connects, verifies the endpoint and makes sure the bucket
// exists.
func NewMinIOClient(ctx context.Context, cfg *MinIOConfig, log logging.Logger) (*MinIOClient, error) {
	applyDefaults(cfg)

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to create minio client")
	}

	c := newClient(&sdkAPI{c: client}, cfg, log)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := c.EnsureBucket(ctx); err != nil {
		return nil, err
	}

	c.logger.Info("MinIO client connected", logging.String("endpoint", cfg.Endpoint), logging.String("bucket", cfg.Bucket), logging.Bool("ssl", cfg.UseSSL))
	return c, nil
}

func newClient(api ObjectAPI, cfg *MinIOConfig, log logging.Logger) *MinIOClient {
	applyDefaults(cfg)
	return &MinIOClient{api: api, config: cfg, logger: logging.OrNop(log)}
}

func applyDefaults(cfg *MinIOConfig) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.Bucket == "" {
		cfg.Bucket = "nerrecon"
	}
}

// EnsureBucket creates the configured bucket when missing.
func (c *MinIOClient) EnsureBucket(ctx context.Context) error {
	exists, err := c.api.BucketExists(ctx, c.config.Bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to connect to minio")
	}
	if exists {
		return nil
	}
	if err := c.api.MakeBucket(ctx, c.config.Bucket, c.config.Region); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to create bucket").WithDetail(c.config.Bucket)
	}
	c.logger.Info("Created bucket", logging.String("bucket", c.config.Bucket))
	return nil
}

// HealthStatus reports endpoint reachability.
type HealthStatus struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// HealthCheck probes the configured bucket.
func (c *MinIOClient) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	start := time.Now()
	_, err := c.api.BucketExists(ctx, c.config.Bucket)
	status := &HealthStatus{Healthy: err == nil, Latency: time.Since(start)}
	if err != nil {
		status.Error = err.Error()
		return status, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "minio health check failed")
	}
	return status, nil
}

// Bucket returns the configured bucket name.
func (c *MinIOClient) Bucket() string {
	return c.config.Bucket
}

// sdkAPI adapts *minio.Client to ObjectAPI.
type sdkAPI struct {
	c *minio.Client
}

func (a *sdkAPI) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return a.c.BucketExists(ctx, bucket)
}

func (a *sdkAPI) MakeBucket(ctx context.Context, bucket, region string) error {
	return a.c.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region})
}

func (a *sdkAPI) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error {
	_, err := a.c.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	return err
}

func (a *sdkAPI) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	return a.c.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
}

func (a *sdkAPI) StatObject(ctx context.Context, bucket, key string) (minio.ObjectInfo, error) {
	return a.c.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
}

func (a *sdkAPI) ListObjects(ctx context.Context, bucket, prefix string) <-chan minio.ObjectInfo {
	return a.c.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true})
}

//Personal.AI order the ending
