package featuremill

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3ExporterConfig configures snapshot upload to S3 or S3-compatible storage.
type S3ExporterConfig struct {
	Bucket   string
	Region   string
	Endpoint string // For S3-compatible services (MinIO, etc.)
	// AccessKeyID for authentication. Prefer IAM roles, instance profiles,
	// or environment variables (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY)
	// instead of setting these directly. DO NOT commit credentials to
	// source control.
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string // Key prefix for all objects
	UsePathStyle    bool   // Use path-style addressing

	// MaxRetries is the max attempts per upload (default: 3).
	MaxRetries int
}

// S3Exporter uploads snapshots so partition outputs can be collected by an
// external orchestrator from shared object storage.
type S3Exporter struct {
	client *s3.Client
	config S3ExporterConfig
}

// NewS3Exporter creates an S3 exporter.
func NewS3Exporter(ctx context.Context, cfg S3ExporterConfig) (*S3Exporter, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(cfg.Region))
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.UsePathStyle
		})
	}

	return &S3Exporter{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		config: cfg,
	}, nil
}

// UploadSnapshot serializes the snapshot (optionally encrypted) and uploads
// it under the configured prefix. Transient failures are retried with
// exponential backoff.
func (e *S3Exporter) UploadSnapshot(ctx context.Context, key string, snap *Snapshot, enc *Encryptor) error {
	var buf bytes.Buffer
	if err := WriteSnapshot(&buf, snap, enc); err != nil {
		return err
	}
	return e.Upload(ctx, key, buf.Bytes())
}

// Upload puts raw bytes under the configured prefix.
func (e *S3Exporter) Upload(ctx context.Context, key string, data []byte) error {
	fullKey := e.config.Prefix + key
	backoff := 100 * time.Millisecond
	var lastErr error
	for attempt := 1; attempt <= e.config.MaxRetries; attempt++ {
		_, lastErr = e.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(e.config.Bucket),
			Key:    aws.String(fullKey),
			Body:   bytes.NewReader(data),
		})
		if lastErr == nil {
			return nil
		}
		if attempt == e.config.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("S3 put object failed after %d attempts: %w", e.config.MaxRetries, lastErr)
}
