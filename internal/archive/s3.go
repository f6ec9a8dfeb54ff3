// Package archive implements pkg/archive.Archiver for S3, Azure Blob, and
// Google Cloud Storage, uploading a purged chunk's raw bytes directly
// rather than encoding to a temporary file first.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/jittakal/chunkbuffer/internal/observability"
	"github.com/jittakal/chunkbuffer/pkg/archive"
)

var _ archive.Archiver = (*S3Archiver)(nil)

// S3Config contains AWS S3 configuration for the archiver.
type S3Config struct {
	Bucket       string
	Region       string
	BasePath     string
	Endpoint     string
	UsePathStyle bool
	SSEEnabled   bool
	SSEKMSKeyID  string
}

// S3Archiver implements archive.Archiver for AWS S3, using a multipart
// uploader for large chunks.
type S3Archiver struct {
	client      *s3.Client
	uploader    *manager.Uploader
	bucket      string
	basePath    string
	sseEnabled  bool
	sseKMSKeyID string
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// NewS3Archiver creates a new S3 archiver.
func NewS3Archiver(cfg S3Config, logger *slog.Logger, metrics *observability.Metrics) (*S3Archiver, error) {
	ctx := context.Background()
	awsConfig, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 10 * 1024 * 1024
		u.Concurrency = 5
	})

	logger.Info("s3 archiver created", "bucket", cfg.Bucket, "region", cfg.Region)

	return &S3Archiver{
		client:      client,
		uploader:    uploader,
		bucket:      cfg.Bucket,
		basePath:    cfg.BasePath,
		sseEnabled:  cfg.SSEEnabled,
		sseKMSKeyID: cfg.SSEKMSKeyID,
		logger:      logger,
		metrics:     metrics,
	}, nil
}

// Archive uploads data to S3 under basePath/tag/id.
func (a *S3Archiver) Archive(ctx context.Context, id string, tag string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("no data to archive")
	}

	start := time.Now()
	key := objectKey(a.basePath, tag, id)

	input := &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if a.sseEnabled {
		if a.sseKMSKeyID != "" {
			input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
			input.SSEKMSKeyId = aws.String(a.sseKMSKeyID)
		} else {
			input.ServerSideEncryption = types.ServerSideEncryptionAes256
		}
	}

	if _, err := a.uploader.Upload(ctx, input); err != nil {
		if a.metrics != nil {
			a.metrics.IncArchiveUploadError("s3")
		}
		return "", fmt.Errorf("upload to s3: %w", err)
	}

	if a.metrics != nil {
		a.metrics.IncArchiveUploaded("s3")
		a.metrics.ObserveArchiveUploadDuration("s3", time.Since(start).Seconds())
	}
	a.logger.Info("archived chunk to s3", "bucket", a.bucket, "key", key, "bytes", len(data))

	return fmt.Sprintf("s3://%s/%s", a.bucket, key), nil
}

// Close is a no-op for S3: the SDK client holds no resources to release.
func (a *S3Archiver) Close() error {
	return nil
}

func objectKey(basePath, tag, id string) string {
	prefix := basePath
	if prefix != "" && prefix[len(prefix)-1] != '/' {
		prefix += "/"
	}
	if tag == "" {
		tag = "untagged"
	}
	return fmt.Sprintf("%s%s/%s.chunk", prefix, tag, id)
}
