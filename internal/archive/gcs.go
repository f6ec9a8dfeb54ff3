package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/jittakal/chunkbuffer/internal/observability"
	"github.com/jittakal/chunkbuffer/pkg/archive"
)

var _ archive.Archiver = (*GCSArchiver)(nil)

// GCSConfig contains Google Cloud Storage configuration for the archiver.
type GCSConfig struct {
	Bucket               string
	BasePath             string
	CredentialsFile      string
	CredentialsJSON      string
	UseDefaultCredential bool
}

// GCSArchiver implements archive.Archiver for Google Cloud Storage.
type GCSArchiver struct {
	client   *storage.Client
	bucket   string
	basePath string
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewGCSArchiver creates a new Google Cloud Storage archiver.
func NewGCSArchiver(cfg GCSConfig, logger *slog.Logger, metrics *observability.Metrics) (*GCSArchiver, error) {
	ctx := context.Background()

	var opts []option.ClientOption
	switch {
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	case cfg.UseDefaultCredential:
		logger.Info("using default GCP credentials for archiver")
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}

	logger.Info("gcs archiver created", "bucket", cfg.Bucket)

	return &GCSArchiver{
		client:   client,
		bucket:   cfg.Bucket,
		basePath: cfg.BasePath,
		logger:   logger,
		metrics:  metrics,
	}, nil
}

// Archive uploads data to the configured bucket under basePath/tag/id.
func (a *GCSArchiver) Archive(ctx context.Context, id string, tag string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("no data to archive")
	}

	start := time.Now()
	objectPath := objectKey(a.basePath, tag, id)

	w := a.client.Bucket(a.bucket).Object(objectPath).NewWriter(ctx)
	w.ContentType = "application/octet-stream"

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		w.Close()
		if a.metrics != nil {
			a.metrics.IncArchiveUploadError("gcs")
		}
		return "", fmt.Errorf("write to gcs: %w", err)
	}
	if err := w.Close(); err != nil {
		if a.metrics != nil {
			a.metrics.IncArchiveUploadError("gcs")
		}
		return "", fmt.Errorf("close gcs writer: %w", err)
	}

	if a.metrics != nil {
		a.metrics.IncArchiveUploaded("gcs")
		a.metrics.ObserveArchiveUploadDuration("gcs", time.Since(start).Seconds())
	}
	a.logger.Info("archived chunk to gcs", "bucket", a.bucket, "object", objectPath, "bytes", len(data))

	return fmt.Sprintf("gs://%s/%s", a.bucket, objectPath), nil
}

// Close releases the underlying GCS client.
func (a *GCSArchiver) Close() error {
	return a.client.Close()
}
