package archive

import (
	"fmt"
	"log/slog"

	"github.com/jittakal/chunkbuffer/internal/config/dto"
	"github.com/jittakal/chunkbuffer/internal/observability"
	"github.com/jittakal/chunkbuffer/pkg/archive"
)

// New builds the archive.Archiver configured by cfg.Archive. cfg.Archive.Enabled
// is assumed true; callers decide whether to build one at all.
func New(cfg dto.ArchiveConfig, logger *slog.Logger, metrics *observability.Metrics) (archive.Archiver, error) {
	switch cfg.Backend {
	case "s3":
		return NewS3Archiver(S3Config{
			Bucket:       cfg.S3.Bucket,
			Region:       cfg.S3.Region,
			BasePath:     cfg.S3.BasePath,
			Endpoint:     cfg.S3.Endpoint,
			UsePathStyle: cfg.S3.UsePathStyle,
			SSEEnabled:   cfg.S3.SSEEnabled,
			SSEKMSKeyID:  cfg.S3.SSEKMSKeyID,
		}, logger, metrics)
	case "azure":
		return NewAzureArchiver(AzureConfig{
			AccountName: cfg.Azure.AccountName,
			Container:   cfg.Azure.Container,
			BasePath:    cfg.Azure.BasePath,
		}, logger, metrics)
	case "gcs":
		return NewGCSArchiver(GCSConfig{
			Bucket:               cfg.GCS.Bucket,
			BasePath:             cfg.GCS.BasePath,
			CredentialsFile:      cfg.GCS.CredentialsFile,
			CredentialsJSON:      cfg.GCS.CredentialsJSON,
			UseDefaultCredential: cfg.GCS.UseDefaultCredential,
		}, logger, metrics)
	default:
		return nil, fmt.Errorf("unsupported archive backend: %s", cfg.Backend)
	}
}
