package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/jittakal/chunkbuffer/internal/observability"
	"github.com/jittakal/chunkbuffer/pkg/archive"
)

var _ archive.Archiver = (*AzureArchiver)(nil)

// AzureConfig contains Azure Blob Storage configuration for the archiver.
type AzureConfig struct {
	AccountName string
	Container   string
	BasePath    string
}

// AzureArchiver implements archive.Archiver for Azure Blob Storage,
// authenticating with the ambient default credential chain (managed
// identity when running in Azure, environment variables or CLI login
// otherwise).
type AzureArchiver struct {
	client    *azblob.Client
	container string
	basePath  string
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewAzureArchiver creates a new Azure Blob archiver.
func NewAzureArchiver(cfg AzureConfig, logger *slog.Logger, metrics *observability.Metrics) (*AzureArchiver, error) {
	credential, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("create azure credential: %w", err)
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccountName)
	client, err := azblob.NewClient(serviceURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("create azure client: %w", err)
	}

	logger.Info("azure archiver created", "account", cfg.AccountName, "container", cfg.Container)

	return &AzureArchiver{
		client:    client,
		container: cfg.Container,
		basePath:  cfg.BasePath,
		logger:    logger,
		metrics:   metrics,
	}, nil
}

// Archive uploads data to the configured container under basePath/tag/id.
func (a *AzureArchiver) Archive(ctx context.Context, id string, tag string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("no data to archive")
	}

	start := time.Now()
	blobPath := objectKey(a.basePath, tag, id)

	if _, err := a.client.UploadBuffer(ctx, a.container, blobPath, data, nil); err != nil {
		if a.metrics != nil {
			a.metrics.IncArchiveUploadError("azure")
		}
		return "", fmt.Errorf("upload to azure blob: %w", err)
	}

	if a.metrics != nil {
		a.metrics.IncArchiveUploaded("azure")
		a.metrics.ObserveArchiveUploadDuration("azure", time.Since(start).Seconds())
	}
	a.logger.Info("archived chunk to azure", "container", a.container, "blob", blobPath, "bytes", len(data))

	return fmt.Sprintf("azure://%s/%s", a.container, blobPath), nil
}

// Close is a no-op: azblob.Client holds no resources to release.
func (a *AzureArchiver) Close() error {
	return nil
}
