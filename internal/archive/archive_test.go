package archive

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/jittakal/chunkbuffer/internal/config/dto"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		name     string
		basePath string
		tag      string
		id       string
		want     string
	}{
		{"no base path", "", "app.log", "abc123", "app.log/abc123.chunk"},
		{"with base path", "chunks", "app.log", "abc123", "chunks/app.log/abc123.chunk"},
		{"base path with trailing slash", "chunks/", "app.log", "abc123", "chunks/app.log/abc123.chunk"},
		{"empty tag", "chunks", "", "abc123", "chunks/untagged/abc123.chunk"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := objectKey(tt.basePath, tt.tag, tt.id); got != tt.want {
				t.Errorf("objectKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewS3Archiver(t *testing.T) {
	a, err := NewS3Archiver(S3Config{Bucket: "test-bucket", Region: "us-east-1"}, discardLogger(), nil)
	if err != nil {
		t.Fatalf("NewS3Archiver() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestS3Archiver_ArchiveRejectsEmptyData(t *testing.T) {
	a, err := NewS3Archiver(S3Config{Bucket: "test-bucket", Region: "us-east-1"}, discardLogger(), nil)
	if err != nil {
		t.Fatalf("NewS3Archiver() error = %v", err)
	}
	if _, err := a.Archive(context.Background(), "id", "tag", nil); err == nil {
		t.Error("expected an error for empty data")
	}
}

func TestNewGCSArchiver(t *testing.T) {
	a, err := NewGCSArchiver(GCSConfig{Bucket: "test-bucket", UseDefaultCredential: true}, discardLogger(), nil)
	if err != nil {
		t.Fatalf("NewGCSArchiver() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestNewAzureArchiver(t *testing.T) {
	a, err := NewAzureArchiver(AzureConfig{AccountName: "testaccount", Container: "chunks"}, discardLogger(), nil)
	if err != nil {
		t.Fatalf("NewAzureArchiver() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestFactory_New_UnsupportedBackend(t *testing.T) {
	cfg := dto.ArchiveConfig{Backend: "unsupported"}
	if _, err := New(cfg, discardLogger(), nil); err == nil {
		t.Error("expected an error for an unsupported archive backend")
	}
}

func TestFactory_New_S3(t *testing.T) {
	cfg := dto.ArchiveConfig{
		Backend: "s3",
		S3:      dto.S3Config{Bucket: "test-bucket", Region: "us-east-1"},
	}
	a, err := New(cfg, discardLogger(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, ok := a.(*S3Archiver); !ok {
		t.Errorf("New() returned %T, want *S3Archiver", a)
	}
}

func TestFactory_New_GCS(t *testing.T) {
	cfg := dto.ArchiveConfig{
		Backend: "gcs",
		GCS:     dto.GCSConfig{Bucket: "test-bucket", UseDefaultCredential: true},
	}
	a, err := New(cfg, discardLogger(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, ok := a.(*GCSArchiver); !ok {
		t.Errorf("New() returned %T, want *GCSArchiver", a)
	}
}

func TestFactory_New_Azure(t *testing.T) {
	cfg := dto.ArchiveConfig{
		Backend: "azure",
		Azure:   dto.AzureConfig{AccountName: "testaccount", Container: "chunks"},
	}
	a, err := New(cfg, discardLogger(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, ok := a.(*AzureArchiver); !ok {
		t.Errorf("New() returned %T, want *AzureArchiver", a)
	}
}
