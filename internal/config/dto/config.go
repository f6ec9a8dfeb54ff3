package dto

import (
	"fmt"
	"time"
)

// ApplicationConfig is the root configuration structure.
type ApplicationConfig struct {
	Application   ApplicationInfo     `mapstructure:"application"`
	Buffer        BufferConfig        `mapstructure:"buffer"`
	Forward       ForwardConfig       `mapstructure:"forward"`
	Archive       ArchiveConfig       `mapstructure:"archive"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Shutdown      ShutdownConfig      `mapstructure:"shutdown"`
}

// ApplicationInfo contains application metadata.
type ApplicationInfo struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// BufferConfig contains the chunked buffer core's sizing and backend
// settings.
type BufferConfig struct {
	Backend            string  `mapstructure:"backend"`
	SpoolDir           string  `mapstructure:"spool_dir"`
	ChunkLimitSize     int64   `mapstructure:"chunk_limit_size"`
	TotalLimitSize     int64   `mapstructure:"total_limit_size"`
	QueueLengthLimit   int     `mapstructure:"queue_length_limit"`
	ChunkRecordsLimit  int     `mapstructure:"chunk_records_limit"`
	ChunkFullThreshold float64 `mapstructure:"chunk_full_threshold"`
}

// ForwardConfig contains the Kafka forwarder's connection and topic
// settings.
type ForwardConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	BootstrapServers []string `mapstructure:"bootstrap_servers"`
	Topic            string   `mapstructure:"topic"`
	SecurityProtocol string   `mapstructure:"security_protocol"`
	SASLMechanism    string   `mapstructure:"sasl_mechanism"`
	SASLUsername     string   `mapstructure:"sasl_username"`
	SASLPassword     string   `mapstructure:"sasl_password"`
	RetryBackoffMS   int      `mapstructure:"retry_backoff_ms"`
}

// ArchiveConfig contains the durable-archive settings: which backend
// purged chunks are copied to before they are discarded, and that
// backend's connection settings.
type ArchiveConfig struct {
	Enabled bool        `mapstructure:"enabled"`
	Backend string      `mapstructure:"backend"`
	S3      S3Config    `mapstructure:"s3"`
	Azure   AzureConfig `mapstructure:"azure"`
	GCS     GCSConfig   `mapstructure:"gcs"`
}

// S3Config contains AWS S3 configuration.
type S3Config struct {
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	BasePath     string `mapstructure:"base_path"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	SSEEnabled   bool   `mapstructure:"sse_enabled"`
	SSEKMSKeyID  string `mapstructure:"sse_kms_key_id"`
}

// AzureConfig contains Azure Blob Storage configuration.
type AzureConfig struct {
	AccountName        string `mapstructure:"account_name"`
	Container          string `mapstructure:"container"`
	BasePath           string `mapstructure:"base_path"`
	UseManagedIdentity bool   `mapstructure:"use_managed_identity"`
}

// GCSConfig contains Google Cloud Storage configuration.
type GCSConfig struct {
	Bucket               string `mapstructure:"bucket"`
	ProjectID            string `mapstructure:"project_id"`
	BasePath             string `mapstructure:"base_path"`
	CredentialsFile      string `mapstructure:"credentials_file"`
	CredentialsJSON      string `mapstructure:"credentials_json"`
	UseDefaultCredential bool   `mapstructure:"use_default_credential"`
}

// ObservabilityConfig contains observability settings.
type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Health  HealthConfig  `mapstructure:"health"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig contains metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// HealthConfig contains health check settings.
type HealthConfig struct {
	Port          int    `mapstructure:"port"`
	LivenessPath  string `mapstructure:"liveness_path"`
	ReadinessPath string `mapstructure:"readiness_path"`
}

// ShutdownConfig contains shutdown settings.
type ShutdownConfig struct {
	GracePeriodSeconds  time.Duration `mapstructure:"grace_period_seconds"`
	ForceTimeoutSeconds time.Duration `mapstructure:"force_timeout_seconds"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.Application.Name == "" {
		return fmt.Errorf("application name is required")
	}
	if c.Buffer.Backend == "" {
		return fmt.Errorf("buffer backend is required")
	}
	if c.Buffer.Backend == "file" && c.Buffer.SpoolDir == "" {
		return fmt.Errorf("buffer spool_dir is required when backend is file")
	}
	if c.Buffer.ChunkLimitSize <= 0 {
		return fmt.Errorf("buffer chunk_limit_size must be positive")
	}
	if c.Buffer.ChunkFullThreshold <= 0 || c.Buffer.ChunkFullThreshold > 1 {
		return fmt.Errorf("buffer chunk_full_threshold must be in (0, 1]")
	}
	if c.Forward.Enabled && len(c.Forward.BootstrapServers) == 0 {
		return fmt.Errorf("forward bootstrap servers are required when forward is enabled")
	}
	if c.Forward.Enabled && c.Forward.Topic == "" {
		return fmt.Errorf("forward topic is required when forward is enabled")
	}
	if c.Archive.Enabled && c.Archive.Backend == "" {
		return fmt.Errorf("archive backend is required when archive is enabled")
	}
	return nil
}

// Validate validates S3 configuration.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("s3 bucket is required")
	}
	if c.Region == "" {
		return fmt.Errorf("s3 region is required")
	}
	return nil
}

// Validate validates Azure configuration.
func (c *AzureConfig) Validate() error {
	if c.AccountName == "" {
		return fmt.Errorf("azure account name is required")
	}
	if c.Container == "" {
		return fmt.Errorf("azure container is required")
	}
	return nil
}

// Validate validates GCS configuration.
func (c *GCSConfig) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("gcs bucket is required")
	}
	return nil
}
