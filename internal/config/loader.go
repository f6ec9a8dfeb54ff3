package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jittakal/chunkbuffer/internal/config/dto"
	"github.com/spf13/viper"
)

// Loader handles configuration loading and validation.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// Load loads configuration from file and environment variables.
func (l *Loader) Load(path string) (*dto.ApplicationConfig, error) {
	l.setDefaults()

	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Expand environment variables in config values. Only expand if the
	// value contains a ${...} pattern.
	for _, key := range l.v.AllKeys() {
		value := l.v.GetString(key)
		if strings.Contains(value, "${") {
			l.v.Set(key, os.ExpandEnv(value))
		}
	}

	var config dto.ApplicationConfig
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func (l *Loader) setDefaults() {
	// Application defaults
	l.v.SetDefault("application.name", "chunkbuffer")
	l.v.SetDefault("application.version", "1.0.0")
	l.v.SetDefault("application.environment", "development")

	// Buffer defaults
	l.v.SetDefault("buffer.backend", "memory")
	l.v.SetDefault("buffer.spool_dir", "")
	l.v.SetDefault("buffer.chunk_limit_size", 8*1024*1024)
	l.v.SetDefault("buffer.total_limit_size", 512*1024*1024)
	l.v.SetDefault("buffer.queue_length_limit", 0)
	l.v.SetDefault("buffer.chunk_records_limit", 0)
	l.v.SetDefault("buffer.chunk_full_threshold", 0.95)

	// Forward defaults
	l.v.SetDefault("forward.enabled", false)
	l.v.SetDefault("forward.security_protocol", "PLAINTEXT")
	l.v.SetDefault("forward.sasl_mechanism", "")
	l.v.SetDefault("forward.retry_backoff_ms", 1000)

	// Archive defaults
	l.v.SetDefault("archive.enabled", false)
	l.v.SetDefault("archive.s3.use_path_style", false)
	l.v.SetDefault("archive.s3.sse_enabled", false)

	// Observability defaults
	l.v.SetDefault("observability.logging.level", "info")
	l.v.SetDefault("observability.logging.format", "json")
	l.v.SetDefault("observability.logging.output", "stdout")
	l.v.SetDefault("observability.metrics.enabled", true)
	l.v.SetDefault("observability.metrics.port", 9090)
	l.v.SetDefault("observability.metrics.path", "/metrics")
	l.v.SetDefault("observability.health.port", 8080)
	l.v.SetDefault("observability.health.liveness_path", "/health/live")
	l.v.SetDefault("observability.health.readiness_path", "/health/ready")

	// Shutdown defaults
	l.v.SetDefault("shutdown.grace_period_seconds", 30)
	l.v.SetDefault("shutdown.force_timeout_seconds", 60)
}

// Validate validates the configuration.
func (l *Loader) Validate(config *dto.ApplicationConfig) error {
	switch config.Buffer.Backend {
	case "memory", "file":
	default:
		return fmt.Errorf("unsupported buffer backend: %s", config.Buffer.Backend)
	}
	if config.Buffer.Backend == "file" && config.Buffer.SpoolDir == "" {
		return errors.New("buffer.spool_dir is required for file backend")
	}
	if config.Buffer.ChunkLimitSize <= 0 {
		return errors.New("buffer.chunk_limit_size must be positive")
	}

	if config.Forward.Enabled {
		if len(config.Forward.BootstrapServers) == 0 {
			return errors.New("forward.bootstrap_servers is required when forward is enabled")
		}
		if config.Forward.Topic == "" {
			return errors.New("forward.topic is required when forward is enabled")
		}
	}

	if config.Archive.Enabled {
		switch config.Archive.Backend {
		case "s3":
			if config.Archive.S3.Bucket == "" {
				return errors.New("archive.s3.bucket is required for S3 backend")
			}
			if config.Archive.S3.Region == "" {
				return errors.New("archive.s3.region is required for S3 backend")
			}
		case "azure":
			if config.Archive.Azure.AccountName == "" {
				return errors.New("archive.azure.account_name is required for Azure backend")
			}
			if config.Archive.Azure.Container == "" {
				return errors.New("archive.azure.container is required for Azure backend")
			}
		case "gcs":
			if config.Archive.GCS.Bucket == "" {
				return errors.New("archive.gcs.bucket is required for GCS backend")
			}
		default:
			return fmt.Errorf("unsupported archive backend: %s", config.Archive.Backend)
		}
	}

	// Port validation
	if config.Observability.Metrics.Port < 1 || config.Observability.Metrics.Port > 65535 {
		return fmt.Errorf("invalid metrics port: %d", config.Observability.Metrics.Port)
	}
	if config.Observability.Health.Port < 1 || config.Observability.Health.Port > 65535 {
		return fmt.Errorf("invalid health port: %d", config.Observability.Health.Port)
	}

	return nil
}
