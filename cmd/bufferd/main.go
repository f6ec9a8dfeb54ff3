package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jittakal/chunkbuffer/internal/archive"
	"github.com/jittakal/chunkbuffer/internal/buffer"
	"github.com/jittakal/chunkbuffer/internal/config"
	"github.com/jittakal/chunkbuffer/internal/config/dto"
	"github.com/jittakal/chunkbuffer/internal/filebackend"
	"github.com/jittakal/chunkbuffer/internal/forward"
	"github.com/jittakal/chunkbuffer/internal/membackend"
	"github.com/jittakal/chunkbuffer/internal/observability"
	"github.com/jittakal/chunkbuffer/internal/server"
	pkgarchive "github.com/jittakal/chunkbuffer/pkg/archive"
	"github.com/jittakal/chunkbuffer/pkg/chunk"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	var cfgPath string
	switch {
	case *configPath != "":
		cfgPath = *configPath
	case os.Getenv("CONFIG_PATH") != "":
		cfgPath = os.Getenv("CONFIG_PATH")
	default:
		cfgPath = "config/application.yaml"
	}

	loader := config.NewLoader()
	cfg, err := loader.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
	})
	logger.Info("starting chunkbuffer",
		"version", cfg.Application.Version,
		"environment", cfg.Application.Environment,
	)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	var cleanupFuncs []func() error
	addCleanup := func(name string, fn func() error) {
		cleanupFuncs = append(cleanupFuncs, fn)
		logger.Debug("registered cleanup", "component", name)
	}

	backend, err := newBackend(cfg.Buffer, logger)
	if err != nil {
		return fmt.Errorf("failed to create buffer backend: %w", err)
	}

	bufOpts := []buffer.Option{buffer.WithLogger(logger), buffer.WithMetrics(metrics)}

	if cfg.Archive.Enabled {
		archiver, err := archive.New(cfg.Archive, logger, metrics)
		if err != nil {
			return fmt.Errorf("failed to create archiver: %w", err)
		}
		addCleanup("archiver", archiver.Close)
		bufOpts = append(bufOpts, buffer.WithArchiveFunc(archiveHook(archiver, logger)))
	}

	buf := buffer.New(backend, buffer.Config{
		ChunkLimitSize:     cfg.Buffer.ChunkLimitSize,
		TotalLimitSize:     cfg.Buffer.TotalLimitSize,
		QueueLengthLimit:   cfg.Buffer.QueueLengthLimit,
		ChunkRecordsLimit:  cfg.Buffer.ChunkRecordsLimit,
		ChunkFullThreshold: cfg.Buffer.ChunkFullThreshold,
	}, bufOpts...)

	if err := buf.Start(); err != nil {
		return fmt.Errorf("failed to start buffer: %w", err)
	}
	addCleanup("buffer", buf.Close)

	if cfg.Forward.Enabled {
		fwd, err := forward.NewFromConfig(cfg.Forward, buf, logger, metrics)
		if err != nil {
			return fmt.Errorf("failed to create forwarder: %w", err)
		}
		addCleanup("forwarder", fwd.Close)

		ctx, cancel := context.WithCancel(context.Background())
		addCleanup("forwarder-loop", func() error {
			cancel()
			return nil
		})
		go func() {
			if err := fwd.Run(ctx); err != nil {
				logger.Error("forwarder stopped", "error", err)
			}
		}()
	}

	healthChecker := server.NewBufferHealthChecker(buf, buf.QueuedRecords)

	httpServer := server.NewServer(
		cfg.Observability.Health.Port,
		cfg.Observability.Metrics.Port,
		healthChecker,
		registry,
		logger,
	)
	if err := httpServer.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	addCleanup("http-server", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(ctx)
	})

	logger.Info("chunkbuffer started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("received termination signal, shutting down")

	shutdown(cleanupFuncs, cfg.Shutdown, logger)
	logger.Info("chunkbuffer stopped")
	return nil
}

// archiveHook adapts an archive.Archiver into a buffer.ArchiveFunc:
// records are joined with newlines into a single payload and archived
// under a bounded timeout. Failures are logged, never returned, so they
// cannot make PurgeChunk fail or resurrect the chunk; PurgeChunk does wait
// for the upload, up to that timeout.
func archiveHook(archiver pkgarchive.Archiver, logger *slog.Logger) buffer.ArchiveFunc {
	return func(id, tag string, records [][]byte) {
		data := bytes.Join(records, []byte("\n"))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		location, err := archiver.Archive(ctx, id, tag, data)
		if err != nil {
			logger.Error("archive failed", "chunk_id", id, "tag", tag, "error", err)
			return
		}
		logger.Debug("archived chunk", "chunk_id", id, "tag", tag, "location", location)
	}
}

func newBackend(cfg dto.BufferConfig, logger *slog.Logger) (chunk.Backend, error) {
	switch cfg.Backend {
	case "", "memory":
		return membackend.New(), nil
	case "file":
		logger.Info("using file-backed buffer", "spool_dir", cfg.SpoolDir)
		return filebackend.New(cfg.SpoolDir)
	default:
		return nil, fmt.Errorf("unsupported buffer backend: %s", cfg.Backend)
	}
}

func shutdown(cleanupFuncs []func() error, cfg dto.ShutdownConfig, logger *slog.Logger) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := len(cleanupFuncs) - 1; i >= 0; i-- {
			if err := cleanupFuncs[i](); err != nil {
				logger.Error("cleanup failed", "error", err)
			}
		}
	}()

	// grace_period_seconds is a count of seconds; Viper decodes the bare
	// integer into the Duration's nanosecond value.
	grace := cfg.GracePeriodSeconds * time.Second
	if grace <= 0 {
		grace = 10 * time.Second
	}

	select {
	case <-done:
	case <-time.After(grace):
		logger.Warn("shutdown grace period exceeded, exiting anyway")
	}
}
