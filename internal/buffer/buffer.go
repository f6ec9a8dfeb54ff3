package buffer

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/jittakal/chunkbuffer/internal/metadata"
	"github.com/jittakal/chunkbuffer/pkg/chunk"
)

// MetricsRecorder is the subset of observability.Metrics the buffer
// reports against. Defined here so this package does not import
// internal/observability (avoiding an import cycle and keeping the
// dependency one-directional).
type MetricsRecorder interface {
	SetStageBytes(n float64)
	SetQueueBytes(n float64)
	SetQueuedChunks(n float64)
	IncWriteTotal(status string)
	ObserveWriteDuration(seconds float64)
	IncOverflow()
	IncChunkOverflow()
	IncSplitRetry()
	IncTakeback()
}

type noopMetrics struct{}

func (noopMetrics) SetStageBytes(float64)        {}
func (noopMetrics) SetQueueBytes(float64)        {}
func (noopMetrics) SetQueuedChunks(float64)       {}
func (noopMetrics) IncWriteTotal(string)          {}
func (noopMetrics) ObserveWriteDuration(float64)  {}
func (noopMetrics) IncOverflow()                  {}
func (noopMetrics) IncChunkOverflow()             {}
func (noopMetrics) IncSplitRetry()                {}
func (noopMetrics) IncTakeback()                  {}

// ArchiveFunc is an optional post-purge hook: it receives a purged
// chunk's unique id, routing tag, and committed records, read before the
// backend released them. It is called synchronously from PurgeChunk but
// outside the buffer-global lock, so a slow or failing archiver never
// blocks other buffer operations nor resurrects the chunk. Defined here,
// not as an interface imported from pkg/archive, so the buffer core
// stays free of any dependency on the archiver package.
type ArchiveFunc func(id, tag string, records [][]byte)

// Buffer is the public façade (component G): the chunked
// staging-and-queueing core. A Buffer must be started with Start before
// any other method is called, and no method may be called after Close
// or Terminate.
type Buffer struct {
	mu sync.Mutex // the buffer-global lock; guards everything below

	backend  chunk.Backend
	cfg      Config
	registry *metadata.Registry
	logger   *slog.Logger
	metrics  MetricsRecorder
	archive  ArchiveFunc

	stage     map[*chunk.Metadata]chunk.Chunk
	queue     []chunk.Chunk
	dequeued  map[string]chunk.Chunk
	queuedNum map[*chunk.Metadata]int

	stageSize int64
	queueSize int64

	started bool
	closed  bool
}

// Option customizes a Buffer at construction time.
type Option func(*Buffer)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Buffer) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder. Defaults to a no-op recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(b *Buffer) {
		if m != nil {
			b.metrics = m
		}
	}
}

// WithArchiveFunc registers a post-purge archive hook. Unset by default,
// in which case PurgeChunk skips the read-records step entirely.
func WithArchiveFunc(fn ArchiveFunc) Option {
	return func(b *Buffer) {
		b.archive = fn
	}
}

// New constructs a Buffer over backend with cfg. Call Start before use.
func New(backend chunk.Backend, cfg Config, opts ...Option) *Buffer {
	b := &Buffer{
		backend:   backend,
		cfg:       cfg.normalize(),
		registry:  metadata.NewRegistry(),
		logger:    slog.Default(),
		metrics:   noopMetrics{},
		stage:     make(map[*chunk.Metadata]chunk.Chunk),
		dequeued:  make(map[string]chunk.Chunk),
		queuedNum: make(map[*chunk.Metadata]int),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Metadata returns the canonical Metadata instance for the given
// triple, interning it on first sight.
func (b *Buffer) Metadata(timeKey, tag string, variables map[string]string) *chunk.Metadata {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.registry.Metadata(timeKey, tag, variables)
}

// MetadataList returns a snapshot of all known metadata.
func (b *Buffer) MetadataList() []*chunk.Metadata {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.registry.List()
}

// Running reports whether the buffer has been started and not yet
// closed, for use by a health checker's liveness probe.
func (b *Buffer) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.started && !b.closed
}

// Storable reports whether the buffer can currently admit a write
// without overflowing TotalLimitSize.
func (b *Buffer) Storable() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.storableLocked()
}

// Queued reports whether any chunk is queued, optionally scoped to one
// metadata.
func (b *Buffer) Queued(m *chunk.Metadata) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if m == nil {
		return len(b.queue) > 0
	}
	return b.queuedNum[m] > 0
}

// QueuedRecords sums Size() across every currently queued chunk.
func (b *Buffer) QueuedRecords() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := 0
	for _, c := range b.queue {
		total += c.Size()
	}
	return total
}

func (b *Buffer) requireOpenLocked() error {
	if b.closed {
		return ErrClosed
	}
	if !b.started {
		return fmt.Errorf("buffer: Start was not called")
	}
	return nil
}
