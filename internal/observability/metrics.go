package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus series the daemon exposes: the buffer
// core plus the forward (Kafka) and archive (object storage) pipeline
// stages built around it. It satisfies internal/buffer.MetricsRecorder
// directly, so a Buffer can be handed a *Metrics as its recorder.
type Metrics struct {
	StageBytes    prometheus.Gauge
	QueueBytes    prometheus.Gauge
	QueuedChunks  prometheus.Gauge
	WriteTotal    *prometheus.CounterVec
	WriteDuration prometheus.Histogram
	Overflow      prometheus.Counter
	ChunkOverflow prometheus.Counter
	SplitRetries  prometheus.Counter
	Takebacks     prometheus.Counter

	ForwardPublished       prometheus.Counter
	ForwardPublishDuration prometheus.Histogram
	ForwardPublishErrors   *prometheus.CounterVec

	ArchiveUploaded       *prometheus.CounterVec
	ArchiveUploadDuration *prometheus.HistogramVec
	ArchiveUploadErrors   *prometheus.CounterVec
}

// NewMetrics creates and registers every series against registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		StageBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "buffer_stage_bytes",
			Help: "Combined byte size of every currently staged chunk.",
		}),
		QueueBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "buffer_queue_bytes",
			Help: "Combined byte size of every queued chunk, including dequeued chunks not yet purged.",
		}),
		QueuedChunks: factory.NewGauge(prometheus.GaugeOpts{
			Name: "buffer_queued_chunks",
			Help: "Number of chunks currently sitting on the queue.",
		}),
		WriteTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "buffer_write_total",
			Help: "Total number of Write calls, by outcome.",
		}, []string{"status"}),
		WriteDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "buffer_write_duration_seconds",
			Help:    "Duration of Write calls.",
			Buckets: prometheus.DefBuckets,
		}),
		Overflow: factory.NewCounter(prometheus.CounterOpts{
			Name: "buffer_overflow_total",
			Help: "Total number of writes rejected because the buffer was at its total size limit.",
		}),
		ChunkOverflow: factory.NewCounter(prometheus.CounterOpts{
			Name: "buffer_chunk_overflow_total",
			Help: "Total number of single records too large to fit any chunk.",
		}),
		SplitRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "buffer_split_retries_total",
			Help: "Total number of step-by-step split retries, across all writes.",
		}),
		Takebacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "buffer_takeback_total",
			Help: "Total number of chunks returned to the queue head via take-back.",
		}),

		ForwardPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "forward_published_total",
			Help: "Total number of chunks successfully published downstream.",
		}),
		ForwardPublishDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "forward_publish_duration_seconds",
			Help:    "Duration of a single chunk publish.",
			Buckets: prometheus.DefBuckets,
		}),
		ForwardPublishErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "forward_publish_errors_total",
			Help: "Total number of publish failures, by reason.",
		}, []string{"reason"}),

		ArchiveUploaded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "archive_uploaded_total",
			Help: "Total number of chunks archived, by backend.",
		}, []string{"backend"}),
		ArchiveUploadDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "archive_upload_duration_seconds",
			Help:    "Duration of an archive upload.",
			Buckets: prometheus.DefBuckets,
		}, []string{"backend"}),
		ArchiveUploadErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "archive_upload_errors_total",
			Help: "Total number of failed archive uploads, by backend.",
		}, []string{"backend"}),
	}
}

// The methods below implement internal/buffer.MetricsRecorder.

func (m *Metrics) SetStageBytes(n float64)   { m.StageBytes.Set(n) }
func (m *Metrics) SetQueueBytes(n float64)   { m.QueueBytes.Set(n) }
func (m *Metrics) SetQueuedChunks(n float64) { m.QueuedChunks.Set(n) }

func (m *Metrics) IncWriteTotal(status string)            { m.WriteTotal.WithLabelValues(status).Inc() }
func (m *Metrics) ObserveWriteDuration(seconds float64)   { m.WriteDuration.Observe(seconds) }
func (m *Metrics) IncOverflow()                           { m.Overflow.Inc() }
func (m *Metrics) IncChunkOverflow()                      { m.ChunkOverflow.Inc() }
func (m *Metrics) IncSplitRetry()                         { m.SplitRetries.Inc() }
func (m *Metrics) IncTakeback()                           { m.Takebacks.Inc() }

// IncForwardPublished records one successful downstream publish.
func (m *Metrics) IncForwardPublished() { m.ForwardPublished.Inc() }

// ObserveForwardPublishDuration records how long one publish took.
func (m *Metrics) ObserveForwardPublishDuration(seconds float64) {
	m.ForwardPublishDuration.Observe(seconds)
}

// IncForwardPublishError records one failed publish, by reason.
func (m *Metrics) IncForwardPublishError(reason string) {
	m.ForwardPublishErrors.WithLabelValues(reason).Inc()
}

// IncArchiveUploaded records one successful archive upload.
func (m *Metrics) IncArchiveUploaded(backend string) {
	m.ArchiveUploaded.WithLabelValues(backend).Inc()
}

// ObserveArchiveUploadDuration records how long one upload took.
func (m *Metrics) ObserveArchiveUploadDuration(backend string, seconds float64) {
	m.ArchiveUploadDuration.WithLabelValues(backend).Observe(seconds)
}

// IncArchiveUploadError records one failed archive upload.
func (m *Metrics) IncArchiveUploadError(backend string) {
	m.ArchiveUploadErrors.WithLabelValues(backend).Inc()
}
