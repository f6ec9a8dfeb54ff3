// Package forward implements pkg/forward.Forwarder using Sarama,
// transmitting each dequeued chunk's committed records to a single Kafka
// topic and purging or taking it back on the publish outcome.
package forward

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/aws/aws-msk-iam-sasl-signer-go/signer"

	"github.com/jittakal/chunkbuffer/internal/errors"
	"github.com/jittakal/chunkbuffer/internal/observability"
	"github.com/jittakal/chunkbuffer/pkg/chunk"
	"github.com/jittakal/chunkbuffer/pkg/forward"
)

var _ forward.Forwarder = (*KafkaForwarder)(nil)

// syncProducer is the subset of sarama.SyncProducer the forwarder uses,
// narrowed so tests can substitute a fake without satisfying Sarama's
// full (and version-sensitive) transactional producer surface.
type syncProducer interface {
	SendMessages(msgs []*sarama.ProducerMessage) error
	Close() error
}

// Config contains Kafka producer configuration for the forwarder.
type Config struct {
	BootstrapServers []string
	Topic            string
	SecurityProtocol string
	SASLMechanism    string
	SASLUsername     string
	SASLPassword     string
	RetryBackoff     time.Duration
}

// KafkaForwarder implements forward.Forwarder using a Sarama sync
// producer. Run polls the buffer's queue, publishes each chunk's
// records as a single message per record, and reports the outcome back
// to the buffer via PurgeChunk or TakebackChunk.
type KafkaForwarder struct {
	producer syncProducer
	dequeuer forward.Dequeuer
	topic    string
	backoff  time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics
	closed   chan struct{}
}

// New creates a new Kafka forwarder.
func New(cfg Config, dequeuer forward.Dequeuer, logger *slog.Logger, metrics *observability.Metrics) (*KafkaForwarder, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V2_8_0_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 5
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Idempotent = true
	saramaConfig.Net.MaxOpenRequests = 1

	if err := configureSecurity(saramaConfig, cfg); err != nil {
		return nil, fmt.Errorf("configure security: %w", err)
	}

	producer, err := sarama.NewSyncProducer(cfg.BootstrapServers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create sync producer: %w", err)
	}

	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	logger.Info("kafka forwarder created", "bootstrap_servers", cfg.BootstrapServers, "topic", cfg.Topic)

	return &KafkaForwarder{
		producer: producer,
		dequeuer: dequeuer,
		topic:    cfg.Topic,
		backoff:  backoff,
		logger:   logger,
		metrics:  metrics,
		closed:   make(chan struct{}),
	}, nil
}

// Run polls for queued chunks and publishes them until ctx is done or
// Close is called.
func (f *KafkaForwarder) Run(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-f.closed:
			return errors.ErrForwarderClosed
		case <-ticker.C:
			for f.forwardOne(ctx) {
			}
		}
	}
}

// forwardOne dequeues and publishes a single chunk. It reports whether a
// chunk was available, so Run can drain the queue between ticks instead
// of waiting for the next one.
func (f *KafkaForwarder) forwardOne(ctx context.Context) bool {
	c, ok := f.dequeuer.DequeueChunk()
	if !ok {
		return false
	}

	if err := f.publish(ctx, c); err != nil {
		f.logger.Warn("publish failed, taking chunk back", "chunk_id", c.UniqueID(), "error", err)
		if f.metrics != nil {
			f.metrics.IncForwardPublishError(publishErrorReason(err))
		}
		f.dequeuer.TakebackChunk(c.UniqueID())
		time.Sleep(f.backoff)
		return true
	}

	if err := f.dequeuer.PurgeChunk(c.UniqueID()); err != nil {
		f.logger.Warn("purge failed after successful publish", "chunk_id", c.UniqueID(), "error", err)
	}
	return true
}

// publish sends every record of c as its own Kafka message, tagged with
// the chunk's routing tag as the message key.
func (f *KafkaForwarder) publish(ctx context.Context, c chunk.Chunk) error {
	reader, ok := c.(chunk.RecordReader)
	if !ok {
		return fmt.Errorf("chunk %s does not support reading records", c.UniqueID())
	}

	records, err := reader.Records()
	if err != nil {
		return &errors.PublishError{ChunkID: c.UniqueID(), Topic: f.topic, Err: err}
	}

	start := time.Now()
	tag := c.Metadata().Tag

	messages := make([]*sarama.ProducerMessage, 0, len(records))
	for _, record := range records {
		messages = append(messages, &sarama.ProducerMessage{
			Topic: f.topic,
			Key:   sarama.StringEncoder(tag),
			Value: sarama.ByteEncoder(record),
		})
	}

	if len(messages) == 0 {
		return nil
	}

	if err := f.producer.SendMessages(messages); err != nil {
		return &errors.PublishError{ChunkID: c.UniqueID(), Topic: f.topic, Err: err}
	}

	if f.metrics != nil {
		f.metrics.IncForwardPublished()
		f.metrics.ObserveForwardPublishDuration(time.Since(start).Seconds())
	}

	return nil
}

// Close stops Run and closes the underlying producer.
func (f *KafkaForwarder) Close() error {
	select {
	case <-f.closed:
		return nil
	default:
		close(f.closed)
	}
	return f.producer.Close()
}

func publishErrorReason(err error) string {
	if errors.IsRetryable(err) {
		return "retryable"
	}
	return "fatal"
}

// mskAccessTokenProvider implements sarama.AccessTokenProvider for AWS
// MSK IAM authentication.
type mskAccessTokenProvider struct {
	region string
}

func (m *mskAccessTokenProvider) Token() (*sarama.AccessToken, error) {
	token, expiryMs, err := signer.GenerateAuthToken(context.Background(), m.region)
	if err != nil {
		return nil, fmt.Errorf("generate MSK IAM token: %w", err)
	}
	return &sarama.AccessToken{
		Token:      token,
		Extensions: map[string]string{"expiry": fmt.Sprintf("%d", expiryMs)},
	}, nil
}

func configureSecurity(saramaConfig *sarama.Config, cfg Config) error {
	switch cfg.SecurityProtocol {
	case "", "PLAINTEXT":
		return nil

	case "SASL_PLAINTEXT", "SASL_SSL":
		saramaConfig.Net.SASL.Enable = true

		switch cfg.SASLMechanism {
		case "PLAIN":
			saramaConfig.Net.SASL.Mechanism = sarama.SASLTypePlaintext
			saramaConfig.Net.SASL.User = cfg.SASLUsername
			saramaConfig.Net.SASL.Password = cfg.SASLPassword

		case "SCRAM-SHA-256":
			saramaConfig.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
			saramaConfig.Net.SASL.User = cfg.SASLUsername
			saramaConfig.Net.SASL.Password = cfg.SASLPassword
			saramaConfig.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &XDGSCRAMClient{HashGeneratorFcn: SHA256()}
			}

		case "SCRAM-SHA-512":
			saramaConfig.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
			saramaConfig.Net.SASL.User = cfg.SASLUsername
			saramaConfig.Net.SASL.Password = cfg.SASLPassword
			saramaConfig.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &XDGSCRAMClient{HashGeneratorFcn: SHA512()}
			}

		case "AWS_MSK_IAM":
			saramaConfig.Net.SASL.Mechanism = sarama.SASLTypeOAuth
			saramaConfig.Net.SASL.User = "token"
			saramaConfig.Net.SASL.Password = "token"
			saramaConfig.Net.SASL.TokenProvider = &mskAccessTokenProvider{region: "us-east-1"}

		default:
			return fmt.Errorf("unsupported SASL mechanism: %s", cfg.SASLMechanism)
		}

		if cfg.SecurityProtocol == "SASL_SSL" {
			saramaConfig.Net.TLS.Enable = true
			saramaConfig.Net.TLS.Config = &tls.Config{MinVersion: tls.VersionTLS12}
		}

	case "SSL":
		saramaConfig.Net.TLS.Enable = true
		saramaConfig.Net.TLS.Config = &tls.Config{MinVersion: tls.VersionTLS12}

	default:
		return fmt.Errorf("unsupported security protocol: %s", cfg.SecurityProtocol)
	}

	return nil
}
