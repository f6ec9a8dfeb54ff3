package forward

import (
	"log/slog"
	"time"

	"github.com/jittakal/chunkbuffer/internal/config/dto"
	"github.com/jittakal/chunkbuffer/internal/observability"
	pkgforward "github.com/jittakal/chunkbuffer/pkg/forward"
)

// NewFromConfig builds a KafkaForwarder from dto.ForwardConfig. Enabled
// is assumed true; callers decide whether to build one at all.
func NewFromConfig(cfg dto.ForwardConfig, dequeuer pkgforward.Dequeuer, logger *slog.Logger, metrics *observability.Metrics) (*KafkaForwarder, error) {
	return New(Config{
		BootstrapServers: cfg.BootstrapServers,
		Topic:            cfg.Topic,
		SecurityProtocol: cfg.SecurityProtocol,
		SASLMechanism:    cfg.SASLMechanism,
		SASLUsername:     cfg.SASLUsername,
		SASLPassword:     cfg.SASLPassword,
		RetryBackoff:     time.Duration(cfg.RetryBackoffMS) * time.Millisecond,
	}, dequeuer, logger, metrics)
}
