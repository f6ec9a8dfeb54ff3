// Package forward defines the contract for transmitting dequeued chunks
// to a downstream consumer, independent of the transport that does it.
package forward

import (
	"context"

	"github.com/jittakal/chunkbuffer/pkg/chunk"
)

// Dequeuer is the subset of internal/buffer.Buffer a Forwarder drives: the
// dequeue/purge/takeback loop that Buffer.DequeueChunk,
// Buffer.PurgeChunk, and Buffer.TakebackChunk already implement.
type Dequeuer interface {
	DequeueChunk() (chunk.Chunk, bool)
	PurgeChunk(chunkID string) error
	TakebackChunk(chunkID string) bool
}

// Forwarder publishes dequeued chunks downstream and runs the
// dequeue/publish/purge-or-takeback loop until Close or ctx is done.
type Forwarder interface {
	// Run drives the loop: DequeueChunk, publish, then PurgeChunk on
	// success or TakebackChunk on failure. It blocks until ctx is done
	// or Close is called.
	Run(ctx context.Context) error

	// Close stops Run and releases the underlying transport.
	Close() error
}
