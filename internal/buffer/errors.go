package buffer

import (
	"errors"
	"fmt"
)

// ErrOverflow is raised when the buffer's combined stage+queue size has
// already reached TotalLimitSize at the start of a write; an admitted
// write may itself take the total past the limit. It is permanent for the
// rejected batch until a consumer drains the queue; the buffer never
// retries it internally.
var ErrOverflow = errors.New("buffer: total size limit exceeded")

// ErrClosed is returned by operations attempted after Close or
// Terminate.
var ErrClosed = errors.New("buffer: closed")

// ChunkOverflowError is raised when a single record's serialized size
// alone exceeds ChunkLimitSize, so no amount of splitting can make it
// fit. Callers typically drop the record.
type ChunkOverflowError struct {
	RecordSize int64
}

func (e *ChunkOverflowError) Error() string {
	return fmt.Sprintf("buffer: a record of %d bytes exceeds the chunk size limit", e.RecordSize)
}

// IsChunkOverflow reports whether err is (or wraps) a ChunkOverflowError.
func IsChunkOverflow(err error) bool {
	var e *ChunkOverflowError
	return errors.As(err, &e)
}

// shouldRetryError is strictly internal: Write's retry loops handle it
// and it must never be returned from an exported function.
type shouldRetryError struct {
	enqueueBeforeRetry bool
}

func (e *shouldRetryError) Error() string { return "buffer: should retry (internal)" }

func shouldRetry(enqueueBeforeRetry bool) error {
	return &shouldRetryError{enqueueBeforeRetry: enqueueBeforeRetry}
}

func asShouldRetry(err error) (*shouldRetryError, bool) {
	var sr *shouldRetryError
	if errors.As(err, &sr) {
		return sr, true
	}
	return nil, false
}

// errFallThroughToSplit signals that a single-shot write_once attempt
// overflowed the staged chunk and the entry must be handed off to
// write_step_by_step. It is as internal as shouldRetryError.
var errFallThroughToSplit = errors.New("buffer: fall through to step-by-step write (internal)")
