// Package errors defines application-specific error types and sentinel
// errors for the forward and archive pipeline stages that sit downstream
// of the buffer core.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	ErrForwarderClosed = errors.New("forwarder is closed")
	ErrArchiverClosed  = errors.New("archiver is closed")
	ErrConnectionLost  = errors.New("connection lost")
)

// PublishError represents a failure to forward a dequeued chunk
// downstream.
type PublishError struct {
	ChunkID string
	Topic   string
	Err     error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish error: chunk=%s topic=%s: %v", e.ChunkID, e.Topic, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// ArchiveError represents a failure to durably persist a purged chunk.
type ArchiveError struct {
	Backend string
	ChunkID string
	Err     error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("archive error: backend=%s chunk=%s: %v", e.Backend, e.ChunkID, e.Err)
}

func (e *ArchiveError) Unwrap() error {
	return e.Err
}

// Retryable defines an interface for errors that can indicate if they are
// retryable.
type Retryable interface {
	error
	IsRetryable() bool
}

// IsRetryable checks if an error is retryable. It first checks if the
// error implements the Retryable interface, then falls back to checking
// for ErrConnectionLost.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var retryable Retryable
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}

	if errors.Is(err, ErrConnectionLost) {
		return true
	}

	return false
}

// IsRetryable determines if a PublishError is retryable. Forward publish
// failures are always worth a take-back and retry: the chunk is just
// returned to the queue head.
func (e *PublishError) IsRetryable() bool {
	return true
}
