package server

import (
	"context"
	"strconv"
)

// bufferState is the subset of internal/buffer.Buffer a health check
// reports against: whether it was started and not yet closed.
type bufferState interface {
	Running() bool
}

// BufferHealthChecker implements HealthChecker against a running Buffer:
// liveness and readiness both reflect whether the buffer was started
// and not closed, since the buffer has no external dependency of its
// own to probe. queuedRecords reports the current queue depth for the
// readiness response body, so an operator can see backpressure building
// before it trips the total size limit.
type BufferHealthChecker struct {
	buffer        bufferState
	queuedRecords func() int
}

// NewBufferHealthChecker creates a health checker for buffer.
func NewBufferHealthChecker(buffer bufferState, queuedRecords func() int) *BufferHealthChecker {
	return &BufferHealthChecker{buffer: buffer, queuedRecords: queuedRecords}
}

// Liveness reports whether the buffer is currently started and open.
func (c *BufferHealthChecker) Liveness() bool {
	return c.buffer.Running()
}

// Readiness mirrors Liveness.
func (c *BufferHealthChecker) Readiness(ctx context.Context) bool {
	return c.buffer.Running()
}

// IsHealthy reports the combined liveness/readiness signal used by
// non-HTTP callers.
func (c *BufferHealthChecker) IsHealthy() bool {
	return c.buffer.Running()
}

// GetStatus reports diagnostic detail for the readiness response body.
func (c *BufferHealthChecker) GetStatus() map[string]string {
	status := "closed"
	if c.buffer.Running() {
		status = "open"
	}
	return map[string]string{
		"buffer":         status,
		"queued_records": strconv.Itoa(c.queuedRecords()),
	}
}
