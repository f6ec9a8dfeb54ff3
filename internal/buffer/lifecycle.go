package buffer

import "github.com/jittakal/chunkbuffer/pkg/chunk"

// Start recovers prior state from the backend (component F: start/resume)
// and populates the metadata registry and size counters from it. It must
// be called exactly once before any other Buffer method.
func (b *Buffer) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return nil
	}

	stage, queue, err := b.backend.Resume()
	if err != nil {
		return err
	}

	for m, c := range stage {
		canonical := b.registry.Add(m)
		b.stage[canonical] = c
		b.stageSize += c.BytesSize()
	}
	for _, c := range queue {
		canonical := b.registry.Add(c.Metadata())
		b.queue = append(b.queue, c)
		b.queuedNum[canonical]++
		b.queueSize += c.BytesSize()
	}

	b.started = true
	b.reportSizesLocked()
	b.logger.Info("buffer started",
		"staged_chunks", len(b.stage),
		"queued_chunks", len(b.queue),
		"stage_bytes", b.stageSize,
		"queue_bytes", b.queueSize,
	)
	return nil
}

// Close closes every dequeued, queued, and staged chunk and drains the
// in-memory collections. It does not purge chunks: callers that want a
// clean slate should purge or take back dequeued work before closing.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	var firstErr error
	closeAll := func(chunks ...chunk.Chunk) {
		for _, c := range chunks {
			if c == nil {
				continue
			}
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}

	for _, c := range b.dequeued {
		closeAll(c)
	}
	closeAll(b.queue...)
	for _, c := range b.stage {
		closeAll(c)
	}

	b.stage = make(map[*chunk.Metadata]chunk.Chunk)
	b.queue = nil
	b.dequeued = make(map[string]chunk.Chunk)
	b.closed = true

	b.logger.Info("buffer closed")
	return firstErr
}

// Terminate drops references to every collection and zeros the size
// counters, without attempting to close the chunks first. It is meant
// for shutdown paths where Close already ran or chunk cleanup is known
// to be unnecessary.
func (b *Buffer) Terminate() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stage = make(map[*chunk.Metadata]chunk.Chunk)
	b.queue = nil
	b.dequeued = make(map[string]chunk.Chunk)
	b.queuedNum = make(map[*chunk.Metadata]int)
	b.stageSize = 0
	b.queueSize = 0
	b.closed = true
}

func (b *Buffer) reportSizesLocked() {
	b.metrics.SetStageBytes(float64(b.stageSize))
	b.metrics.SetQueueBytes(float64(b.queueSize))
	b.metrics.SetQueuedChunks(float64(len(b.queue)))
}
