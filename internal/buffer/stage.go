package buffer

import "github.com/jittakal/chunkbuffer/pkg/chunk"

// EnqueueChunk moves the staged chunk for m onto the queue, or closes it
// if it is empty (the empty-enqueue shortcut: staged->closed without
// ever touching the queue). It is a no-op if m has no staged chunk.
func (b *Buffer) EnqueueChunk(m *chunk.Metadata) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enqueueChunkLocked(m)
}

func (b *Buffer) enqueueChunkLocked(m *chunk.Metadata) error {
	c, ok := b.stage[m]
	if !ok {
		return nil
	}
	delete(b.stage, m)

	if c.Empty() {
		err := c.Close()
		b.reportSizesLocked()
		return err
	}

	b.stageSize -= c.BytesSize()
	b.queue = append(b.queue, c)
	b.queuedNum[m]++
	b.queueSize += c.BytesSize()
	if hook, ok := c.(chunk.EnqueueNotifiable); ok {
		hook.Enqueued()
	}
	b.reportSizesLocked()
	return nil
}

// fetchOrCreateStaged returns the current staged chunk for m, creating
// one via the backend if none exists yet. Callers must not hold a
// chunk lock when calling this: it only takes the buffer-global lock.
func (b *Buffer) fetchOrCreateStaged(m *chunk.Metadata) (chunk.Chunk, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if c, ok := b.stage[m]; ok {
		return c, nil
	}
	c, err := b.backend.GenerateChunk(m)
	if err != nil {
		return nil, err
	}
	staged := c.Stage()
	b.stage[m] = staged
	return staged, nil
}

// EnqueueUnstagedChunk appends an unstaged chunk directly to the queue;
// it was never in the stage map, so there is nothing to remove there.
func (b *Buffer) EnqueueUnstagedChunk(c chunk.Chunk) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enqueueUnstagedChunkLocked(c)
}

func (b *Buffer) enqueueUnstagedChunkLocked(c chunk.Chunk) {
	m := c.Metadata()
	canonical := b.registry.Add(m)
	b.queue = append(b.queue, c)
	b.queuedNum[canonical]++
	b.queueSize += c.BytesSize()
	if hook, ok := c.(chunk.EnqueueNotifiable); ok {
		hook.Enqueued()
	}
	b.reportSizesLocked()
}

// EnqueueAll enqueues every staged chunk, optionally gated by predicate.
// It iterates a snapshot of the stage keys so enqueueing one metadata
// cannot perturb iteration over the others.
func (b *Buffer) EnqueueAll(predicate func(*chunk.Metadata) bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	keys := make([]*chunk.Metadata, 0, len(b.stage))
	for m := range b.stage {
		keys = append(keys, m)
	}

	for _, m := range keys {
		if predicate != nil && !predicate(m) {
			continue
		}
		if err := b.enqueueChunkLocked(m); err != nil {
			return err
		}
	}
	return nil
}

// DequeueChunk pops the head of the queue and hands it to the caller,
// recording it in the dequeued map until Purge or Takeback. It returns
// false if the queue is empty.
func (b *Buffer) DequeueChunk() (chunk.Chunk, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.queue) == 0 {
		return nil, false
	}

	c := b.queue[0]
	b.queue = b.queue[1:]
	b.dequeued[c.UniqueID()] = c
	b.queuedNum[c.Metadata()]--
	b.reportSizesLocked()
	return c, true
}

// TakebackChunk moves a dequeued chunk back to the head of the queue so
// it is the next one redelivered, implementing at-least-once retry. It
// reports false if chunkID is not currently dequeued.
func (b *Buffer) TakebackChunk(chunkID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.dequeued[chunkID]
	if !ok {
		return false
	}
	delete(b.dequeued, chunkID)

	b.queue = append([]chunk.Chunk{c}, b.queue...)
	b.queuedNum[c.Metadata()]++
	b.metrics.IncTakeback()
	b.reportSizesLocked()
	return true
}

// PurgeChunk removes a dequeued chunk permanently: it releases the
// backend's persistent state and, if no stage entry and no queued
// chunks remain for that metadata, drops the metadata from the
// registry. Backend purge errors are logged and swallowed, matching
// clear_queue!'s error policy; the caller's view of the queue advances
// regardless.
//
// If an archive hook was registered, PurgeChunk reads the chunk's
// records while they are still backed by the store, before calling
// Purge, and invokes the hook after releasing the buffer-global lock so
// a slow or failing archiver cannot stall other buffer operations.
func (b *Buffer) PurgeChunk(chunkID string) error {
	b.mu.Lock()

	c, ok := b.dequeued[chunkID]
	if !ok {
		b.mu.Unlock()
		return nil
	}
	delete(b.dequeued, chunkID)
	b.queueSize -= c.BytesSize()

	var archiveID, archiveTag string
	var archiveRecords [][]byte
	if b.archive != nil {
		if reader, ok := c.(chunk.RecordReader); ok {
			records, err := reader.Records()
			if err != nil {
				b.logger.Warn("archive hook: failed to read records", "chunk_id", chunkID, "error", err)
			} else {
				archiveID = c.UniqueID()
				archiveTag = c.Metadata().Tag
				archiveRecords = records
			}
		}
	}

	if err := c.Purge(); err != nil {
		b.logger.Warn("purge failed, chunk dropped anyway", "chunk_id", chunkID, "error", err)
	}

	m := c.Metadata()
	if _, staged := b.stage[m]; !staged && b.queuedNum[m] == 0 {
		b.registry.Remove(m)
		delete(b.queuedNum, m)
	}

	b.reportSizesLocked()
	b.mu.Unlock()

	if b.archive != nil && archiveRecords != nil {
		b.archive(archiveID, archiveTag, archiveRecords)
	}

	return nil
}

// ClearQueue drains and purges every currently queued chunk, resetting
// queue_size to zero. Individual purge errors are logged and swallowed;
// the queue is emptied regardless.
func (b *Buffer) ClearQueue() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, q := range b.queue {
		if err := q.Purge(); err != nil {
			b.logger.Warn("clear_queue: purge failed", "chunk_id", q.UniqueID(), "error", err)
		}
		b.queuedNum[q.Metadata()]--
	}
	b.queue = nil
	b.queueSize = 0
	b.reportSizesLocked()
}
