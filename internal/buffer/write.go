package buffer

import (
	"time"

	"github.com/jittakal/chunkbuffer/pkg/chunk"
)

// touchedChunk records a chunk that Write has appended to and left
// locked, pending commit. delta is the bytesize the append added,
// attributed to stage_size only while the chunk is still staged.
type touchedChunk struct {
	c     chunk.Chunk
	delta int64
}

// Write appends each entry to its metadata's chunk(s), then commits and
// publishes every touched chunk in one operation. If appending any entry
// fails, nothing is committed: every chunk touched by this call is rolled
// back and the error is returned. The commit phase is best effort: a
// failure on the first chunk rolls everything back; after that, a chunk
// whose commit fails is rolled back, the chunks that did commit are still
// published, and the first commit error is returned.
//
// It implements write/write_once/write_step_by_step in one pass: each
// entry is first attempted as a single append (write_once); an entry
// whose single append would overflow its chunk is retried split
// across as many chunks as needed (write_step_by_step), escalating the
// split count tenfold each time a split still doesn't fit.
func (b *Buffer) Write(entries []WriteEntry, opts WriteOptions) error {
	start := time.Now()

	if !b.Storable() {
		b.metrics.IncOverflow()
		b.metrics.IncWriteTotal("overflow")
		return ErrOverflow
	}

	var touched []touchedChunk
	unstagedSiblings := make(map[*chunk.Metadata][]chunk.Chunk)

	defer func() {
		for _, tc := range touched {
			_ = tc.c.Rollback()
			if tc.c.Unstaged() {
				_ = tc.c.Purge()
			}
			tc.c.Unlock()
		}
	}()

	var writeErrs []error
	for _, e := range entries {
		m := e.Metadata
		before := len(touched)
		if err := b.writeOne(m, e, opts, &touched); err != nil {
			b.metrics.IncWriteTotal("error")
			return err
		}
		for _, tc := range touched[before:] {
			if tc.c.Unstaged() {
				unstagedSiblings[m] = append(unstagedSiblings[m], tc.c)
			}
		}
	}

	var chunksToEnqueue []chunk.Chunk
	var stagedBytesize int64

	if len(touched) > 0 {
		first := touched[0]
		touched = touched[1:]
		if err := first.c.Commit(); err != nil {
			touched = append([]touchedChunk{first}, touched...)
			b.metrics.IncWriteTotal("error")
			return err
		}
		if first.c.Staged() {
			stagedBytesize += first.delta
		}
		if opts.Enqueue || first.c.Unstaged() || b.chunkSizeFull(first.c) {
			chunksToEnqueue = append(chunksToEnqueue, first.c)
		}
		first.c.Unlock()

		remaining := touched
		touched = nil
		for _, tc := range remaining {
			if err := tc.c.Commit(); err != nil {
				writeErrs = append(writeErrs, err)
				touched = append(touched, tc)
				continue
			}
			if tc.c.Staged() {
				stagedBytesize += tc.delta
			}
			if opts.Enqueue || tc.c.Unstaged() || b.chunkSizeFull(tc.c) {
				chunksToEnqueue = append(chunksToEnqueue, tc.c)
			}
			tc.c.Unlock()
		}
	}

	b.mu.Lock()
	b.stageSize += stagedBytesize
	for _, c := range chunksToEnqueue {
		m := c.Metadata()
		switch {
		case c.Staged() && (opts.Enqueue || b.chunkSizeFull(c)):
			_ = b.enqueueChunkLocked(m)
			if siblings := unstagedSiblings[m]; len(siblings) > 0 {
				sib := siblings[0]
				unstagedSiblings[m] = siblings[1:]
				if sib.Unstaged() && !b.chunkSizeFull(sib) {
					staged := sib.Stage()
					b.stage[m] = staged
					b.stageSize += staged.BytesSize()
				}
			}
		case c.Unstaged():
			b.enqueueUnstagedChunkLocked(c)
		}
	}
	b.reportSizesLocked()
	b.mu.Unlock()

	b.metrics.ObserveWriteDuration(time.Since(start).Seconds())

	if len(writeErrs) > 0 {
		b.logger.Error("write: one or more chunks failed to commit", "count", len(writeErrs), "first_error", writeErrs[0])
		b.metrics.IncWriteTotal("error")
		return writeErrs[0]
	}
	b.metrics.IncWriteTotal("success")
	return nil
}

func (b *Buffer) writeOne(m *chunk.Metadata, entry WriteEntry, opts WriteOptions, ops *[]touchedChunk) error {
	for {
		err := b.tryWriteOnce(m, entry, opts, ops)
		if err == nil {
			return nil
		}
		if sr, ok := asShouldRetry(err); ok {
			if sr.enqueueBeforeRetry {
				if eqErr := b.EnqueueChunk(m); eqErr != nil {
					return eqErr
				}
			}
			continue
		}
		if err == errFallThroughToSplit {
			return b.writeStepByStep(m, entry, opts, 10, ops)
		}
		return err
	}
}

// tryWriteOnce makes a single attempt to append entry wholesale to m's
// staged chunk. It returns a *shouldRetryError when the caller should
// retry from the top (possibly after enqueueing first), errFallThroughToSplit
// when the entry does not fit in the staged chunk and must be split, or any
// other error verbatim.
func (b *Buffer) tryWriteOnce(m *chunk.Metadata, entry WriteEntry, opts WriteOptions, ops *[]touchedChunk) error {
	c, err := b.fetchOrCreateStaged(m)
	if err != nil {
		return err
	}

	c.Lock()
	if !c.Staged() {
		c.Unlock()
		return shouldRetry(false)
	}

	emptyChunk := c.Empty()
	originalBytesize := c.BytesSize()

	if err := appendWindow(c, entry, opts.Formatter); err != nil {
		c.Unlock()
		return err
	}

	if !b.chunkSizeOver(c) {
		delta := c.BytesSize() - originalBytesize
		*ops = append(*ops, touchedChunk{c, delta})
		return nil
	}

	_ = c.Rollback()

	if opts.Formatter != nil && !emptyChunk {
		c.Unlock()
		return shouldRetry(true)
	}
	if opts.Formatter != nil && emptyChunk {
		b.logger.Warn("write: a single formatted batch exceeds the chunk limit, writing it step by step", "metadata", m.String())
	}
	c.Unlock()
	return errFallThroughToSplit
}

// nextStepTarget returns the next chunk write_step_by_step should fill.
// The first target for a metadata is always its staged chunk (created
// if necessary); every subsequent target is a fresh unstaged chunk.
func (b *Buffer) nextStepTarget(m *chunk.Metadata, useStaged bool) (chunk.Chunk, error) {
	if useStaged {
		return b.fetchOrCreateStaged(m)
	}
	return b.backend.GenerateChunk(m)
}
