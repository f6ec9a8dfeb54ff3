package buffer

import "github.com/jittakal/chunkbuffer/pkg/chunk"

// storableLocked reports whether the buffer can admit more data without
// exceeding TotalLimitSize. Callers must hold b.mu.
func (b *Buffer) storableLocked() bool {
	return b.cfg.TotalLimitSize > b.stageSize+b.queueSize
}

// chunkSizeOver reports that c's last append pushed it past its limit
// and the append must be rolled back.
func (b *Buffer) chunkSizeOver(c chunk.Chunk) bool {
	if c.BytesSize() > b.cfg.ChunkLimitSize {
		return true
	}
	if b.cfg.ChunkRecordsLimit > 0 && c.Size() > b.cfg.ChunkRecordsLimit {
		return true
	}
	return false
}

// chunkSizeFull reports that c has reached the configured fraction of
// its limit and should be enqueued.
func (b *Buffer) chunkSizeFull(c chunk.Chunk) bool {
	threshold := b.cfg.ChunkFullThreshold
	if float64(c.BytesSize()) >= float64(b.cfg.ChunkLimitSize)*threshold {
		return true
	}
	if b.cfg.ChunkRecordsLimit > 0 && float64(c.Size()) >= float64(b.cfg.ChunkRecordsLimit)*threshold {
		return true
	}
	return false
}
