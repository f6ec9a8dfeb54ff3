package membackend

import "github.com/jittakal/chunkbuffer/pkg/chunk"

// Backend is the memory-resident chunk.Backend. It has no persistence:
// Resume always returns empty collections, since nothing survives a
// restart.
type Backend struct{}

// New returns a memory-resident backend.
func New() *Backend {
	return &Backend{}
}

func (b *Backend) GenerateChunk(m *chunk.Metadata) (chunk.Chunk, error) {
	return newChunk(m), nil
}

func (b *Backend) Resume() (map[*chunk.Metadata]chunk.Chunk, []chunk.Chunk, error) {
	return map[*chunk.Metadata]chunk.Chunk{}, nil, nil
}

// Records exposes a queued or dequeued chunk's committed records for a
// forwarder to publish. It only works on *memChunk values, i.e. chunks
// this backend produced.
func Records(c chunk.Chunk) [][]byte {
	if mc, ok := c.(*memChunk); ok {
		return mc.records()
	}
	return nil
}
