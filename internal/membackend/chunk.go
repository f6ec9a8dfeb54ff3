// Package membackend is the memory-resident chunk.Backend: chunks hold
// their records as a plain byte-slice slice in the process heap, and
// Resume always reports nothing to recover. It is the default backend
// for tests and for deployments that accept losing in-flight data on a
// crash.
package membackend

import (
	"sync"

	"github.com/google/uuid"

	"github.com/jittakal/chunkbuffer/pkg/chunk"
)

// memChunk is the in-memory chunk.Chunk implementation. committed is
// the durable batch; pending holds appends made since the last Commit
// and is discarded wholesale by Rollback.
//
// Two locks, deliberately distinct: sessionMu is the one exposed as
// Lock/Unlock, serializing a coordinator's whole append-then-commit
// sequence against any other coordinator touching this chunk. fieldMu
// protects the fields themselves, so a plain read like BytesSize stays
// safe to call whether or not the caller is the one currently holding
// sessionMu.
type memChunk struct {
	sessionMu sync.Mutex
	fieldMu   sync.Mutex

	id    string
	meta  *chunk.Metadata
	state chunk.State

	committed     [][]byte
	committedSize int64
	pending       [][]byte
	pendingSize   int64
}

func newChunk(m *chunk.Metadata) *memChunk {
	return &memChunk{
		id:    uuid.NewString(),
		meta:  m,
		state: chunk.Unstaged,
	}
}

func (c *memChunk) UniqueID() string          { return c.id }
func (c *memChunk) Metadata() *chunk.Metadata { return c.meta }

func (c *memChunk) BytesSize() int64 {
	c.fieldMu.Lock()
	defer c.fieldMu.Unlock()
	return c.committedSize + c.pendingSize
}

func (c *memChunk) Size() int {
	c.fieldMu.Lock()
	defer c.fieldMu.Unlock()
	return len(c.committed) + len(c.pending)
}

func (c *memChunk) State() chunk.State {
	c.fieldMu.Lock()
	defer c.fieldMu.Unlock()
	return c.state
}

func (c *memChunk) Staged() bool   { return c.State() == chunk.Staged }
func (c *memChunk) Unstaged() bool { return c.State() == chunk.Unstaged }

func (c *memChunk) Writable() bool {
	s := c.State()
	return s == chunk.Staged || s == chunk.Unstaged
}

func (c *memChunk) Empty() bool {
	c.fieldMu.Lock()
	defer c.fieldMu.Unlock()
	return len(c.committed) == 0 && len(c.pending) == 0
}

func (c *memChunk) Append(records [][]byte) error {
	c.fieldMu.Lock()
	defer c.fieldMu.Unlock()
	for _, r := range records {
		c.pending = append(c.pending, r)
		c.pendingSize += int64(len(r))
	}
	return nil
}

func (c *memChunk) Concat(data []byte, count int) error {
	c.fieldMu.Lock()
	defer c.fieldMu.Unlock()
	c.pending = append(c.pending, data)
	c.pendingSize += int64(len(data))
	_ = count // one physical blob regardless of the logical record count it represents
	return nil
}

func (c *memChunk) Commit() error {
	c.fieldMu.Lock()
	defer c.fieldMu.Unlock()
	c.committed = append(c.committed, c.pending...)
	c.committedSize += c.pendingSize
	c.pending = nil
	c.pendingSize = 0
	return nil
}

func (c *memChunk) Rollback() error {
	c.fieldMu.Lock()
	defer c.fieldMu.Unlock()
	c.pending = nil
	c.pendingSize = 0
	return nil
}

func (c *memChunk) Purge() error {
	c.fieldMu.Lock()
	defer c.fieldMu.Unlock()
	c.committed = nil
	c.committedSize = 0
	c.pending = nil
	c.pendingSize = 0
	return nil
}

func (c *memChunk) Close() error {
	c.fieldMu.Lock()
	defer c.fieldMu.Unlock()
	c.state = chunk.Closed
	return nil
}

func (c *memChunk) Stage() chunk.Chunk {
	c.fieldMu.Lock()
	c.state = chunk.Staged
	c.fieldMu.Unlock()
	return c
}

// Enqueued flips the chunk's state to queued. It implements
// chunk.EnqueueNotifiable, matching the filebackend equivalent.
func (c *memChunk) Enqueued() {
	c.fieldMu.Lock()
	defer c.fieldMu.Unlock()
	c.state = chunk.Queued
}

// Lock and Unlock serialize this chunk's append/commit/rollback
// sequence against any other goroutine; they do not themselves guard
// field access, so they are safe to hold across calls to the methods
// above.
func (c *memChunk) Lock()   { c.sessionMu.Lock() }
func (c *memChunk) Unlock() { c.sessionMu.Unlock() }

// records returns a copy of the committed records, for a reader
// draining a dequeued chunk.
func (c *memChunk) records() [][]byte {
	c.fieldMu.Lock()
	defer c.fieldMu.Unlock()
	out := make([][]byte, len(c.committed))
	copy(out, c.committed)
	return out
}

// Records implements chunk.RecordReader.
func (c *memChunk) Records() ([][]byte, error) {
	return c.records(), nil
}
