package buffer

import (
	"errors"
	"testing"

	"github.com/jittakal/chunkbuffer/internal/membackend"
	"github.com/jittakal/chunkbuffer/pkg/chunk"
)

func newTestBuffer(t *testing.T, cfg Config) *Buffer {
	t.Helper()
	b := New(membackend.New(), cfg)
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return b
}

func bytesOf(n int) []byte {
	return make([]byte, n)
}

// Scenario 1: a single write that fits comfortably in one chunk leaves
// it staged.
func TestWrite_FitsInOneChunk(t *testing.T) {
	b := newTestBuffer(t, Config{ChunkLimitSize: 100, ChunkFullThreshold: 0.95})
	m := b.Metadata("time", "app.log", nil)

	err := b.Write([]WriteEntry{{Metadata: m, Records: [][]byte{bytesOf(90)}}}, WriteOptions{})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	b.mu.Lock()
	stageSize, queueSize := b.stageSize, b.queueSize
	_, staged := b.stage[m]
	b.mu.Unlock()

	if !staged {
		t.Error("expected a staged chunk for m")
	}
	if stageSize != 90 {
		t.Errorf("stageSize = %d, want 90", stageSize)
	}
	if queueSize != 0 {
		t.Errorf("queueSize = %d, want 0", queueSize)
	}
}

// Scenario 2: a second write that overflows the staged chunk splits
// step by step, enqueueing the original chunk and staging a fresh one
// for what remains.
func TestWrite_OverflowSplitsStepByStep(t *testing.T) {
	b := newTestBuffer(t, Config{ChunkLimitSize: 100, ChunkFullThreshold: 0.95})
	m := b.Metadata("time", "app.log", nil)

	if err := b.Write([]WriteEntry{{Metadata: m, Records: [][]byte{bytesOf(90)}}}, WriteOptions{}); err != nil {
		t.Fatalf("first Write() error = %v", err)
	}
	if err := b.Write([]WriteEntry{{Metadata: m, Records: [][]byte{bytesOf(20)}}}, WriteOptions{}); err != nil {
		t.Fatalf("second Write() error = %v", err)
	}

	b.mu.Lock()
	total := b.stageSize + b.queueSize
	queueLen := len(b.queue)
	b.mu.Unlock()

	if total != 110 {
		t.Errorf("stageSize+queueSize = %d, want 110", total)
	}
	if queueLen != 1 {
		t.Errorf("queue has %d chunks, want 1", queueLen)
	}
}

// Scenario 3: a lone record bigger than the chunk limit can never be
// split small enough to fit, and is reported as a chunk overflow
// without leaking any chunk.
func TestWrite_SingleRecordTooLarge(t *testing.T) {
	b := newTestBuffer(t, Config{ChunkLimitSize: 100, ChunkFullThreshold: 0.95})
	m := b.Metadata("time", "app.log", nil)

	err := b.Write([]WriteEntry{{Metadata: m, Records: [][]byte{bytesOf(150)}}}, WriteOptions{})
	if err == nil {
		t.Fatal("expected an error")
	}
	var overflow *ChunkOverflowError
	if !errors.As(err, &overflow) {
		t.Fatalf("error = %v, want a *ChunkOverflowError", err)
	}
	if overflow.RecordSize != 150 {
		t.Errorf("RecordSize = %d, want 150", overflow.RecordSize)
	}

	b.mu.Lock()
	stageSize, queueSize := b.stageSize, b.queueSize
	b.mu.Unlock()
	if stageSize != 0 || queueSize != 0 {
		t.Errorf("stageSize=%d queueSize=%d, want both 0", stageSize, queueSize)
	}
}

// Scenario 4: once the buffer is at its total size limit, a write is
// rejected before any chunk is even created.
func TestWrite_TotalOverflowRejectsImmediately(t *testing.T) {
	b := newTestBuffer(t, Config{ChunkLimitSize: 100, TotalLimitSize: 200, ChunkFullThreshold: 0.95})
	m := b.Metadata("time", "app.log", nil)

	if err := b.Write([]WriteEntry{{Metadata: m, Records: [][]byte{bytesOf(100)}}}, WriteOptions{Enqueue: true}); err != nil {
		t.Fatalf("priming write error = %v", err)
	}
	m2 := b.Metadata("time", "app2.log", nil)
	if err := b.Write([]WriteEntry{{Metadata: m2, Records: [][]byte{bytesOf(100)}}}, WriteOptions{Enqueue: true}); err != nil {
		t.Fatalf("second priming write error = %v", err)
	}

	err := b.Write([]WriteEntry{{Metadata: m, Records: [][]byte{bytesOf(1)}}}, WriteOptions{})
	if !errors.Is(err, ErrOverflow) {
		t.Fatalf("error = %v, want ErrOverflow", err)
	}
}

// Scenario 5: in a multi-metadata write, one metadata's commit failure
// rolls back only that metadata's chunk and leaves the other's commit
// intact.
func TestWrite_PartialCommitFailureRollsBackOnlyTheFailedChunk(t *testing.T) {
	b := newTestBuffer(t, Config{ChunkLimitSize: 1000, ChunkFullThreshold: 0.95})
	b.backend = &flakyBackend{failTag: "bad"}

	m1 := b.Metadata("time", "good", nil)
	m2 := b.Metadata("time", "bad", nil)

	err := b.Write([]WriteEntry{
		{Metadata: m1, Records: [][]byte{bytesOf(10)}},
		{Metadata: m2, Records: [][]byte{bytesOf(10)}},
	}, WriteOptions{})
	if err == nil {
		t.Fatal("expected the simulated commit error")
	}

	b.mu.Lock()
	stageSize := b.stageSize
	_, m1Staged := b.stage[m1]
	b.mu.Unlock()

	if !m1Staged {
		t.Error("m1's chunk should remain staged and committed")
	}
	if stageSize != 10 {
		t.Errorf("stageSize = %d, want 10 (m1 only)", stageSize)
	}
}

// flakyBackend generates chunks whose Commit fails for one chosen tag,
// so a test can exercise write's partial-failure rollback path.
type flakyBackend struct {
	failTag string
}

func (f *flakyBackend) GenerateChunk(m *chunk.Metadata) (chunk.Chunk, error) {
	return &flakyChunk{tag: m.Tag, meta: m, fail: m.Tag == f.failTag}, nil
}

func (f *flakyBackend) Resume() (map[*chunk.Metadata]chunk.Chunk, []chunk.Chunk, error) {
	return map[*chunk.Metadata]chunk.Chunk{}, nil, nil
}

type flakyChunk struct {
	tag   string
	fail  bool
	state chunk.State
	meta  *chunk.Metadata

	committedSize int64
	pendingSize   int64
}

func (c *flakyChunk) UniqueID() string          { return "flaky-" + c.tag }
func (c *flakyChunk) Metadata() *chunk.Metadata { return c.meta }
func (c *flakyChunk) BytesSize() int64          { return c.committedSize + c.pendingSize }
func (c *flakyChunk) Size() int                 { return 0 }
func (c *flakyChunk) State() chunk.State        { return c.state }
func (c *flakyChunk) Staged() bool              { return c.state == chunk.Staged }
func (c *flakyChunk) Unstaged() bool            { return c.state == chunk.Unstaged }
func (c *flakyChunk) Writable() bool            { return c.state == chunk.Staged || c.state == chunk.Unstaged }
func (c *flakyChunk) Empty() bool               { return c.committedSize == 0 && c.pendingSize == 0 }

func (c *flakyChunk) Append(records [][]byte) error {
	for _, r := range records {
		c.pendingSize += int64(len(r))
	}
	return nil
}
func (c *flakyChunk) Concat(data []byte, count int) error {
	c.pendingSize += int64(len(data))
	return nil
}
func (c *flakyChunk) Commit() error {
	if c.fail {
		return errors.New("flaky: simulated commit failure")
	}
	c.committedSize += c.pendingSize
	c.pendingSize = 0
	return nil
}
func (c *flakyChunk) Rollback() error {
	c.pendingSize = 0
	return nil
}
func (c *flakyChunk) Purge() error { c.committedSize, c.pendingSize = 0, 0; return nil }
func (c *flakyChunk) Close() error { c.state = chunk.Closed; return nil }
func (c *flakyChunk) Stage() chunk.Chunk {
	c.state = chunk.Staged
	return c
}
func (c *flakyChunk) Lock()   {}
func (c *flakyChunk) Unlock() {}
