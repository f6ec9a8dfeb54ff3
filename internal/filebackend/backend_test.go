package filebackend

import (
	"os"
	"testing"

	"github.com/jittakal/chunkbuffer/pkg/chunk"
)

func newTestBackend(t *testing.T) (*Backend, string) {
	t.Helper()
	dir := t.TempDir()
	b, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return b, dir
}

func TestNewCreatesStageAndQueueDirs(t *testing.T) {
	_, dir := newTestBackend(t)

	for _, sub := range []string{"stage", "queue"} {
		info, err := os.Stat(dir + "/" + sub)
		if err != nil {
			t.Fatalf("stat %s: %v", sub, err)
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", sub)
		}
	}
}

func TestGenerateChunkIsUnstaged(t *testing.T) {
	b, _ := newTestBackend(t)
	m := chunk.NewMetadata("time", "app.log", nil)

	c, err := b.GenerateChunk(m)
	if err != nil {
		t.Fatalf("GenerateChunk() error = %v", err)
	}
	defer c.Close()

	if !c.Unstaged() {
		t.Errorf("state = %v, want unstaged", c.State())
	}
	if !c.Empty() {
		t.Error("a fresh chunk should be empty")
	}
}

func TestResumeIsEmptyOnFreshSpoolDir(t *testing.T) {
	b, _ := newTestBackend(t)

	stage, queue, err := b.Resume()
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if len(stage) != 0 || len(queue) != 0 {
		t.Errorf("Resume() = (%v, %v), want empty", stage, queue)
	}
}

func TestChunkAppendCommitRollback(t *testing.T) {
	b, _ := newTestBackend(t)
	m := chunk.NewMetadata("time", "app.log", nil)
	c, err := b.GenerateChunk(m)
	if err != nil {
		t.Fatalf("GenerateChunk() error = %v", err)
	}
	defer c.Close()

	c.Lock()
	if err := c.Append([][]byte{[]byte("a"), []byte("bb")}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if got, want := c.BytesSize(), int64(3); got != want {
		t.Errorf("BytesSize() = %d, want %d", got, want)
	}
	if err := c.Rollback(); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}
	if got := c.BytesSize(); got != 0 {
		t.Errorf("BytesSize() after rollback = %d, want 0", got)
	}

	if err := c.Append([][]byte{[]byte("ccc")}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := c.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	c.Unlock()

	if got, want := c.BytesSize(), int64(3); got != want {
		t.Errorf("BytesSize() after commit = %d, want %d", got, want)
	}
	if c.Empty() {
		t.Error("chunk with a committed record should not be empty")
	}
}

func TestChunkRecordsRoundTrip(t *testing.T) {
	b, _ := newTestBackend(t)
	m := chunk.NewMetadata("time", "app.log", nil)
	c, err := b.GenerateChunk(m)
	if err != nil {
		t.Fatalf("GenerateChunk() error = %v", err)
	}
	defer c.Close()

	c.Lock()
	_ = c.Append([][]byte{[]byte("one"), []byte("two")})
	_ = c.Commit()
	c.Unlock()

	reader, ok := c.(chunk.RecordReader)
	if !ok {
		t.Fatal("fileChunk should implement chunk.RecordReader")
	}
	recs, err := reader.Records()
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}
	if len(recs) != 2 || string(recs[0]) != "one" || string(recs[1]) != "two" {
		t.Errorf("Records() = %q, want [one two]", recs)
	}

	// Reading records must not disturb the append offset.
	c.Lock()
	_ = c.Append([][]byte{[]byte("three")})
	_ = c.Commit()
	c.Unlock()

	recs, err = reader.Records()
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}
	if len(recs) != 3 || string(recs[2]) != "three" {
		t.Errorf("Records() after second commit = %q, want [one two three]", recs)
	}
}

func TestChunkPurgeRemovesFiles(t *testing.T) {
	b, dir := newTestBackend(t)
	m := chunk.NewMetadata("time", "app.log", nil)
	c, err := b.GenerateChunk(m)
	if err != nil {
		t.Fatalf("GenerateChunk() error = %v", err)
	}

	id := c.UniqueID()
	chunkFile := chunkPath(dir, stageDirName, id)
	metaFile := metaPath(dir, stageDirName, id)

	if _, err := os.Stat(chunkFile); err != nil {
		t.Fatalf("chunk file should exist before purge: %v", err)
	}
	if _, err := os.Stat(metaFile); err != nil {
		t.Fatalf("meta sidecar should exist before purge: %v", err)
	}

	if err := c.Purge(); err != nil {
		t.Fatalf("Purge() error = %v", err)
	}

	if _, err := os.Stat(chunkFile); !os.IsNotExist(err) {
		t.Error("chunk file should be removed after purge")
	}
	if _, err := os.Stat(metaFile); !os.IsNotExist(err) {
		t.Error("meta sidecar should be removed after purge")
	}
}

func TestEnqueuedMovesFilesToQueueDir(t *testing.T) {
	b, dir := newTestBackend(t)
	m := chunk.NewMetadata("time", "app.log", nil)
	c, err := b.GenerateChunk(m)
	if err != nil {
		t.Fatalf("GenerateChunk() error = %v", err)
	}
	defer c.Close()

	staged := c.Stage()
	staged.Lock()
	_ = staged.Append([][]byte{[]byte("x")})
	_ = staged.Commit()
	staged.Unlock()

	notifiable, ok := staged.(chunk.EnqueueNotifiable)
	if !ok {
		t.Fatal("fileChunk should implement chunk.EnqueueNotifiable")
	}
	notifiable.Enqueued()

	id := staged.UniqueID()
	if _, err := os.Stat(chunkPath(dir, stageDirName, id)); !os.IsNotExist(err) {
		t.Error("chunk file should no longer be in stage dir")
	}
	if _, err := os.Stat(chunkPath(dir, queueDirName, id)); err != nil {
		t.Errorf("chunk file should now be in queue dir: %v", err)
	}
}

func TestResumeRecoversStagedAndQueuedChunks(t *testing.T) {
	dir := t.TempDir()
	b, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	stagedMeta := chunk.NewMetadata("time", "staged.log", nil)
	staged, err := b.GenerateChunk(stagedMeta)
	if err != nil {
		t.Fatalf("GenerateChunk() error = %v", err)
	}
	staged = staged.Stage()
	staged.Lock()
	_ = staged.Append([][]byte{[]byte("a"), []byte("bb")})
	_ = staged.Commit()
	staged.Unlock()

	queuedMeta := chunk.NewMetadata("time", "queued.log", nil)
	queued, err := b.GenerateChunk(queuedMeta)
	if err != nil {
		t.Fatalf("GenerateChunk() error = %v", err)
	}
	queued.Lock()
	_ = queued.Append([][]byte{[]byte("ccc")})
	_ = queued.Commit()
	queued.Unlock()
	queued.(chunk.EnqueueNotifiable).Enqueued()

	if err := staged.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := queued.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	b2, err := New(dir)
	if err != nil {
		t.Fatalf("second New() error = %v", err)
	}
	stage, queue, err := b2.Resume()
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}

	if len(stage) != 1 {
		t.Fatalf("stage has %d entries, want 1", len(stage))
	}
	for m, c := range stage {
		if m.Tag != "staged.log" {
			t.Errorf("staged metadata tag = %q, want staged.log", m.Tag)
		}
		if c.BytesSize() != 3 {
			t.Errorf("staged chunk size = %d, want 3", c.BytesSize())
		}
		if !c.Staged() {
			t.Error("recovered stage entry should be in the staged state")
		}
	}

	if len(queue) != 1 {
		t.Fatalf("queue has %d entries, want 1", len(queue))
	}
	if queue[0].Metadata().Tag != "queued.log" {
		t.Errorf("queued metadata tag = %q, want queued.log", queue[0].Metadata().Tag)
	}
	if queue[0].BytesSize() != 3 {
		t.Errorf("queued chunk size = %d, want 3", queue[0].BytesSize())
	}
}
