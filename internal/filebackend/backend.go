// Package filebackend is the persistent chunk.Backend: each chunk is a
// file under a configured spool directory, and recovery replays the
// spool directory's stage/queue subdirectories instead of starting
// empty. It supplies the file-backed storage left external by the
// buffer core.
package filebackend

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/jittakal/chunkbuffer/pkg/chunk"
)

const (
	stageDirName = "stage"
	queueDirName = "queue"
)

// Backend is the file-backed chunk.Backend. Every chunk it generates is
// backed by a file under spoolDir/stage; EnqueueChunk's Enqueued hook
// moves that file under spoolDir/queue, and Resume replays both
// directories to recover stage map and queue order across restarts.
type Backend struct {
	spoolDir string
}

// New creates a file-backed backend rooted at spoolDir, creating the
// stage and queue subdirectories if they do not already exist.
func New(spoolDir string) (*Backend, error) {
	for _, sub := range []string{stageDirName, queueDirName} {
		if err := os.MkdirAll(filepath.Join(spoolDir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("filebackend: create %s dir: %w", sub, err)
		}
	}
	return &Backend{spoolDir: spoolDir}, nil
}

func (b *Backend) GenerateChunk(m *chunk.Metadata) (chunk.Chunk, error) {
	id := uuid.NewString()
	c, err := newChunk(b.spoolDir, id, m, stageDirName)
	if err != nil {
		return nil, err
	}
	if err := writeMetaSidecar(metaPath(b.spoolDir, stageDirName, id), m); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Resume scans spoolDir/stage and spoolDir/queue and reconstructs the
// stage map and queue from what it finds there. Chunks within each
// directory are ordered by filename, which is creation order since ids
// are UUIDv4 assigned at GenerateChunk time and never reused; ordering
// across chunks in the same directory only matters for the queue, where
// filenames are sorted to approximate FIFO order (a best effort: UUIDs
// do not embed a timestamp, so exact ordering in the face of concurrent
// writers before a crash is not guaranteed).
func (b *Backend) Resume() (map[*chunk.Metadata]chunk.Chunk, []chunk.Chunk, error) {
	stage := make(map[*chunk.Metadata]chunk.Chunk)

	stagedIDs, err := listChunkIDs(filepath.Join(b.spoolDir, stageDirName))
	if err != nil {
		return nil, nil, err
	}
	for _, id := range stagedIDs {
		m, err := readMetaSidecar(metaPath(b.spoolDir, stageDirName, id))
		if err != nil {
			return nil, nil, err
		}
		c, err := resumeChunk(b.spoolDir, id, m, stageDirName, chunk.Staged)
		if err != nil {
			return nil, nil, err
		}
		stage[m] = c
	}

	queueIDs, err := listChunkIDs(filepath.Join(b.spoolDir, queueDirName))
	if err != nil {
		return nil, nil, err
	}
	queue := make([]chunk.Chunk, 0, len(queueIDs))
	for _, id := range queueIDs {
		m, err := readMetaSidecar(metaPath(b.spoolDir, queueDirName, id))
		if err != nil {
			return nil, nil, err
		}
		c, err := resumeChunk(b.spoolDir, id, m, queueDirName, chunk.Queued)
		if err != nil {
			return nil, nil, err
		}
		queue = append(queue, c)
	}

	return stage, queue, nil
}

func listChunkIDs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("filebackend: list %s: %w", dir, err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if filepath.Ext(name) != ".chunk" {
			continue
		}
		ids = append(ids, name[:len(name)-len(".chunk")])
	}
	sort.Strings(ids)
	return ids, nil
}
