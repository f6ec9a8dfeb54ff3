package filebackend

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/jittakal/chunkbuffer/pkg/chunk"
)

// fileChunk is the file-backed chunk.Chunk implementation. Records are
// appended to disk as a sequence of 4-byte big-endian length prefixes
// followed by the raw payload; committed holds what has already been
// fsynced, pending holds appends made since the last Commit and is
// never written to disk until Commit succeeds, so Rollback never needs
// to touch the file at all.
//
// Two locks, the same split membackend uses: sessionMu is exposed as
// Lock/Unlock and serializes a coordinator's append-then-commit
// sequence; fieldMu guards the struct fields (and the file handle)
// themselves so a plain read like BytesSize is safe independent of
// sessionMu.
type fileChunk struct {
	sessionMu sync.Mutex
	fieldMu   sync.Mutex

	spoolDir string
	id       string
	meta     *chunk.Metadata
	state    chunk.State
	dir      string // current directory name: "stage" or "queue"
	file     *os.File

	committedSize  int64
	committedCount int
	pending        [][]byte
	pendingSize    int64
}

func chunkPath(spoolDir, dir, id string) string {
	return filepath.Join(spoolDir, dir, id+".chunk")
}

func metaPath(spoolDir, dir, id string) string {
	return filepath.Join(spoolDir, dir, id+".meta.json")
}

type metaSidecar struct {
	TimeKey   string            `json:"time_key"`
	Tag       string            `json:"tag"`
	Variables map[string]string `json:"variables,omitempty"`
}

func writeMetaSidecar(path string, m *chunk.Metadata) error {
	data, err := json.Marshal(metaSidecar{TimeKey: m.TimeKey, Tag: m.Tag, Variables: m.Variables})
	if err != nil {
		return fmt.Errorf("filebackend: marshal metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("filebackend: write metadata sidecar: %w", err)
	}
	return nil
}

func readMetaSidecar(path string) (*chunk.Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("filebackend: read metadata sidecar: %w", err)
	}
	var s metaSidecar
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("filebackend: unmarshal metadata sidecar: %w", err)
	}
	return chunk.NewMetadata(s.TimeKey, s.Tag, s.Variables), nil
}

func newChunk(spoolDir, id string, m *chunk.Metadata, dir string) (*fileChunk, error) {
	f, err := os.OpenFile(chunkPath(spoolDir, dir, id), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("filebackend: create chunk file: %w", err)
	}
	return &fileChunk{
		spoolDir: spoolDir,
		id:       id,
		meta:     m,
		state:    chunk.Unstaged,
		dir:      dir,
		file:     f,
	}, nil
}

// resumeChunk reopens an existing chunk file and replays it to recover
// the committed record count and byte size.
func resumeChunk(spoolDir, id string, m *chunk.Metadata, dir string, state chunk.State) (*fileChunk, error) {
	f, err := os.OpenFile(chunkPath(spoolDir, dir, id), os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("filebackend: reopen chunk file: %w", err)
	}
	count, size, err := replay(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, fmt.Errorf("filebackend: seek to end: %w", err)
	}
	return &fileChunk{
		spoolDir:       spoolDir,
		id:             id,
		meta:           m,
		state:          state,
		dir:            dir,
		file:           f,
		committedCount: count,
		committedSize:  size,
	}, nil
}

// replay reads every length-prefixed record in f from its current
// offset and reports how many records and how many payload bytes it
// found. A truncated trailing record (a crash mid-write) is treated as
// the end of the stream rather than an error.
func replay(f *os.File) (count int, size int64, err error) {
	r := bufio.NewReader(f)
	var lenBuf [4]byte
	for {
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			if err == io.EOF {
				return count, size, nil
			}
			return count, size, nil
		}
		n := binary.BigEndian.Uint32(lenBuf[:])
		if _, err := io.CopyN(io.Discard, r, int64(n)); err != nil {
			return count, size, nil
		}
		count++
		size += int64(n)
	}
}

func (c *fileChunk) UniqueID() string          { return c.id }
func (c *fileChunk) Metadata() *chunk.Metadata { return c.meta }

func (c *fileChunk) BytesSize() int64 {
	c.fieldMu.Lock()
	defer c.fieldMu.Unlock()
	return c.committedSize + c.pendingSize
}

func (c *fileChunk) Size() int {
	c.fieldMu.Lock()
	defer c.fieldMu.Unlock()
	return c.committedCount + len(c.pending)
}

func (c *fileChunk) State() chunk.State {
	c.fieldMu.Lock()
	defer c.fieldMu.Unlock()
	return c.state
}

func (c *fileChunk) Staged() bool   { return c.State() == chunk.Staged }
func (c *fileChunk) Unstaged() bool { return c.State() == chunk.Unstaged }

func (c *fileChunk) Writable() bool {
	s := c.State()
	return s == chunk.Staged || s == chunk.Unstaged
}

func (c *fileChunk) Empty() bool {
	c.fieldMu.Lock()
	defer c.fieldMu.Unlock()
	return c.committedCount == 0 && len(c.pending) == 0
}

func (c *fileChunk) Append(records [][]byte) error {
	c.fieldMu.Lock()
	defer c.fieldMu.Unlock()
	for _, r := range records {
		c.pending = append(c.pending, r)
		c.pendingSize += int64(len(r))
	}
	return nil
}

func (c *fileChunk) Concat(data []byte, count int) error {
	c.fieldMu.Lock()
	defer c.fieldMu.Unlock()
	c.pending = append(c.pending, data)
	c.pendingSize += int64(len(data))
	_ = count
	return nil
}

// Commit writes every pending record to disk as a length-prefixed
// entry and fsyncs the file before updating the committed counters, so
// a crash between the write and the fsync never reports a record as
// committed that the disk does not actually hold.
func (c *fileChunk) Commit() error {
	c.fieldMu.Lock()
	defer c.fieldMu.Unlock()

	if len(c.pending) == 0 {
		return nil
	}

	w := bufio.NewWriter(c.file)
	var lenBuf [4]byte
	for _, r := range c.pending {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(r)))
		if _, err := w.Write(lenBuf[:]); err != nil {
			return fmt.Errorf("filebackend: write length prefix: %w", err)
		}
		if _, err := w.Write(r); err != nil {
			return fmt.Errorf("filebackend: write record: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("filebackend: flush: %w", err)
	}
	if err := c.file.Sync(); err != nil {
		return fmt.Errorf("filebackend: fsync: %w", err)
	}

	c.committedCount += len(c.pending)
	c.committedSize += c.pendingSize
	c.pending = nil
	c.pendingSize = 0
	return nil
}

func (c *fileChunk) Rollback() error {
	c.fieldMu.Lock()
	defer c.fieldMu.Unlock()
	c.pending = nil
	c.pendingSize = 0
	return nil
}

// Purge closes and removes the chunk's file and metadata sidecar.
func (c *fileChunk) Purge() error {
	c.fieldMu.Lock()
	defer c.fieldMu.Unlock()

	path := chunkPath(c.spoolDir, c.dir, c.id)
	if c.file != nil {
		c.file.Close()
		c.file = nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("filebackend: remove chunk file: %w", err)
	}
	if err := os.Remove(metaPath(c.spoolDir, c.dir, c.id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("filebackend: remove metadata sidecar: %w", err)
	}
	c.committedSize, c.committedCount = 0, 0
	c.pending, c.pendingSize = nil, 0
	return nil
}

func (c *fileChunk) Close() error {
	c.fieldMu.Lock()
	defer c.fieldMu.Unlock()
	c.state = chunk.Closed
	if c.file != nil {
		err := c.file.Close()
		c.file = nil
		return err
	}
	return nil
}

func (c *fileChunk) Stage() chunk.Chunk {
	c.fieldMu.Lock()
	c.state = chunk.Staged
	c.fieldMu.Unlock()
	return c
}

// Enqueued moves the chunk's file and metadata sidecar from the stage
// directory to the queue directory, so Resume finds it there after a
// restart. It implements chunk.EnqueueNotifiable.
func (c *fileChunk) Enqueued() {
	c.fieldMu.Lock()
	defer c.fieldMu.Unlock()

	oldChunkPath := chunkPath(c.spoolDir, c.dir, c.id)
	oldMetaPath := metaPath(c.spoolDir, c.dir, c.id)
	newChunkPath := chunkPath(c.spoolDir, queueDirName, c.id)
	newMetaPath := metaPath(c.spoolDir, queueDirName, c.id)

	if err := os.Rename(oldChunkPath, newChunkPath); err != nil {
		return
	}
	_ = os.Rename(oldMetaPath, newMetaPath)
	c.dir = queueDirName
	c.state = chunk.Queued
}

// Lock and Unlock serialize this chunk's append/commit/rollback
// sequence; see the membackend equivalent for the rationale behind
// keeping this separate from fieldMu.
func (c *fileChunk) Lock()   { c.sessionMu.Lock() }
func (c *fileChunk) Unlock() { c.sessionMu.Unlock() }

// Records implements chunk.RecordReader by reading every committed
// record back off disk from the start of the file. It does not
// disturb the file's current write offset.
func (c *fileChunk) Records() ([][]byte, error) {
	c.fieldMu.Lock()
	defer c.fieldMu.Unlock()

	if c.file == nil {
		return nil, fmt.Errorf("filebackend: chunk %s is closed", c.id)
	}

	pos, err := c.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("filebackend: save offset: %w", err)
	}
	defer c.file.Seek(pos, io.SeekStart)

	if _, err := c.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("filebackend: seek to start: %w", err)
	}

	r := bufio.NewReader(c.file)
	out := make([][]byte, 0, c.committedCount)
	var lenBuf [4]byte
	for i := 0; i < c.committedCount; i++ {
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return nil, fmt.Errorf("filebackend: read length prefix: %w", err)
		}
		n := binary.BigEndian.Uint32(lenBuf[:])
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("filebackend: read record: %w", err)
		}
		out = append(out, buf)
	}
	return out, nil
}
