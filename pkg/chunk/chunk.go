package chunk

// State is the chunk lifecycle state. Transitions are monotonic along
// staged->queued->closed, unstaged->queued->closed, or staged->closed
// (the empty-enqueue shortcut).
type State int

const (
	// Staged chunks are the active accumulation chunk for their
	// metadata in the stage map.
	Staged State = iota
	// Queued chunks sit on the FIFO awaiting a consumer.
	Queued
	// Unstaged chunks were constructed but never inserted into the
	// stage map; they exist only as overflow during step-by-step
	// writes until promoted or purged.
	Unstaged
	// Closed chunks have released their resources and must not be
	// touched again.
	Closed
)

func (s State) String() string {
	switch s {
	case Staged:
		return "staged"
	case Queued:
		return "queued"
	case Unstaged:
		return "unstaged"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Chunk is an append-only container of serialized records with
// commit/rollback semantics and a small state machine. Implementations
// guard append/commit/rollback/state transitions with an ordinary,
// non-reentrant lock via Lock/Unlock. The write coordinator never locks
// a chunk it is already holding; on any retry path it unlocks every
// chunk it touched before looping back.
type Chunk interface {
	// UniqueID is opaque identity, stable for the chunk's life.
	UniqueID() string
	// Metadata is the metadata this chunk belongs to.
	Metadata() *Metadata

	// BytesSize is the current serialized byte length.
	BytesSize() int64
	// Size is the current record count.
	Size() int
	// State reports the current lifecycle state.
	State() State

	// Staged reports whether the chunk is the active stage-map entry
	// for its metadata.
	Staged() bool
	// Unstaged reports whether the chunk was generated but never
	// inserted into the stage map.
	Unstaged() bool
	// Writable is true for staged or unstaged chunks, false for
	// queued or closed ones.
	Writable() bool
	// Empty reports whether the chunk holds zero records.
	Empty() bool

	// Append appends one or more pre-serialized records, each already
	// byte-encoded by the caller. It is reversible by Rollback until
	// Commit is called.
	Append(records [][]byte) error
	// Concat appends a single pre-serialized batch of count records
	// in one call. It is reversible by Rollback until Commit.
	Concat(data []byte, count int) error
	// Commit finalizes the current batch of appends. Further appends
	// start a new reversible batch.
	Commit() error
	// Rollback undoes all appends since the last Commit, restoring
	// BytesSize, Size, and internal state to the pre-append snapshot.
	Rollback() error

	// Purge releases persistent state. Legal only on unstaged or
	// dequeued chunks.
	Purge() error
	// Close releases in-memory state. Legal in any state; idempotent.
	Close() error

	// Stage transitions an unstaged chunk to staged and returns the
	// receiver, so callers can write c = c.Stage().
	Stage() Chunk

	// Lock and Unlock guard this chunk's state for the duration of an
	// append/commit/rollback sequence. Not reentrant: a goroutine that
	// already holds the lock must not call Lock again.
	Lock()
	Unlock()
}

// EnqueueNotifiable is implemented by backends that want to observe the
// staged->queued transition, e.g. to start an upload or open a new
// segment file.
type EnqueueNotifiable interface {
	Enqueued()
}

// RecordReader is implemented by chunks that can hand back their
// committed records verbatim, e.g. for a forwarder to serialize and
// publish downstream. Not every chunk needs to support this: a chunk
// about to be discarded without ever being read has no reason to.
type RecordReader interface {
	Records() ([][]byte, error)
}

// Backend is the pluggable storage contract: memory-resident or
// file-backed implementations supply chunks and recover buffer state on
// resume. The buffer never constructs a Chunk directly.
type Backend interface {
	// GenerateChunk returns a fresh chunk in the Unstaged state, with
	// the given metadata and a fresh unique id.
	GenerateChunk(m *Metadata) (Chunk, error)

	// Resume is called once during Buffer.Start to recover prior
	// state. Chunks in the returned stage map must be Staged; chunks
	// in the queue must be Queued, in FIFO order (head first).
	Resume() (stage map[*Metadata]Chunk, queue []Chunk, err error)
}
