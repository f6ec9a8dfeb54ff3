package buffer

import (
	"github.com/jittakal/chunkbuffer/pkg/chunk"
	"github.com/jittakal/chunkbuffer/pkg/record"
)

// WriteEntry is one (metadata, data) pair handed to Write. Exactly one
// of Records or Payload should be set: Records for the raw path (each
// element already serialized by the caller), Payload for the formatted
// path (serialized in bulk by a record.Formatter).
type WriteEntry struct {
	Metadata *chunk.Metadata
	Records  [][]byte
	Payload  record.Batch
}

func (e WriteEntry) length() int {
	if e.Payload != nil {
		return len(e.Payload)
	}
	return len(e.Records)
}

func (e WriteEntry) window(lo, hi int) WriteEntry {
	if e.Payload != nil {
		return WriteEntry{Metadata: e.Metadata, Payload: e.Payload[lo:hi]}
	}
	return WriteEntry{Metadata: e.Metadata, Records: e.Records[lo:hi]}
}

// WriteOptions are the caller-supplied knobs for one Write call.
type WriteOptions struct {
	// Formatter, if set, is used instead of raw Append: the batch is
	// serialized in bulk and handed to Concat along with its record
	// count.
	Formatter record.Formatter
	// Enqueue forces every chunk touched by this write to be
	// enqueued once committed, regardless of fullness.
	Enqueue bool
}

func appendWindow(c chunk.Chunk, w WriteEntry, formatter record.Formatter) error {
	if formatter != nil {
		data, err := formatter.Format(w.Payload)
		if err != nil {
			return err
		}
		return c.Concat(data, formatter.Count(w.Payload))
	}
	return c.Append(w.Records)
}

func windowByteSize(w WriteEntry, formatter record.Formatter) int64 {
	if formatter != nil {
		data, err := formatter.Format(w.Payload)
		if err != nil {
			return 0
		}
		return int64(len(data))
	}
	if len(w.Records) > 0 {
		return int64(len(w.Records[0]))
	}
	return 0
}
