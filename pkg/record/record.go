// Package record defines the generic event record producers hand to the
// buffer, and the Formatter contract a producer may supply so the buffer
// can serialize a whole batch in one shot instead of record-by-record.
package record

import "time"

// Entry is one buffered record: a timestamp, a routing tag, and an
// arbitrary field set. It mirrors the (time, tag, record) triple a
// log/event forwarding agent hands downstream.
type Entry struct {
	Time   time.Time
	Tag    string
	Fields map[string]any
}

// Batch is an ordered group of entries staged together.
type Batch []Entry

// Formatter serializes a Batch into a single byte blob and reports how
// many records that blob represents. It is the concrete shape of the
// write()'s caller-supplied `format`/`size` callables: Format stands in
// for `format(data)`, Count stands in for `size()`.
type Formatter interface {
	Format(batch Batch) ([]byte, error)
	Count(batch Batch) int
}
