// Package chunk defines the append-only chunk abstraction and the
// metadata descriptor buffered records are grouped by. It is the
// contract a storage backend must satisfy to plug into the buffer; the
// buffer never constructs chunks itself.
package chunk

// Metadata groups buffered records by routing destination: a time
// window, a tag, and a set of user-supplied variables. Two Metadata
// values are equal iff all three fields are equal; callers should treat
// the pointer returned by a registry's Add/Metadata call as the
// canonical identity for a given triple and use it as a map key.
type Metadata struct {
	TimeKey   string
	Tag       string
	Variables map[string]string
}

// NewMetadata constructs a fresh, uninterned Metadata value. Variables is
// copied so the returned value does not alias the caller's map.
func NewMetadata(timeKey, tag string, variables map[string]string) *Metadata {
	vars := make(map[string]string, len(variables))
	for k, v := range variables {
		vars[k] = v
	}
	return &Metadata{TimeKey: timeKey, Tag: tag, Variables: vars}
}

// Equal reports whether m and other describe the same triple.
func (m *Metadata) Equal(other *Metadata) bool {
	if m == other {
		return true
	}
	if m == nil || other == nil {
		return false
	}
	if m.TimeKey != other.TimeKey || m.Tag != other.Tag {
		return false
	}
	if len(m.Variables) != len(other.Variables) {
		return false
	}
	for k, v := range m.Variables {
		if ov, ok := other.Variables[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// String returns a stable human-readable form, mainly for logging.
func (m *Metadata) String() string {
	if m == nil {
		return "<nil>"
	}
	return m.TimeKey + "/" + m.Tag
}
