// Package archive defines the contract for durably persisting a purged
// chunk's raw bytes to object storage, independent of the backend that
// produced them.
package archive

import "context"

// Archiver uploads a purged chunk's raw bytes to an object store. Archive
// is called after the buffer's PurgeChunk succeeds; a failure here never
// resurrects the chunk, it is only logged.
type Archiver interface {
	// Archive uploads data, the raw bytes of chunk id tagged with tag, to
	// the configured backend. The returned location is backend-specific
	// (an S3 key, a blob path, a GCS object name) and is for logging only.
	Archive(ctx context.Context, id string, tag string, data []byte) (location string, err error)

	// Close releases any resources held by the archiver.
	Close() error
}
