// Package buffer implements a chunked staging-and-queueing buffer: the
// core used by a log/event forwarding agent to decouple producers from
// downstream outputs.
//
// Records arrive grouped by a metadata descriptor (time window, tag,
// variables) and are accumulated into size-bounded chunks. A chunk is
// enqueued once it is full or on demand, a consumer dequeues chunks for
// transmission, and a failed transmission can be taken back for retry.
// The concurrency discipline — collect all per-chunk locks, release
// them, then take the single buffer-global lock to publish — is the
// part worth reading carefully before changing anything in write.go.
package buffer
