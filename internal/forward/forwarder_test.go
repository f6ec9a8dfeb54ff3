package forward

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/IBM/sarama"

	"github.com/jittakal/chunkbuffer/pkg/chunk"
	"github.com/jittakal/chunkbuffer/pkg/forward"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeChunk implements chunk.Chunk and chunk.RecordReader with a fixed
// set of committed records, mirroring internal/buffer's flakyChunk test
// double.
type fakeChunk struct {
	id      string
	meta    *chunk.Metadata
	records [][]byte
	readErr error
}

func (c *fakeChunk) UniqueID() string          { return c.id }
func (c *fakeChunk) Metadata() *chunk.Metadata { return c.meta }
func (c *fakeChunk) BytesSize() int64          { return int64(len(c.records)) }
func (c *fakeChunk) Size() int                 { return len(c.records) }
func (c *fakeChunk) State() chunk.State        { return chunk.Queued }
func (c *fakeChunk) Staged() bool              { return false }
func (c *fakeChunk) Unstaged() bool            { return false }
func (c *fakeChunk) Writable() bool            { return false }
func (c *fakeChunk) Empty() bool               { return len(c.records) == 0 }
func (c *fakeChunk) Append(records [][]byte) error      { return nil }
func (c *fakeChunk) Concat(data []byte, count int) error { return nil }
func (c *fakeChunk) Commit() error                       { return nil }
func (c *fakeChunk) Rollback() error                     { return nil }
func (c *fakeChunk) Purge() error                        { return nil }
func (c *fakeChunk) Close() error                        { return nil }
func (c *fakeChunk) Stage() chunk.Chunk                  { return c }
func (c *fakeChunk) Lock()                               {}
func (c *fakeChunk) Unlock()                             {}
func (c *fakeChunk) Records() ([][]byte, error) {
	if c.readErr != nil {
		return nil, c.readErr
	}
	return c.records, nil
}

// fakeDequeuer implements forward.Dequeuer over an in-memory queue.
type fakeDequeuer struct {
	queue     []chunk.Chunk
	purged    []string
	takenBack []string
	purgeErr  error
}

func (d *fakeDequeuer) DequeueChunk() (chunk.Chunk, bool) {
	if len(d.queue) == 0 {
		return nil, false
	}
	c := d.queue[0]
	d.queue = d.queue[1:]
	return c, true
}

func (d *fakeDequeuer) PurgeChunk(chunkID string) error {
	d.purged = append(d.purged, chunkID)
	return d.purgeErr
}

func (d *fakeDequeuer) TakebackChunk(chunkID string) bool {
	d.takenBack = append(d.takenBack, chunkID)
	return true
}

// fakeProducer implements the forward package's narrow syncProducer
// interface.
type fakeProducer struct {
	sendErr error
	sent    [][]*sarama.ProducerMessage
	closed  bool
}

func (p *fakeProducer) SendMessages(msgs []*sarama.ProducerMessage) error {
	if p.sendErr != nil {
		return p.sendErr
	}
	p.sent = append(p.sent, msgs)
	return nil
}

func (p *fakeProducer) Close() error {
	p.closed = true
	return nil
}

func newTestForwarder(producer syncProducer, dequeuer forward.Dequeuer) *KafkaForwarder {
	return &KafkaForwarder{
		producer: producer,
		dequeuer: dequeuer,
		topic:    "test-topic",
		backoff:  time.Millisecond,
		logger:   discardLogger(),
		closed:   make(chan struct{}),
	}
}

func TestForwardOne_PublishAndPurgeOnSuccess(t *testing.T) {
	meta := &chunk.Metadata{TimeKey: "time", Tag: "app.log"}
	c := &fakeChunk{id: "c1", meta: meta, records: [][]byte{[]byte("r1"), []byte("r2")}}
	dq := &fakeDequeuer{queue: []chunk.Chunk{c}}
	prod := &fakeProducer{}
	f := newTestForwarder(prod, dq)

	if !f.forwardOne(context.Background()) {
		t.Fatal("forwardOne() = false, want true")
	}

	if len(prod.sent) != 1 || len(prod.sent[0]) != 2 {
		t.Fatalf("sent messages = %v, want one batch of 2", prod.sent)
	}
	if len(dq.purged) != 1 || dq.purged[0] != "c1" {
		t.Errorf("purged = %v, want [c1]", dq.purged)
	}
	if len(dq.takenBack) != 0 {
		t.Errorf("takenBack = %v, want none", dq.takenBack)
	}
}

func TestForwardOne_TakesBackOnPublishFailure(t *testing.T) {
	meta := &chunk.Metadata{TimeKey: "time", Tag: "app.log"}
	c := &fakeChunk{id: "c1", meta: meta, records: [][]byte{[]byte("r1")}}
	dq := &fakeDequeuer{queue: []chunk.Chunk{c}}
	prod := &fakeProducer{sendErr: errors.New("broker unavailable")}
	f := newTestForwarder(prod, dq)

	if !f.forwardOne(context.Background()) {
		t.Fatal("forwardOne() = false, want true")
	}

	if len(dq.takenBack) != 1 || dq.takenBack[0] != "c1" {
		t.Errorf("takenBack = %v, want [c1]", dq.takenBack)
	}
	if len(dq.purged) != 0 {
		t.Errorf("purged = %v, want none", dq.purged)
	}
}

func TestForwardOne_TakesBackOnRecordsReadFailure(t *testing.T) {
	meta := &chunk.Metadata{TimeKey: "time", Tag: "app.log"}
	c := &fakeChunk{id: "c1", meta: meta, readErr: errors.New("read failed")}
	dq := &fakeDequeuer{queue: []chunk.Chunk{c}}
	prod := &fakeProducer{}
	f := newTestForwarder(prod, dq)

	if !f.forwardOne(context.Background()) {
		t.Fatal("forwardOne() = false, want true")
	}

	if len(dq.takenBack) != 1 {
		t.Errorf("takenBack = %v, want one entry", dq.takenBack)
	}
}

func TestForwardOne_EmptyQueueReturnsFalse(t *testing.T) {
	dq := &fakeDequeuer{}
	f := newTestForwarder(&fakeProducer{}, dq)

	if f.forwardOne(context.Background()) {
		t.Error("forwardOne() = true, want false for an empty queue")
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	dq := &fakeDequeuer{}
	f := newTestForwarder(&fakeProducer{}, dq)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after context cancellation")
	}
}

func TestRun_StopsOnClose(t *testing.T) {
	dq := &fakeDequeuer{}
	f := newTestForwarder(&fakeProducer{}, dq)

	done := make(chan error, 1)
	go func() { done <- f.Run(context.Background()) }()

	if err := f.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after Close")
	}
}

func TestClose_Idempotent(t *testing.T) {
	f := newTestForwarder(&fakeProducer{}, &fakeDequeuer{})
	if err := f.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestPublishErrorReason(t *testing.T) {
	if got := publishErrorReason(errors.New("generic")); got != "fatal" {
		t.Errorf("publishErrorReason(generic) = %q, want fatal", got)
	}
}

func TestConfigureSecurity_Unsupported(t *testing.T) {
	cfg := Config{SecurityProtocol: "bogus"}
	saramaConfig := sarama.NewConfig()
	if err := configureSecurity(saramaConfig, cfg); err == nil {
		t.Error("expected an error for an unsupported security protocol")
	}
}

func TestConfigureSecurity_Plaintext(t *testing.T) {
	cfg := Config{SecurityProtocol: "PLAINTEXT"}
	saramaConfig := sarama.NewConfig()
	if err := configureSecurity(saramaConfig, cfg); err != nil {
		t.Errorf("configureSecurity() error = %v", err)
	}
	if saramaConfig.Net.SASL.Enable {
		t.Error("expected SASL disabled for PLAINTEXT")
	}
}

func TestConfigureSecurity_ScramSha256(t *testing.T) {
	cfg := Config{SecurityProtocol: "SASL_SSL", SASLMechanism: "SCRAM-SHA-256", SASLUsername: "u", SASLPassword: "p"}
	saramaConfig := sarama.NewConfig()
	if err := configureSecurity(saramaConfig, cfg); err != nil {
		t.Fatalf("configureSecurity() error = %v", err)
	}
	if !saramaConfig.Net.SASL.Enable {
		t.Error("expected SASL enabled")
	}
	if !saramaConfig.Net.TLS.Enable {
		t.Error("expected TLS enabled for SASL_SSL")
	}
	if saramaConfig.Net.SASL.SCRAMClientGeneratorFunc == nil {
		t.Fatal("expected a SCRAM client generator to be set")
	}
	client := saramaConfig.Net.SASL.SCRAMClientGeneratorFunc()
	if err := client.Begin("u", "p", ""); err != nil {
		t.Errorf("SCRAM client Begin() error = %v", err)
	}
}
