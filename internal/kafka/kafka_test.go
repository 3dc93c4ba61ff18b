package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-blindbox-draws/internal/domain"
	"github.com/ariefcatur/go-blindbox-draws/internal/events"
	"github.com/ariefcatur/go-blindbox-draws/internal/logger"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	fail   error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail != nil {
		return w.fail
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestProducerFlushesOnClose(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, 8, logger.Nop())
	p.Start(context.Background())

	require.NoError(t, p.Publish([]byte("k1"), []byte("v1")))
	require.NoError(t, p.Publish([]byte("k2"), []byte("v2")))
	p.Close()
	p.WaitClosed()

	assert.Len(t, w.msgs, 2)
	assert.True(t, w.closed)
	assert.ErrorIs(t, p.Publish([]byte("k3"), nil), ErrProducerClosed)
}

func TestProducerBufferFull(t *testing.T) {
	p := newProducer(&fakeWriter{}, 1, logger.Nop())
	// not started, so the single slot stays occupied
	require.NoError(t, p.Publish([]byte("k1"), nil))
	assert.Error(t, p.Publish([]byte("k2"), nil))
}

func TestProducerSurvivesWriteErrors(t *testing.T) {
	w := &fakeWriter{fail: errors.New("broker down")}
	p := newProducer(w, 4, logger.Nop())
	p.Start(context.Background())
	require.NoError(t, p.Publish([]byte("k"), []byte("v")))
	p.Close()
	p.WaitClosed()
	assert.Empty(t, w.msgs)
	assert.True(t, w.closed)
}

type recordingPublisher struct {
	key     []byte
	value   []byte
	headers []kafka.Header
}

func (r *recordingPublisher) Publish(key, value []byte, headers ...kafka.Header) error {
	r.key, r.value, r.headers = key, value, headers
	return nil
}

func TestDrawPublisherEnvelope(t *testing.T) {
	rec := &recordingPublisher{}
	pub := &DrawPublisher{Producer: rec, Service: "blindbox-api"}
	order := domain.Order{
		ID:        "o-1",
		UserID:    "u-1",
		BoxID:     "box-1",
		BoxName:   "Forest Friends",
		PrizeID:   "p1",
		PrizeName: "Fox",
		Rarity:    domain.RarityCommon,
		PricePaid: decimal.RequireFromString("59.90"),
		Status:    domain.OrderStatusPaid,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	require.NoError(t, pub.PublishDrawCommitted(context.Background(), order))
	assert.Equal(t, []byte("o-1"), rec.key)
	require.Len(t, rec.headers, 2)
	assert.Equal(t, events.HeaderEventType, rec.headers[0].Key)
	assert.Equal(t, events.EventDrawCommitted, string(rec.headers[0].Value))
	assert.Equal(t, "1", string(rec.headers[1].Value))

	var env events.Envelope
	require.NoError(t, json.Unmarshal(rec.value, &env))
	assert.Equal(t, events.EventDrawCommitted, env.EventType)
	assert.Equal(t, "blindbox-api", env.Producer)
	assert.Equal(t, "o-1", env.CorrelationID)
	assert.NotEmpty(t, env.EventID)

	p, err := UnwrapPayload[events.DrawCommittedPayload](env.Payload)
	require.NoError(t, err)
	assert.Equal(t, "59.9", p.PricePaid)
	assert.Equal(t, "Fox", p.PrizeName)
	assert.Equal(t, "common", p.Rarity)
}

func TestUnwrapPayloadRejectsGarbage(t *testing.T) {
	_, err := UnwrapPayload[events.OrderStatusChangedPayload](json.RawMessage(`{"order_id":`))
	assert.Error(t, err)
}

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	done      chan struct{}
	want      int
}

func newFakeReader(want int, msgs ...kafka.Message) *fakeReader {
	return &fakeReader{queue: msgs, done: make(chan struct{}), want: want}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	if len(r.committed) == r.want {
		close(r.done)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) committedOffsets(partition int) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int64
	for _, m := range r.committed {
		if m.Partition == partition {
			out = append(out, m.Offset)
		}
	}
	return out
}

type handlerLog struct {
	mu    sync.Mutex
	seen  []kafka.Message
	calls []int64
}

// record returns how many times m's partition and offset have been handled.
func (l *handlerLog) record(m kafka.Message) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen = append(l.seen, m)
	l.calls = append(l.calls, m.Offset)
	n := 0
	for _, s := range l.seen {
		if s.Partition == m.Partition && s.Offset == m.Offset {
			n++
		}
	}
	return n
}

func runConsumer(t *testing.T, c *Consumer, h Handler) (context.CancelFunc, <-chan error) {
	t.Helper()
	c.backoff = time.Millisecond
	c.maxBackoff = 4 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	errCh := make(chan error, 1)
	go func() { errCh <- c.Start(ctx, h) }()
	return cancel, errCh
}

func TestConsumerRetriesFailedMessageInPlace(t *testing.T) {
	r := newFakeReader(3, kafka.Message{Offset: 1}, kafka.Message{Offset: 2}, kafka.Message{Offset: 3})
	calls := &handlerLog{}
	cancel, errCh := runConsumer(t, newConsumer(r, 1, logger.Nop()), func(_ context.Context, m kafka.Message) error {
		if calls.record(m) == 1 && m.Offset == 2 {
			return errors.New("connection reset")
		}
		return nil
	})

	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("messages were not committed")
	}
	cancel()
	require.NoError(t, <-errCh)

	calls.mu.Lock()
	defer calls.mu.Unlock()
	assert.Equal(t, []int64{1, 2, 2, 3}, calls.calls)
	assert.Equal(t, []int64{1, 2, 3}, r.committedOffsets(0))
}

func TestConsumerNeverCommitsPastFailingMessage(t *testing.T) {
	r := newFakeReader(-1, kafka.Message{Offset: 1}, kafka.Message{Offset: 2}, kafka.Message{Offset: 3})
	calls := &handlerLog{}
	retried := make(chan struct{})
	var once sync.Once
	cancel, errCh := runConsumer(t, newConsumer(r, 1, logger.Nop()), func(_ context.Context, m kafka.Message) error {
		if m.Offset != 2 {
			calls.record(m)
			return nil
		}
		if calls.record(m) >= 3 {
			once.Do(func() { close(retried) })
		}
		return errors.New("database down")
	})

	select {
	case <-retried:
	case <-time.After(2 * time.Second):
		t.Fatal("failing message was not retried")
	}
	cancel()
	require.NoError(t, <-errCh)

	assert.Equal(t, []int64{1}, r.committedOffsets(0))
	calls.mu.Lock()
	defer calls.mu.Unlock()
	assert.NotContains(t, calls.calls, int64(3))
}

func TestConsumerCommitsInOrderPerPartition(t *testing.T) {
	var msgs []kafka.Message
	for off := int64(1); off <= 5; off++ {
		msgs = append(msgs, kafka.Message{Partition: 0, Offset: off}, kafka.Message{Partition: 1, Offset: off})
	}
	r := newFakeReader(len(msgs), msgs...)
	calls := &handlerLog{}
	cancel, errCh := runConsumer(t, newConsumer(r, 2, logger.Nop()), func(_ context.Context, m kafka.Message) error {
		if calls.record(m) == 1 && m.Offset == 3 {
			return errors.New("timeout")
		}
		return nil
	})

	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("messages were not committed")
	}
	cancel()
	require.NoError(t, <-errCh)

	assert.Equal(t, []int64{1, 2, 3, 4, 5}, r.committedOffsets(0))
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, r.committedOffsets(1))
}
