package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/ariefcatur/go-blindbox-draws/internal/logger"
	"github.com/segmentio/kafka-go"
)

// Handler returns nil only when the message may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r          messageReader
	workers    int
	backoff    time.Duration
	maxBackoff time.Duration
	log        logger.Logger
}

func NewConsumer(brokers []string, group, topic string, workers int) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
	})
	return newConsumer(r, workers, logger.Named("kafka-consumer").With(logger.String("topic", topic)))
}

func newConsumer(r messageReader, workers int, log logger.Logger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{
		r:          r,
		workers:    workers,
		backoff:    200 * time.Millisecond,
		maxBackoff: 10 * time.Second,
		log:        log,
	}
}

// Start fetches until ctx is done. Each partition is owned by one worker, so
// a partition's messages are handled and committed in offset order. A failing
// message is retried in place and nothing after it on its partition is
// committed until it succeeds.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	queues := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan kafka.Message, 4)
		wg.Add(1)
		go func(jobs <-chan kafka.Message) {
			defer wg.Done()
			c.work(ctx, h, jobs)
		}(queues[i])
	}
	defer wg.Wait()
	defer func() {
		for _, q := range queues {
			close(q)
		}
	}()

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case queues[m.Partition%c.workers] <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Consumer) work(ctx context.Context, h Handler, jobs <-chan kafka.Message) {
	stopped := false
	for m := range jobs {
		// once a message is abandoned nothing queued behind it may commit
		if stopped {
			continue
		}
		if !c.handle(ctx, h, m) {
			stopped = true
			continue
		}
		if err := c.r.CommitMessages(ctx, m); err != nil {
			c.log.Warn(ctx, "commit failed", logger.Any("offset", m.Offset), logger.Error(err))
		}
	}
}

// handle runs h until it succeeds. It gives up only when ctx ends.
func (c *Consumer) handle(ctx context.Context, h Handler, m kafka.Message) bool {
	delay := c.backoff
	for attempt := 1; ; attempt++ {
		err := h(ctx, m)
		if err == nil {
			return true
		}
		c.log.Error(ctx, "handle message failed",
			logger.Int("partition", m.Partition),
			logger.Any("offset", m.Offset),
			logger.Int("attempt", attempt),
			logger.Error(err))
		if !c.pause(ctx, delay) {
			return false
		}
		delay = min(delay*2, c.maxBackoff)
	}
}

func (c *Consumer) pause(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
