package draw

import (
	"time"

	"github.com/ariefcatur/go-blindbox-draws/internal/domain"
	"github.com/ariefcatur/go-blindbox-draws/internal/logger"
	"github.com/ariefcatur/go-blindbox-draws/internal/metrics"
	"github.com/ariefcatur/go-blindbox-draws/internal/probability"
)

type Option func(*Orchestrator)

// RetryPolicy bounds ledger append attempts after a reservation is held.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// delay is the wait after the given failed attempt (1-based), doubling each
// time up to MaxDelay.
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

func WithSelector(s *probability.Selector) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.selector = s
		}
	}
}

func WithPublisher(p domain.EventPublisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

func WithMetrics(m *metrics.Manager) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

func WithRetry(p RetryPolicy) Option {
	return func(o *Orchestrator) {
		if p.MaxAttempts > 0 {
			o.retry = p
		}
	}
}

// WithFinishTimeout bounds the time from RESERVED to a terminal state.
func WithFinishTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.finishTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(o *Orchestrator) { o.newID = newID }
}

func WithStateObserver(obs StateObserver) Option {
	return func(o *Orchestrator) { o.observer = obs }
}
