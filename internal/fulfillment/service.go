// Package fulfillment applies shipping status updates from the fulfillment
// system to the order ledger.
package fulfillment

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ariefcatur/go-blindbox-draws/internal/domain"
	"github.com/ariefcatur/go-blindbox-draws/internal/events"
	kafkax "github.com/ariefcatur/go-blindbox-draws/internal/kafka"
	"github.com/ariefcatur/go-blindbox-draws/internal/logger"
	"github.com/ariefcatur/go-blindbox-draws/internal/metrics"
	"github.com/ariefcatur/go-blindbox-draws/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

const (
	ResultApplied   = "applied"
	ResultDuplicate = "duplicate"
	ResultSkipped   = "skipped"
	ResultFailed    = "failed"
)

type Service struct {
	Ledger      domain.Ledger
	Redis       redis.Cmdable
	ServiceName string
	Log         logger.Logger
	Metrics     *metrics.Manager
}

// HandleStatusChanged is installed as the consumer handler. It returns an
// error only for failures worth a redelivery.
func (s *Service) HandleStatusChanged(ctx context.Context, m kafkago.Message) error {
	log := s.logger()

	var env events.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		log.Warn(ctx, "dropping undecodable message", logger.Any("offset", m.Offset), logger.Error(err))
		s.record(ResultSkipped)
		return nil
	}
	if env.EventType != events.EventOrderStatusChanged {
		return nil
	}
	log = log.With(logger.String("event_id", env.EventID), logger.String("trace_id", env.TraceID))

	if s.Redis != nil {
		first, err := redisx.MarkProcessed(ctx, s.Redis, s.ServiceName, env.EventID)
		switch {
		case err != nil:
			// repeated transitions are rejected by the ledger anyway
			log.Warn(ctx, "dedup unavailable", logger.Error(err))
		case !first:
			s.record(ResultDuplicate)
			return nil
		}
	}

	p, err := kafkax.UnwrapPayload[events.OrderStatusChangedPayload](env.Payload)
	if err != nil {
		log.Warn(ctx, "dropping bad payload", logger.Error(err))
		s.record(ResultSkipped)
		return nil
	}
	next := domain.OrderStatus(p.Status)
	if !next.Valid() {
		log.Warn(ctx, "unknown order status", logger.String("order_id", p.OrderID), logger.String("status", p.Status))
		s.record(ResultSkipped)
		return nil
	}

	err = s.Ledger.UpdateStatus(ctx, p.OrderID, next)
	switch {
	case err == nil:
		log.Info(ctx, "order status updated", logger.String("order_id", p.OrderID), logger.String("status", p.Status))
		s.record(ResultApplied)
		return nil
	case errors.Is(err, &domain.OrderNotFoundError{}), errors.Is(err, &domain.InvalidTransitionError{}):
		log.Warn(ctx, "status update skipped", logger.String("order_id", p.OrderID), logger.Error(err))
		s.record(ResultSkipped)
		return nil
	default:
		if s.Redis != nil {
			if ferr := redisx.ForgetProcessed(ctx, s.Redis, s.ServiceName, env.EventID); ferr != nil {
				log.Warn(ctx, "dedup marker not cleared", logger.Error(ferr))
			}
		}
		s.record(ResultFailed)
		return err
	}
}

func (s *Service) logger() logger.Logger {
	if s.Log != nil {
		return s.Log
	}
	return logger.Get()
}

func (s *Service) record(result string) {
	if s.Metrics != nil {
		s.Metrics.RecordFulfillmentEvent(result)
		return
	}
	metrics.RecordFulfillmentEvent(result)
}
