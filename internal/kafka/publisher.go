package kafka

import (
	"context"
	"strconv"
	"time"

	"github.com/ariefcatur/go-blindbox-draws/internal/domain"
	"github.com/ariefcatur/go-blindbox-draws/internal/events"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type publisher interface {
	Publish(key, value []byte, headers ...kafka.Header) error
}

// DrawPublisher announces committed draws on TopicDrawCommitted.
type DrawPublisher struct {
	Producer publisher
	Service  string
}

func (p *DrawPublisher) PublishDrawCommitted(_ context.Context, o domain.Order) error {
	env := events.Envelope{
		EventID:       uuid.NewString(),
		EventType:     events.EventDrawCommitted,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      p.Service,
		CorrelationID: o.ID,
		Payload: MustMarshal(events.DrawCommittedPayload{
			OrderID:   o.ID,
			UserID:    o.UserID,
			BoxID:     o.BoxID,
			BoxName:   o.BoxName,
			PrizeID:   o.PrizeID,
			PrizeName: o.PrizeName,
			Rarity:    string(o.Rarity),
			PricePaid: o.PricePaid.String(),
			CreatedAt: o.CreatedAt,
		}),
	}
	return p.Producer.Publish(events.PartitionKey(o.ID), MustMarshal(env),
		kafka.Header{Key: events.HeaderEventType, Value: []byte(events.EventDrawCommitted)},
		kafka.Header{Key: events.HeaderEventVersion, Value: []byte(strconv.Itoa(env.EventVersion))},
	)
}
