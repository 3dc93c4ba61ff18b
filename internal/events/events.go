// Package events defines the Kafka envelope and payloads exchanged with the
// fulfillment service.
package events

import (
	"encoding/json"
	"time"
)

const (
	EventDrawCommitted      = "DrawCommitted"
	EventOrderStatusChanged = "OrderStatusChanged"

	TopicDrawCommitted      = "blindbox.draw.committed"
	TopicOrderStatusChanged = "blindbox.order.status_changed"

	HeaderEventType    = "x-event-type"
	HeaderEventVersion = "x-event-version"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type DrawCommittedPayload struct {
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id"`
	BoxID     string    `json:"box_id"`
	BoxName   string    `json:"box_name"`
	PrizeID   string    `json:"prize_id"`
	PrizeName string    `json:"prize_name"`
	Rarity    string    `json:"rarity"`
	PricePaid string    `json:"price_paid"`
	CreatedAt time.Time `json:"created_at"`
}

// OrderStatusChangedPayload is produced by fulfillment when an order ships
// or completes.
type OrderStatusChangedPayload struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// PartitionKey keeps every event of one order on one partition.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
