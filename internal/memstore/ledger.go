package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ariefcatur/go-blindbox-draws/internal/domain"
)

// Ledger keeps orders in memory. An order appended under a reservation's
// scope is pending: it holds its key but is invisible to readers until the
// reservation commits, and disappears if it is released.
type Ledger struct {
	mu      sync.RWMutex
	byID    map[string]domain.Order
	pending map[string]domain.Order
	byKey   map[string]string
	byUser  map[string][]string
}

func NewLedger() *Ledger {
	return &Ledger{
		byID:    make(map[string]domain.Order),
		pending: make(map[string]domain.Order),
		byKey:   make(map[string]string),
		byUser:  make(map[string][]string),
	}
}

func (l *Ledger) Append(ctx context.Context, order domain.Order, key string) (domain.Order, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, false, err
	}
	if key == "" {
		return domain.Order{}, false, fmt.Errorf("idempotency key is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if id, ok := l.byKey[key]; ok {
		if o, ok := l.byID[id]; ok {
			return o, false, nil
		}
		return l.pending[id], false, nil
	}
	_, used := l.byID[order.ID]
	_, staged := l.pending[order.ID]
	if used || staged {
		return domain.Order{}, false, fmt.Errorf("order id %s already used", order.ID)
	}
	order.IdempotencyKey = key
	l.byKey[key] = order.ID

	res := reservationFrom(ctx)
	if res == nil {
		l.publish(order)
		return order, true, nil
	}
	l.pending[order.ID] = order
	res.stage(func(committed bool) {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.pending, order.ID)
		if committed {
			l.publish(order)
			return
		}
		delete(l.byKey, key)
	})
	return order, true, nil
}

// publish needs l.mu held.
func (l *Ledger) publish(order domain.Order) {
	l.byID[order.ID] = order
	l.byUser[order.UserID] = append(l.byUser[order.UserID], order.ID)
}

func (l *Ledger) Lookup(_ context.Context, key string) (domain.Order, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	o, ok := l.byID[l.byKey[key]]
	if !ok {
		return domain.Order{}, false, nil
	}
	return o, true, nil
}

func (l *Ledger) Get(_ context.Context, orderID string) (domain.Order, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	o, ok := l.byID[orderID]
	if !ok {
		return domain.Order{}, &domain.OrderNotFoundError{Msg: fmt.Sprintf("order %s not found", orderID)}
	}
	return o, nil
}

// ListByUser returns the user's orders, newest first.
func (l *Ledger) ListByUser(_ context.Context, userID string) ([]domain.Order, error) {
	l.mu.RLock()
	ids := l.byUser[userID]
	out := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		out = append(out, l.byID[id])
	}
	l.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (l *Ledger) UpdateStatus(_ context.Context, orderID string, next domain.OrderStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.byID[orderID]
	if !ok {
		return &domain.OrderNotFoundError{Msg: fmt.Sprintf("order %s not found", orderID)}
	}
	if !domain.CanTransition(o.Status, next) {
		return &domain.InvalidTransitionError{From: o.Status, To: next}
	}
	o.Status = next
	l.byID[orderID] = o
	return nil
}
