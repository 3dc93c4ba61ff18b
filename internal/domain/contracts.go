package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// Catalog is the read side of catalog administration.
type Catalog interface {
	GetBoxWithPrizes(ctx context.Context, boxID string) (BlindBox, error)
	ListBoxes(ctx context.Context, keyword string) ([]BlindBox, error)
}

// BoxDeactivator is implemented by catalogs that can take a box offline when
// its prize table turns out to be unusable.
type BoxDeactivator interface {
	MarkInactive(ctx context.Context, boxID, reason string) error
}

type Balances interface {
	GetBalance(ctx context.Context, userID string) (decimal.Decimal, error)
}

// Guard is the only writer of box stock and user balance.
type Guard interface {
	// Reserve checks stock first, then funds. On success one unit of stock
	// and the box price are held until Commit or Release.
	Reserve(ctx context.Context, boxID, userID string) (Reservation, error)
}

type Reservation interface {
	// Price is the amount debited from the user.
	Price() decimal.Decimal
	// Scope returns the context that writes belonging to this reservation
	// must use so they commit or roll back together with it.
	Scope(ctx context.Context) context.Context
	Commit(ctx context.Context) error
	// Release restores stock and balance. Calling it after Commit is a no-op.
	Release(ctx context.Context) error
}

type Ledger interface {
	// Append stores the order under key. If key was used before, the stored
	// order is returned with created=false and nothing is written.
	Append(ctx context.Context, order Order, key string) (stored Order, created bool, err error)
	Lookup(ctx context.Context, key string) (Order, bool, error)
	Get(ctx context.Context, orderID string) (Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	UpdateStatus(ctx context.Context, orderID string, next OrderStatus) error
}

type EventPublisher interface {
	PublishDrawCommitted(ctx context.Context, order Order) error
}
