package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/ariefcatur/go-blindbox-draws/internal/domain"
	"github.com/shopspring/decimal"
)

// Reserve locks the box, then the account, and keeps both locked until the
// reservation is committed or released. Every caller takes the locks in that
// order, so two draws can never wait on each other in a cycle.
func (s *Store) Reserve(ctx context.Context, boxID, userID string) (domain.Reservation, error) {
	box, err := s.box(boxID)
	if err != nil {
		return nil, err
	}
	acct, err := s.account(userID)
	if err != nil {
		return nil, err
	}

	if err := box.lock(ctx); err != nil {
		return nil, err
	}
	if err := acct.lock(ctx); err != nil {
		box.unlock()
		return nil, err
	}

	if box.stock <= 0 {
		acct.unlock()
		box.unlock()
		return nil, &domain.OutOfStockError{Msg: fmt.Sprintf("blind box %s is out of stock", boxID)}
	}
	price := box.price
	if acct.balance.LessThan(price) {
		acct.unlock()
		box.unlock()
		return nil, &domain.InsufficientBalanceError{
			Msg: fmt.Sprintf("balance %s is below price %s", acct.balance, price),
		}
	}

	box.stock--
	acct.balance = acct.balance.Sub(price)
	return &reservation{box: box, acct: acct, price: price}, nil
}

type reservation struct {
	box   *boxEntry
	acct  *account
	price decimal.Decimal
	once  sync.Once

	mu     sync.Mutex
	onDone []func(committed bool)
}

type scopeKey struct{}

func (r *reservation) Price() decimal.Decimal { return r.price }

// Scope marks ctx so ledger writes made with it stay hidden until Commit and
// are dropped by Release.
func (r *reservation) Scope(ctx context.Context) context.Context {
	return context.WithValue(ctx, scopeKey{}, r)
}

func (r *reservation) Commit(context.Context) error {
	r.once.Do(func() {
		r.finish(true)
		r.unlock()
	})
	return nil
}

func (r *reservation) Release(context.Context) error {
	r.once.Do(func() {
		r.box.stock++
		r.acct.balance = r.acct.balance.Add(r.price)
		r.finish(false)
		r.unlock()
	})
	return nil
}

// stage registers fn to run when the reservation ends.
func (r *reservation) stage(fn func(committed bool)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onDone = append(r.onDone, fn)
}

func (r *reservation) finish(committed bool) {
	r.mu.Lock()
	fns := r.onDone
	r.onDone = nil
	r.mu.Unlock()
	for _, fn := range fns {
		fn(committed)
	}
}

func reservationFrom(ctx context.Context) *reservation {
	r, _ := ctx.Value(scopeKey{}).(*reservation)
	return r
}

func (r *reservation) unlock() {
	r.acct.unlock()
	r.box.unlock()
}
