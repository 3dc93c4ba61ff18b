// Package memstore is the single-process backend: one Store owns every box's
// stock and every user's balance, and Ledger keeps orders in memory.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ariefcatur/go-blindbox-draws/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/semaphore"
)

// cell serializes access to one box or one account. Acquire honours ctx so a
// caller can give up while waiting.
type cell struct {
	sem *semaphore.Weighted
}

func newCell() cell { return cell{sem: semaphore.NewWeighted(1)} }

func (c cell) lock(ctx context.Context) error { return c.sem.Acquire(ctx, 1) }
func (c cell) unlock()                        { c.sem.Release(1) }

type boxEntry struct {
	cell
	meta  domain.BlindBox
	price decimal.Decimal
	stock int
}

type account struct {
	cell
	balance decimal.Decimal
}

type Store struct {
	mu       sync.RWMutex
	boxes    map[string]*boxEntry
	order    []string
	accounts map[string]*account
}

func New() *Store {
	return &Store{
		boxes:    make(map[string]*boxEntry),
		accounts: make(map[string]*account),
	}
}

// PutBox adds or replaces a box. It stands in for catalog administration.
func (s *Store) PutBox(box domain.BlindBox) {
	meta := box
	meta.Prizes = append([]domain.Prize(nil), box.Prizes...)

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.boxes[box.ID]; ok {
		_ = e.lock(context.Background())
		e.meta, e.price, e.stock = meta, box.Price, box.Stock
		e.unlock()
		return
	}
	s.boxes[box.ID] = &boxEntry{cell: newCell(), meta: meta, price: box.Price, stock: box.Stock}
	s.order = append(s.order, box.ID)
}

// SetPrice changes a box's price. Existing orders keep the price they paid.
func (s *Store) SetPrice(ctx context.Context, boxID string, price decimal.Decimal) error {
	e, err := s.box(boxID)
	if err != nil {
		return err
	}
	if err := e.lock(ctx); err != nil {
		return err
	}
	defer e.unlock()
	e.price = price
	return nil
}

func (s *Store) PutAccount(userID string, balance decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[userID]; ok {
		_ = a.lock(context.Background())
		a.balance = balance
		a.unlock()
		return
	}
	s.accounts[userID] = &account{cell: newCell(), balance: balance}
}

// Credit is the top-up primitive used by the account service.
func (s *Store) Credit(ctx context.Context, userID string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("credit amount must be positive, got %s", amount)
	}
	a, err := s.account(userID)
	if err != nil {
		return err
	}
	if err := a.lock(ctx); err != nil {
		return err
	}
	defer a.unlock()
	a.balance = a.balance.Add(amount)
	return nil
}

func (s *Store) box(id string) (*boxEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.boxes[id]
	if !ok {
		return nil, &domain.BoxNotFoundError{Msg: fmt.Sprintf("blind box %s not found", id)}
	}
	return e, nil
}

func (s *Store) account(userID string) (*account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[userID]
	if !ok {
		return nil, &domain.UserNotFoundError{Msg: fmt.Sprintf("account %s not found", userID)}
	}
	return a, nil
}

func (s *Store) GetBoxWithPrizes(ctx context.Context, boxID string) (domain.BlindBox, error) {
	e, err := s.box(boxID)
	if err != nil {
		return domain.BlindBox{}, err
	}
	if err := e.lock(ctx); err != nil {
		return domain.BlindBox{}, err
	}
	defer e.unlock()
	return e.snapshot(), nil
}

// snapshot must be called with the entry locked.
func (e *boxEntry) snapshot() domain.BlindBox {
	b := e.meta
	b.Price = e.price
	b.Stock = e.stock
	b.Prizes = append([]domain.Prize(nil), e.meta.Prizes...)
	return b
}

func (s *Store) ListBoxes(ctx context.Context, keyword string) ([]domain.BlindBox, error) {
	s.mu.RLock()
	entries := make([]*boxEntry, 0, len(s.order))
	for _, id := range s.order {
		entries = append(entries, s.boxes[id])
	}
	s.mu.RUnlock()

	keyword = strings.ToLower(strings.TrimSpace(keyword))
	out := make([]domain.BlindBox, 0, len(entries))
	for _, e := range entries {
		if err := e.lock(ctx); err != nil {
			return nil, err
		}
		b := e.snapshot()
		e.unlock()
		if keyword != "" && !strings.Contains(strings.ToLower(b.Name), keyword) {
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) MarkInactive(ctx context.Context, boxID, _ string) error {
	e, err := s.box(boxID)
	if err != nil {
		return err
	}
	if err := e.lock(ctx); err != nil {
		return err
	}
	defer e.unlock()
	e.meta.Active = false
	return nil
}

func (s *Store) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	a, err := s.account(userID)
	if err != nil {
		return decimal.Zero, err
	}
	if err := a.lock(ctx); err != nil {
		return decimal.Zero, err
	}
	defer a.unlock()
	return a.balance, nil
}
