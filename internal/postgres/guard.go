package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-blindbox-draws/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Guard reserves stock and funds inside one transaction. Rows are locked box
// first, account second, and stay locked until the reservation ends.
type Guard struct {
	DB TxBeginner
}

func NewGuard(db TxBeginner) *Guard { return &Guard{DB: db} }

func (g *Guard) Reserve(ctx context.Context, boxID, userID string) (domain.Reservation, error) {
	tx, err := g.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin reservation: %w", err)
	}
	held := false
	defer func() {
		if !held {
			_ = rollback(ctx, tx)
		}
	}()

	var (
		stock     int
		priceText string
	)
	err = tx.QueryRow(ctx, `SELECT stock, price::text FROM blind_boxes WHERE id = $1 FOR UPDATE`, boxID).
		Scan(&stock, &priceText)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.BoxNotFoundError{Msg: fmt.Sprintf("blind box %s not found", boxID)}
	}
	if err != nil {
		return nil, fmt.Errorf("lock box: %w", err)
	}
	if stock <= 0 {
		return nil, &domain.OutOfStockError{Msg: fmt.Sprintf("blind box %s is out of stock", boxID)}
	}
	price, err := decimal.NewFromString(priceText)
	if err != nil {
		return nil, fmt.Errorf("parse price %q: %w", priceText, err)
	}

	var balanceText string
	err = tx.QueryRow(ctx, `SELECT balance::text FROM accounts WHERE user_id = $1 FOR UPDATE`, userID).
		Scan(&balanceText)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.UserNotFoundError{Msg: fmt.Sprintf("account %s not found", userID)}
	}
	if err != nil {
		return nil, fmt.Errorf("lock account: %w", err)
	}
	balance, err := decimal.NewFromString(balanceText)
	if err != nil {
		return nil, fmt.Errorf("parse balance %q: %w", balanceText, err)
	}
	if balance.LessThan(price) {
		return nil, &domain.InsufficientBalanceError{
			Msg: fmt.Sprintf("balance %s is below price %s", balance, price),
		}
	}

	ct, err := tx.Exec(ctx, `UPDATE blind_boxes SET stock = stock - 1, updated_at = now() WHERE id = $1 AND stock > 0`, boxID)
	if err != nil {
		return nil, fmt.Errorf("decrement stock: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return nil, &domain.OutOfStockError{Msg: fmt.Sprintf("blind box %s is out of stock", boxID)}
	}

	ct, err = tx.Exec(ctx, `
		UPDATE accounts SET balance = balance - $2::numeric, updated_at = now()
		WHERE user_id = $1 AND balance >= $2::numeric`, userID, price.String())
	if err != nil {
		return nil, fmt.Errorf("debit balance: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return nil, &domain.InsufficientBalanceError{Msg: fmt.Sprintf("balance is below price %s", price)}
	}

	held = true
	return &reservation{tx: tx, price: price}, nil
}

type reservation struct {
	tx    pgx.Tx
	price decimal.Decimal
}

func (r *reservation) Price() decimal.Decimal { return r.price }

func (r *reservation) Scope(ctx context.Context) context.Context { return withTx(ctx, r.tx) }

func (r *reservation) Commit(ctx context.Context) error {
	if err := r.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reservation: %w", err)
	}
	return nil
}

func (r *reservation) Release(ctx context.Context) error {
	if err := rollback(ctx, r.tx); err != nil {
		return fmt.Errorf("release reservation: %w", err)
	}
	return nil
}
