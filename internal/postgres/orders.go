package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-blindbox-draws/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const orderColumns = `id::text, idempotency_key, user_id, box_id, box_name, prize_id, prize_name,
	prize_image, rarity, price_paid::text, status, created_at`

// OrderRepo is the order ledger. Appends join the reservation transaction
// carried by ctx, so an order and its stock/balance change commit together.
type OrderRepo struct {
	DB TxBeginner
}

func NewOrderRepo(db TxBeginner) *OrderRepo { return &OrderRepo{DB: db} }

func (r *OrderRepo) Append(ctx context.Context, order domain.Order, key string) (domain.Order, bool, error) {
	if key == "" {
		return domain.Order{}, false, errors.New("idempotency key is required")
	}

	// Inside a reservation this is a savepoint, so a failed attempt can be
	// retried without aborting the outer transaction.
	tx, err := executorFrom(ctx, r.DB).Begin(ctx)
	if err != nil {
		return domain.Order{}, false, fmt.Errorf("begin append: %w", err)
	}
	done := false
	defer func() {
		if !done {
			_ = rollback(ctx, tx)
		}
	}()

	ct, err := tx.Exec(ctx, `
		INSERT INTO orders (id, idempotency_key, user_id, box_id, box_name, prize_id, prize_name,
		                    prize_image, rarity, price_paid, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::numeric, $11, $12)
		ON CONFLICT (idempotency_key) DO NOTHING`,
		order.ID, key, order.UserID, order.BoxID, order.BoxName, order.PrizeID, order.PrizeName,
		order.PrizeImage, string(order.Rarity), order.PricePaid.String(), string(order.Status), order.CreatedAt,
	)
	if err != nil {
		return domain.Order{}, false, fmt.Errorf("insert order: %w", err)
	}

	if ct.RowsAffected() == 0 {
		existing, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE idempotency_key = $1`, key))
		if err != nil {
			return domain.Order{}, false, fmt.Errorf("load order for key %s: %w", key, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return domain.Order{}, false, err
		}
		done = true
		return existing, false, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, false, fmt.Errorf("commit append: %w", err)
	}
	done = true
	order.IdempotencyKey = key
	return order, true, nil
}

func (r *OrderRepo) Lookup(ctx context.Context, key string) (domain.Order, bool, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE idempotency_key = $1`, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, false, nil
	}
	if err != nil {
		return domain.Order{}, false, err
	}
	return o, true, nil
}

func (r *OrderRepo) Get(ctx context.Context, orderID string) (domain.Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id::text = $1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, &domain.OrderNotFoundError{Msg: fmt.Sprintf("order %s not found", orderID)}
	}
	return o, err
}

func (r *OrderRepo) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *OrderRepo) UpdateStatus(ctx context.Context, orderID string, next domain.OrderStatus) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	done := false
	defer func() {
		if !done {
			_ = rollback(ctx, tx)
		}
	}()

	var current string
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id::text = $1 FOR UPDATE`, orderID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return &domain.OrderNotFoundError{Msg: fmt.Sprintf("order %s not found", orderID)}
	}
	if err != nil {
		return err
	}
	from := domain.OrderStatus(current)
	if !domain.CanTransition(from, next) {
		return &domain.InvalidTransitionError{From: from, To: next}
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET status = $2, updated_at = now() WHERE id::text = $1`, orderID, string(next)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	done = true
	return nil
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o         domain.Order
		rarity    string
		status    string
		priceText string
		createdAt time.Time
	)
	err := row.Scan(&o.ID, &o.IdempotencyKey, &o.UserID, &o.BoxID, &o.BoxName, &o.PrizeID, &o.PrizeName,
		&o.PrizeImage, &rarity, &priceText, &status, &createdAt)
	if err != nil {
		return domain.Order{}, err
	}
	price, err := decimal.NewFromString(priceText)
	if err != nil {
		return domain.Order{}, fmt.Errorf("parse price_paid %q: %w", priceText, err)
	}
	o.Rarity = domain.Rarity(rarity)
	o.Status = domain.OrderStatus(status)
	o.PricePaid = price
	o.CreatedAt = createdAt.UTC()
	return o, nil
}
