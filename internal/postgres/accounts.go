package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-blindbox-draws/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type AccountRepo struct {
	DB Executor
}

func NewAccountRepo(db Executor) *AccountRepo { return &AccountRepo{DB: db} }

func (r *AccountRepo) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	var text string
	err := r.DB.QueryRow(ctx, `SELECT balance::text FROM accounts WHERE user_id = $1`, userID).Scan(&text)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, &domain.UserNotFoundError{Msg: fmt.Sprintf("account %s not found", userID)}
	}
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(text)
}
