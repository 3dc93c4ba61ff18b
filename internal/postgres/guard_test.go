package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ariefcatur/go-blindbox-draws/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardReserve(t *testing.T) {
	t.Parallel()

	type testCase struct {
		name    string
		prepare func(mock pgxmock.PgxPoolIface)
		wantErr error
	}

	testCases := []testCase{
		{
			name: "success",
			prepare: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
				mock.ExpectQuery("FROM blind_boxes WHERE id = \\$1 FOR UPDATE").
					WithArgs("box-1").
					WillReturnRows(pgxmock.NewRows([]string{"stock", "price"}).AddRow(1, "10.00"))
				mock.ExpectQuery("FROM accounts WHERE user_id = \\$1 FOR UPDATE").
					WithArgs("u1").
					WillReturnRows(pgxmock.NewRows([]string{"balance"}).AddRow("15.00"))
				mock.ExpectExec("UPDATE blind_boxes SET stock = stock - 1").
					WithArgs("box-1").
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
				mock.ExpectExec("UPDATE accounts SET balance = balance").
					WithArgs("u1", "10").
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
		},
		{
			name: "out of stock is checked before the account",
			prepare: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
				mock.ExpectQuery("FROM blind_boxes").
					WithArgs("box-1").
					WillReturnRows(pgxmock.NewRows([]string{"stock", "price"}).AddRow(0, "10.00"))
				mock.ExpectRollback()
			},
			wantErr: &domain.OutOfStockError{},
		},
		{
			name: "insufficient balance",
			prepare: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
				mock.ExpectQuery("FROM blind_boxes").
					WithArgs("box-1").
					WillReturnRows(pgxmock.NewRows([]string{"stock", "price"}).AddRow(3, "10.00"))
				mock.ExpectQuery("FROM accounts").
					WithArgs("u1").
					WillReturnRows(pgxmock.NewRows([]string{"balance"}).AddRow("9.99"))
				mock.ExpectRollback()
			},
			wantErr: &domain.InsufficientBalanceError{},
		},
		{
			name: "box not found",
			prepare: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
				mock.ExpectQuery("FROM blind_boxes").WithArgs("box-1").WillReturnError(pgx.ErrNoRows)
				mock.ExpectRollback()
			},
			wantErr: &domain.BoxNotFoundError{},
		},
		{
			name: "account not found",
			prepare: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
				mock.ExpectQuery("FROM blind_boxes").
					WithArgs("box-1").
					WillReturnRows(pgxmock.NewRows([]string{"stock", "price"}).AddRow(3, "10.00"))
				mock.ExpectQuery("FROM accounts").WithArgs("u1").WillReturnError(pgx.ErrNoRows)
				mock.ExpectRollback()
			},
			wantErr: &domain.UserNotFoundError{},
		},
		{
			name: "begin fails",
			prepare: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted}).WillReturnError(assert.AnError)
			},
			wantErr: assert.AnError,
		},
		{
			name: "stock update loses the race",
			prepare: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
				mock.ExpectQuery("FROM blind_boxes").
					WithArgs("box-1").
					WillReturnRows(pgxmock.NewRows([]string{"stock", "price"}).AddRow(1, "10.00"))
				mock.ExpectQuery("FROM accounts").
					WithArgs("u1").
					WillReturnRows(pgxmock.NewRows([]string{"balance"}).AddRow("15.00"))
				mock.ExpectExec("UPDATE blind_boxes").
					WithArgs("box-1").
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
				mock.ExpectRollback()
			},
			wantErr: &domain.OutOfStockError{},
		},
	}

	for _, tc := range testCases {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()
			tt.prepare(mock)

			res, err := NewGuard(mock).Reserve(context.Background(), "box-1", "u1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, res)
			} else {
				require.NoError(t, err)
				assert.True(t, decimal.NewFromInt(10).Equal(res.Price()))
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func expectReserved(mock pgxmock.PgxPoolIface) {
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectQuery("FROM blind_boxes").
		WithArgs("box-1").
		WillReturnRows(pgxmock.NewRows([]string{"stock", "price"}).AddRow(1, "10.00"))
	mock.ExpectQuery("FROM accounts").
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"balance"}).AddRow("15.00"))
	mock.ExpectExec("UPDATE blind_boxes").WithArgs("box-1").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE accounts").WithArgs("u1", "10").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
}

func TestReservationReleaseRollsBack(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectReserved(mock)
	mock.ExpectRollback()

	ctx := context.Background()
	res, err := NewGuard(mock).Reserve(ctx, "box-1", "u1")
	require.NoError(t, err)
	require.NoError(t, res.Release(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderAppendJoinsReservation(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	order := domain.Order{
		ID: "8d2c6a8e-8a39-4d8e-9f7e-0d6c2a1b9e11", UserID: "u1", BoxID: "box-1", BoxName: "Forest Friends",
		PrizeID: "p1", PrizeName: "Fox", PrizeImage: "fox.png", Rarity: domain.RarityCommon,
		PricePaid: decimal.NewFromInt(10), Status: domain.OrderStatusPaid, CreatedAt: created,
	}

	expectReserved(mock)
	// savepoint for the first attempt fails, the second succeeds
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").
		WithArgs(order.ID, "k1", "u1", "box-1", "Forest Friends", "p1", "Fox", "fox.png", "common", "10", "PAID", created).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectCommit()

	ctx := context.Background()
	res, err := NewGuard(mock).Reserve(ctx, "box-1", "u1")
	require.NoError(t, err)

	repo := NewOrderRepo(mock)
	_, _, err = repo.Append(res.Scope(ctx), order, "k1")
	require.Error(t, err)

	stored, isNew, err := repo.Append(res.Scope(ctx), order, "k1")
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Equal(t, "k1", stored.IdempotencyKey)

	require.NoError(t, res.Commit(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}
