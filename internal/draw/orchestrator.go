// Package draw runs a single blind box purchase from request to committed
// order.
package draw

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-blindbox-draws/internal/domain"
	"github.com/ariefcatur/go-blindbox-draws/internal/logger"
	"github.com/ariefcatur/go-blindbox-draws/internal/metrics"
	"github.com/ariefcatur/go-blindbox-draws/internal/probability"
	"github.com/google/uuid"
)

type Request struct {
	BoxID  string
	UserID string
	// IdempotencyKey is optional. Repeating a draw with the same key returns
	// the first order instead of drawing again.
	IdempotencyKey string
}

type Orchestrator struct {
	catalog domain.Catalog
	guard   domain.Guard
	ledger  domain.Ledger

	selector      *probability.Selector
	publisher     domain.EventPublisher
	log           logger.Logger
	metrics       *metrics.Manager
	retry         RetryPolicy
	finishTimeout time.Duration
	now           func() time.Time
	newID         func() string
	observer      StateObserver
}

func New(catalog domain.Catalog, guard domain.Guard, ledger domain.Ledger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		catalog:       catalog,
		guard:         guard,
		ledger:        ledger,
		selector:      probability.NewSelector(nil),
		log:           logger.Named("draw"),
		metrics:       metrics.Default(),
		retry:         RetryPolicy{MaxAttempts: 3, BaseDelay: 50 * time.Millisecond, MaxDelay: 500 * time.Millisecond},
		finishTimeout: 3 * time.Second,
		now:           time.Now,
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Draw sells one unit of the box to the user and returns the resulting order.
//
// Errors before the reservation leave stock and balance untouched. Once a
// reservation is held the draw ignores caller cancellation and ends either
// committed or rolled back within the finish timeout.
func (o *Orchestrator) Draw(ctx context.Context, req Request) (domain.Order, error) {
	start := time.Now()
	t := &txn{id: o.newID(), state: StatePending, obs: o.observer}
	log := o.log.With(
		logger.String("tx_id", t.id),
		logger.String("box_id", req.BoxID),
		logger.String("user_id", req.UserID),
	)

	order, outcome, err := o.run(ctx, t, req, log)
	if err != nil && t.state != StateFailed {
		t.to(StateFailed)
	}
	o.metrics.RecordDraw(outcome, time.Since(start))
	return order, err
}

func (o *Orchestrator) run(ctx context.Context, t *txn, req Request, log logger.Logger) (domain.Order, string, error) {
	t.to(StateValidating)

	if req.UserID == "" {
		return domain.Order{}, metrics.OutcomeRejected, &domain.UserNotFoundError{Msg: "user id is required"}
	}

	key := t.id
	if req.IdempotencyKey != "" {
		key = idempotencyScope(req)
		prev, ok, err := o.ledger.Lookup(ctx, key)
		if err != nil {
			return domain.Order{}, metrics.OutcomeUnavailable, unavailable("idempotency lookup failed", err)
		}
		if ok {
			log.Info(ctx, "draw replayed from idempotency key", logger.String("order_id", prev.ID))
			t.to(StateCommitted)
			return prev, metrics.OutcomeReplayed, nil
		}
	}

	box, err := o.catalog.GetBoxWithPrizes(ctx, req.BoxID)
	if err != nil {
		switch {
		case errors.Is(err, &domain.BoxNotFoundError{}):
			return domain.Order{}, metrics.OutcomeRejected, err
		case errors.Is(err, &domain.ProbabilityTableInvalidError{}):
			// the catalog could not even decode the prizes
			o.takeOffline(ctx, req.BoxID, err, log)
			return domain.Order{}, metrics.OutcomeRejected, err
		}
		return domain.Order{}, metrics.OutcomeUnavailable, unavailable("catalog read failed", err)
	}
	if !box.Active {
		return domain.Order{}, metrics.OutcomeRejected, &domain.BoxInactiveError{Msg: fmt.Sprintf("blind box %s is not on sale", box.ID)}
	}
	table, err := probability.NewTable(box.Prizes)
	if err != nil {
		o.takeOffline(ctx, box.ID, err, log)
		return domain.Order{}, metrics.OutcomeRejected, err
	}

	if err := ctx.Err(); err != nil {
		return domain.Order{}, metrics.OutcomeUnavailable, unavailable("draw canceled", err)
	}

	res, err := o.guard.Reserve(ctx, box.ID, req.UserID)
	if err != nil {
		switch {
		case errors.Is(err, &domain.OutOfStockError{}):
			return domain.Order{}, metrics.OutcomeOutOfStock, err
		case errors.Is(err, &domain.InsufficientBalanceError{}):
			return domain.Order{}, metrics.OutcomeInsufficientBalance, err
		case errors.Is(err, &domain.BoxNotFoundError{}), errors.Is(err, &domain.UserNotFoundError{}):
			return domain.Order{}, metrics.OutcomeRejected, err
		}
		return domain.Order{}, metrics.OutcomeUnavailable, unavailable("reservation failed", err)
	}
	t.to(StateReserved)

	// From here the caller can no longer abort us.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.finishTimeout)
	defer cancel()

	prize := prizeByID(box.Prizes, o.selector.Pick(table))
	t.to(StatePrizeSelected)

	order := domain.Order{
		ID:         uuid.NewString(),
		UserID:     req.UserID,
		BoxID:      box.ID,
		BoxName:    box.Name,
		PrizeID:    prize.ID,
		PrizeName:  prize.Name,
		PrizeImage: prize.Image,
		Rarity:     prize.Rarity,
		PricePaid:  res.Price(),
		Status:     domain.OrderStatusPaid,
		CreatedAt:  o.now().UTC(),
	}

	stored, created, err := o.appendWithRetry(wctx, res, order, key, log)
	if err != nil {
		o.release(ctx, res, "ledger_exhausted", log)
		return domain.Order{}, metrics.OutcomeUnavailable, unavailable("order could not be recorded", err)
	}
	if !created {
		// A concurrent draw with the same key won the race.
		o.release(ctx, res, "duplicate_key", log)
		t.to(StateCommitted)
		return stored, metrics.OutcomeReplayed, nil
	}

	if err := res.Commit(wctx); err != nil {
		log.Error(wctx, "reservation commit failed", logger.Error(err))
		o.release(ctx, res, "commit_failed", log)
		return domain.Order{}, metrics.OutcomeUnavailable, unavailable("draw could not be committed", err)
	}
	t.to(StateCommitted)

	log.Info(wctx, "draw committed",
		logger.String("order_id", stored.ID),
		logger.String("prize_id", stored.PrizeID),
		logger.String("rarity", string(stored.Rarity)),
	)

	if o.publisher != nil {
		if err := o.publisher.PublishDrawCommitted(wctx, stored); err != nil {
			log.Warn(wctx, "draw event not published", logger.String("order_id", stored.ID), logger.Error(err))
		}
	}
	return stored, metrics.OutcomeCommitted, nil
}

func (o *Orchestrator) appendWithRetry(ctx context.Context, res domain.Reservation, order domain.Order, key string, log logger.Logger) (domain.Order, bool, error) {
	scoped := res.Scope(ctx)

	var lastErr error
	for attempt := 1; attempt <= o.retry.MaxAttempts; attempt++ {
		stored, created, err := o.ledger.Append(scoped, order, key)
		if err == nil {
			return stored, created, nil
		}
		lastErr = err
		log.Warn(ctx, "ledger append failed", logger.Int("attempt", attempt), logger.Error(err))

		if attempt == o.retry.MaxAttempts {
			break
		}
		o.metrics.RecordLedgerRetry()
		if err := sleep(ctx, o.retry.delay(attempt)); err != nil {
			return domain.Order{}, false, errors.Join(lastErr, err)
		}
	}
	return domain.Order{}, false, lastErr
}

// release gets its own deadline so a rollback still runs after the finish
// timeout has been used up by retries.
func (o *Orchestrator) release(ctx context.Context, res domain.Reservation, reason string, log logger.Logger) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.finishTimeout)
	defer cancel()

	o.metrics.RecordReservationRelease(reason)
	if err := res.Release(rctx); err != nil {
		log.Error(rctx, "reservation release failed", logger.String("reason", reason), logger.Error(err))
		return
	}
	log.Warn(rctx, "reservation released", logger.String("reason", reason))
}

func (o *Orchestrator) takeOffline(ctx context.Context, boxID string, cause error, log logger.Logger) {
	o.metrics.RecordInvalidTable()
	log.Error(ctx, "probability table invalid, taking box offline", logger.Error(cause))

	d, ok := o.catalog.(domain.BoxDeactivator)
	if !ok {
		return
	}
	if err := d.MarkInactive(ctx, boxID, cause.Error()); err != nil {
		log.Error(ctx, "mark box inactive failed", logger.Error(err))
	}
}

// idempotencyScope ties a client key to the user and the box, so reusing a
// key against another box starts a new draw.
func idempotencyScope(req Request) string {
	return req.UserID + ":" + req.BoxID + ":" + req.IdempotencyKey
}

func prizeByID(prizes []domain.Prize, id string) domain.Prize {
	for _, p := range prizes {
		if p.ID == id {
			return p
		}
	}
	return prizes[len(prizes)-1]
}

func unavailable(msg string, cause error) error {
	return &domain.ServiceUnavailableError{Msg: msg, Cause: cause}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
