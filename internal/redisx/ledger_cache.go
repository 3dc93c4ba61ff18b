package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-blindbox-draws/internal/domain"
	"github.com/ariefcatur/go-blindbox-draws/internal/logger"
	"github.com/redis/go-redis/v9"
)

// LedgerCache puts a Redis fast path in front of the order ledger. The
// ledger stays the source of truth: Append is never cached because it may
// run inside a transaction that has not committed yet.
type LedgerCache struct {
	Next  domain.Ledger
	Redis redis.Cmdable
	Log   logger.Logger
}

func (c *LedgerCache) Append(ctx context.Context, order domain.Order, key string) (domain.Order, bool, error) {
	return c.Next.Append(ctx, order, key)
}

func (c *LedgerCache) Lookup(ctx context.Context, key string) (domain.Order, bool, error) {
	idemKey := fmt.Sprintf(KeyIdemDraw, key)
	if id, err := c.Redis.Get(ctx, idemKey).Result(); err == nil && id != "" {
		o, err := c.Get(ctx, id)
		if err == nil {
			return o, true, nil
		}
		if !errors.Is(err, &domain.OrderNotFoundError{}) {
			return domain.Order{}, false, err
		}
	}

	o, ok, err := c.Next.Lookup(ctx, key)
	if err != nil || !ok {
		return o, ok, err
	}
	_ = c.Redis.Set(ctx, idemKey, o.ID, TTLIdempotency).Err()
	return o, true, nil
}

func (c *LedgerCache) Get(ctx context.Context, orderID string) (domain.Order, error) {
	key := fmt.Sprintf(KeyOrder, orderID)
	if s, err := c.Redis.Get(ctx, key).Result(); err == nil {
		var o domain.Order
		if json.Unmarshal([]byte(s), &o) == nil {
			return o, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		// Redis trouble only costs us the fast path.
		return c.Next.Get(ctx, orderID)
	}

	o, err := c.Next.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if raw, err := json.Marshal(o); err == nil {
		_ = c.Redis.Set(ctx, key, string(raw), TTLOrderCache).Err()
	}
	return o, nil
}

func (c *LedgerCache) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return c.Next.ListByUser(ctx, userID)
}

func (c *LedgerCache) UpdateStatus(ctx context.Context, orderID string, next domain.OrderStatus) error {
	if err := c.Next.UpdateStatus(ctx, orderID, next); err != nil {
		return err
	}
	// the update is durable; a stale entry only lives until TTLOrderCache
	if err := c.Redis.Del(ctx, fmt.Sprintf(KeyOrder, orderID)).Err(); err != nil {
		c.logger().Warn(ctx, "order cache not invalidated", logger.String("order_id", orderID), logger.Error(err))
	}
	return nil
}

func (c *LedgerCache) logger() logger.Logger {
	if c.Log != nil {
		return c.Log
	}
	return logger.Get()
}
