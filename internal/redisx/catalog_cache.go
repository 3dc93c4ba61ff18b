package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-blindbox-draws/internal/domain"
	"github.com/redis/go-redis/v9"
)

// CatalogCache keeps box snapshots in Redis for TTL. Stock in a cached box is
// informational only; the guard reads the live value.
type CatalogCache struct {
	Next  domain.Catalog
	Redis redis.Cmdable
	TTL   time.Duration
}

func (c *CatalogCache) GetBoxWithPrizes(ctx context.Context, boxID string) (domain.BlindBox, error) {
	key := fmt.Sprintf(KeyBlindBox, boxID)
	if s, err := c.Redis.Get(ctx, key).Result(); err == nil {
		var b domain.BlindBox
		if json.Unmarshal([]byte(s), &b) == nil {
			return b, nil
		}
	}

	b, err := c.Next.GetBoxWithPrizes(ctx, boxID)
	if err != nil {
		return domain.BlindBox{}, err
	}
	if raw, err := json.Marshal(b); err == nil {
		_ = c.Redis.Set(ctx, key, string(raw), c.TTL).Err()
	}
	return b, nil
}

func (c *CatalogCache) ListBoxes(ctx context.Context, keyword string) ([]domain.BlindBox, error) {
	return c.Next.ListBoxes(ctx, keyword)
}

func (c *CatalogCache) MarkInactive(ctx context.Context, boxID, reason string) error {
	d, ok := c.Next.(domain.BoxDeactivator)
	if !ok {
		return errors.New("catalog cannot deactivate boxes")
	}
	if err := d.MarkInactive(ctx, boxID, reason); err != nil {
		return err
	}
	return c.Redis.Del(ctx, fmt.Sprintf(KeyBlindBox, boxID)).Err()
}
