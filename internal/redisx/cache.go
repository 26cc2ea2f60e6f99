package redisx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache failures are logged and treated as misses; Postgres stays the source of truth.

// OrderCache keeps rendered orders for GET /orders/{id}.
type OrderCache struct {
	RDB *redis.Client
	Log *slog.Logger
}

func (c OrderCache) Get(ctx context.Context, orderID string) ([]byte, bool) {
	return get(ctx, c.RDB, c.Log, fmt.Sprintf(KeyOrder, orderID))
}

func (c OrderCache) Put(ctx context.Context, orderID string, body []byte) {
	set(ctx, c.RDB, c.Log, fmt.Sprintf(KeyOrder, orderID), body, TTLOrderCache)
}

// Invalidate drops the cached order after any write to it.
func (c OrderCache) Invalidate(ctx context.Context, orderID string) {
	if err := c.RDB.Del(ctx, fmt.Sprintf(KeyOrder, orderID)).Err(); err != nil {
		logger(c.Log).WarnContext(ctx, "order cache invalidate", "order_id", orderID, "err", err)
	}
}

// MenuCache keeps the active menu per category filter.
type MenuCache struct {
	RDB *redis.Client
	Log *slog.Logger
}

func menuKey(category string) string {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		category = "all"
	}
	return fmt.Sprintf(KeyMenu, category)
}

func (c MenuCache) Get(ctx context.Context, category string) ([]byte, bool) {
	return get(ctx, c.RDB, c.Log, menuKey(category))
}

func (c MenuCache) Put(ctx context.Context, category string, body []byte) {
	set(ctx, c.RDB, c.Log, menuKey(category), body, TTLMenuCache)
}

func get(ctx context.Context, rdb *redis.Client, log *slog.Logger, key string) ([]byte, bool) {
	b, err := rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger(log).WarnContext(ctx, "cache get", "key", key, "err", err)
		}
		return nil, false
	}
	return b, true
}

func set(ctx context.Context, rdb *redis.Client, log *slog.Logger, key string, body []byte, ttl time.Duration) {
	if err := rdb.Set(ctx, key, body, ttl).Err(); err != nil {
		logger(log).WarnContext(ctx, "cache set", "key", key, "err", err)
	}
}

func logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
