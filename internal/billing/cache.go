package billing

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/reelforge/studio/backend/internal/pricing"
)

const (
	tierTableCacheKey = "studio:pricing:tier_table"
	defaultCacheTTL   = 5 * time.Minute
)

// TierCache keeps the pricing tier table in redis so quote requests do not hit
// the database on every slider move. Every cache failure is fail-open: callers
// fall through to the store and the error is logged at debug level only.
type TierCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewTierCache wraps a redis client. A nil client yields a disabled cache that
// always misses, which keeps the billing service usable without redis.
func NewTierCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *TierCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TierCache{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached tier table, or nil on any miss or failure.
func (c *TierCache) Get(ctx context.Context) *pricing.TierTable {
	if c == nil || c.client == nil {
		return nil
	}

	payload, err := c.client.Get(ctx, tierTableCacheKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("tier cache read failed", zap.Error(err))
		}
		return nil
	}

	var table pricing.TierTable
	if err := json.Unmarshal(payload, &table); err != nil {
		c.logger.Debug("tier cache payload corrupt", zap.Error(err))
		return nil
	}
	return &table
}

// Set stores the tier table with the configured TTL. Failures are swallowed.
func (c *TierCache) Set(ctx context.Context, table *pricing.TierTable) {
	if c == nil || c.client == nil || table == nil {
		return
	}

	payload, err := json.Marshal(table)
	if err != nil {
		c.logger.Debug("tier cache encode failed", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, tierTableCacheKey, payload, c.ttl).Err(); err != nil {
		c.logger.Debug("tier cache write failed", zap.Error(err))
	}
}

// Invalidate drops the cached table after a tier update.
func (c *TierCache) Invalidate(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, tierTableCacheKey).Err(); err != nil {
		c.logger.Debug("tier cache invalidate failed", zap.Error(err))
	}
}
