package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"
)

// DefaultCountCacheTTL bounds how stale the four per-query totals may be.
// Totals drift slowly relative to content writes, and a short TTL keeps the
// cache from ever masking a deletion for long.
const DefaultCountCacheTTL = 30 * time.Second

const countCacheKeyPrefix = "search:counts:"

// CountCache is an optional Redis-backed cache for the four per-query bucket
// totals, keyed by normalized query text and encoded as CBOR. Every failure
// mode is soft: an unreachable Redis or a corrupt entry reads as a miss and
// writes are fire-and-forget, so the cache can never fail a search.
type CountCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCountCache creates a count cache over client. A zero ttl uses
// DefaultCountCacheTTL; a nil logger uses the default slog logger.
func NewCountCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *CountCache {
	if ttl <= 0 {
		ttl = DefaultCountCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CountCache{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached totals for the query text, if present.
func (c *CountCache) Get(ctx context.Context, text string) (Totals, bool) {
	if c == nil || c.client == nil {
		return Totals{}, false
	}

	raw, err := c.client.Get(ctx, countCacheKeyPrefix+text).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.DebugContext(ctx, "count cache read failed", "error", err)
		}
		return Totals{}, false
	}

	var t Totals
	if err := cbor.Unmarshal(raw, &t); err != nil {
		c.logger.DebugContext(ctx, "count cache entry corrupt", "error", err)
		return Totals{}, false
	}
	return t, true
}

// Set stores the totals for the query text.
func (c *CountCache) Set(ctx context.Context, text string, t Totals) {
	if c == nil || c.client == nil {
		return
	}

	raw, err := cbor.Marshal(t)
	if err != nil {
		c.logger.DebugContext(ctx, "count cache encode failed", "error", err)
		return
	}
	if err := c.client.Set(ctx, countCacheKeyPrefix+text, raw, c.ttl).Err(); err != nil {
		c.logger.DebugContext(ctx, "count cache write failed", "error", err)
	}
}
