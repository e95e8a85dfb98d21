// Package cache provides a Redis read-through cache for code-keyed
// verification results. Name lookups are never cached; their result set
// changes shape with every matching registrant.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"careledger/internal/verify/models"
	id "careledger/pkg/domain"
)

const keyPrefix = "careledger:verify:"

// Cache stores serialized verification results keyed by registry code.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// New constructs a verification cache. TTL bounds staleness if an
// invalidation is ever missed.
func New(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached entry for a code, or (nil, false) on miss. Redis
// failures degrade to a miss; the gateway falls through to the store.
func (c *Cache) Get(ctx context.Context, code id.RegistryCode) (*models.CachedVerification, bool) {
	raw, err := c.client.Get(ctx, keyPrefix+string(code)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "verification cache read failed", "error", err)
		}
		return nil, false
	}
	var cached models.CachedVerification
	if err := json.Unmarshal(raw, &cached); err != nil || cached.Result == nil {
		c.logger.WarnContext(ctx, "verification cache entry corrupt", "error", err)
		return nil, false
	}
	return &cached, true
}

// Set stores an entry under the code key. Failures are logged and swallowed;
// caching is best effort.
func (c *Cache) Set(ctx context.Context, code id.RegistryCode, cached *models.CachedVerification) {
	raw, err := json.Marshal(cached)
	if err != nil {
		c.logger.WarnContext(ctx, "verification cache marshal failed", "error", err)
		return
	}
	if err := c.client.Set(ctx, keyPrefix+string(code), raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "verification cache write failed", "error", err)
	}
}

// Invalidate drops the cached result for a code. Called after every committed
// status transition.
func (c *Cache) Invalidate(ctx context.Context, code id.RegistryCode) error {
	if err := c.client.Del(ctx, keyPrefix+string(code)).Err(); err != nil {
		return fmt.Errorf("invalidate verification cache: %w", err)
	}
	return nil
}
