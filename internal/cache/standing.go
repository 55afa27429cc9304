// Package cache keeps shop standings in Redis so read paths do not hit
// Postgres for every lookup.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/rueidis"
	"github.com/robalyx/shopledger/internal/reputation"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// StandingKeyPrefix identifies standing entries in Redis.
const StandingKeyPrefix = "shopledger:standing:"

// generationTTL bounds how long an invalidation counter outlives its last
// bump. It only has to outlast a single loader call.
const generationTTL = 24 * time.Hour

// ErrCacheDisabled is returned by Get when the cache has no TTL.
var ErrCacheDisabled = errors.New("standing cache is disabled")

// setIfCurrent writes a standing only if the shop was not invalidated since
// the generation in ARGV[2] was read.
var setIfCurrent = rueidis.NewLuaScript(`
if (redis.call("GET", KEYS[2]) or "0") ~= ARGV[2] then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
return 1
`)

// StandingLoader reads a standing from the source of truth.
type StandingLoader func(ctx context.Context) (*reputation.Standing, error)

// StandingCache stores shop standings in Redis.
type StandingCache struct {
	client rueidis.Client
	ttl    time.Duration
	group  singleflight.Group
	logger *zap.Logger
}

// NewStandingCache creates a standing cache. A zero ttl or nil client
// disables caching and every Load goes to the loader.
func NewStandingCache(client rueidis.Client, ttl time.Duration, logger *zap.Logger) *StandingCache {
	return &StandingCache{
		client: client,
		ttl:    ttl,
		logger: logger.Named("standing_cache"),
	}
}

// Enabled reports whether standings are cached at all.
func (c *StandingCache) Enabled() bool {
	return c.client != nil && c.ttl > 0
}

// StandingKey returns the Redis key for a shop's standing.
func StandingKey(shopID int64) string {
	return StandingKeyPrefix + strconv.FormatInt(shopID, 10)
}

// GenerationKey returns the Redis key counting invalidations of a shop's
// standing.
func GenerationKey(shopID int64) string {
	return StandingKeyPrefix + "gen:" + strconv.FormatInt(shopID, 10)
}

// Get retrieves a cached standing.
// Returns the standing and true if found, or nil and false if not cached.
func (c *StandingCache) Get(ctx context.Context, shopID int64) (*reputation.Standing, bool, error) {
	if !c.Enabled() {
		return nil, false, ErrCacheDisabled
	}

	data, err := c.client.Do(ctx, c.client.B().Get().Key(StandingKey(shopID)).Build()).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get standing for shop %d: %w", shopID, err)
	}

	var standing reputation.Standing
	if err := sonic.Unmarshal(data, &standing); err != nil {
		return nil, false, fmt.Errorf("invalid standing value for shop %d: %w", shopID, err)
	}

	return &standing, true, nil
}

// Load returns the cached standing or calls loader and caches its result.
// Concurrent misses for the same shop share a single loader call. Redis
// failures are logged and fall through to the loader.
func (c *StandingCache) Load(
	ctx context.Context, shopID int64, loader StandingLoader,
) (*reputation.Standing, error) {
	if !c.Enabled() {
		return loader(ctx)
	}

	standing, found, err := c.Get(ctx, shopID)
	if err != nil {
		c.logger.Warn("Failed to read standing from cache",
			zap.Int64("shopID", shopID),
			zap.Error(err))
	}
	if found {
		return standing, nil
	}

	result, err, _ := c.group.Do(StandingKey(shopID), func() (any, error) {
		// Read before loading so an invalidation during the load is noticed
		generation, genErr := c.generation(ctx, shopID)

		standing, err := loader(ctx)
		if err != nil {
			return nil, err
		}

		if genErr != nil {
			c.logger.Warn("Failed to read standing generation, not caching",
				zap.Int64("shopID", shopID),
				zap.Error(genErr))
			return standing, nil
		}

		if err := c.setIfCurrent(ctx, standing, generation); err != nil {
			c.logger.Warn("Failed to cache standing",
				zap.Int64("shopID", shopID),
				zap.Error(err))
		}

		return standing, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(*reputation.Standing), nil
}

// Invalidate removes the cached standings of the given shops and bumps their
// generations so that loads already in flight do not cache what they read.
func (c *StandingCache) Invalidate(ctx context.Context, shopIDs ...int64) error {
	if !c.Enabled() || len(shopIDs) == 0 {
		return nil
	}

	keys := make([]string, 0, len(shopIDs))
	cmds := make(rueidis.Commands, 0, 2*len(shopIDs)+1)
	for _, shopID := range shopIDs {
		keys = append(keys, StandingKey(shopID))

		// Bump before deleting, a fill landing in between is then rejected
		gen := GenerationKey(shopID)
		cmds = append(cmds,
			c.client.B().Incr().Key(gen).Build(),
			c.client.B().Pexpire().Key(gen).Milliseconds(generationTTL.Milliseconds()).Build())
	}
	cmds = append(cmds, c.client.B().Del().Key(keys...).Build())

	for _, resp := range c.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return fmt.Errorf("failed to invalidate standings: %w", err)
		}
	}

	c.logger.Debug("Invalidated cached standings", zap.Int64s("shopIDs", shopIDs))

	return nil
}

// generation returns the invalidation counter of a shop, "0" if it was
// never invalidated.
func (c *StandingCache) generation(ctx context.Context, shopID int64) (string, error) {
	value, err := c.client.Do(ctx, c.client.B().Get().Key(GenerationKey(shopID)).Build()).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return "0", nil
		}
		return "", fmt.Errorf("failed to get standing generation for shop %d: %w", shopID, err)
	}
	return value, nil
}

// setIfCurrent caches a standing unless its generation moved past generation.
func (c *StandingCache) setIfCurrent(ctx context.Context, standing *reputation.Standing, generation string) error {
	data, err := sonic.Marshal(standing)
	if err != nil {
		return fmt.Errorf("failed to encode standing: %w", err)
	}

	stored, err := setIfCurrent.Exec(ctx, c.client,
		[]string{StandingKey(standing.ShopID), GenerationKey(standing.ShopID)},
		[]string{string(data), generation, strconv.FormatInt(c.ttl.Milliseconds(), 10)},
	).AsInt64()
	if err != nil {
		return fmt.Errorf("failed to set standing for shop %d: %w", standing.ShopID, err)
	}

	if stored == 0 {
		c.logger.Debug("Skipped caching standing invalidated during load",
			zap.Int64("shopID", standing.ShopID))
	}

	return nil
}
