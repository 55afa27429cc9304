package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/rueidis"
	"github.com/robalyx/shopledger/internal/cache"
	"github.com/robalyx/shopledger/internal/reputation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var errLoader = errors.New("database unavailable")

func setupCache(t *testing.T, ttl time.Duration) (*cache.StandingCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return cache.NewStandingCache(client, ttl, zaptest.NewLogger(t)), mr
}

// countingLoader returns a loader for a fixed score and the number of times it ran.
func countingLoader(shopID int64, score float64) (cache.StandingLoader, *atomic.Int32) {
	calls := &atomic.Int32{}
	return func(context.Context) (*reputation.Standing, error) {
		calls.Add(1)
		return reputation.NewStanding(shopID, &score, time.Time{}), nil
	}, calls
}

func TestStandingCacheLoad(t *testing.T) {
	t.Parallel()

	standings, mr := setupCache(t, time.Minute)
	loader, calls := countingLoader(7, 85)

	first, err := standings.Load(t.Context(), 7, loader)
	require.NoError(t, err)
	assert.Equal(t, "Gold Shop", first.Title)

	second, err := standings.Load(t.Context(), 7, loader)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())

	assert.True(t, mr.Exists(cache.StandingKey(7)))
	assert.Equal(t, time.Minute, mr.TTL(cache.StandingKey(7)))
}

func TestStandingCacheInvalidate(t *testing.T) {
	t.Parallel()

	standings, mr := setupCache(t, time.Minute)
	loader, calls := countingLoader(3, 20)

	_, err := standings.Load(t.Context(), 3, loader)
	require.NoError(t, err)

	require.NoError(t, standings.Invalidate(t.Context(), 3, 4))
	assert.False(t, mr.Exists(cache.StandingKey(3)))

	_, err = standings.Load(t.Context(), 3, loader)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestStandingCacheExpiry(t *testing.T) {
	t.Parallel()

	standings, mr := setupCache(t, 30*time.Second)
	loader, calls := countingLoader(5, 50)

	_, err := standings.Load(t.Context(), 5, loader)
	require.NoError(t, err)

	mr.FastForward(31 * time.Second)

	_, err = standings.Load(t.Context(), 5, loader)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestStandingCacheLoaderError(t *testing.T) {
	t.Parallel()

	standings, mr := setupCache(t, time.Minute)

	_, err := standings.Load(t.Context(), 9, func(context.Context) (*reputation.Standing, error) {
		return nil, errLoader
	})
	require.ErrorIs(t, err, errLoader)
	assert.False(t, mr.Exists(cache.StandingKey(9)))
}

func TestStandingCacheCorruptEntry(t *testing.T) {
	t.Parallel()

	standings, mr := setupCache(t, time.Minute)
	require.NoError(t, mr.Set(cache.StandingKey(11), "not json"))

	loader, calls := countingLoader(11, 95)
	standing, err := standings.Load(t.Context(), 11, loader)
	require.NoError(t, err)
	assert.Equal(t, "Diamond Shop", standing.Title)
	assert.Equal(t, int32(1), calls.Load())
}

func TestStandingCacheRedisDown(t *testing.T) {
	t.Parallel()

	standings, mr := setupCache(t, time.Minute)
	mr.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	loader, calls := countingLoader(2, 61)
	standing, err := standings.Load(ctx, 2, loader)
	require.NoError(t, err)
	assert.Equal(t, "Silver Shop", standing.Title)
	assert.Equal(t, int32(1), calls.Load())
}

func TestStandingCacheDisabled(t *testing.T) {
	t.Parallel()

	standings := cache.NewStandingCache(nil, 0, zaptest.NewLogger(t))
	assert.False(t, standings.Enabled())

	loader, calls := countingLoader(1, 40)
	for range 3 {
		_, err := standings.Load(t.Context(), 1, loader)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), calls.Load())

	_, _, err := standings.Get(t.Context(), 1)
	require.ErrorIs(t, err, cache.ErrCacheDisabled)
	require.NoError(t, standings.Invalidate(t.Context(), 1))
}

func TestStandingCacheConcurrentMisses(t *testing.T) {
	t.Parallel()

	standings, _ := setupCache(t, time.Minute)

	calls := &atomic.Int32{}
	loader := func(context.Context) (*reputation.Standing, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		score := 72.5
		return reputation.NewStanding(8, &score, time.Time{}), nil
	}

	const readers = 10

	var wg sync.WaitGroup
	results := make([]*reputation.Standing, readers)
	for i := range readers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			standing, err := standings.Load(t.Context(), 8, loader)
			assert.NoError(t, err)
			results[i] = standing
		}()
	}
	wg.Wait()

	assert.Less(t, calls.Load(), int32(readers))
	for _, standing := range results {
		require.NotNil(t, standing)
		assert.InDelta(t, 72.5, standing.Score, 1e-9)
	}
}

func TestStandingCacheInvalidateDuringLoad(t *testing.T) {
	t.Parallel()

	standings, mr := setupCache(t, time.Minute)

	calls := 0
	loader := func(ctx context.Context) (*reputation.Standing, error) {
		calls++
		stale := 40.0
		if calls == 1 {
			// A delta commits and invalidates after this read
			require.NoError(t, standings.Invalidate(ctx, 12))
		} else {
			stale = 37
		}
		return reputation.NewStanding(12, &stale, time.Time{}), nil
	}

	first, err := standings.Load(t.Context(), 12, loader)
	require.NoError(t, err)
	assert.InDelta(t, 40.0, first.Score, 1e-9)
	assert.False(t, mr.Exists(cache.StandingKey(12)))

	second, err := standings.Load(t.Context(), 12, loader)
	require.NoError(t, err)
	assert.InDelta(t, 37.0, second.Score, 1e-9)
	assert.True(t, mr.Exists(cache.StandingKey(12)))

	cached, found, err := standings.Get(t.Context(), 12)
	require.NoError(t, err)
	require.True(t, found)
	assert.InDelta(t, 37.0, cached.Score, 1e-9)
	assert.Equal(t, 2, calls)
}

func TestStandingCacheInvalidateBumpsGeneration(t *testing.T) {
	t.Parallel()

	standings, mr := setupCache(t, time.Minute)

	require.NoError(t, standings.Invalidate(t.Context(), 6))
	require.NoError(t, standings.Invalidate(t.Context(), 6))

	generation, err := mr.Get(cache.GenerationKey(6))
	require.NoError(t, err)
	assert.Equal(t, "2", generation)
	assert.Positive(t, mr.TTL(cache.GenerationKey(6)))
}
