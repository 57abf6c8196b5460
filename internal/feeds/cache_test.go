package feeds

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"ZKAttest-Chain/internal/config"
)

type memoryCache struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryCache) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", false, m.err
	}
	value, ok := m.values[key]
	return value, ok, nil
}

func (m *memoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.values[key] = value
	m.ttls[key] = ttl
	return nil
}

type countingFeed struct {
	calls int
	units uint32
	err   error
}

func (c *countingFeed) BTCUSD(context.Context) (uint32, error) {
	c.calls++
	return c.units, c.err
}

func TestCachedPriceFeedHitsUpstreamOnce(t *testing.T) {
	upstream := &countingFeed{units: 64000}
	cache := newMemoryCache()
	feed := NewCachedPriceFeed(upstream, cache, "", 30*time.Second)

	for i := 0; i < 3; i++ {
		units, err := feed.BTCUSD(context.Background())
		require.NoError(t, err)
		require.Equal(t, uint32(64000), units)
	}
	require.Equal(t, 1, upstream.calls)
	require.Equal(t, "64000", cache.values[defaultCacheKey])
	require.Equal(t, 30*time.Second, cache.ttls[defaultCacheKey])
}

func TestCachedPriceFeedIgnoresBrokenCache(t *testing.T) {
	upstream := &countingFeed{units: 61000}
	cache := newMemoryCache()
	cache.values["btc"] = "not-a-number"
	feed := NewCachedPriceFeed(upstream, cache, "btc", 0)

	units, err := feed.BTCUSD(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint32(61000), units)
	require.Equal(t, "61000", cache.values["btc"])

	cache.err = errors.New("cache down")
	units, err = feed.BTCUSD(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint32(61000), units)
	require.Equal(t, 2, upstream.calls)
}

func TestCachedPriceFeedPropagatesUpstreamError(t *testing.T) {
	upstream := &countingFeed{err: errors.New("offline")}
	cache := newMemoryCache()
	_, err := NewCachedPriceFeed(upstream, cache, "", 0).BTCUSD(context.Background())
	require.Error(t, err)
	require.Empty(t, cache.values)
}

func TestRedisCacheFallsBackWhenUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	cache := NewRedisCache(client)
	t.Cleanup(func() { _ = cache.Close() })

	upstream := &countingFeed{units: 60000}
	units, err := NewCachedPriceFeed(upstream, cache, "", time.Second).BTCUSD(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint32(60000), units)
}

func TestFromConfig(t *testing.T) {
	feed, closeFn, err := FromConfig(config.PriceFeedConfig{Provider: "none"})
	require.NoError(t, err)
	require.Nil(t, feed)
	require.NoError(t, closeFn())

	feed, _, err = FromConfig(config.PriceFeedConfig{Provider: "static", StaticUnits: 50000})
	require.NoError(t, err)
	require.Equal(t, Static(50000), feed)

	_, _, err = FromConfig(config.PriceFeedConfig{Provider: "static"})
	require.Error(t, err)

	feed, _, err = FromConfig(config.PriceFeedConfig{Provider: "coingecko", TimeoutSeconds: 3})
	require.NoError(t, err)
	require.IsType(t, &CoinGecko{}, feed)

	feed, closeFn, err = FromConfig(config.PriceFeedConfig{Provider: "coingecko", CacheTTLSeconds: 30})
	require.NoError(t, err)
	require.IsType(t, &CachedPriceFeed{}, feed)
	require.IsType(t, &MemoryCache{}, feed.(*CachedPriceFeed).cache)
	require.NoError(t, closeFn())

	feed, closeFn, err = FromConfig(config.PriceFeedConfig{Provider: "coingecko", Cache: config.RedisConfig{Addr: "127.0.0.1:1"}})
	require.NoError(t, err)
	require.IsType(t, &CachedPriceFeed{}, feed)
	require.NoError(t, closeFn())
}

func TestMemoryCacheExpires(t *testing.T) {
	cache := NewMemoryCache()
	defer cache.Close()
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, cache.Set(ctx, "k", "61000", time.Hour))
	value, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "61000", value)

	require.NoError(t, cache.Set(ctx, "short", "1", time.Millisecond))
	require.Eventually(t, func() bool {
		_, ok, _ := cache.Get(ctx, "short")
		return !ok
	}, time.Second, 5*time.Millisecond)
}
