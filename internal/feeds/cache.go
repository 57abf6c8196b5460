package feeds

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/redis/go-redis/v9"

	"ZKAttest-Chain/pkg/logger"
)

const defaultCacheKey = "attest:price:btc_usd"

// Cache 是价格缓存的最小读写接口。
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisCache 使用 Redis 保存价格。
type RedisCache struct {
	client redis.UniversalClient
}

// NewRedisCache 包装已有的 Redis 客户端。
func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

// Get 实现 Cache。
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := c.client.Get(ctx, key).Result()
	if stdErrors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set 实现 Cache。
func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// Close 关闭 Redis 连接。
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// MemoryCache 是进程内的 TTL 缓存，未配置 Redis 时使用。
type MemoryCache struct {
	items *ttlcache.Cache[string, string]
}

// NewMemoryCache 创建进程内缓存并启动过期清理。
func NewMemoryCache() *MemoryCache {
	items := ttlcache.New[string, string](
		ttlcache.WithDisableTouchOnHit[string, string](),
	)
	go items.Start()
	return &MemoryCache{items: items}
}

// Get 实现 Cache。
func (c *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	item := c.items.Get(key)
	if item == nil || item.IsExpired() {
		return "", false, nil
	}
	return item.Value(), true, nil
}

// Set 实现 Cache。
func (c *MemoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.items.Set(key, value, ttl)
	return nil
}

// Close 停止过期清理。
func (c *MemoryCache) Close() error {
	c.items.Stop()
	return nil
}

// CachedPriceFeed 在上游价格源前加一层 TTL 缓存，缓存故障时直接回源。
type CachedPriceFeed struct {
	next  PriceFeed
	cache Cache
	key   string
	ttl   time.Duration
	log   *slog.Logger
}

// NewCachedPriceFeed 创建带缓存的价格源，key 为空时使用默认键。
func NewCachedPriceFeed(next PriceFeed, cache Cache, key string, ttl time.Duration) *CachedPriceFeed {
	if key == "" {
		key = defaultCacheKey
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedPriceFeed{next: next, cache: cache, key: key, ttl: ttl, log: logger.Named("price_feed")}
}

// BTCUSD 实现 PriceFeed。
func (c *CachedPriceFeed) BTCUSD(ctx context.Context) (uint32, error) {
	if cached, ok, err := c.cache.Get(ctx, c.key); err != nil {
		c.log.Warn("读取价格缓存失败", slog.Any("error", err))
	} else if ok {
		if units, parseErr := strconv.ParseUint(cached, 10, 32); parseErr == nil && units > 0 {
			return uint32(units), nil
		}
		c.log.Warn("价格缓存内容无效", slog.String("value", cached))
	}

	units, err := c.next.BTCUSD(ctx)
	if err != nil {
		return 0, err
	}
	if err := c.cache.Set(ctx, c.key, strconv.FormatUint(uint64(units), 10), c.ttl); err != nil {
		c.log.Warn("写入价格缓存失败", slog.Any("error", err))
	}
	return units, nil
}
