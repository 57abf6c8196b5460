package feeds

import (
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"ZKAttest-Chain/internal/config"
	xerrors "ZKAttest-Chain/internal/errors"
)

// FromConfig 按配置构造价格源。provider 为 none 时返回 nil，调用方需要求请求显式携带价格。
// 配置了 cache_ttl_seconds 但没有 Redis 地址时使用进程内缓存。
func FromConfig(cfg config.PriceFeedConfig) (PriceFeed, func() error, error) {
	noop := func() error { return nil }

	var feed PriceFeed
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "none":
		return nil, noop, nil
	case "static":
		if cfg.StaticUnits == 0 {
			return nil, noop, xerrors.New(xerrors.CodeInvalidArgument, "static 价格源需要配置 static_units")
		}
		return Static(cfg.StaticUnits), noop, nil
	case "", "coingecko":
		feed = NewCoinGecko(CoinGeckoConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		})
	default:
		return nil, noop, xerrors.New(xerrors.CodeInvalidArgument, "不支持的价格源: "+cfg.Provider)
	}

	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	if strings.TrimSpace(cfg.Cache.Addr) == "" {
		if ttl <= 0 {
			return feed, noop, nil
		}
		cache := NewMemoryCache()
		return NewCachedPriceFeed(feed, cache, cfg.Cache.Key, ttl), cache.Close, nil
	}
	cache := NewRedisCache(redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.Addr,
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
	}))
	return NewCachedPriceFeed(feed, cache, cfg.Cache.Key, ttl), cache.Close, nil
}
