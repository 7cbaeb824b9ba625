package cache

import (
	"context"
	"time"

	"docchat-service/config"

	"github.com/redis/go-redis/v9"
	"github.com/umakantv/go-utils/cache"
	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
)

// InitializeCache returns the response cache, or nil when CACHE_TYPE is empty
// or the cache cannot be reached. Handlers work without it.
func InitializeCache(cfg *config.Config) cache.Cache {
	if cfg.CacheType == "" {
		logger.Info("Response cache disabled")
		return nil
	}

	c, err := cache.New(cache.Config{
		Type:          cfg.CacheType,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	})
	if err != nil {
		logger.Error("Failed to initialize cache, continuing without it", zap.Error(err))
		return nil
	}

	logger.Info("Response cache initialized", zap.String("type", cfg.CacheType))
	return c
}

// NewRedisClient connects the rate limiter's client. It returns nil when
// rate limiting is off or Redis does not answer a ping.
func NewRedisClient(cfg *config.Config) *redis.Client {
	if !cfg.RateLimitEnabled {
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("Redis unreachable, rate limiting disabled",
			zap.String("addr", cfg.RedisAddr), zap.Error(err))
		rdb.Close()
		return nil
	}

	logger.Info("Connected to Redis", zap.String("addr", cfg.RedisAddr))
	return rdb
}
