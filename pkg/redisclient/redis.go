package redisclient

import (
	"context"
	"fmt"
	"time"

	"sharesphere/pkg/config"
	"sharesphere/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const blacklistPrefix = "jwt:blacklist:"

var (
	RDB          *redis.Client
	RedisEnabled bool
)

// InitRedisClient 根据配置连接 Redis，未启用时什么也不做
func InitRedisClient(ctx context.Context) error {
	cfg := config.GlobalConfig.Redis
	if !cfg.Enabled {
		RedisEnabled = false
		logger.L.Info("Redis disabled, token revocation is not available")
		return nil
	}

	RDB = redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := RDB.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	RedisEnabled = true
	logger.L.Info("Redis connected", zap.String("addr", cfg.Addr))
	return nil
}

// Blacklist 注销令牌，保留到令牌本身过期
func Blacklist(ctx context.Context, tokenID string, ttl time.Duration) error {
	if !RedisEnabled || RDB == nil || tokenID == "" {
		return nil
	}
	if ttl <= 0 {
		return nil
	}
	return RDB.Set(ctx, blacklistPrefix+tokenID, 1, ttl).Err()
}

// IsBlacklisted 判断令牌是否已注销
func IsBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	if !RedisEnabled || RDB == nil || tokenID == "" {
		return false, nil
	}
	n, err := RDB.Exists(ctx, blacklistPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func Close() error {
	if RDB == nil {
		return nil
	}
	return RDB.Close()
}
