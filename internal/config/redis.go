package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisOptions accepts a full redis:// or rediss:// URL (Upstash style) or a
// plain host:port. An explicit password or DB overrides the URL's.
func redisOptions(cfg *Config) (*redis.Options, error) {
	var opt *redis.Options
	if strings.HasPrefix(cfg.RedisURL, "redis://") || strings.HasPrefix(cfg.RedisURL, "rediss://") {
		parsed, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		opt = parsed
	} else {
		opt = &redis.Options{Addr: cfg.RedisURL}
	}

	if cfg.RedisPassword != "" {
		opt.Password = cfg.RedisPassword
	}
	if cfg.RedisDB != 0 {
		opt.DB = cfg.RedisDB
	}

	// the limiter fails open, so keep calls short
	opt.DialTimeout = 2 * time.Second
	opt.ReadTimeout = time.Second
	opt.WriteTimeout = time.Second
	opt.PoolSize = 10
	return opt, nil
}

// NewRedisClient connects to Redis for rate limiting. It returns nil, nil
// when no URL is configured.
func NewRedisClient(ctx context.Context, cfg *Config) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}

	opt, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opt.Addr, err)
	}
	return rdb, nil
}
