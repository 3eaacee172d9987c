package storycache

import (
	"context"
	"fmt"

	"github.com/ivlev/story2video/internal/config"
)

// Cache помнит, какие истории уже превратились в видео.
// Claim атомарный test-and-set: из одновременных заявок на один id ровно
// одна возвращает true.
type Cache interface {
	Claim(ctx context.Context, id string) (bool, error)
	Seen(ctx context.Context, id string) (bool, error)
	Close() error
}

func Open(ctx context.Context, cfg config.CacheConfig) (Cache, error) {
	switch cfg.Backend {
	case "", "sqlite":
		return OpenSQLite(cfg.SQLitePath)
	case "redis":
		return OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisKey)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
