package storycache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache держит использованные id в одном множестве. SADD сообщает,
// сколько элементов добавлено, это и есть заявка.
type RedisCache struct {
	client *redis.Client
	key    string
}

func OpenRedis(ctx context.Context, addr, password string, db int, key string) (*RedisCache, error) {
	if addr == "" {
		addr = "localhost:6379"
	}
	if key == "" {
		key = "story2video:used"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &RedisCache{client: client, key: key}, nil
}

func (c *RedisCache) Claim(ctx context.Context, id string) (bool, error) {
	n, err := c.client.SAdd(ctx, c.key, id).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (c *RedisCache) Seen(ctx context.Context, id string) (bool, error) {
	return c.client.SIsMember(ctx, c.key, id).Result()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
