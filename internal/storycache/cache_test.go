package storycache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ivlev/story2video/internal/config"
)

func exerciseCache(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()

	ok, err := c.Claim(ctx, "t3_abc")
	if err != nil || !ok {
		t.Fatalf("first claim = %v, %v", ok, err)
	}
	ok, err = c.Claim(ctx, "t3_abc")
	if err != nil || ok {
		t.Errorf("second claim = %v, %v", ok, err)
	}
	if seen, _ := c.Seen(ctx, "t3_abc"); !seen {
		t.Error("claimed id must be seen")
	}
	if seen, _ := c.Seen(ctx, "t3_other"); seen {
		t.Error("unknown id must not be seen")
	}

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := c.Claim(ctx, "t3_race"); err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Errorf("Expected exactly one winning claim, got %d", wins.Load())
	}
}

func TestSQLiteCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "used.db")
	c, err := Open(context.Background(), config.CacheConfig{Backend: "sqlite", SQLitePath: path})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()
	exerciseCache(t, c)
}

func TestSQLiteCachePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "used.db")
	c, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	c.Claim(context.Background(), "keep")
	c.Close()

	again, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer again.Close()
	if ok, _ := again.Claim(context.Background(), "keep"); ok {
		t.Error("claim must survive reopening")
	}
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	key := fmt.Sprintf("story2video:test:%d", os.Getpid())
	c, err := OpenRedis(context.Background(), addr, os.Getenv("REDIS_PASS"), 0, key)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		c.client.Del(context.Background(), key)
		c.Close()
	}()
	exerciseCache(t, c)
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open(context.Background(), config.CacheConfig{Backend: "etcd"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}
