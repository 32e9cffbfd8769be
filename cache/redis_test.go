package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisCache(t *testing.T, policy Policy) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := NewRedisCache(NewRedisClient(RedisConfig{Addr: mr.Addr()}), policy)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCache_SetGetDelete(t *testing.T) {
	c, mr := newTestRedisCache(t, DefaultPolicy())
	ctx := context.Background()

	if _, ok := c.Get(ctx, "fallback:a:1"); ok {
		t.Fatal("Get() on empty cache hit")
	}
	if err := c.Set(ctx, "fallback:a:1", []byte("licenses"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok := c.Get(ctx, "fallback:a:1")
	if !ok || string(got) != "licenses" {
		t.Fatalf("Get() = %q, %v, want licenses, true", got, ok)
	}
	if stored, _ := mr.Get("fallback:a:1"); stored != "licenses" {
		t.Errorf("redis value = %q, want licenses", stored)
	}

	if err := c.Delete(ctx, "fallback:a:1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if mr.Exists("fallback:a:1") {
		t.Error("key still in redis after Delete")
	}
	if err := c.Delete(ctx, "fallback:a:1"); err != nil {
		t.Errorf("Delete() of missing key error = %v", err)
	}
}

func TestRedisCache_TTL(t *testing.T) {
	c, mr := newTestRedisCache(t, Policy{DefaultTTL: time.Minute, MaxTTL: 10 * time.Minute})
	ctx := context.Background()

	_ = c.Set(ctx, "short", []byte("1"), time.Minute)
	_ = c.Set(ctx, "clamped", []byte("2"), time.Hour)
	_ = c.Set(ctx, "none", []byte("3"), 0)

	if got := mr.TTL("clamped"); got != 10*time.Minute {
		t.Errorf("TTL(clamped) = %v, want 10m", got)
	}
	if mr.Exists("none") {
		t.Error("ttl=0 value was stored")
	}

	mr.FastForward(time.Minute)
	if _, ok := c.Get(ctx, "short"); ok {
		t.Error("short not expired")
	}
	if _, ok := c.Get(ctx, "clamped"); !ok {
		t.Error("clamped expired early")
	}
}

func TestRedisCache_InvalidKey(t *testing.T) {
	c, _ := newTestRedisCache(t, DefaultPolicy())
	if err := c.Set(context.Background(), "bad\nkey", []byte("x"), time.Minute); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Set() error = %v, want ErrInvalidKey", err)
	}
}

func TestRedisCache_Ping(t *testing.T) {
	c, _ := newTestRedisCache(t, DefaultPolicy())
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestRedisCache_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	addr := mr.Addr()
	mr.Close()

	client := redis.NewClient(&redis.Options{Addr: addr, MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	c := NewRedisCache(client, DefaultPolicy())
	defer c.Close()
	ctx := context.Background()

	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("Get() hit on unreachable redis")
	}
	if err := c.Set(ctx, "k", []byte("v"), time.Minute); !errors.Is(err, ErrBackend) {
		t.Errorf("Set() error = %v, want ErrBackend", err)
	}
	if err := c.Ping(ctx); !errors.Is(err, ErrBackend) {
		t.Errorf("Ping() error = %v, want ErrBackend", err)
	}
}

func TestNewRedisClient_Defaults(t *testing.T) {
	client := NewRedisClient(RedisConfig{})
	defer client.Close()

	opts := client.Options()
	if opts.Addr != "localhost:6379" {
		t.Errorf("Addr = %q, want localhost:6379", opts.Addr)
	}
	if opts.ReadTimeout != 500*time.Millisecond {
		t.Errorf("ReadTimeout = %v, want 500ms", opts.ReadTimeout)
	}
	if opts.DialTimeout != 5*time.Second {
		t.Errorf("DialTimeout = %v, want 5s", opts.DialTimeout)
	}
}
