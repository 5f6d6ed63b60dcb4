package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, limit int) (*FixedWindowLimiter, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter, err := NewFixedWindowLimiter(client, "test:ratelimit", limit, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	// Pin the clock to the start of a window so the test never straddles two.
	limiter.now = func() time.Time { return time.UnixMilli(0) }
	return limiter, srv
}

func TestFixedWindowLimiter(t *testing.T) {
	limiter, _ := newTestLimiter(t, 2)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		if ok, err := limiter.Allow(ctx, "user-1"); !ok || err != nil {
			t.Fatalf("request %d should pass, got (%v, %v)", i, ok, err)
		}
	}
	if ok, _ := limiter.Allow(ctx, "user-1"); ok {
		t.Fatalf("third request should be blocked")
	}
	if ok, _ := limiter.Allow(ctx, "user-2"); !ok {
		t.Fatalf("another user has its own quota")
	}
}

func TestFixedWindowLimiterSetsExpiry(t *testing.T) {
	limiter, srv := newTestLimiter(t, 5)

	if _, err := limiter.Allow(context.Background(), "user-1"); err != nil {
		t.Fatalf("allow: %v", err)
	}
	ttl := srv.TTL("test:ratelimit:user-1:0")
	if ttl <= 0 || ttl > time.Minute {
		t.Fatalf("window key TTL = %v, want (0, 1m]", ttl)
	}
}

func TestFixedWindowLimiterFailClosed(t *testing.T) {
	limiter, srv := newTestLimiter(t, 1)
	srv.Close()

	ok, err := limiter.Allow(context.Background(), "user-1")
	if ok {
		t.Fatalf("limiter should fail closed on redis errors")
	}
	if err == nil {
		t.Fatalf("expected the redis error to be returned")
	}
}

func TestNewFixedWindowLimiterValidates(t *testing.T) {
	if _, err := NewFixedWindowLimiter(nil, "", 1, time.Second); err == nil {
		t.Fatalf("expected error for nil client")
	}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	if _, err := NewFixedWindowLimiter(client, "", 0, time.Second); err == nil {
		t.Fatalf("expected error for zero limit")
	}
}

func TestRetryAfter(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1)
	limiter.now = func() time.Time { return time.UnixMilli(15_000) }

	if got := limiter.RetryAfter(); got != 45*time.Second {
		t.Fatalf("RetryAfter() = %v, want 45s", got)
	}
}
