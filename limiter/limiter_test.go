package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/wyfcoding/bsm/breaker"
)

func TestLocalLimiter_PerKeyBurst(t *testing.T) {
	l := NewLocalLimiter(0.001, 2)
	ctx := context.Background()

	for i := range 2 {
		if ok, _ := l.Allow(ctx, "10.0.0.1"); !ok {
			t.Fatalf("request %d within burst should pass", i)
		}
	}
	if ok, _ := l.Allow(ctx, "10.0.0.1"); ok {
		t.Error("request beyond burst should be rejected")
	}
	if ok, _ := l.Allow(ctx, "10.0.0.2"); !ok {
		t.Error("other keys have their own bucket")
	}
}

func TestLocalLimiter_CapsTrackedKeys(t *testing.T) {
	l := NewLocalLimiter(0.001, 1, WithMaxKeys(2))
	ctx := context.Background()

	for _, key := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		if ok, _ := l.Allow(ctx, key); !ok {
			t.Fatalf("%s: first request should pass", key)
		}
	}
	if n := l.Len(); n != 2 {
		t.Errorf("tracked keys = %d, want 2", n)
	}
	// 最久未访问的 10.0.0.1 已被淘汰，以满桶重建
	if ok, _ := l.Allow(ctx, "10.0.0.1"); !ok {
		t.Error("evicted key should start with a fresh bucket")
	}
	if ok, _ := l.Allow(ctx, "10.0.0.3"); ok {
		t.Error("recently used key keeps its drained bucket")
	}
}

func TestLocalLimiter_ExpiresIdleKeys(t *testing.T) {
	l := NewLocalLimiter(0.001, 1, WithIdleTTL(30*time.Millisecond))
	ctx := context.Background()

	if ok, _ := l.Allow(ctx, "client"); !ok {
		t.Fatal("first request should pass")
	}
	if ok, _ := l.Allow(ctx, "client"); ok {
		t.Fatal("bucket should be drained")
	}
	time.Sleep(60 * time.Millisecond)
	if ok, _ := l.Allow(ctx, "client"); !ok {
		t.Error("idle bucket should have been dropped and rebuilt full")
	}
}

func TestRedisLimiter_FallsBackWhenRedisDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	l := NewRedisLimiter(client, 1, time.Hour)
	ctx := context.Background()

	ok, err := l.Allow(ctx, "client")
	if err != nil || !ok {
		t.Fatalf("first request should pass through fallback, got %v %v", ok, err)
	}
	if ok, _ := l.Allow(ctx, "client"); ok {
		t.Error("fallback bucket should enforce the limit")
	}
}

func TestRedisLimiter_BreakerSkipsRedisWhenOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	b := breaker.NewBreaker(breaker.Settings{Name: "ratelimit", Timeout: time.Hour, MinRequests: 2})
	l := NewRedisLimiter(client, 100, time.Second, WithBreaker(b))
	ctx := context.Background()

	for i := range 4 {
		ok, err := l.Allow(ctx, "client")
		if err != nil || !ok {
			t.Fatalf("request %d: got %v %v", i, ok, err)
		}
	}
	if b.State() != gobreaker.StateOpen {
		t.Errorf("expected breaker to open after redis failures, got %v", b.State())
	}
}
