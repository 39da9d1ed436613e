// Package limiter 请求限流：进程内按 key 的令牌桶，以及基于 Redis ZSet 的分布式滑动窗口。
package limiter

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/wyfcoding/bsm/breaker"
)

// Limiter 接口定义了限流器的通用行为。
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// 本地令牌桶的缺省容量与空闲过期时间。
const (
	DefaultMaxKeys = 100_000
	DefaultIdleTTL = 10 * time.Minute
)

// LocalLimiter 按 key（通常为客户端 IP）维护独立令牌桶，仅在单实例内生效。
// 桶保存在带容量上限的 LRU 中，空闲超过 idleTTL 的桶被回收，再次出现时以满桶重建。
type LocalLimiter struct {
	mu      sync.Mutex
	buckets *expirable.LRU[string, *rate.Limiter]
	limit   rate.Limit
	burst   int
}

// LocalOption 配置 LocalLimiter。
type LocalOption func(*localOptions)

type localOptions struct {
	maxKeys int
	idleTTL time.Duration
}

// WithMaxKeys 同时跟踪的 key 上限，超出时淘汰最久未访问的桶。
func WithMaxKeys(n int) LocalOption {
	return func(o *localOptions) {
		if n > 0 {
			o.maxKeys = n
		}
	}
}

// WithIdleTTL key 空闲多久后回收其令牌桶。
func WithIdleTTL(d time.Duration) LocalOption {
	return func(o *localOptions) {
		if d > 0 {
			o.idleTTL = d
		}
	}
}

// NewLocalLimiter r 为每秒补充的令牌数，b 为桶容量。
func NewLocalLimiter(r rate.Limit, b int, opts ...LocalOption) *LocalLimiter {
	o := localOptions{maxKeys: DefaultMaxKeys, idleTTL: DefaultIdleTTL}
	for _, opt := range opts {
		opt(&o)
	}
	return &LocalLimiter{
		buckets: expirable.NewLRU[string, *rate.Limiter](o.maxKeys, nil, o.idleTTL),
		limit:   r,
		burst:   b,
	}
}

// Allow 从 key 对应的桶中取一个令牌，桶空时返回 false。每次访问都会续期该桶。
func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	b, ok := l.buckets.Get(key)
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
	}
	l.buckets.Add(key, b)
	l.mu.Unlock()

	return b.Allow(), nil
}

// Len 当前跟踪的 key 数。
func (l *LocalLimiter) Len() int {
	return l.buckets.Len()
}

const slidingWindowLua = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local start = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, 0, start)
local count = redis.call('ZCARD', key)
if count < limit then
	redis.call('ZADD', key, now, ARGV[5])
	redis.call('PEXPIRE', key, ttl)
	return 1
end
return 0
`

// RedisLimiter 基于 Redis ZSet 的滑动窗口限流器，多实例共享限流状态。
// Redis 不可用时退化为进程内令牌桶；配置了熔断器时，熔断期间不再访问 Redis。
type RedisLimiter struct {
	client   redis.UniversalClient
	breaker  *breaker.Breaker
	script   *redis.Script
	limit    int
	window   time.Duration
	prefix   string
	fallback *LocalLimiter
	seq      uint64
	mu       sync.Mutex
}

// RedisOption 配置 RedisLimiter。
type RedisOption func(*RedisLimiter)

// WithBreaker 用熔断器保护 Redis 调用。
func WithBreaker(b *breaker.Breaker) RedisOption {
	return func(l *RedisLimiter) {
		l.breaker = b
	}
}

// NewRedisLimiter 在 window 内最多放行 limit 个请求。
func NewRedisLimiter(client redis.UniversalClient, limit int, window time.Duration, opts ...RedisOption) *RedisLimiter {
	if window <= 0 {
		window = time.Second
	}
	perSecond := rate.Limit(float64(limit) / window.Seconds())
	l := &RedisLimiter{
		client:   client,
		script:   redis.NewScript(slidingWindowLua),
		limit:    limit,
		window:   window,
		prefix:   "bsm:ratelimit:",
		fallback: NewLocalLimiter(perSecond, limit),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow 在一个 Lua 脚本内完成清理、计数与写入，保证判断的原子性。
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now()
	nowMs := now.UnixMilli()
	startMs := now.Add(-l.window).UnixMilli()

	l.mu.Lock()
	l.seq++
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + strconv.FormatUint(l.seq, 10)
	l.mu.Unlock()

	res, err := breaker.Execute(l.breaker, func() (int, error) {
		return l.script.Run(ctx, l.client, []string{l.prefix + key},
			nowMs, startMs, l.limit, l.window.Milliseconds(), member).Int()
	})
	if errors.Is(err, breaker.ErrOpen) {
		return l.fallback.Allow(ctx, key)
	}
	if err != nil {
		slog.WarnContext(ctx, "redis limiter unavailable, falling back to local bucket", "key", key, "error", err)
		return l.fallback.Allow(ctx, key)
	}
	return res == 1, nil
}
