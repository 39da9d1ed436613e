package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"

	"github.com/wyfcoding/bsm/metrics"
	"github.com/wyfcoding/bsm/xerrors"
)

// BigCache 实现了 Cache 接口，底层为 allegro/bigcache。
// 值以 JSON 存储；所有条目共享构造时给定的 TTL。
type BigCache struct {
	cache   *bigcache.BigCache
	metrics *metrics.Metrics
}

// Options 构造参数，零值字段使用 bigcache 默认值。
type Options struct {
	TTL              time.Duration
	Shards           int // 必须是 2 的幂
	MaxEntrySize     int // 字节
	HardMaxCacheSize int // MB，0 表示不限
	Metrics          *metrics.Metrics
}

// NewBigCache 创建并返回一个新的 BigCache 实例。
func NewBigCache(ctx context.Context, opts Options) (*BigCache, error) {
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Minute
	}
	config := bigcache.DefaultConfig(opts.TTL)
	config.HardMaxCacheSize = opts.HardMaxCacheSize
	config.CleanWindow = opts.TTL / 2
	if opts.Shards > 0 {
		config.Shards = opts.Shards
	}
	if opts.MaxEntrySize > 0 {
		config.MaxEntrySize = opts.MaxEntrySize
	}

	c, err := bigcache.New(ctx, config)
	if err != nil {
		return nil, xerrors.New(xerrors.ErrInternal, xerrors.CodeCacheFailure, "init bigcache failed", "", err)
	}
	return &BigCache{cache: c, metrics: opts.Metrics}, nil
}

// Get 读取 key 并反序列化到 value（必须是指针）。未命中返回 ErrCacheMiss。
func (c *BigCache) Get(_ context.Context, key string, value any) error {
	data, err := c.cache.Get(key)
	if err != nil {
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			c.observe("miss")
			return ErrCacheMiss
		}
		c.observe("error")
		return xerrors.New(xerrors.ErrInternal, xerrors.CodeCacheFailure, "cache read failed", "", err)
	}
	if err := json.Unmarshal(data, value); err != nil {
		c.observe("error")
		return fmt.Errorf("decode cached value %q: %w", key, err)
	}
	c.observe("hit")
	return nil
}

// Set 序列化 value 后写入。bigcache 不支持单键过期，expiration 被忽略。
func (c *BigCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.cache.Set(key, data)
}

// Delete 删除一个或多个键，不存在的键被忽略。
func (c *BigCache) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		if err := c.cache.Delete(key); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
			return err
		}
	}
	return nil
}

// Exists 检查BigCache中是否存在指定的键。
func (c *BigCache) Exists(_ context.Context, key string) (bool, error) {
	_, err := c.cache.Get(key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return false, nil
	}
	return false, err
}

// Len 当前条目数。
func (c *BigCache) Len() int {
	return c.cache.Len()
}

// Close 关闭BigCache实例，释放其占用的资源。
func (c *BigCache) Close() error {
	return c.cache.Close()
}

func (c *BigCache) observe(result string) {
	if c.metrics != nil {
		c.metrics.CacheRequests.WithLabelValues(result).Inc()
	}
}
