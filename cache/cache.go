// Package cache 缓存抽象与基于 bigcache 的进程内实现，用于缓存网格求值结果。
package cache

import (
	"context"
	"time"

	"github.com/wyfcoding/bsm/xerrors"
)

// ErrCacheMiss 键不存在或已过期。
var ErrCacheMiss = xerrors.New(xerrors.ErrNotFound, 404101, "cache miss", "", nil)

// Cache defines the cache interface
type Cache interface {
	Get(ctx context.Context, key string, value any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}
