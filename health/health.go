// Package health 就绪检查：并发执行依赖探测并汇总结果。
package health

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sourcegraph/conc/pool"

	"github.com/wyfcoding/bsm/cache"
)

// DefaultTimeout 单个检查的缺省超时。
const DefaultTimeout = 2 * time.Second

// Checker 定义健康检查函数原型。
type Checker func(ctx context.Context) error

// Result 单个依赖的检查结果。
type Result struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency"`
}

// Report 汇总结果，Checks 按名称排序。
type Report struct {
	Healthy bool     `json:"healthy"`
	Checks  []Result `json:"checks"`
}

// Run 并发执行全部检查，每个检查受 timeout 约束。
func Run(ctx context.Context, checkers map[string]Checker, timeout time.Duration) Report {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	p := pool.NewWithResults[Result]()
	for name, check := range checkers {
		p.Go(func() Result {
			cctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			err := check(cctx)
			r := Result{Name: name, Healthy: err == nil, Latency: time.Since(start).String()}
			if err != nil {
				r.Error = err.Error()
			}
			return r
		})
	}

	results := p.Wait()
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })

	report := Report{Healthy: true, Checks: results}
	for _, r := range results {
		if !r.Healthy {
			report.Healthy = false
		}
	}
	return report
}

// RedisChecker 返回 Redis 健康检查函数。
func RedisChecker(client redis.UniversalClient) Checker {
	return func(ctx context.Context) error {
		if client == nil {
			return errors.New("redis client is nil")
		}
		return client.Ping(ctx).Err()
	}
}

// CacheChecker 写入并读回一个探测键。
func CacheChecker(c cache.Cache) Checker {
	const probeKey = "health:probe"
	return func(ctx context.Context) error {
		if c == nil {
			return errors.New("cache is nil")
		}
		if err := c.Set(ctx, probeKey, time.Now().UnixNano(), time.Minute); err != nil {
			return err
		}
		var v int64
		return c.Get(ctx, probeKey, &v)
	}
}
