package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/bsm/metrics"
)

// MetricsOptions 定义指标中间件的可选参数。
type MetricsOptions struct {
	SlowThreshold time.Duration
	SkipPaths     []string
}

// HTTPMetrics 返回一个用于采集 HTTP 请求指标的 Gin 中间件。
func HTTPMetrics(m *metrics.Metrics, opts MetricsOptions) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(opts.SkipPaths))
	for _, path := range opts.SkipPaths {
		skip[path] = struct{}{}
	}

	return func(c *gin.Context) {
		// 使用路由模板作为标签，避免高基数
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		if _, ok := skip[path]; ok || m == nil {
			c.Next()
			return
		}

		m.HTTPInFlight.WithLabelValues(c.Request.Method, path).Inc()
		defer m.HTTPInFlight.WithLabelValues(c.Request.Method, path).Dec()

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(latency.Seconds())
		if opts.SlowThreshold > 0 && latency > opts.SlowThreshold {
			m.HTTPSlowRequests.WithLabelValues(c.Request.Method, path).Inc()
		}
	}
}
