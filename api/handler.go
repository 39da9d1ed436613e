// Package api 定价服务的 HTTP 接口：单点报价、热力图曲面与期限序列。
package api

import (
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/singleflight"

	"github.com/wyfcoding/bsm/cache"
	"github.com/wyfcoding/bsm/grid"
	"github.com/wyfcoding/bsm/health"
	"github.com/wyfcoding/bsm/metrics"
	"github.com/wyfcoding/bsm/pricing"
	"github.com/wyfcoding/bsm/response"
)

// AxisSizes 缺省坐标轴的采样点数。
type AxisSizes struct {
	Spot int
	Vol  int
	Time int
}

// Options Handler 依赖。Cache 与 Metrics 可为空。
type Options struct {
	Defaults      pricing.Params
	DecimalPlaces int32
	Axes          AxisSizes
	Evaluator     *grid.Evaluator
	Cache         cache.Cache
	CacheTTL      time.Duration
	SweepTimeout  time.Duration // 合并后的曲面计算的超时，独立于单个请求
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
	Version       string
	Checkers      map[string]health.Checker // /readyz 探测的依赖
}

// Handler 持有各接口共享的依赖。
type Handler struct {
	defaults atomic.Pointer[pricing.Params]
	calc     *pricing.DecimalCalculator
	axes     AxisSizes
	eval     *grid.Evaluator
	cache    cache.Cache
	cacheTTL time.Duration
	timeout  time.Duration
	group    singleflight.Group
	metrics  *metrics.Metrics
	logger   *slog.Logger
	version  string
	checkers map[string]health.Checker
}

// NewHandler 创建 Handler。
func NewHandler(opts Options) *Handler {
	if opts.Evaluator == nil {
		opts.Evaluator = grid.NewEvaluator()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.SweepTimeout <= 0 {
		opts.SweepTimeout = 30 * time.Second
	}
	if opts.Axes.Spot <= 0 {
		opts.Axes.Spot = 10
	}
	if opts.Axes.Vol <= 0 {
		opts.Axes.Vol = 10
	}
	if opts.Axes.Time <= 0 {
		opts.Axes.Time = 20
	}
	h := &Handler{
		calc:     pricing.NewDecimalCalculator(opts.DecimalPlaces),
		axes:     opts.Axes,
		eval:     opts.Evaluator,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		timeout:  opts.SweepTimeout,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		version:  opts.Version,
		checkers: opts.Checkers,
	}
	h.SetDefaults(opts.Defaults)
	return h
}

// SetDefaults 替换请求缺省字段使用的参数，可在配置热更新时调用。
func (h *Handler) SetDefaults(p pricing.Params) {
	h.defaults.Store(&p)
}

// Defaults 当前缺省参数。
func (h *Handler) Defaults() pricing.Params {
	return *h.defaults.Load()
}

// Register 注册全部路由。
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	v1 := r.Group("/v1")
	v1.POST("/quote", h.Quote)
	v1.POST("/surface", h.Surface)
	v1.POST("/series", h.Series)
}

// Healthz 存活检查。
func (h *Handler) Healthz(c *gin.Context) {
	response.SuccessWithRawData(c, gin.H{"status": "ok", "version": h.version})
}

// Readyz 就绪检查，任一依赖不可用时返回 503。
func (h *Handler) Readyz(c *gin.Context) {
	report := health.Run(c.Request.Context(), h.checkers, health.DefaultTimeout)
	status := http.StatusOK
	if !report.Healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

func (h *Handler) countEvaluations(metric string, n int) {
	if h.metrics != nil {
		h.metrics.EvaluationsTotal.WithLabelValues(metric).Add(float64(n))
	}
}
