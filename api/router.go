package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/wyfcoding/bsm/limiter"
	"github.com/wyfcoding/bsm/metrics"
	"github.com/wyfcoding/bsm/middleware"
	"github.com/wyfcoding/bsm/server"
)

// RouterOptions 路由与中间件参数。Limiter、Metrics 为空时不启用对应中间件。
type RouterOptions struct {
	ServiceName    string // 非空时启用 otelgin 追踪
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	MetricsPath    string
	Limiter        limiter.Limiter
	MaxBodyBytes   int64
	RequestTimeout time.Duration
	SlowThreshold  time.Duration
}

// NewRouter 按固定顺序装配中间件并注册路由。
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	mws := []gin.HandlerFunc{middleware.Recovery(opts.Logger)}
	if opts.ServiceName != "" {
		mws = append(mws, otelgin.Middleware(opts.ServiceName))
	}
	mws = append(mws,
		middleware.RequestID(),
		middleware.TraceIDHeader(),
		middleware.Logger(opts.Logger, opts.SlowThreshold),
	)
	if opts.Metrics != nil {
		mws = append(mws, middleware.HTTPMetrics(opts.Metrics, middleware.MetricsOptions{
			SlowThreshold: opts.SlowThreshold,
			SkipPaths:     []string{"/healthz", "/readyz", opts.MetricsPath},
		}))
	}
	if opts.Limiter != nil {
		mws = append(mws, middleware.RateLimit(opts.Limiter))
	}
	mws = append(mws,
		middleware.MaxBodyBytes(opts.MaxBodyBytes),
		middleware.Timeout(opts.RequestTimeout),
		middleware.HTTPErrorHandler(),
	)

	engine := server.NewEngine(mws...)
	h.Register(engine)
	if opts.Metrics != nil && opts.MetricsPath != "" {
		engine.GET(opts.MetricsPath, gin.WrapH(opts.Metrics.Handler()))
	}
	return engine
}
