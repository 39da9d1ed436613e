// Package metrics 封装独立的 Prometheus 注册表，提供 HTTP 与定价引擎的标准指标。
package metrics

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 封装了基于 Prometheus 的指标采集注册表及预定义的标准监控指标。
type Metrics struct {
	registry *prometheus.Registry // 内部独立的 Prometheus 注册中心

	HTTPRequestsTotal   *prometheus.CounterVec   // HTTP 请求总量 (维度: method, path, status)
	HTTPRequestDuration *prometheus.HistogramVec // HTTP 请求耗时分布
	HTTPInFlight        *prometheus.GaugeVec     // 处理中的 HTTP 请求
	HTTPSlowRequests    *prometheus.CounterVec   // 超过慢请求阈值的请求

	EvaluationsTotal *prometheus.CounterVec   // 定价求值次数 (维度: metric)
	GridCellsTotal   *prometheus.CounterVec   // 网格单元格数量 (维度: kind)
	GridDuration     *prometheus.HistogramVec // 网格扫描耗时 (维度: kind)
	CacheRequests    *prometheus.CounterVec   // 曲面缓存访问 (维度: result)

	BuildInfo *prometheus.GaugeVec
}

// NewMetrics 初始化并返回一个新的指标采集器。
// 它会自动注册 Go 运行时指标和进程指标。
func NewMetrics(serviceName string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: reg}

	m.HTTPRequestsTotal = m.NewCounterVec(prometheus.CounterOpts{
		Name: "http_server_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	m.HTTPRequestDuration = m.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_server_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	m.HTTPInFlight = m.NewGaugeVec(prometheus.GaugeOpts{
		Name: "http_server_requests_in_flight",
		Help: "Number of HTTP requests currently being served",
	}, []string{"method", "path"})

	m.HTTPSlowRequests = m.NewCounterVec(prometheus.CounterOpts{
		Name: "http_server_slow_requests_total",
		Help: "HTTP requests slower than the configured threshold",
	}, []string{"method", "path"})

	m.EvaluationsTotal = m.NewCounterVec(prometheus.CounterOpts{
		Name: "bsm_evaluations_total",
		Help: "Total number of option evaluations",
	}, []string{"metric"})

	m.GridCellsTotal = m.NewCounterVec(prometheus.CounterOpts{
		Name: "bsm_grid_cells_total",
		Help: "Total number of grid cells evaluated",
	}, []string{"kind"})

	m.GridDuration = m.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bsm_grid_duration_seconds",
		Help:    "Grid sweep latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	}, []string{"kind"})

	m.CacheRequests = m.NewCounterVec(prometheus.CounterOpts{
		Name: "bsm_cache_requests_total",
		Help: "Surface cache lookups by result",
	}, []string{"result"})

	slog.Info("unified metrics registry initialized", "service", serviceName)
	return m
}

// NewCounterVec 创建并注册一个新的计数器指标。
func (m *Metrics) NewCounterVec(opts prometheus.CounterOpts, labelNames []string) *prometheus.CounterVec {
	cv := prometheus.NewCounterVec(opts, labelNames)
	m.registry.MustRegister(cv)
	return cv
}

// NewGaugeVec 创建并注册一个新的仪表盘指标。
func (m *Metrics) NewGaugeVec(opts prometheus.GaugeOpts, labelNames []string) *prometheus.GaugeVec {
	gv := prometheus.NewGaugeVec(opts, labelNames)
	m.registry.MustRegister(gv)
	return gv
}

// NewHistogramVec 创建并注册一个新的直方图指标。
func (m *Metrics) NewHistogramVec(opts prometheus.HistogramOpts, labelNames []string) *prometheus.HistogramVec {
	hv := prometheus.NewHistogramVec(opts, labelNames)
	m.registry.MustRegister(hv)
	return hv
}

// Registry 返回内部注册表，供测试读取指标。
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回用于暴露指标的 HTTP 处理器。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
