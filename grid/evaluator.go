package grid

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/wyfcoding/bsm/logging"
	"github.com/wyfcoding/bsm/metrics"
	"github.com/wyfcoding/bsm/pricing"
	"github.com/wyfcoding/bsm/xerrors"
)

// Surface 现价 × 波动率 网格上的看涨/看跌矩阵，Call[i][j] 对应 (Vols[i], Spots[j])。
type Surface struct {
	Metric Metric      `json:"metric"`
	Spots  []float64   `json:"spots"`
	Vols   []float64   `json:"vols"`
	Call   [][]float64 `json:"call"`
	Put    [][]float64 `json:"put"`
}

// Series 剩余期限轴上的看涨/看跌序列。
type Series struct {
	Metric Metric    `json:"metric"`
	Times  []float64 `json:"times"`
	Call   []float64 `json:"call"`
	Put    []float64 `json:"put"`
}

// Evaluator 网格求值器，可被多个 goroutine 共享。
type Evaluator struct {
	options *options
}

type options struct {
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
	MaxGoroutines int
	MaxPoints     int
}

// Option 定义配置选项。
type Option func(*options)

// WithLogger 设置日志记录器。
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.Logger = l
	}
}

// WithMetrics 注入指标采集器.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.Metrics = m
	}
}

// WithMaxGoroutines 设置并行计算行的最大 goroutine 数。
func WithMaxGoroutines(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.MaxGoroutines = n
		}
	}
}

// WithMaxPoints 设置单条轴允许的最大采样点数。
func WithMaxPoints(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.MaxPoints = n
		}
	}
}

// NewEvaluator 创建网格求值器。
func NewEvaluator(opts ...Option) *Evaluator {
	o := &options{
		Logger:        slog.Default(),
		MaxGoroutines: runtime.GOMAXPROCS(0),
		MaxPoints:     200,
	}
	for _, opt := range opts {
		opt(o)
	}
	return &Evaluator{options: o}
}

func (e *Evaluator) checkAxis(a Axis) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if a.Points > e.options.MaxPoints {
		return xerrors.New(xerrors.ErrInvalidArg, xerrors.CodeAxisTooLarge, "too many axis points", "", nil).
			WithDetail("points=%d max=%d", a.Points, e.options.MaxPoints)
	}
	return nil
}

// Surface 固定 base 的行权价、利率与期限，在 spotAxis × volAxis 上采样 metric。
// 每行（一个波动率）作为一个任务并行执行；任一单元格出错或 ctx 取消时返回错误。
func (e *Evaluator) Surface(ctx context.Context, base pricing.Params, metric Metric, spotAxis, volAxis Axis) (*Surface, error) {
	if !metric.Valid() {
		return nil, ErrInvalidMetric
	}
	if err := e.checkAxis(spotAxis); err != nil {
		return nil, err
	}
	if err := e.checkAxis(volAxis); err != nil {
		return nil, err
	}

	defer logging.LogDuration(ctx, e.options.Logger, "grid.surface", "metric", metric,
		"spot_points", spotAxis.Points, "vol_points", volAxis.Points)()

	start := time.Now()
	spots, vols := spotAxis.Values(), volAxis.Values()
	s := &Surface{
		Metric: metric,
		Spots:  spots,
		Vols:   vols,
		Call:   make([][]float64, len(vols)),
		Put:    make([][]float64, len(vols)),
	}

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError().WithMaxGoroutines(e.options.MaxGoroutines)
	for i, vol := range vols {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			callRow := make([]float64, len(spots))
			putRow := make([]float64, len(spots))
			for j, spot := range spots {
				cell := base
				cell.Spot = spot
				cell.Volatility = vol
				c, q, err := metric.evalPair(cell)
				if err != nil {
					return err
				}
				callRow[j], putRow[j] = c, q
			}
			// 每个任务只写自己的行
			s.Call[i], s.Put[i] = callRow, putRow
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	e.observe("surface", metric, len(spots)*len(vols), start)
	return s, nil
}

// Series 固定 base 的其它参数，在 timeAxis 上采样 metric（theta/rho 折线图）。
func (e *Evaluator) Series(ctx context.Context, base pricing.Params, metric Metric, timeAxis Axis) (*Series, error) {
	if !metric.Valid() {
		return nil, ErrInvalidMetric
	}
	if err := e.checkAxis(timeAxis); err != nil {
		return nil, err
	}

	defer logging.LogDuration(ctx, e.options.Logger, "grid.series", "metric", metric, "time_points", timeAxis.Points)()

	start := time.Now()
	times := timeAxis.Values()
	s := &Series{
		Metric: metric,
		Times:  times,
		Call:   make([]float64, len(times)),
		Put:    make([]float64, len(times)),
	}
	for k, tm := range times {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cell := base
		cell.Time = tm
		c, q, err := metric.evalPair(cell)
		if err != nil {
			return nil, err
		}
		s.Call[k], s.Put[k] = c, q
	}

	e.observe("series", metric, len(times), start)
	return s, nil
}

func (e *Evaluator) observe(kind string, metric Metric, cells int, start time.Time) {
	m := e.options.Metrics
	if m == nil {
		return
	}
	m.GridCellsTotal.WithLabelValues(kind).Add(float64(cells))
	m.GridDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	// 每个单元格分别计算看涨与看跌
	m.EvaluationsTotal.WithLabelValues(string(metric)).Add(float64(2 * cells))
}
