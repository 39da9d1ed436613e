package grid

import (
	"strings"

	"github.com/wyfcoding/bsm/pricing"
	"github.com/wyfcoding/bsm/xerrors"
)

// Metric 网格上采样的量。
type Metric string

const (
	MetricPrice Metric = "price"
	MetricDelta Metric = "delta"
	MetricGamma Metric = "gamma"
	MetricVega  Metric = "vega"
	MetricTheta Metric = "theta"
	MetricRho   Metric = "rho"
)

// ErrInvalidMetric 不支持的采样量。
var ErrInvalidMetric = xerrors.New(xerrors.ErrInvalidArg, xerrors.CodeInvalidMetric, "invalid metric", "supported metrics: price, delta, gamma, vega, theta, rho", nil)

// ParseMetric 大小写不敏感地解析采样量，空串视为 price。
func ParseMetric(s string) (Metric, error) {
	m := Metric(strings.ToLower(strings.TrimSpace(s)))
	if m == "" {
		return MetricPrice, nil
	}
	if !m.Valid() {
		return "", xerrors.New(xerrors.ErrInvalidArg, xerrors.CodeInvalidMetric, "invalid metric", "supported metrics: price, delta, gamma, vega, theta, rho", nil).
			WithContext("metric", s)
	}
	return m, nil
}

// Valid 报告 m 是否受支持。
func (m Metric) Valid() bool {
	switch m {
	case MetricPrice, MetricDelta, MetricGamma, MetricVega, MetricTheta, MetricRho:
		return true
	}
	return false
}

// pick 从一次完整求值中取出对应的量。
func (m Metric) pick(g pricing.Greeks) float64 {
	switch m {
	case MetricDelta:
		return g.Delta
	case MetricGamma:
		return g.Gamma
	case MetricVega:
		return g.Vega
	case MetricTheta:
		return g.Theta
	case MetricRho:
		return g.Rho
	default:
		return g.Price
	}
}

// evalPair 在同一组参数上计算看涨与看跌的取值。
func (m Metric) evalPair(p pricing.Params) (call, put float64, err error) {
	gc, err := pricing.Evaluate(p, pricing.Call)
	if err != nil {
		return 0, 0, err
	}
	gp, err := pricing.Evaluate(p, pricing.Put)
	if err != nil {
		return 0, 0, err
	}
	return m.pick(gc), m.pick(gp), nil
}
