// Package grid 在参数网格上批量调用定价引擎，生成热力图矩阵与时间序列。
//
// 每个单元格使用独立的 pricing.Params 副本求值，不共享可变模型，
// 因此行与行之间可以并行计算。
package grid

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/wyfcoding/bsm/xerrors"
)

// Axis 一条等间距采样轴，包含两端点。
type Axis struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Points int     `json:"points"`
}

// Validate 检查采样区间与点数。单个取值是否落在模型定义域内由定价引擎判断。
func (a Axis) Validate() error {
	if math.IsNaN(a.Min) || math.IsInf(a.Min, 0) || math.IsNaN(a.Max) || math.IsInf(a.Max, 0) {
		return invalidAxis("axis bounds must be finite", a)
	}
	if a.Min > a.Max {
		return invalidAxis("axis minimum exceeds maximum", a)
	}
	if a.Points < 1 {
		return invalidAxis("axis needs at least one point", a)
	}
	return nil
}

// Values 返回 Points 个从 Min 到 Max 的等间距取值。
func (a Axis) Values() []float64 {
	if a.Points == 1 {
		return []float64{a.Min}
	}
	v := floats.Span(make([]float64, a.Points), a.Min, a.Max)
	// 端点精确等于 Max，避免步长累计误差
	v[len(v)-1] = a.Max
	return v
}

// DefaultSpotAxis 以现价为中心 ±20%，10 个点。
func DefaultSpotAxis(spot float64) Axis {
	return Axis{Min: spot * 0.8, Max: spot * 1.2, Points: 10}
}

// DefaultVolAxis 波动率 0.1 到 0.3，10 个点。
func DefaultVolAxis() Axis {
	return Axis{Min: 0.1, Max: 0.3, Points: 10}
}

// DefaultTimeAxis 剩余期限从 0.1 年（或更短的 T）到 T，20 个点。
func DefaultTimeAxis(maturity float64) Axis {
	return Axis{Min: math.Min(0.1, maturity), Max: maturity, Points: 20}
}

func invalidAxis(msg string, a Axis) *xerrors.Error {
	return xerrors.New(xerrors.ErrInvalidArg, xerrors.CodeInvalidAxis, msg, "", nil).
		WithDetail("min=%v max=%v points=%d", a.Min, a.Max, a.Points)
}
