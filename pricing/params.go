package pricing

import "math"

// Params Black-Scholes-Merton 模型的五个市场参数。
// 作为值类型传递，网格计算时每个单元格持有自己的副本。
type Params struct {
	Spot       float64 `json:"spot"`       // 标的现价 S
	Strike     float64 `json:"strike"`     // 行权价 K
	Rate       float64 `json:"rate"`       // 无风险利率 r（连续复利，年化）
	Time       float64 `json:"time"`       // 剩余期限 T（年）
	Volatility float64 `json:"volatility"` // 年化波动率 σ
}

// Validate 检查参数是否落在模型定义域内。
func (p Params) Validate() error {
	if err := checkPositive("spot", p.Spot); err != nil {
		return err
	}
	if err := checkPositive("strike", p.Strike); err != nil {
		return err
	}
	if !isFinite(p.Rate) {
		return domainError("rate", "finite", p.Rate)
	}
	if err := checkPositive("time", p.Time); err != nil {
		return err
	}
	if err := checkPositive("volatility", p.Volatility); err != nil {
		return err
	}
	// r 极小且 T 较大时 e^(−rT) 溢出为 +Inf，价格随之变为 NaN。
	if !isFinite(p.discount()) {
		return domainError("rate", "small enough in magnitude for a finite discount factor", p.Rate)
	}
	return nil
}

// D1 返回 [ln(S/K) + (r + σ²/2)·T] / (σ·√T)。调用方负责先校验参数。
func (p Params) D1() float64 {
	return (math.Log(p.Spot/p.Strike) + (p.Rate+0.5*p.Volatility*p.Volatility)*p.Time) / (p.Volatility * math.Sqrt(p.Time))
}

// D2 返回 d1 − σ·√T。
func (p Params) D2() float64 {
	return p.D1() - p.Volatility*math.Sqrt(p.Time)
}

// discount 返回 e^(−rT)。
func (p Params) discount() float64 {
	return math.Exp(-p.Rate * p.Time)
}

func checkPositive(field string, v float64) error {
	if !isFinite(v) || v <= 0 {
		return domainError(field, "finite and positive", v)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// finiteResult 在参数合法但结果仍溢出时返回 ErrDomain。
// 只有极端的利率与期限组合（K·T·e^(−rT) 超出 float64）会走到这里。
func finiteResult(p Params, vs ...float64) error {
	for _, v := range vs {
		if !isFinite(v) {
			return domainError("rate", "such that the result is finite", p.Rate)
		}
	}
	return nil
}
