// Package pricing 实现无股息欧式期权的 Black-Scholes-Merton 闭式定价与希腊字母。
//
// 主入口是一组无状态函数，参数按值传入，可在任意 goroutine 中并发调用。
// Model 是其上的可变封装，用于逐个修改参数后重新求值的场景。
//
// 所有函数先校验参数：S、K、T、σ 非有限或非正、r 非有限或使 e^(−rT) 溢出时返回 ErrDomain，
// 极端参数下结果溢出同样返回 ErrDomain；
// 期权方向不是 Call/Put 时返回 ErrInvalidOptionType。返回 nil 错误时结果必为有限值。
package pricing

import "math"

// Greeks 某一期权方向下的价格与全部希腊字母。
type Greeks struct {
	Type  OptionType `json:"option_type"`
	Price float64    `json:"price"`
	Delta float64    `json:"delta"`
	Gamma float64    `json:"gamma"`
	Vega  float64    `json:"vega"`  // 波动率变动 1 个百分点的价格变化
	Theta float64    `json:"theta"` // 年化
	Rho   float64    `json:"rho"`   // 利率变动 1 个百分点的价格变化
}

// CallPrice 看涨期权价格 Φ(d1)·S − Φ(d2)·K·e^(−rT)。
func CallPrice(p Params) (float64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	return result(p, callPrice(p, p.D1()))
}

// PutPrice 看跌期权价格 Φ(−d2)·K·e^(−rT) − Φ(−d1)·S。
func PutPrice(p Params) (float64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	return result(p, putPrice(p, p.D1()))
}

// Price 按期权方向返回价格。
func Price(p Params, t OptionType) (float64, error) {
	if !t.Valid() {
		return 0, invalidOptionType(t)
	}
	if err := p.Validate(); err != nil {
		return 0, err
	}
	if t == Call {
		return result(p, callPrice(p, p.D1()))
	}
	return result(p, putPrice(p, p.D1()))
}

// Delta 看涨 Φ(d1)，看跌 Φ(d1) − 1。
func Delta(p Params, t OptionType) (float64, error) {
	if !t.Valid() {
		return 0, invalidOptionType(t)
	}
	if err := p.Validate(); err != nil {
		return 0, err
	}
	return result(p, delta(p.D1(), t))
}

// Gamma φ(d1) / (S·σ·√T)，看涨看跌相同。
func Gamma(p Params) (float64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	return result(p, gamma(p, p.D1()))
}

// Vega S·φ(d1)·√T·0.01，看涨看跌相同。
func Vega(p Params) (float64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	return result(p, vega(p, p.D1()))
}

// Theta 年化时间衰减。
func Theta(p Params, t OptionType) (float64, error) {
	if !t.Valid() {
		return 0, invalidOptionType(t)
	}
	if err := p.Validate(); err != nil {
		return 0, err
	}
	return result(p, theta(p, p.D1(), t))
}

// Rho 看涨 K·T·e^(−rT)·Φ(d2)·0.01，看跌 −K·T·e^(−rT)·Φ(−d2)·0.01。
func Rho(p Params, t OptionType) (float64, error) {
	if !t.Valid() {
		return 0, invalidOptionType(t)
	}
	if err := p.Validate(); err != nil {
		return 0, err
	}
	return result(p, rho(p, p.D1(), t))
}

// Evaluate 一次性计算价格及全部希腊字母，d1/d2 只计算一次。
func Evaluate(p Params, t OptionType) (Greeks, error) {
	if !t.Valid() {
		return Greeks{}, invalidOptionType(t)
	}
	if err := p.Validate(); err != nil {
		return Greeks{}, err
	}
	d1 := p.D1()
	g := Greeks{
		Type:  t,
		Delta: delta(d1, t),
		Gamma: gamma(p, d1),
		Vega:  vega(p, d1),
		Theta: theta(p, d1, t),
		Rho:   rho(p, d1, t),
	}
	if t == Call {
		g.Price = callPrice(p, d1)
	} else {
		g.Price = putPrice(p, d1)
	}
	if err := finiteResult(p, g.Price, g.Delta, g.Gamma, g.Vega, g.Theta, g.Rho); err != nil {
		return Greeks{}, err
	}
	return g, nil
}

func result(p Params, v float64) (float64, error) {
	if err := finiteResult(p, v); err != nil {
		return 0, err
	}
	return v, nil
}

// 以下内部函数假定参数已通过校验。

func callPrice(p Params, d1 float64) float64 {
	d2 := d1 - p.Volatility*math.Sqrt(p.Time)
	return NormCDF(d1)*p.Spot - NormCDF(d2)*p.Strike*p.discount()
}

func putPrice(p Params, d1 float64) float64 {
	d2 := d1 - p.Volatility*math.Sqrt(p.Time)
	return NormCDF(-d2)*p.Strike*p.discount() - NormCDF(-d1)*p.Spot
}

func delta(d1 float64, t OptionType) float64 {
	if t == Call {
		return NormCDF(d1)
	}
	return NormCDF(d1) - 1
}

func gamma(p Params, d1 float64) float64 {
	return NormPDF(d1) / (p.Spot * p.Volatility * math.Sqrt(p.Time))
}

func vega(p Params, d1 float64) float64 {
	return p.Spot * NormPDF(d1) * math.Sqrt(p.Time) * 0.01
}

func theta(p Params, d1 float64, t OptionType) float64 {
	sqrtT := math.Sqrt(p.Time)
	d2 := d1 - p.Volatility*sqrtT
	decay := -(p.Spot * NormPDF(d1) * p.Volatility) / (2 * sqrtT)
	carry := p.Rate * p.Strike * p.discount()
	if t == Call {
		return decay - carry*NormCDF(d2)
	}
	return decay + carry*NormCDF(-d2)
}

func rho(p Params, d1 float64, t OptionType) float64 {
	d2 := d1 - p.Volatility*math.Sqrt(p.Time)
	kt := p.Strike * p.Time * p.discount()
	if t == Call {
		return kt * NormCDF(d2) * 0.01
	}
	return -kt * NormCDF(-d2) * 0.01
}
