package pricing

import "github.com/shopspring/decimal"

// DecimalCalculator 以 decimal.Decimal 作为输入输出的定价计算器，
// 供报价等面向金额的调用方使用，内部委托给 float64 引擎。
type DecimalCalculator struct {
	places int32 // 价格保留的小数位
}

// DecimalQuote 某一期权方向的十进制报价。
type DecimalQuote struct {
	Type  OptionType      `json:"option_type"`
	Price decimal.Decimal `json:"price"`
	Delta decimal.Decimal `json:"delta"`
	Gamma decimal.Decimal `json:"gamma"`
	Vega  decimal.Decimal `json:"vega"`
	Theta decimal.Decimal `json:"theta"`
	Rho   decimal.Decimal `json:"rho"`
}

// NewDecimalCalculator 创建计算器，places 为价格小数位，负数按 4 处理。
func NewDecimalCalculator(places int32) *DecimalCalculator {
	if places < 0 {
		places = 4
	}
	return &DecimalCalculator{places: places}
}

// ParamsFromDecimal 将十进制参数转换为 Params。
func ParamsFromDecimal(spot, strike, rate, expiry, vol decimal.Decimal) Params {
	return Params{
		Spot:       spot.InexactFloat64(),
		Strike:     strike.InexactFloat64(),
		Rate:       rate.InexactFloat64(),
		Time:       expiry.InexactFloat64(),
		Volatility: vol.InexactFloat64(),
	}
}

// CalculateCallPrice 计算看涨期权价格。
func (dc *DecimalCalculator) CalculateCallPrice(spot, strike, rate, expiry, vol decimal.Decimal) (decimal.Decimal, error) {
	v, err := CallPrice(ParamsFromDecimal(spot, strike, rate, expiry, vol))
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromFloat(v).Round(dc.places), nil
}

// CalculatePutPrice 计算看跌期权价格。
func (dc *DecimalCalculator) CalculatePutPrice(spot, strike, rate, expiry, vol decimal.Decimal) (decimal.Decimal, error) {
	v, err := PutPrice(ParamsFromDecimal(spot, strike, rate, expiry, vol))
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromFloat(v).Round(dc.places), nil
}

// Quote 一次性计算某方向的价格与希腊字母。希腊字母不做舍入。
func (dc *DecimalCalculator) Quote(p Params, t OptionType) (*DecimalQuote, error) {
	g, err := Evaluate(p, t)
	if err != nil {
		return nil, err
	}
	return &DecimalQuote{
		Type:  t,
		Price: decimal.NewFromFloat(g.Price).Round(dc.places),
		Delta: decimal.NewFromFloat(g.Delta),
		Gamma: decimal.NewFromFloat(g.Gamma),
		Vega:  decimal.NewFromFloat(g.Vega),
		Theta: decimal.NewFromFloat(g.Theta),
		Rho:   decimal.NewFromFloat(g.Rho),
	}, nil
}
