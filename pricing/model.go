package pricing

// Model 可变参数的定价模型，对应"修改字段后重新求值"的使用方式。
// 每次 Set 都会校验，失败时模型保持原值，因此已保存的状态始终合法。
//
// Model 不是并发安全的。并行扫描网格时应为每个单元格构造独立的 Params，
// 或直接调用包级函数。
type Model struct {
	p Params
}

// New 用五个市场参数构造模型，参数不合法时返回 ErrDomain。
func New(spot, strike, rate, time, volatility float64) (*Model, error) {
	return NewFromParams(Params{
		Spot:       spot,
		Strike:     strike,
		Rate:       rate,
		Time:       time,
		Volatility: volatility,
	})
}

// NewFromParams 用一组已填写的参数构造模型。
func NewFromParams(p Params) (*Model, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Model{p: p}, nil
}

// Params 返回当前参数的副本。
func (m *Model) Params() Params {
	return m.p
}

// SetSpot 修改标的现价。
func (m *Model) SetSpot(v float64) error {
	return m.set(func(p *Params) { p.Spot = v })
}

// SetStrike 修改行权价。
func (m *Model) SetStrike(v float64) error {
	return m.set(func(p *Params) { p.Strike = v })
}

// SetRate 修改无风险利率。
func (m *Model) SetRate(v float64) error {
	return m.set(func(p *Params) { p.Rate = v })
}

// SetTime 修改剩余期限（年）。
func (m *Model) SetTime(v float64) error {
	return m.set(func(p *Params) { p.Time = v })
}

// SetVolatility 修改波动率。
func (m *Model) SetVolatility(v float64) error {
	return m.set(func(p *Params) { p.Volatility = v })
}

func (m *Model) set(apply func(*Params)) error {
	next := m.p
	apply(&next)
	if err := next.Validate(); err != nil {
		return err
	}
	m.p = next
	return nil
}

// 模型内参数已保证合法。带 error 的方法仅在结果溢出时返回 ErrDomain。

// D1 返回当前参数下的 d1。
func (m *Model) D1() float64 { return m.p.D1() }

// D2 返回当前参数下的 d2。
func (m *Model) D2() float64 { return m.p.D2() }

// CallPrice 看涨期权价格。
func (m *Model) CallPrice() float64 {
	return callPrice(m.p, m.p.D1())
}

// PutPrice 看跌期权价格。
func (m *Model) PutPrice() float64 {
	return putPrice(m.p, m.p.D1())
}

// Delta 见包级函数 Delta。
func (m *Model) Delta(t OptionType) (float64, error) {
	if !t.Valid() {
		return 0, invalidOptionType(t)
	}
	return result(m.p, delta(m.p.D1(), t))
}

// Gamma 见包级函数 Gamma。
func (m *Model) Gamma() float64 {
	return gamma(m.p, m.p.D1())
}

// Vega 见包级函数 Vega。
func (m *Model) Vega() float64 {
	return vega(m.p, m.p.D1())
}

// Theta 见包级函数 Theta。
func (m *Model) Theta(t OptionType) (float64, error) {
	if !t.Valid() {
		return 0, invalidOptionType(t)
	}
	return result(m.p, theta(m.p, m.p.D1(), t))
}

// Rho 见包级函数 Rho。
func (m *Model) Rho(t OptionType) (float64, error) {
	if !t.Valid() {
		return 0, invalidOptionType(t)
	}
	return result(m.p, rho(m.p, m.p.D1(), t))
}

// Evaluate 见包级函数 Evaluate。
func (m *Model) Evaluate(t OptionType) (Greeks, error) {
	return Evaluate(m.p, t)
}
