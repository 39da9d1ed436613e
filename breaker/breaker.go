// Package breaker 提供了基于 gobreaker 的熔断器封装，集成 Prometheus 指标与日志。
package breaker

import (
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"

	"github.com/wyfcoding/bsm/metrics"
)

// ErrOpen 表示下游当前处于熔断状态，调用未被执行。
var ErrOpen = errors.New("circuit breaker is open")

// Breaker 封装了 gobreaker 实例。nil 的 *Breaker 直接执行函数。
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// Settings 定义了熔断器的初始化参数。
type Settings struct {
	Name         string
	MaxRequests  uint32        // 半开状态允许的探测请求数
	Interval     time.Duration // 闭合状态下清零计数的周期
	Timeout      time.Duration // 打开状态持续多久后进入半开
	FailureRatio float64
	MinRequests  uint32
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
}

// NewBreaker 初始化并返回一个新的熔断器。
func NewBreaker(st Settings) *Breaker {
	failureRatio := st.FailureRatio
	if failureRatio <= 0 {
		failureRatio = 0.5
	}
	minRequests := st.MinRequests
	if minRequests == 0 {
		minRequests = 5
	}
	logger := st.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var state *prometheus.GaugeVec
	if st.Metrics != nil {
		state = st.Metrics.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0: Closed, 1: Half-Open, 2: Open)",
		}, []string{"name"})
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        st.Name,
		MaxRequests: st.MaxRequests,
		Interval:    st.Interval,
		Timeout:     st.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= failureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			if state != nil {
				state.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	return &Breaker{cb: cb}
}

// State 当前状态，nil 熔断器视为闭合。
func (b *Breaker) State() gobreaker.State {
	if b == nil || b.cb == nil {
		return gobreaker.StateClosed
	}
	return b.cb.State()
}

// Execute 执行受熔断保护的函数。打开或半开超额时返回 ErrOpen。
func Execute[T any](b *Breaker, fn func() (T, error)) (T, error) {
	if b == nil || b.cb == nil {
		return fn()
	}

	res, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, ErrOpen
		}
		return zero, err
	}
	return res.(T), nil
}
