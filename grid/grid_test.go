package grid

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/wyfcoding/bsm/metrics"
	"github.com/wyfcoding/bsm/pricing"
	"github.com/wyfcoding/bsm/xerrors"
)

func base() pricing.Params {
	return pricing.Params{Spot: 100, Strike: 100, Rate: 0.05, Time: 1, Volatility: 0.2}
}

func TestAxis_Values(t *testing.T) {
	got := Axis{Min: 80, Max: 120, Points: 5}.Values()
	want := []float64{80, 90, 100, 110, 120}
	if len(got) != len(want) {
		t.Fatalf("len = %d", len(got))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("value[%d] = %v want %v", i, got[i], want[i])
		}
	}

	if v := (Axis{Min: 0.2, Max: 0.2, Points: 1}).Values(); len(v) != 1 || v[0] != 0.2 {
		t.Errorf("single point axis = %v", v)
	}
}

func TestAxis_Validate(t *testing.T) {
	bad := []Axis{
		{Min: 2, Max: 1, Points: 10},
		{Min: 1, Max: 2, Points: 0},
		{Min: math.NaN(), Max: 2, Points: 3},
		{Min: 1, Max: math.Inf(1), Points: 3},
	}
	for _, a := range bad {
		if err := a.Validate(); !xerrors.IsType(err, xerrors.ErrInvalidArg) {
			t.Errorf("%+v: expected InvalidArg, got %v", a, err)
		}
	}
	if err := DefaultVolAxis().Validate(); err != nil {
		t.Errorf("default vol axis invalid: %v", err)
	}
	if a := DefaultTimeAxis(0.05); a.Min != 0.05 || a.Max != 0.05 {
		t.Errorf("short maturity time axis = %+v", a)
	}
}

func TestSurface_MatchesDirectEvaluation(t *testing.T) {
	e := NewEvaluator(WithMaxGoroutines(4))
	spotAxis := DefaultSpotAxis(100)
	volAxis := DefaultVolAxis()

	for _, m := range []Metric{MetricPrice, MetricDelta, MetricGamma, MetricVega} {
		s, err := e.Surface(context.Background(), base(), m, spotAxis, volAxis)
		if err != nil {
			t.Fatalf("%s: %v", m, err)
		}
		if len(s.Call) != volAxis.Points || len(s.Call[0]) != spotAxis.Points {
			t.Fatalf("%s: shape %dx%d", m, len(s.Call), len(s.Call[0]))
		}
		for i, vol := range s.Vols {
			for j, spot := range s.Spots {
				p := base()
				p.Spot, p.Volatility = spot, vol
				gc, _ := pricing.Evaluate(p, pricing.Call)
				gp, _ := pricing.Evaluate(p, pricing.Put)
				if s.Call[i][j] != m.pick(gc) || s.Put[i][j] != m.pick(gp) {
					t.Errorf("%s: cell (%d,%d) mismatch", m, i, j)
				}
			}
		}
	}
}

func TestSurface_ParallelEqualsSequential(t *testing.T) {
	ctx := context.Background()
	seq, err := NewEvaluator(WithMaxGoroutines(1)).Surface(ctx, base(), MetricPrice, DefaultSpotAxis(100), Axis{Min: 0.05, Max: 0.8, Points: 40})
	if err != nil {
		t.Fatal(err)
	}
	par, err := NewEvaluator(WithMaxGoroutines(16)).Surface(ctx, base(), MetricPrice, DefaultSpotAxis(100), Axis{Min: 0.05, Max: 0.8, Points: 40})
	if err != nil {
		t.Fatal(err)
	}
	for i := range seq.Call {
		for j := range seq.Call[i] {
			if seq.Call[i][j] != par.Call[i][j] || seq.Put[i][j] != par.Put[i][j] {
				t.Fatalf("cell (%d,%d) differs between sequential and parallel sweeps", i, j)
			}
		}
	}
}

func TestSurface_DomainErrorFromCell(t *testing.T) {
	_, err := NewEvaluator().Surface(context.Background(), base(), MetricPrice, DefaultSpotAxis(100), Axis{Min: 0, Max: 0.3, Points: 4})
	if !errors.Is(err, pricing.ErrDomain) {
		t.Errorf("expected ErrDomain for zero volatility row, got %v", err)
	}
}

func TestSurface_Rejections(t *testing.T) {
	e := NewEvaluator(WithMaxPoints(50))
	ctx := context.Background()

	if _, err := e.Surface(ctx, base(), Metric("speed"), DefaultSpotAxis(100), DefaultVolAxis()); !errors.Is(err, ErrInvalidMetric) {
		t.Errorf("expected ErrInvalidMetric, got %v", err)
	}
	if _, err := e.Surface(ctx, base(), MetricPrice, Axis{Min: 120, Max: 80, Points: 10}, DefaultVolAxis()); !xerrors.IsType(err, xerrors.ErrInvalidArg) {
		t.Errorf("expected InvalidArg for inverted axis, got %v", err)
	}
	_, err := e.Surface(ctx, base(), MetricPrice, Axis{Min: 80, Max: 120, Points: 51}, DefaultVolAxis())
	if xe, ok := xerrors.FromError(err); !ok || xe.Code != xerrors.CodeAxisTooLarge {
		t.Errorf("expected axis too large, got %v", err)
	}
}

func TestSurface_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEvaluator().Surface(ctx, base(), MetricPrice, DefaultSpotAxis(100), DefaultVolAxis())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	_, err = NewEvaluator().Series(ctx, base(), MetricTheta, DefaultTimeAxis(1))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("series: expected context.Canceled, got %v", err)
	}
}

func TestSeries_ThetaAndRho(t *testing.T) {
	m := metrics.NewMetrics("grid-test")
	e := NewEvaluator(WithMetrics(m))
	timeAxis := DefaultTimeAxis(1)

	s, err := e.Series(context.Background(), base(), MetricRho, timeAxis)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Times) != 20 || s.Times[0] != 0.1 || s.Times[19] != 1 {
		t.Fatalf("unexpected time axis: %v", s.Times)
	}
	for k := range s.Times {
		if s.Call[k] <= 0 || s.Put[k] >= 0 {
			t.Errorf("rho signs wrong at t=%v: call=%v put=%v", s.Times[k], s.Call[k], s.Put[k])
		}
	}

	if _, err := e.Series(context.Background(), base(), MetricTheta, timeAxis); err != nil {
		t.Fatal(err)
	}
	if got := testutil.ToFloat64(m.GridCellsTotal.WithLabelValues("series")); got != 40 {
		t.Errorf("series cells = %v, want 40", got)
	}
	if got := testutil.ToFloat64(m.EvaluationsTotal.WithLabelValues("rho")); got != 40 {
		t.Errorf("rho evaluations = %v, want 40", got)
	}
}

func TestParseMetric(t *testing.T) {
	if m, err := ParseMetric(" Gamma "); err != nil || m != MetricGamma {
		t.Errorf("ParseMetric gamma = %v, %v", m, err)
	}
	if m, err := ParseMetric(""); err != nil || m != MetricPrice {
		t.Errorf("ParseMetric empty = %v, %v", m, err)
	}
	if _, err := ParseMetric("vanna"); !errors.Is(err, ErrInvalidMetric) {
		t.Errorf("expected ErrInvalidMetric, got %v", err)
	}
}

func TestEvaluator_LogsSweepDuration(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	e := NewEvaluator(WithLogger(logger))
	ctx := context.Background()

	if _, err := e.Surface(ctx, base(), MetricPrice, Axis{Min: 90, Max: 110, Points: 3}, Axis{Min: 0.1, Max: 0.3, Points: 3}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Series(ctx, base(), MetricTheta, Axis{Min: 0.1, Max: 1, Points: 4}); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{"grid.surface finished", "grid.series finished", "duration="} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}
