package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/wyfcoding/bsm/cache"
	"github.com/wyfcoding/bsm/grid"
	"github.com/wyfcoding/bsm/health"
	"github.com/wyfcoding/bsm/metrics"
	"github.com/wyfcoding/bsm/pricing"
	"github.com/wyfcoding/bsm/xerrors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Code    int               `json:"code"`
	Msg     string            `json:"msg"`
	Data    json.RawMessage   `json:"data"`
	Context map[string]string `json:"context"`
}

type fixture struct {
	router  *gin.Engine
	handler *Handler
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewMetrics("api-test")
	c, err := cache.NewBigCache(context.Background(), cache.Options{TTL: time.Minute, Shards: 16, Metrics: m})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })

	h := NewHandler(Options{
		Defaults:      pricing.Params{Spot: 100, Strike: 100, Rate: 0.05, Time: 1, Volatility: 0.2},
		DecimalPlaces: 4,
		Evaluator:     grid.NewEvaluator(grid.WithMetrics(m), grid.WithMaxPoints(50), grid.WithLogger(quiet)),
		Cache:         c,
		Metrics:       m,
		Logger:        quiet,
		Version:       "test",
		Checkers:      map[string]health.Checker{"cache": health.CacheChecker(c)},
	})
	r := NewRouter(h, RouterOptions{Logger: quiet, Metrics: m, MetricsPath: "/metrics", MaxBodyBytes: 1 << 16})
	return &fixture{router: r, handler: h, metrics: m}
}

func (f *fixture) post(t *testing.T, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s response %q: %v", path, w.Body.String(), err)
	}
	return w, env
}

func ptr(v float64) *float64 { return &v }

func TestQuote_DefaultsAndDecimalPrices(t *testing.T) {
	f := newFixture(t)
	w, env := f.post(t, "/v1/quote", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	var q struct {
		Params pricing.Params `json:"params"`
		Call   struct {
			Type  string `json:"option_type"`
			Price string `json:"price"`
			Delta string `json:"delta"`
		} `json:"call"`
		Put struct {
			Price string `json:"price"`
		} `json:"put"`
	}
	if err := json.Unmarshal(env.Data, &q); err != nil {
		t.Fatal(err)
	}
	if q.Call.Price != "10.4506" || q.Put.Price != "5.5735" {
		t.Errorf("prices = %s / %s", q.Call.Price, q.Put.Price)
	}
	if q.Call.Type != "call" || q.Params.Volatility != 0.2 {
		t.Errorf("unexpected quote: %+v", q)
	}
	if got := testutil.ToFloat64(f.metrics.EvaluationsTotal.WithLabelValues("quote")); got != 2 {
		t.Errorf("evaluations = %v", got)
	}
}

func TestQuote_PartialOverride(t *testing.T) {
	f := newFixture(t)
	_, env := f.post(t, "/v1/quote", ParamsInput{Spot: ptr(150)})

	var q QuoteResponse
	if err := json.Unmarshal(env.Data, &q); err != nil {
		t.Fatal(err)
	}
	if q.Params.Spot != 150 || q.Params.Strike != 100 {
		t.Errorf("params = %+v", q.Params)
	}
	if d := q.Call.Delta.InexactFloat64(); d <= 0.9 {
		t.Errorf("deep ITM call delta = %v", d)
	}
}

func TestQuote_Errors(t *testing.T) {
	f := newFixture(t)

	w, env := f.post(t, "/v1/quote", ParamsInput{Volatility: ptr(0)})
	if w.Code != http.StatusUnprocessableEntity || env.Code != xerrors.CodeDomain {
		t.Errorf("zero vol: status=%d code=%d", w.Code, env.Code)
	}
	if env.Context["field"] != "volatility" {
		t.Errorf("context = %v", env.Context)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/quote", bytes.NewBufferString(`{"spot": "abc"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d", rec.Code)
	}
}

func TestSurface_CachedAfterFirstRequest(t *testing.T) {
	f := newFixture(t)
	body := SurfaceRequest{Metric: "delta"}

	w, env := f.post(t, "/v1/surface", body)
	if w.Code != http.StatusOK || w.Header().Get(HeaderXCache) != "MISS" {
		t.Fatalf("first: status=%d cache=%s", w.Code, w.Header().Get(HeaderXCache))
	}
	var s grid.Surface
	if err := json.Unmarshal(env.Data, &s); err != nil {
		t.Fatal(err)
	}
	if len(s.Vols) != 10 || len(s.Spots) != 10 || s.Spots[0] != 80 {
		t.Errorf("default axes not applied: spots=%v vols=%v", s.Spots, s.Vols)
	}

	p := f.handler.Defaults()
	p.Spot, p.Volatility = s.Spots[3], s.Vols[7]
	want, _ := pricing.Delta(p, pricing.Put)
	if math.Abs(s.Put[7][3]-want) > 1e-12 {
		t.Errorf("put delta cell = %v, want %v", s.Put[7][3], want)
	}

	w2, env2 := f.post(t, "/v1/surface", body)
	if w2.Header().Get(HeaderXCache) != "HIT" {
		t.Errorf("second request should hit cache")
	}
	if !bytes.Equal(env.Data, env2.Data) {
		t.Error("cached surface differs from computed surface")
	}
}

func TestSurface_Rejections(t *testing.T) {
	f := newFixture(t)

	if w, _ := f.post(t, "/v1/surface", SurfaceRequest{Metric: "vanna"}); w.Code != http.StatusBadRequest {
		t.Errorf("invalid metric status = %d", w.Code)
	}
	w, env := f.post(t, "/v1/surface", SurfaceRequest{SpotAxis: &grid.Axis{Min: 50, Max: 150, Points: 51}})
	if w.Code != http.StatusBadRequest || env.Code != xerrors.CodeAxisTooLarge {
		t.Errorf("oversized axis: status=%d code=%d", w.Code, env.Code)
	}
	w, _ = f.post(t, "/v1/surface", SurfaceRequest{VolAxis: &grid.Axis{Min: 0, Max: 0.3, Points: 4}})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("zero volatility row status = %d", w.Code)
	}
}

func TestOverflowingRateIsDomainError(t *testing.T) {
	f := newFixture(t)

	w, env := f.post(t, "/v1/quote", ParamsInput{Rate: ptr(-1000)})
	if w.Code != http.StatusUnprocessableEntity || env.Code != xerrors.CodeDomain {
		t.Errorf("quote: status=%d code=%d body=%s", w.Code, env.Code, w.Body.String())
	}
	if env.Context["field"] != "rate" {
		t.Errorf("quote context = %v", env.Context)
	}

	w, env = f.post(t, "/v1/surface", SurfaceRequest{Params: &ParamsInput{Rate: ptr(-1000)}})
	if w.Code != http.StatusUnprocessableEntity || env.Code != xerrors.CodeDomain {
		t.Errorf("surface: status=%d code=%d body=%s", w.Code, env.Code, w.Body.String())
	}
}

func TestSeries(t *testing.T) {
	f := newFixture(t)
	w, env := f.post(t, "/v1/series", SeriesRequest{Metric: "theta", Params: &ParamsInput{Time: ptr(2)}})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var s grid.Series
	if err := json.Unmarshal(env.Data, &s); err != nil {
		t.Fatal(err)
	}
	if len(s.Times) != 20 || s.Times[19] != 2 || s.Metric != grid.MetricTheta {
		t.Errorf("unexpected series: %+v", s)
	}
}

func TestSetDefaults(t *testing.T) {
	f := newFixture(t)
	f.handler.SetDefaults(pricing.Params{Spot: 120, Strike: 100, Rate: 0.05, Time: 1, Volatility: 0.3})

	_, env := f.post(t, "/v1/quote", nil)
	var q QuoteResponse
	if err := json.Unmarshal(env.Data, &q); err != nil {
		t.Fatal(err)
	}
	if q.Params.Spot != 120 || q.Params.Volatility != 0.3 {
		t.Errorf("reloaded defaults not used: %+v", q.Params)
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	f := newFixture(t)

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"status":"ok"`)) {
		t.Errorf("healthz: %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"healthy":true`)) {
		t.Errorf("readyz: %d %s", w.Code, w.Body.String())
	}

	f.post(t, "/v1/quote", nil)
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !bytes.Contains(w.Body.Bytes(), []byte("bsm_evaluations_total")) {
		t.Error("metrics endpoint should expose pricing counters")
	}
}
