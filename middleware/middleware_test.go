package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/trace"

	"github.com/wyfcoding/bsm/contextx"
	"github.com/wyfcoding/bsm/limiter"
	"github.com/wyfcoding/bsm/metrics"
	"github.com/wyfcoding/bsm/xerrors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	var seen string
	r.GET("/x", func(c *gin.Context) {
		seen = contextx.GetRequestID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	if id := w.Header().Get(HeaderXRequestID); id == "" || id != seen {
		t.Errorf("generated id %q not propagated (handler saw %q)", id, seen)
	}

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderXRequestID, "abc-123")
	if w := serve(r, req); w.Header().Get(HeaderXRequestID) != "abc-123" || seen != "abc-123" {
		t.Errorf("incoming id not reused: header=%q seen=%q", w.Header().Get(HeaderXRequestID), seen)
	}
}

func TestRateLimit(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(limiter.NewLocalLimiter(0.001, 1)))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	if w := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil)); w.Code != http.StatusOK {
		t.Fatalf("first request status = %d", w.Code)
	}
	w := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "429001") {
		t.Errorf("body should carry rate limit code: %s", w.Body.String())
	}
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(quiet))
	r.GET("/panic", func(*gin.Context) { panic("boom") })

	if w := serve(r, httptest.NewRequest(http.MethodGet, "/panic", nil)); w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", w.Code)
	}
}

func TestMaxBodyBytes(t *testing.T) {
	r := gin.New()
	r.Use(MaxBodyBytes(8))
	r.POST("/x", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	if w := serve(r, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("tiny"))); w.Code != http.StatusOK {
		t.Errorf("small body status = %d", w.Code)
	}
	if w := serve(r, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(strings.Repeat("x", 64)))); w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("large body status = %d", w.Code)
	}
}

func TestHTTPErrorHandler(t *testing.T) {
	r := gin.New()
	r.Use(HTTPErrorHandler())
	r.GET("/x", func(c *gin.Context) {
		_ = c.Error(xerrors.New(xerrors.ErrOutOfDomain, xerrors.CodeDomain, "volatility must be positive", "", nil))
	})

	if w := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil)); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d", w.Code)
	}
}

func TestHTTPMetricsAndLogger(t *testing.T) {
	m := metrics.NewMetrics("middleware-test")
	r := gin.New()
	r.Use(HTTPMetrics(m, MetricsOptions{SkipPaths: []string{"/healthz"}}), Logger(quiet, 0))
	r.GET("/v/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, httptest.NewRequest(http.MethodGet, "/v/1", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/v/2", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/v/:id", "200")); got != 2 {
		t.Errorf("requests for route template = %v", got)
	}
	if got := testutil.CollectAndCount(m.HTTPRequestsTotal); got != 1 {
		t.Errorf("skipped path should not be recorded, series = %d", got)
	}
}

func TestTraceIDHeader(t *testing.T) {
	r := gin.New()
	r.Use(TraceIDHeader())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	tid, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	sid, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: tid, SpanID: sid, TraceFlags: trace.FlagsSampled})
	req := httptest.NewRequest(http.MethodGet, "/x", nil).WithContext(trace.ContextWithSpanContext(context.Background(), sc))

	if got := serve(r, req).Header().Get(HeaderXTraceID); got != tid.String() {
		t.Errorf("trace header = %q", got)
	}
	if got := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil)).Header().Get(HeaderXTraceID); got != "" {
		t.Errorf("unexpected trace header without span: %q", got)
	}
}
