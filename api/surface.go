package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wyfcoding/bsm/cache"
	"github.com/wyfcoding/bsm/grid"
	"github.com/wyfcoding/bsm/pricing"
	"github.com/wyfcoding/bsm/response"
	"github.com/wyfcoding/bsm/tracing"
)

// HeaderXCache 标记曲面结果是否来自缓存。
const HeaderXCache = "X-Cache"

// SurfaceRequest POST /v1/surface 请求体。
type SurfaceRequest struct {
	Params   *ParamsInput `json:"params"`
	Metric   string       `json:"metric"`
	SpotAxis *grid.Axis   `json:"spot_axis"`
	VolAxis  *grid.Axis   `json:"vol_axis"`
}

// SeriesRequest POST /v1/series 请求体。
type SeriesRequest struct {
	Params   *ParamsInput `json:"params"`
	Metric   string       `json:"metric"`
	TimeAxis *grid.Axis   `json:"time_axis"`
}

// Surface POST /v1/surface
// 相同请求的结果缓存于本地；并发的相同请求只计算一次。
func (h *Handler) Surface(c *gin.Context) {
	var req SurfaceRequest
	if err := bind(c, &req); err != nil {
		_ = c.Error(err)
		return
	}
	metric, err := grid.ParseMetric(req.Metric)
	if err != nil {
		_ = c.Error(err)
		return
	}

	base := req.Params.resolve(h.Defaults())
	spotAxis := grid.DefaultSpotAxis(base.Spot)
	spotAxis.Points = h.axes.Spot
	if req.SpotAxis != nil {
		spotAxis = *req.SpotAxis
	}
	volAxis := grid.DefaultVolAxis()
	volAxis.Points = h.axes.Vol
	if req.VolAxis != nil {
		volAxis = *req.VolAxis
	}

	ctx := c.Request.Context()
	key := surfaceKey(base, metric, spotAxis, volAxis)

	if h.cache != nil {
		var cached grid.Surface
		err := h.cache.Get(ctx, key, &cached)
		if err == nil {
			c.Header(HeaderXCache, "HIT")
			response.Success(c, &cached)
			return
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			h.logger.WarnContext(ctx, "surface cache read failed", "key", key, "error", err)
		}
	}

	ch := h.group.DoChan(key, func() (any, error) {
		// 计算由多个请求共享，不随发起者的取消而中止
		sweepCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.timeout)
		defer cancel()
		sweepCtx, span := tracing.StartSpan(sweepCtx, "grid.surface",
			attribute.String("metric", string(metric)),
			attribute.Int("cells", spotAxis.Points*volAxis.Points))
		defer span.End()

		s, err := h.eval.Surface(sweepCtx, base, metric, spotAxis, volAxis)
		if err != nil {
			tracing.SetError(sweepCtx, err)
			return nil, err
		}
		if h.cache != nil {
			if err := h.cache.Set(sweepCtx, key, s, h.cacheTTL); err != nil {
				h.logger.WarnContext(sweepCtx, "surface cache write failed", "key", key, "error", err)
			}
		}
		return s, nil
	})

	select {
	case <-ctx.Done():
		_ = c.Error(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			_ = c.Error(res.Err)
			return
		}
		c.Header(HeaderXCache, "MISS")
		response.Success(c, res.Val.(*grid.Surface))
	}
}

// Series POST /v1/series
func (h *Handler) Series(c *gin.Context) {
	var req SeriesRequest
	if err := bind(c, &req); err != nil {
		_ = c.Error(err)
		return
	}
	metric, err := grid.ParseMetric(req.Metric)
	if err != nil {
		_ = c.Error(err)
		return
	}

	base := req.Params.resolve(h.Defaults())
	timeAxis := grid.DefaultTimeAxis(base.Time)
	timeAxis.Points = h.axes.Time
	if req.TimeAxis != nil {
		timeAxis = *req.TimeAxis
	}

	s, err := h.eval.Series(c.Request.Context(), base, metric, timeAxis)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.Success(c, s)
}

func surfaceKey(p pricing.Params, m grid.Metric, spot, vol grid.Axis) string {
	return fmt.Sprintf("surface|%s|%v|%v|%v|%v|%v|%v|%v|%d|%v|%v|%d",
		m, p.Spot, p.Strike, p.Rate, p.Time, p.Volatility,
		spot.Min, spot.Max, spot.Points, vol.Min, vol.Max, vol.Points)
}
