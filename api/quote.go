package api

import (
	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/bsm/pricing"
	"github.com/wyfcoding/bsm/response"
)

// QuoteResponse 同一组参数下看涨与看跌的报价。
type QuoteResponse struct {
	Params pricing.Params        `json:"params"`
	D1     float64               `json:"d1"`
	D2     float64               `json:"d2"`
	Call   *pricing.DecimalQuote `json:"call"`
	Put    *pricing.DecimalQuote `json:"put"`
}

// Quote POST /v1/quote
func (h *Handler) Quote(c *gin.Context) {
	var in ParamsInput
	if err := bind(c, &in); err != nil {
		_ = c.Error(err)
		return
	}
	p := in.resolve(h.Defaults())

	call, err := h.calc.Quote(p, pricing.Call)
	if err != nil {
		_ = c.Error(err)
		return
	}
	put, err := h.calc.Quote(p, pricing.Put)
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.countEvaluations("quote", 2)

	response.Success(c, QuoteResponse{Params: p, D1: p.D1(), D2: p.D2(), Call: call, Put: put})
}
