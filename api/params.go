package api

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/bsm/pricing"
	"github.com/wyfcoding/bsm/xerrors"
)

// ParamsInput 请求中的定价参数，缺省字段取服务端配置的默认值。
type ParamsInput struct {
	Spot       *float64 `json:"spot"`
	Strike     *float64 `json:"strike"`
	Rate       *float64 `json:"rate"`
	Time       *float64 `json:"time"`
	Volatility *float64 `json:"volatility"`
}

// resolve 以 def 填充缺省字段。取值是否合法由定价引擎校验。
func (in *ParamsInput) resolve(def pricing.Params) pricing.Params {
	if in == nil {
		return def
	}
	p := def
	if in.Spot != nil {
		p.Spot = *in.Spot
	}
	if in.Strike != nil {
		p.Strike = *in.Strike
	}
	if in.Rate != nil {
		p.Rate = *in.Rate
	}
	if in.Time != nil {
		p.Time = *in.Time
	}
	if in.Volatility != nil {
		p.Volatility = *in.Volatility
	}
	return p
}

// bind 解析 JSON 请求体，空请求体视为全部使用默认值。
func bind(c *gin.Context, dst any) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return xerrors.New(xerrors.ErrInvalidArg, xerrors.CodeInvalidRequest, "invalid request body", err.Error(), err)
	}
	return nil
}
