// Package middleware 定价服务 HTTP 层使用的 Gin 中间件。
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/bsm/contextx"
	"github.com/wyfcoding/bsm/idgen"
)

const (
	HeaderXRequestID = "X-Request-ID"
)

// RequestID 透传或生成请求 ID，并连同客户端 IP 注入请求上下文。
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderXRequestID)
		if requestID == "" {
			requestID = idgen.GenIDString()
		}

		ctx := contextx.WithRequestID(c.Request.Context(), requestID)
		ctx = contextx.WithIP(ctx, c.ClientIP())
		c.Request = c.Request.WithContext(ctx)

		c.Header(HeaderXRequestID, requestID)
		c.Next()
	}
}
