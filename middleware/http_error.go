package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/bsm/response"
)

// HTTPErrorHandler 处理函数通过 c.Error 登记错误后返回，由本中间件统一输出错误响应。
func HTTPErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		response.Error(c, c.Errors.Last().Err)
	}
}
