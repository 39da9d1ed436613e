// Package response 提供统一的 HTTP 响应封装 {code, msg, data}，并将 xerrors 与 gRPC 状态映射为 HTTP 状态码。
package response

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/wyfcoding/bsm/xerrors"
)

// StatusClientClosedRequest 客户端在响应前断开连接。
const StatusClientClosedRequest = 499

// Success 发送一个标准的成功响应。
// 默认：HTTP 200，业务码 0，消息 "success"。
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code": 0,
		"msg":  "success",
		"data": data,
	})
}

// SuccessWithRawData 发送原始数据的成功响应 (不包装 code 和 msg)。
// 用于健康检查等系统接口。
func SuccessWithRawData(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Error 发送错误响应。
// 依次识别 xerrors.Error、context 取消/超时与 gRPC Status，无法识别时返回 500。
func Error(c *gin.Context, err error) {
	if err == nil {
		Success(c, nil)
		return
	}

	if xe, ok := xerrors.FromError(err); ok {
		body := gin.H{
			"code":   xe.Code,
			"msg":    xe.Message,
			"detail": xe.Detail,
		}
		if len(xe.Context) > 0 {
			// 取值可能是 NaN/Inf，统一转为字符串以保证可编码
			fields := make(map[string]string, len(xe.Context))
			for k, v := range xe.Context {
				fields[k] = fmt.Sprint(v)
			}
			body["context"] = fields
		}
		c.JSON(xe.HTTPStatus(), body)
		return
	}

	switch {
	case errors.Is(err, context.Canceled):
		ErrorWithStatus(c, StatusClientClosedRequest, "request canceled", "")
		return
	case errors.Is(err, context.DeadlineExceeded):
		ErrorWithStatus(c, http.StatusGatewayTimeout, "request timed out", "")
		return
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		ErrorWithStatus(c, grpcCodeToHTTP(st.Code()), st.Message(), "")
		return
	}

	ErrorWithStatus(c, http.StatusInternalServerError, "internal server error", "")
}

// ErrorWithStatus 发送一个带有指定 HTTP 状态码、消息和详情的错误响应。
func ErrorWithStatus(c *gin.Context, status int, msg string, detail string) {
	c.JSON(status, gin.H{
		"code":   status,
		"msg":    msg,
		"detail": detail,
	})
}

// grpcCodeToHTTP 执行 gRPC 到 HTTP 的标准协议映射。
func grpcCodeToHTTP(code codes.Code) int {
	switch code {
	case codes.OK:
		return http.StatusOK
	case codes.Canceled:
		return StatusClientClosedRequest
	case codes.InvalidArgument, codes.FailedPrecondition:
		return http.StatusBadRequest
	case codes.OutOfRange:
		return http.StatusUnprocessableEntity
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unimplemented:
		return http.StatusNotImplemented
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
