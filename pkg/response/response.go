package response

import (
	"errors"
	"net/http"
	"order_core/pkg/apperr"
	"order_core/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`    // 业务码
	Message string      `json:"message"` // 提示信息
	Data    interface{} `json:"data"`    // 数据
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, httpCode int, errCode int, msg string) {
	c.JSON(httpCode, Response{
		Code:    errCode,
		Message: msg,
		Data:    nil,
	})
}

// FromError 领域错误按 Kind 映射 HTTP 状态码，业务码原样返回
// 未识别的错误统一按 500 处理，细节只写日志
func FromError(c *gin.Context, err error) {
	e, ok := apperr.As(err)
	if !ok {
		logger.Log.Error("unhandled error",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		Error(c, http.StatusInternalServerError, ErrServerInternal, "internal server error")
		return
	}
	// 底层原因（如数据库报错原文）只写日志，不返回给客户端
	if cause := errors.Unwrap(e); cause != nil {
		logger.Log.Warn("request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Int("code", e.Code),
			zap.Error(cause),
		)
	}
	if e.Kind == apperr.KindTransient {
		c.Header("Retry-After", "1")
	}
	msg := e.Message
	if e.Detail != "" {
		msg = msg + ": " + e.Detail
	}
	Error(c, StatusOf(e.Kind), e.Code, msg)
}

func StatusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindExhausted:
		return http.StatusUnprocessableEntity
	case apperr.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
