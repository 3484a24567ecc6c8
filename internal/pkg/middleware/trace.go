package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const ctxTraceID = "traceID"

// TraceMiddleware 添加请求追踪ID，上游已带 X-Trace-ID 时沿用
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader("X-Trace-ID")
		if traceID == "" {
			traceID = uuid.New().String()
		}

		c.Set(ctxTraceID, traceID)
		c.Header("X-Trace-ID", traceID)
		c.Next()
	}
}
