package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nimeshabuddhika/book-order-payments/pkg"
	"github.com/nimeshabuddhika/book-order-payments/pkg/utils"
	"go.uber.org/zap"
)

// TraceID returns Gin middleware that assigns every request a trace id.
// An incoming X-Trace-Id (or X-Request-Id) is reused so callers can correlate logs.
func TraceID(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.Request.Header.Get(pkg.HeaderTraceId)
		if utils.IsEmpty(traceID) {
			traceID = c.Request.Header.Get(pkg.HeaderRequestId)
		}
		if utils.IsEmpty(traceID) || len(traceID) > 128 {
			traceID = uuid.New().String()
		}
		c.Set(pkg.TraceId, traceID)
		c.Writer.Header().Set(pkg.HeaderTraceId, traceID)
		logger.Debug("request received",
			zap.String(pkg.TraceId, traceID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()))
		c.Next()
	}
}
