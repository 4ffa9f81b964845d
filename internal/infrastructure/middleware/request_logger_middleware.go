package middleware

import (
	"context"
	"time"

	"camfleet/pkg/logger"
	"camfleet/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLoggerMiddleware tags each request with a request_id and logs it
// on completion with its context identifiers.
func RequestLoggerMiddleware(zapLogger *zap.Logger) gin.HandlerFunc {
	ctxLogger := logger.NewContextLogger(zapLogger)

	return func(c *gin.Context) {
		requestID := utils.GenerateRequestID()

		ctx := context.WithValue(c.Request.Context(), logger.ContextKeyRequestID, requestID)
		if clientID := c.Param("id"); clientID != "" {
			ctx = context.WithValue(ctx, logger.ContextKeyClientID, clientID)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-ID", requestID)

		start := time.Now()
		c.Next()

		ctxLogger.LogRequest(ctx, c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), time.Since(start).Milliseconds())
	}
}
