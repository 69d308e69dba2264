package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbd54566975/issuer-service/internal/util"
)

// Logger logs request info after a handler runs, in the following format:
//
//	TraceID : (StatusCode) HTTPMethod Path -> IPAddr (latency)
//	e.g. 12345 : (200) GET /v1/issuers -> 192.168.1.0 (4ms)
func Logger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		traceID := trace.SpanFromContext(c.Request.Context()).SpanContext().TraceID().String()
		logger.WithFields(logrus.Fields{
			"traceId": traceID,
			"status":  c.Writer.Status(),
			"method":  c.Request.Method,
			"path":    util.SanitizeLog(c.Request.URL.Path),
			"ip":      c.ClientIP(),
			"latency": time.Since(start).String(),
		}).Info("request completed")
	}
}
