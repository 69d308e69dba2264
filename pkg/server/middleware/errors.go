package middleware

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbd54566975/issuer-service/internal/util"
	"github.com/tbd54566975/issuer-service/pkg/server/framework"
	svcframework "github.com/tbd54566975/issuer-service/pkg/service/framework"
)

// Errors logs the errors handlers recorded on the context. Client errors are logged at warn, everything else at
// error. A shutdown error signals the server to stop.
func Errors(shutdown chan os.Signal) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		errs := c.Errors.ByType(gin.ErrorTypeAny)
		if len(errs) == 0 {
			return
		}
		traceID := trace.SpanFromContext(c.Request.Context()).SpanContext().TraceID().String()
		for _, e := range errs {
			if framework.IsShutdown(e.Err) {
				logrus.WithError(e.Err).Error("unsafe error, shutting down")
				if shutdown != nil {
					shutdown <- os.Interrupt
				}
				return
			}

			logger := logrus.WithFields(logrus.Fields{
				"traceId": traceID,
				"method":  c.Request.Method,
				"path":    util.SanitizeLog(c.Request.URL.Path),
				"status":  c.Writer.Status(),
				"kind":    svcframework.ErrorKind(e.Err),
			})
			if c.Writer.Status() < 500 {
				logger.Warn(util.SanitizeLog(e.Err.Error()))
			} else {
				logger.Error(util.SanitizeLog(e.Err.Error()))
			}
		}
	}
}
