package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/tbd54566975/issuer-service/pkg/server/framework"
)

// Panics recovers from panics in handlers, logs the stack and responds with a 500.
func Panics() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logrus.WithField("panic", r).Errorf("PANIC :\n%s", debug.Stack())
				c.AbortWithStatusJSON(http.StatusInternalServerError, framework.ErrorResponse{
					Error: http.StatusText(http.StatusInternalServerError),
				})
			}
		}()
		c.Next()
	}
}
