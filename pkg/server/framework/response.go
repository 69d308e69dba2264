package framework

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	svcframework "github.com/tbd54566975/issuer-service/pkg/service/framework"
)

// Respond convert a Go value to JSON and sends it to the client.
func Respond(c *gin.Context, data any, statusCode int) {
	// if there's no payload to marshal, set the status code of the response and return
	if statusCode == http.StatusNoContent || data == nil {
		c.Status(statusCode)
		return
	}
	c.JSON(statusCode, data)
}

// RespondError sends an error response back to the client and records err on the context for the errors
// middleware. Client errors carry their message. Server errors only carry their kind, since their message may
// include internal detail.
func RespondError(c *gin.Context, err error) {
	_ = c.Error(err)

	var webErr *SafeError
	if !errors.As(err, &webErr) {
		webErr = &SafeError{Err: err, StatusCode: StatusCode(err)}
	}

	kind := svcframework.ErrorKind(webErr.Err)
	response := ErrorResponse{Fields: webErr.Fields}
	if kind != svcframework.KindUnknown {
		response.Kind = string(kind)
	}
	var holderKeyErr *svcframework.HolderKeyError
	if errors.As(webErr.Err, &holderKeyErr) {
		response.Reason = string(holderKeyErr.Reason)
	}

	if webErr.StatusCode >= http.StatusInternalServerError {
		response.Error = http.StatusText(http.StatusInternalServerError)
		Respond(c, response, http.StatusInternalServerError)
		return
	}
	response.Error = webErr.Err.Error()
	Respond(c, response, webErr.StatusCode)
}
