package framework

import (
	"net/http"
	"strings"

	"github.com/pkg/errors"

	svcframework "github.com/tbd54566975/issuer-service/pkg/service/framework"
)

// FieldError is used to indicate an error with a field in a request payload.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ErrorResponse is the structure of response error payloads sent back to the requester
// when validation of a request payload fails.
type ErrorResponse struct {
	Error  string       `json:"error"`
	Kind   string       `json:"kind,omitempty"`
	Reason string       `json:"reason,omitempty"`
	Fields []FieldError `json:"fields,omitempty"`
}

// SafeError is used to pass an error during the request through the server with
// web specific context. 'Safe' here means that the error messages do not include
// any sensitive information and can be sent straight back to the requester
type SafeError struct {
	Err        error
	StatusCode int
	Fields     []FieldError
}

// SafeError implements the `error` interface. It uses the default message of the
// wrapped error. This is what will be shown in a server's logs
func (err *SafeError) Error() string {
	return err.Err.Error()
}

func (err *SafeError) Unwrap() error {
	return err.Err
}

// Errors returns the error message and all field errors as a single error
func (err *SafeError) Errors() string {
	if len(err.Fields) == 0 {
		return err.Err.Error()
	}
	errs := make([]string, 0, len(err.Fields))
	for _, field := range err.Fields {
		errs = append(errs, field.Field)
	}
	return err.Err.Error() + ": " + strings.Join(errs, ", ")
}

var kindStatusCodes = map[svcframework.Kind]int{
	svcframework.KindInvalidInput:          http.StatusBadRequest,
	svcframework.KindNotFound:              http.StatusNotFound,
	svcframework.KindConflict:              http.StatusConflict,
	svcframework.KindInvalidState:          http.StatusConflict,
	svcframework.KindNotConfigured:         http.StatusPreconditionFailed,
	svcframework.KindHolderKeyUnresolvable: http.StatusUnprocessableEntity,
	svcframework.KindPersistenceFailure:    http.StatusInternalServerError,
}

// StatusCode returns the HTTP status for a service error's kind. Errors without a kind are internal errors.
func StatusCode(err error) int {
	if code, ok := kindStatusCodes[svcframework.ErrorKind(err)]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// NewRequestError wraps a service error with the HTTP status code of its kind.
func NewRequestError(err error) error {
	return &SafeError{Err: err, StatusCode: StatusCode(err)}
}

// NewRequestErrorMsg creates a request error with the given message and status code.
func NewRequestErrorMsg(msg string, statusCode int) error {
	return &SafeError{Err: errors.New(msg), StatusCode: statusCode}
}

// NewRequestErrorWithMsg wraps err with msg and the given status code.
func NewRequestErrorWithMsg(err error, msg string, statusCode int) error {
	return &SafeError{Err: errors.Wrap(err, msg), StatusCode: statusCode}
}

// shutdown is a type used to help with graceful shutdown of a server.
type shutdown struct {
	Message string
}

// shutdown implements the Error interface
func (s *shutdown) Error() string {
	return s.Message
}

// NewShutdownError returns an error that causes the framework to signal.
// a graceful shutdown
func NewShutdownError(message string) error {
	return &shutdown{message}
}

// IsShutdown checks to see if the shutdown error is contained in
// the specified error value.
func IsShutdown(err error) bool {
	var shutdownErr *shutdown
	return errors.As(err, &shutdownErr)
}
