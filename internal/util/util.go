package util

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// LoggingNewError creates an error with the given message and logs it.
func LoggingNewError(msg string) error {
	err := errors.New(msg)
	logrus.WithError(err).Error()
	return err
}

// LoggingNewErrorf is LoggingNewError with a format string.
func LoggingNewErrorf(msg string, args ...any) error {
	return LoggingNewError(fmt.Sprintf(msg, args...))
}

// LoggingErrorMsg logs err with msg and returns err wrapped by msg. A nil err yields a new error.
func LoggingErrorMsg(err error, msg string) error {
	logrus.WithError(err).Error(SanitizeLog(msg))
	if err == nil {
		return errors.New(msg)
	}
	return errors.Wrap(err, msg)
}

// LoggingErrorMsgf is LoggingErrorMsg with a format string.
func LoggingErrorMsgf(err error, msg string, args ...any) error {
	return LoggingErrorMsg(err, fmt.Sprintf(msg, args...))
}

// GetMethodForDID gets a DID method from a did, the second part of the did (e.g. did:test:abcd, the method is 'test')
func GetMethodForDID(did string) (string, error) {
	split := strings.Split(did, ":")
	if len(split) < 3 {
		return "", errors.New("malformed did: did has fewer than three parts")
	}
	if split[0] != "did" {
		return "", errors.New("malformed did: did must start with `did`")
	}
	if split[1] == "" || split[2] == "" {
		return "", errors.New("malformed did: method and identifier must not be empty")
	}
	return split[1], nil
}

// IsValidDID reports whether did has the did:<method>:<identifier> shape.
func IsValidDID(did string) bool {
	_, err := GetMethodForDID(did)
	return err == nil
}

// SanitizeLog prevents certain classes of injection attacks before logging
// https://codeql.github.com/codeql-query-help/go/go-log-injection/
func SanitizeLog(log string) string {
	escapedLog := strings.ReplaceAll(log, "\n", "")
	return strings.ReplaceAll(escapedLog, "\r", "")
}

// Is2xxResponse returns true if the given status code is a 2xx response
func Is2xxResponse(statusCode int) bool {
	return statusCode/100 == 2
}
