package framework

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds shared by every service. Callers match them with errors.Is.
var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("not found")
	ErrNotConfigured         = errors.New("not configured")
	ErrHolderKeyUnresolvable = errors.New("holder key unresolvable")
	ErrPersistenceFailure    = errors.New("persistence failure")
	ErrConflict              = errors.New("conflict")
	ErrInvalidState          = errors.New("invalid state")
)

type Kind string

const (
	KindInvalidInput          Kind = "InvalidInput"
	KindNotFound              Kind = "NotFound"
	KindNotConfigured         Kind = "NotConfigured"
	KindHolderKeyUnresolvable Kind = "HolderKeyUnresolvable"
	KindPersistenceFailure    Kind = "PersistenceFailure"
	KindConflict              Kind = "Conflict"
	KindInvalidState          Kind = "InvalidState"
	KindUnknown               Kind = "Unknown"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrInvalidInput, KindInvalidInput},
	{ErrNotFound, KindNotFound},
	{ErrNotConfigured, KindNotConfigured},
	{ErrHolderKeyUnresolvable, KindHolderKeyUnresolvable},
	{ErrPersistenceFailure, KindPersistenceFailure},
	{ErrConflict, KindConflict},
	{ErrInvalidState, KindInvalidState},
}

// ErrorKind returns the kind of the first sentinel err wraps, or KindUnknown.
func ErrorKind(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}

// NewError wraps kind with a message.
func NewError(kind error, msg string) error {
	return errors.Wrap(kind, msg)
}

// NewErrorf wraps kind with a formatted message.
func NewErrorf(kind error, format string, args ...any) error {
	return errors.Wrapf(kind, format, args...)
}

// WithKind marks err as being of kind while keeping err's message and chain.
func WithKind(kind, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: err}
}

type kindError struct {
	kind error
	err  error
}

func (k *kindError) Error() string {
	return fmt.Sprintf("%s: %s", k.kind.Error(), k.err.Error())
}

func (k *kindError) Unwrap() error {
	return k.err
}

func (k *kindError) Is(target error) bool {
	return target == k.kind
}

type HolderKeyReason string

const (
	ReasonResolutionFailed      HolderKeyReason = "resolution_failed"
	ReasonTimeout               HolderKeyReason = "timeout"
	ReasonNoVerificationMethods HolderKeyReason = "no_verification_methods"
	ReasonMissingKey            HolderKeyReason = "missing_key"
	ReasonMalformedKey          HolderKeyReason = "malformed_key"
	ReasonUnsupportedCurve      HolderKeyReason = "unsupported_curve"
)

// HolderKeyError reports why no usable encryption key could be found for a holder.
type HolderKeyError struct {
	Reason HolderKeyReason
	DID    string
	Err    error
}

func (e *HolderKeyError) Error() string {
	msg := fmt.Sprintf("%s for holder<%s>: %s", ErrHolderKeyUnresolvable.Error(), e.DID, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *HolderKeyError) Unwrap() error {
	return e.Err
}

func (e *HolderKeyError) Is(target error) bool {
	return target == ErrHolderKeyUnresolvable
}
