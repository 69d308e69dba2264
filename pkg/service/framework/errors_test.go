package framework

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		kind Kind
	}{
		{NewError(ErrInvalidInput, "caseId is required"), KindInvalidInput},
		{errors.Wrap(NewErrorf(ErrNotFound, "request<%s>", "case-1"), "loading"), KindNotFound},
		{NewError(ErrNotConfigured, "no issuer"), KindNotConfigured},
		{WithKind(ErrPersistenceFailure, errors.New("disk full")), KindPersistenceFailure},
		{NewError(ErrConflict, "duplicate"), KindConflict},
		{NewError(ErrInvalidState, "bad transition"), KindInvalidState},
		{&HolderKeyError{Reason: ReasonTimeout, DID: "did:web:holder"}, KindHolderKeyUnresolvable},
		{errors.New("boom"), KindUnknown},
		{nil, ""},
	}
	for _, test := range tests {
		assert.Equal(t, test.kind, ErrorKind(test.err))
	}
}

func TestWithKind(t *testing.T) {
	assert.NoError(t, WithKind(ErrPersistenceFailure, nil))

	cause := errors.New("disk full")
	err := WithKind(ErrPersistenceFailure, cause)
	assert.ErrorIs(t, err, ErrPersistenceFailure)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "persistence failure: disk full", err.Error())
}

func TestHolderKeyError(t *testing.T) {
	err := error(&HolderKeyError{Reason: ReasonTimeout, DID: "did:web:holder", Err: context.DeadlineExceeded})
	assert.ErrorIs(t, err, ErrHolderKeyUnresolvable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "timeout")

	var holderKeyErr *HolderKeyError
	assert.True(t, errors.As(errors.Wrap(err, "issuing"), &holderKeyErr))
	assert.Equal(t, ReasonTimeout, holderKeyErr.Reason)
}
