package util

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestGetMethodForDID(t *testing.T) {
	tests := []struct {
		did     string
		method  string
		wantErr string
	}{
		{did: "did:web:example.org", method: "web"},
		{did: "did:key:z6MkhaXgBZDvotDkL5257faiztiGiC2QtKLGpbnnEGta2doK", method: "key"},
		{did: "did:web:localhost%3A3000:users:alice", method: "web"},
		{did: "did:web", wantErr: "fewer than three parts"},
		{did: "web:example.org:alice", wantErr: "must start with `did`"},
		{did: "did::abcd", wantErr: "must not be empty"},
	}
	for _, test := range tests {
		t.Run(test.did, func(tt *testing.T) {
			method, err := GetMethodForDID(test.did)
			if test.wantErr != "" {
				assert.ErrorContains(tt, err, test.wantErr)
				assert.False(tt, IsValidDID(test.did))
				return
			}
			assert.NoError(tt, err)
			assert.Equal(tt, test.method, method)
			assert.True(tt, IsValidDID(test.did))
		})
	}
}

func TestLoggingErrors(t *testing.T) {
	cause := errors.New("connection refused")
	err := LoggingErrorMsgf(cause, "reading case<%s>", "case-1")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "reading case<case-1>: connection refused", err.Error())

	err = LoggingErrorMsg(nil, "no cause")
	assert.EqualError(t, err, "no cause")

	err = LoggingNewErrorf("bad %s", "thing")
	assert.EqualError(t, err, "bad thing")
}

func TestSanitizeLog(t *testing.T) {
	assert.Equal(t, "case-1 forged line", SanitizeLog("case-1\n forged\r line"))
	assert.True(t, Is2xxResponse(201))
	assert.False(t, Is2xxResponse(404))
}
