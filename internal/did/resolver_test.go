package did

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolver(t *testing.T) {
	// empty resolver
	_, err := BuildMultiMethodResolver(nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no methods provided")

	// unsupported method
	_, err = BuildMultiMethodResolver([]string{"unsupported"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no resolvers created")

	// valid method
	resolver, err := BuildMultiMethodResolver([]string{"key"})
	assert.NoError(t, err)
	assert.NotEmpty(t, resolver)
	assert.Equal(t, []Method{KeyMethod}, resolver.Methods())
	resolved, err := resolver.Resolve(context.Background(), knownDIDKey)
	assert.NoError(t, err)
	assert.NotEmpty(t, resolved)

	// resolution for a method that is not supported
	_, err = resolver.Resolve(context.Background(), "did:web:example.com")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported method: web")

	// not a did
	_, err = resolver.Resolve(context.Background(), "example.com")
	assert.ErrorContains(t, err, "invalid did")

	// both local methods
	resolver, err = BuildMultiMethodResolver([]string{"key", "web", "ion"})
	assert.NoError(t, err)
	assert.ElementsMatch(t, []Method{KeyMethod, WebMethod}, resolver.Methods())
}

func TestGetMethod(t *testing.T) {
	method, err := GetMethod("did:web:example.com:path")
	assert.NoError(t, err)
	assert.Equal(t, WebMethod, method)

	for _, bad := range []string{"", "did:", "did:key", "did::abc", "urn:key:abc"} {
		_, err = GetMethod(bad)
		assert.Error(t, err, bad)
	}
}
