package did

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbd54566975/issuer-service/config"
	didint "github.com/tbd54566975/issuer-service/internal/did"
	"github.com/tbd54566975/issuer-service/pkg/service/framework"
)

func TestDIDService(t *testing.T) {
	service, err := NewDIDService(config.DIDServiceConfig{LocalResolutionMethods: []string{"web", "key"}}, nil)
	require.NoError(t, err)
	assert.True(t, service.Status().IsReady())
	assert.Equal(t, framework.DID, service.Type())
	assert.Equal(t, []didint.Method{didint.KeyMethod, didint.WebMethod}, service.GetSupportedMethods().Methods)

	t.Run("resolve did:key", func(tt *testing.T) {
		const did = "did:key:z6MkiTBz1ymuepAQ4HEHYSF1H8quG5GLVVQR3djdX3mDooWp"
		resolved, err := service.ResolveDID(context.Background(), ResolveDIDRequest{DID: did})
		assert.NoError(tt, err)
		assert.Equal(tt, did, resolved.DIDDocument.ID)
		assert.Len(tt, resolved.DIDDocument.KeyAgreement, 1)
	})

	t.Run("bad input", func(tt *testing.T) {
		_, err := service.ResolveDID(context.Background(), ResolveDIDRequest{})
		assert.ErrorIs(tt, err, framework.ErrInvalidInput)

		_, err = service.ResolveDID(context.Background(), ResolveDIDRequest{DID: "not-a-did"})
		assert.ErrorIs(tt, err, framework.ErrInvalidInput)
	})

	t.Run("unresolvable", func(tt *testing.T) {
		_, err := service.ResolveDID(context.Background(), ResolveDIDRequest{DID: "did:example:123"})
		assert.ErrorIs(tt, err, framework.ErrNotFound)
	})

	t.Run("no resolvers", func(tt *testing.T) {
		_, err := NewDIDService(config.DIDServiceConfig{}, nil)
		assert.ErrorContains(tt, err, "no resolvers configured")
	})
}
