package issuer

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbd54566975/issuer-service/internal/did"
	"github.com/tbd54566975/issuer-service/internal/keyaccess"
	"github.com/tbd54566975/issuer-service/pkg/service/framework"
	"github.com/tbd54566975/issuer-service/pkg/testutil"
)

func TestPublishDIDDocument(t *testing.T) {
	identifier, err := did.CreateIdentifier(did.WebMethod, "issuer.example.com", keyaccess.Ed25519)
	require.NoError(t, err)
	issuer := IssuerIdentity{
		ID:            "8f7c7d0e-4e0b-4f7a-9d1a-2d6f0c1f9a11",
		DID:           identifier.DID,
		PublicKeyJWK:  identifier.PublicKeyJWK,
		PrivateKeyJWK: identifier.PrivateKeyJWK,
		CreatedAt:     time.Unix(0, 0).UTC(),
	}

	doc := PublishDIDDocument(issuer)
	vmID := "did:web:issuer.example.com#8f7c7d0e-4e0b-4f7a-9d1a-2d6f0c1f9a11-key-1"

	expectedJWK := identifier.PublicKeyJWK
	expectedJWK.KID = vmID
	expected := did.Document{
		Context: did.Contexts{"https://www.w3.org/ns/did/v1", "https://w3id.org/security/suites/jws-2020/v1"},
		ID:      "did:web:issuer.example.com",
		VerificationMethod: []did.VerificationMethod{{
			ID:           vmID,
			Type:         "JsonWebKey2020",
			Controller:   "did:web:issuer.example.com",
			PublicKeyJWK: &expectedJWK,
		}},
		Authentication:  []did.VerificationRelationship{did.NewReference(vmID)},
		AssertionMethod: []did.VerificationRelationship{did.NewReference(vmID)},
	}
	if diff := cmp.Diff(expected, doc); diff != "" {
		t.Errorf("document mismatch (-want +got):\n%s", diff)
	}

	docBytes, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.NotContains(t, string(docBytes), identifier.PrivateKeyJWK.D)
	assert.NotContains(t, string(docBytes), `"d"`)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(docBytes, &generic))
	assert.Equal(t, []any{vmID}, generic["authentication"])
	assert.Equal(t, []any{vmID}, generic["assertionMethod"])
}

func TestIssuerDIDDocumentResolution(t *testing.T) {
	service := testIssuerService(t, testutil.TestDatabases[2].ServiceStorage(t), clock.NewMock())
	ctx := context.Background()

	resp, err := service.CreateOrGetIssuer(ctx, CreateIssuerRequest{Domain: "localhost:8443"})
	require.NoError(t, err)
	assert.Equal(t, "did:web:localhost%3A8443", resp.Issuer.DID)

	doc, err := service.GetDIDDocument(ctx, "localhost:8443")
	assert.NoError(t, err)
	assert.Equal(t, resp.Issuer.DID, doc.ID)

	resolved, err := service.Resolve(ctx, resp.Issuer.DID)
	assert.NoError(t, err)
	assert.Equal(t, *doc, resolved.Document)

	// signatures from the current issuer verify against its published document
	signer, err := keyaccess.NewJWKKeyAccess(resp.Issuer.VerificationMethodID(), resp.Issuer.PrivateKeyJWK)
	require.NoError(t, err)
	token, err := signer.SignJSON(map[string]any{"iss": resp.Issuer.DID})
	require.NoError(t, err)
	_, err = did.VerifyTokenFromDID(ctx, resp.Issuer.DID, "", token, service)
	assert.NoError(t, err)

	_, err = service.Resolve(ctx, "did:web:unknown.example.com")
	assert.ErrorIs(t, err, framework.ErrNotFound)

	_, err = service.Resolve(ctx, "did:key:z6MkiTBz1ymuepAQ4HEHYSF1H8quG5GLVVQR3djdX3mDooWp")
	assert.ErrorContains(t, err, "not a did:web")
}
