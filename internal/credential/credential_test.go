package credential

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	didint "github.com/tbd54566975/issuer-service/internal/did"
	"github.com/tbd54566975/issuer-service/internal/keyaccess"
)

func TestBuild(t *testing.T) {
	now := time.Date(2024, 2, 29, 10, 30, 15, 500, time.FixedZone("EST", -5*60*60))
	builder := Builder{
		IssuerDID:      "did:web:issuer.example.com",
		SubjectDID:     "did:key:z6MkiTBz1ymuepAQ4HEHYSF1H8quG5GLVVQR3djdX3mDooWp",
		CredentialType: "KYCCredential",
		Claims: map[string]any{
			"id":      "did:example:attacker",
			"name":    "Alice",
			"address": map[string]any{"city": "Toronto"},
		},
	}

	cred, err := builder.Build(now)
	require.NoError(t, err)
	assert.Equal(t, []string{VerifiableCredentialsContext}, cred.Context)
	assert.True(t, strings.HasPrefix(cred.ID, "urn:uuid:"))
	assert.Equal(t, []string{"VerifiableCredential", "KYCCredential"}, cred.Type)
	assert.Equal(t, "did:web:issuer.example.com", cred.Issuer)
	assert.Equal(t, "2024-02-29T15:30:15Z", cred.IssuanceDate)
	assert.Equal(t, "2029-03-01T15:30:15Z", cred.ExpirationDate)

	// the subject binding wins over a claim named id
	assert.Equal(t, builder.SubjectDID, cred.Subject())
	assert.Equal(t, "Alice", cred.CredentialSubject["name"])
	assert.Equal(t, map[string]any{"city": "Toronto"}, cred.CredentialSubject["address"])
	assert.Equal(t, "did:example:attacker", builder.Claims["id"])

	other, err := builder.Build(now)
	require.NoError(t, err)
	assert.NotEqual(t, cred.ID, other.ID)

	t.Run("missing fields", func(tt *testing.T) {
		_, err := Builder{SubjectDID: "did:key:z6Mk", CredentialType: "KYC"}.Build(now)
		assert.ErrorContains(tt, err, "issuer cannot be empty")
		_, err = Builder{IssuerDID: "did:web:a.com", CredentialType: "KYC"}.Build(now)
		assert.ErrorContains(tt, err, "subject cannot be empty")
		_, err = Builder{IssuerDID: "did:web:a.com", SubjectDID: "did:key:z6Mk", CredentialType: " "}.Build(now)
		assert.ErrorContains(tt, err, "credential type cannot be empty")
	})
}

func TestVerifyJWSCredential(t *testing.T) {
	issuer, err := didint.CreateIdentifier(didint.KeyMethod, "", keyaccess.Ed25519)
	require.NoError(t, err)
	signer, err := keyaccess.NewJWKKeyAccess(issuer.PublicKeyJWK.KID, issuer.PrivateKeyJWK)
	require.NoError(t, err)

	now := time.Now().UTC()
	cred, err := Builder{
		IssuerDID:      issuer.DID,
		SubjectDID:     "did:web:holder.example.com",
		CredentialType: "EmploymentCredential",
		Claims:         map[string]any{"employer": "ACME"},
	}.Build(now)
	require.NoError(t, err)
	token, err := signer.SignJSON(cred)
	require.NoError(t, err)

	verifier, err := NewCredentialVerifier(didint.KeyResolver{})
	require.NoError(t, err)

	t.Run("valid credential", func(tt *testing.T) {
		verified, err := verifier.VerifyJWSCredential(context.Background(), token, now.Add(time.Minute))
		assert.NoError(tt, err)
		assert.Equal(tt, cred.ID, verified.ID)
		assert.Equal(tt, "ACME", verified.CredentialSubject["employer"])
	})

	t.Run("expired credential", func(tt *testing.T) {
		_, err := verifier.VerifyJWSCredential(context.Background(), token, now.AddDate(6, 0, 0))
		assert.ErrorContains(tt, err, "expired")
	})

	t.Run("signed by another key", func(tt *testing.T) {
		imposter, err := didint.CreateIdentifier(didint.KeyMethod, "", keyaccess.Ed25519)
		require.NoError(tt, err)
		imposterSigner, err := keyaccess.NewJWKKeyAccess(issuer.PublicKeyJWK.KID, imposter.PrivateKeyJWK)
		require.NoError(tt, err)
		forged, err := imposterSigner.SignJSON(cred)
		require.NoError(tt, err)
		_, err = verifier.VerifyJWSCredential(context.Background(), forged, now)
		assert.Error(tt, err)
	})

	t.Run("nil resolver", func(tt *testing.T) {
		_, err := NewCredentialVerifier(nil)
		assert.ErrorContains(tt, err, "didResolver cannot be nil")
	})
}
