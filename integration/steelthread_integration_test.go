package integration

import (
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbd54566975/issuer-service/internal/credential"
	"github.com/tbd54566975/issuer-service/internal/did"
	"github.com/tbd54566975/issuer-service/internal/keyaccess"
)

const integrationIssuerDomain = "issuer.integration.example.com"

var steelThreadContext = NewTestContext("SteelThread")

func TestServiceIsUpIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	require.NoError(t, WaitForService())
}

func TestCreateIssuerIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	issuer, err := CreateIssuer(issuerParams{Domain: integrationIssuerDomain})
	require.NoError(t, err)
	assert.Equal(t, "did:web:"+integrationIssuerDomain, issuer.DID)

	doc, err := GetDIDDocument(integrationIssuerDomain)
	require.NoError(t, err)
	assert.Equal(t, issuer.DID, doc.ID)
	assert.NotEmpty(t, doc.AssertionMethod)
}

func TestCreateCredentialRequestIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	caseID := "case-" + uuid.NewString()
	output, err := CreateCredentialRequest(requestParams{CaseID: caseID})
	require.NoError(t, err)
	status, err := getJSONElement(output, "$.status")
	require.NoError(t, err)
	assert.Equal(t, "pending_holder", status)
	SetValue(steelThreadContext, "caseID", caseID)

	// the holder keeps its Ed25519 key, the credential is encrypted to the X25519 key derived from it
	holderPublicKey, holderPrivateKey, err := keyaccess.GenerateKeyPair(keyaccess.Ed25519)
	require.NoError(t, err)
	holderDID, err := did.CreateDIDKey(holderPublicKey)
	require.NoError(t, err)
	SetValue(steelThreadContext, "holderDID", holderDID)
	SetValue(steelThreadContext, "holderPrivateKey", holderPrivateKey.(ed25519.PrivateKey))

	output, err = RegisterHolder(holderParams{CaseID: caseID, HolderDID: holderDID})
	require.NoError(t, err)
	status, err = getJSONElement(output, "$.status")
	require.NoError(t, err)
	assert.Equal(t, "holder_ready", status)
	subject, err := getJSONElement(output, "$.subjectDid")
	require.NoError(t, err)
	assert.Equal(t, holderDID, subject)
}

func TestIssueCredentialIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	caseID, err := GetValue[string](steelThreadContext, "caseID")
	require.NoError(t, err)
	holderDID, err := GetValue[string](steelThreadContext, "holderDID")
	require.NoError(t, err)
	holderPrivateKey, err := GetValue[ed25519.PrivateKey](steelThreadContext, "holderPrivateKey")
	require.NoError(t, err)

	issued, err := IssueCredential(caseID)
	require.NoError(t, err)
	assert.False(t, issued.AlreadyIssued)
	assert.Equal(t, holderDID, issued.SubjectDID)

	agreementKey, err := did.Ed25519ToX25519PrivateKey(holderPrivateKey)
	require.NoError(t, err)
	_, agreementJWK, err := keyaccess.PrivateKeyToJWK("", agreementKey)
	require.NoError(t, err)
	signed, err := keyaccess.Decrypt(issued.EncryptedEnvelope, *agreementJWK)
	require.NoError(t, err)

	verifier, err := credential.NewCredentialVerifier(serviceResolver{})
	require.NoError(t, err)
	vc, err := verifier.VerifyJWSCredential(context.Background(), keyaccess.JWS(signed), time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, issued.IssuerDID, vc.Issuer)
	assert.Equal(t, holderDID, vc.CredentialSubject["id"])
	assert.Equal(t, "Alice", vc.CredentialSubject["givenName"])

	again, err := IssueCredential(caseID)
	require.NoError(t, err)
	assert.True(t, again.AlreadyIssued)
	assert.Equal(t, issued.EncryptedEnvelope, again.EncryptedEnvelope)
}

func TestVerifierTransitionsIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	caseID, err := GetValue[string](steelThreadContext, "caseID")
	require.NoError(t, err)

	for _, next := range []string{"shared_with_verifier", "verified"} {
		output, err := TransitionStatus(statusParams{CaseID: caseID, Status: next})
		require.NoError(t, err)
		status, err := getJSONElement(output, "$.status")
		require.NoError(t, err)
		assert.Equal(t, next, status)
	}

	verified, err := ListRequests(`caseId="` + caseID + `"`)
	require.NoError(t, err)
	require.Len(t, verified.Requests, 1)
	assert.Equal(t, "verified", string(verified.Requests[0].Status))
}
