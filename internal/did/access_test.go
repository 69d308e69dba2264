package did

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbd54566975/issuer-service/internal/keyaccess"
)

func TestSelectKeyAgreementKey(t *testing.T) {
	xIdentifier, err := CreateIdentifier(KeyMethod, "", keyaccess.X25519)
	require.NoError(t, err)
	edIdentifier, err := CreateIdentifier(KeyMethod, "", keyaccess.Ed25519)
	require.NoError(t, err)
	edPublic := edIdentifier.PublicKeyJWK
	xPublic := xIdentifier.PublicKeyJWK

	method := func(id string, key *keyaccess.PublicKeyJWK) VerificationMethod {
		return VerificationMethod{ID: id, Type: JSONWebKey2020Type, Controller: "did:web:holder", PublicKeyJWK: key}
	}

	t.Run("x25519 is preferred over earlier methods", func(tt *testing.T) {
		doc := Document{ID: "did:web:holder", VerificationMethod: []VerificationMethod{
			method("#sign", &edPublic),
			method("#agree", &xPublic),
		}}
		key, err := SelectKeyAgreementKey(doc)
		assert.NoError(tt, err)
		assert.Equal(tt, xPublic.X, key.X)
		assert.True(tt, key.IsX25519())
	})

	t.Run("kid defaults to the full method id", func(tt *testing.T) {
		unnamed := xPublic
		unnamed.KID = ""
		doc := Document{ID: "did:web:holder", VerificationMethod: []VerificationMethod{method("#agree", &unnamed)}}
		key, err := SelectKeyAgreementKey(doc)
		assert.NoError(tt, err)
		assert.Equal(tt, "did:web:holder#agree", key.KID)
	})

	t.Run("multibase methods are decoded", func(tt *testing.T) {
		doc, err := ExpandDIDKey(edIdentifier.DID)
		require.NoError(tt, err)
		agreement := doc.VerificationMethod[1]
		agreement.PublicKeyMultibase = agreement.ID[len(edIdentifier.DID)+1:]
		agreement.PublicKeyJWK = nil
		doc.VerificationMethod[1] = agreement

		key, err := SelectKeyAgreementKey(*doc)
		assert.NoError(tt, err)
		assert.True(tt, key.IsX25519())
	})

	t.Run("failures", func(tt *testing.T) {
		_, err := SelectKeyAgreementKey(Document{ID: "did:web:holder"})
		assert.ErrorIs(tt, err, ErrNoVerificationMethods)

		_, err = SelectKeyAgreementKey(Document{ID: "did:web:holder", VerificationMethod: []VerificationMethod{method("#none", nil)}})
		assert.ErrorIs(tt, err, ErrMissingKey)

		_, err = SelectKeyAgreementKey(Document{ID: "did:web:holder", VerificationMethod: []VerificationMethod{method("#sign", &edPublic)}})
		assert.ErrorIs(tt, err, keyaccess.ErrUnsupportedCurve)

		malformed := keyaccess.PublicKeyJWK{KTY: keyaccess.OKP, CRV: string(keyaccess.X25519), X: "c2hvcnQ"}
		_, err = SelectKeyAgreementKey(Document{ID: "did:web:holder", VerificationMethod: []VerificationMethod{method("#bad", &malformed)}})
		assert.ErrorIs(tt, err, keyaccess.ErrMalformedKey)

		badMultibase := VerificationMethod{ID: "#mb", PublicKeyMultibase: "zzzz"}
		_, err = SelectKeyAgreementKey(Document{ID: "did:web:holder", VerificationMethod: []VerificationMethod{badMultibase}})
		assert.ErrorIs(tt, err, keyaccess.ErrMalformedKey)
	})
}

func TestVerifyTokenFromDID(t *testing.T) {
	identifier, err := CreateIdentifier(KeyMethod, "", keyaccess.Ed25519)
	require.NoError(t, err)
	doc, err := ExpandDIDKey(identifier.DID)
	require.NoError(t, err)
	kid := doc.AssertionMethod[0].ID()

	signer, err := keyaccess.NewJWKKeyAccess(kid, identifier.PrivateKeyJWK)
	require.NoError(t, err)
	token, err := signer.SignJSON(map[string]any{"hello": "world"})
	require.NoError(t, err)

	payload, err := VerifyTokenFromDID(context.Background(), identifier.DID, "", token, KeyResolver{})
	assert.NoError(t, err)
	assert.JSONEq(t, `{"hello":"world"}`, string(payload))

	_, err = VerifyTokenFromDID(context.Background(), identifier.DID, identifier.DID+"#missing", token, KeyResolver{})
	assert.ErrorContains(t, err, "has no verification method")

	other, err := CreateIdentifier(KeyMethod, "", keyaccess.Ed25519)
	require.NoError(t, err)
	_, err = VerifyTokenFromDID(context.Background(), other.DID, "", token, KeyResolver{})
	assert.Error(t, err)
}

func TestCreateIdentifier(t *testing.T) {
	web, err := CreateIdentifier(WebMethod, "https://issuer.example.com", keyaccess.Ed25519)
	assert.NoError(t, err)
	assert.Equal(t, "did:web:issuer.example.com", web.DID)
	assert.Equal(t, string(keyaccess.Ed25519), web.PublicKeyJWK.CRV)
	assert.NotEmpty(t, web.PrivateKeyJWK.D)

	_, err = CreateIdentifier(WebMethod, "issuer.example.com", keyaccess.X25519)
	assert.ErrorIs(t, err, keyaccess.ErrUnsupportedCurve)

	_, err = CreateIdentifier(WebMethod, "", keyaccess.Ed25519)
	assert.Error(t, err)

	key, err := CreateIdentifier(KeyMethod, "", keyaccess.Ed25519)
	assert.NoError(t, err)
	assert.Contains(t, key.DID, "did:key:z6Mk")
	assert.Equal(t, key.DID+"#"+key.DID[len("did:key:"):], key.PublicKeyJWK.KID)

	_, err = CreateIdentifier(KeyMethod, "", keyaccess.P256)
	assert.ErrorIs(t, err, keyaccess.ErrUnsupportedCurve)

	_, err = CreateIdentifier("ion", "", keyaccess.Ed25519)
	assert.ErrorContains(t, err, "unsupported method")

	t.Run("x25519 key for an ed25519 did:key decrypts messages to its key agreement method", func(tt *testing.T) {
		doc, err := ExpandDIDKey(key.DID)
		require.NoError(tt, err)
		agreementKey, err := SelectKeyAgreementKey(*doc)
		require.NoError(tt, err)

		token, err := keyaccess.EncryptForRecipient([]byte("secret"), *agreementKey)
		require.NoError(tt, err)

		xPriv, err := X25519KeyFor(key.PrivateKeyJWK)
		require.NoError(tt, err)
		plaintext, err := keyaccess.Decrypt(token, *xPriv)
		assert.NoError(tt, err)
		assert.Equal(tt, []byte("secret"), plaintext)
	})
}
