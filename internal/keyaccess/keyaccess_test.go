package keyaccess

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"testing"

	"github.com/goccy/go-json"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwe"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/x25519"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateJWKs(t *testing.T, kt KeyType, kid string) (*PublicKeyJWK, *PrivateKeyJWK) {
	_, priv, err := GenerateKeyPair(kt)
	require.NoError(t, err)
	pubJWK, privJWK, err := PrivateKeyToJWK(kid, priv)
	require.NoError(t, err)
	return pubJWK, privJWK
}

func TestKeyToJWK(t *testing.T) {
	tests := []struct {
		kt  KeyType
		kty string
	}{
		{kt: Ed25519, kty: OKP},
		{kt: X25519, kty: OKP},
		{kt: P256, kty: EC},
	}
	for _, test := range tests {
		t.Run(string(test.kt), func(tt *testing.T) {
			pub, priv, err := GenerateKeyPair(test.kt)
			require.NoError(tt, err)

			pubJWK, privJWK, err := PrivateKeyToJWK("key-1", priv)
			assert.NoError(tt, err)
			assert.Equal(tt, test.kty, pubJWK.KTY)
			assert.Equal(tt, string(test.kt), pubJWK.CRV)
			assert.Equal(tt, "key-1", pubJWK.KID)
			assert.NotEmpty(tt, privJWK.D)
			assert.Equal(tt, *pubJWK, privJWK.Public())

			fromPublic, err := PublicKeyToJWK("key-1", pub)
			assert.NoError(tt, err)
			assert.Equal(tt, pubJWK, fromPublic)

			// the public jwk never carries private material
			pubBytes, err := json.Marshal(pubJWK)
			require.NoError(tt, err)
			assert.NotContains(tt, string(pubBytes), `"d"`)

			rawPub, err := pubJWK.ToPublicKey()
			assert.NoError(tt, err)
			if ecPub, ok := pub.(*ecdsa.PublicKey); ok {
				assert.True(tt, ecPub.Equal(rawPub))
			} else {
				assert.Equal(tt, pub, rawPub)
			}

			rawPriv, err := privJWK.ToPrivateKey()
			assert.NoError(tt, err)
			assert.NotNil(tt, rawPriv)
		})
	}

	t.Run("bad input", func(tt *testing.T) {
		_, err := PublicKeyToJWK("", nil)
		assert.ErrorContains(tt, err, "key cannot be nil")

		_, _, err = GenerateKeyPair("secp256k1")
		assert.ErrorContains(tt, err, "unsupported key type")

		_, err = PublicKeyJWK{}.ToPublicKey()
		assert.ErrorIs(tt, err, ErrMalformedKey)

		_, err = PublicKeyJWK{KTY: OKP, CRV: "X25519", X: "!!not-base64!!"}.ToPublicKey()
		assert.ErrorIs(tt, err, ErrMalformedKey)

		_, err = PrivateKeyJWK{KTY: OKP, CRV: "Ed25519"}.ToJWK()
		assert.ErrorIs(tt, err, ErrMalformedKey)
	})
}

func TestSignVerify(t *testing.T) {
	pubJWK, privJWK := generateJWKs(t, Ed25519, "did:web:example.org#issuer-key-1")

	signer, err := NewJWKKeyAccess("did:web:example.org#issuer-key-1", *privJWK)
	require.NoError(t, err)

	payload := map[string]any{
		"issuer":            "did:web:example.org",
		"credentialSubject": map[string]any{"id": "did:key:z6Mk", "level": "admin"},
	}
	token, err := signer.SignJSON(payload)
	require.NoError(t, err)
	assert.NotEmpty(t, token.String())

	msg, err := jws.Parse([]byte(token))
	require.NoError(t, err)
	require.Len(t, msg.Signatures(), 1)
	headers := msg.Signatures()[0].ProtectedHeaders()
	assert.Equal(t, jwa.EdDSA, headers.Algorithm())
	assert.Equal(t, JWTType, headers.Type())
	assert.Equal(t, "did:web:example.org#issuer-key-1", headers.KeyID())

	verifier, err := NewJWKKeyAccessVerifier("did:web:example.org#issuer-key-1", *pubJWK)
	require.NoError(t, err)
	verified, err := verifier.Verify(token)
	assert.NoError(t, err)
	assert.JSONEq(t, `{"issuer":"did:web:example.org","credentialSubject":{"id":"did:key:z6Mk","level":"admin"}}`, string(verified))

	t.Run("verification fails under another key", func(tt *testing.T) {
		otherPub, _ := generateJWKs(tt, Ed25519, "other")
		otherVerifier, err := NewJWKKeyAccessVerifier("other", *otherPub)
		require.NoError(tt, err)
		_, err = otherVerifier.Verify(token)
		assert.Error(tt, err)
	})

	t.Run("verifier cannot sign", func(tt *testing.T) {
		_, err := verifier.SignJSON(payload)
		assert.ErrorContains(tt, err, "cannot sign with nil signer")
	})

	t.Run("non ed25519 keys are rejected", func(tt *testing.T) {
		_, p256Priv := generateJWKs(tt, P256, "p256")
		_, err := NewJWKKeyAccess("p256", *p256Priv)
		assert.ErrorIs(tt, err, ErrUnsupportedCurve)

		_, err = NewJWKKeyAccess("", *privJWK)
		assert.ErrorContains(tt, err, "kid cannot be empty")
	})
}

func TestEncryptDecrypt(t *testing.T) {
	pubJWK, privJWK := generateJWKs(t, X25519, "holder-key")

	plaintext := []byte("eyJhbGciOiJFZERTQSJ9.payload.signature")
	token, err := EncryptForRecipient(plaintext, *pubJWK)
	require.NoError(t, err)

	msg, err := jwe.Parse([]byte(token))
	require.NoError(t, err)
	assert.Equal(t, jwa.ECDH_ES_A256KW, msg.ProtectedHeaders().Algorithm())
	assert.Equal(t, jwa.A256GCM, msg.ProtectedHeaders().ContentEncryption())

	decrypted, err := Decrypt(token, *privJWK)
	assert.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)

	t.Run("another x25519 key cannot decrypt", func(tt *testing.T) {
		_, otherPriv := generateJWKs(tt, X25519, "other")
		_, err := Decrypt(token, *otherPriv)
		assert.Error(tt, err)
	})

	t.Run("wrong curve is rejected", func(tt *testing.T) {
		p256Pub, _ := generateJWKs(tt, P256, "p256")
		_, err := EncryptForRecipient(plaintext, *p256Pub)
		assert.ErrorIs(tt, err, ErrUnsupportedCurve)

		edPub, _ := generateJWKs(tt, Ed25519, "ed")
		_, err = EncryptForRecipient(plaintext, *edPub)
		assert.ErrorIs(tt, err, ErrUnsupportedCurve)
	})

	t.Run("malformed x25519 key is rejected", func(tt *testing.T) {
		_, err := EncryptForRecipient(plaintext, PublicKeyJWK{KTY: OKP, CRV: "X25519"})
		assert.ErrorIs(tt, err, ErrMalformedKey)
	})
}

func TestX25519FromRawKeys(t *testing.T) {
	seed := make([]byte, x25519.SeedSize)
	seed[0] = 1
	priv, err := x25519.NewKeyFromSeed(seed)
	require.NoError(t, err)

	pubJWK, err := PublicKeyToJWK("", priv.Public())
	require.NoError(t, err)
	assert.True(t, pubJWK.IsX25519())

	edPub := make(ed25519.PublicKey, ed25519.PublicKeySize)
	edJWK, err := PublicKeyToJWK("", edPub)
	require.NoError(t, err)
	assert.False(t, edJWK.IsX25519())
}

func TestParseUnverified(t *testing.T) {
	_, privJWK := generateJWKs(t, Ed25519, "kid-1")
	signer, err := NewJWKKeyAccess("did:web:example.org#kid-1", *privJWK)
	require.NoError(t, err)
	token, err := signer.SignJSON(map[string]any{"hello": "world"})
	require.NoError(t, err)

	kid, payload, err := ParseUnverified(token)
	assert.NoError(t, err)
	assert.Equal(t, "did:web:example.org#kid-1", kid)
	assert.JSONEq(t, `{"hello":"world"}`, string(payload))

	_, _, err = ParseUnverified("not.a.token")
	assert.Error(t, err)
}
