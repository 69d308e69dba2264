package encryption

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbd54566975/issuer-service/internal/util"
)

type testKMSConfig struct {
	uri string
}

func (c testKMSConfig) GetMasterKeyURI() string      { return c.uri }
func (c testKMSConfig) GetKMSCredentialsPath() string { return "" }
func (c testKMSConfig) EncryptionEnabled() bool       { return c.uri != "" }

func TestPasswordEncrypter(t *testing.T) {
	salt, err := util.GenerateSalt(util.Argon2SaltSize)
	require.NoError(t, err)

	encrypter, err := NewPasswordEncrypter("issuer-password", salt)
	require.NoError(t, err)

	privateJWK := []byte(`{"kty":"OKP","crv":"Ed25519","d":"secret"}`)
	ciphertext, err := encrypter.Encrypt(context.Background(), privateJWK, nil)
	assert.NoError(t, err)
	assert.NotEqual(t, privateJWK, ciphertext)

	// a second encrypter derived from the same inputs can decrypt
	other, err := NewPasswordEncrypter("issuer-password", salt)
	require.NoError(t, err)
	plaintext, err := other.Decrypt(context.Background(), ciphertext, nil)
	assert.NoError(t, err)
	assert.Equal(t, privateJWK, plaintext)

	wrong, err := NewPasswordEncrypter("not-the-password", salt)
	require.NoError(t, err)
	_, err = wrong.Decrypt(context.Background(), ciphertext, nil)
	assert.ErrorContains(t, err, "could not decrypt data")

	_, err = NewPasswordEncrypter("", salt)
	assert.ErrorContains(t, err, "password cannot be empty")
}

func TestKeyResolverErrorsSurface(t *testing.T) {
	encrypter := NewXChaCha20Poly1305EncrypterWithKeyResolver(func(ctx context.Context) ([]byte, error) {
		return nil, assert.AnError
	})
	_, err := encrypter.Encrypt(context.Background(), []byte("data"), nil)
	assert.ErrorIs(t, err, assert.AnError)

	plaintext, err := encrypter.Decrypt(context.Background(), nil, nil)
	assert.NoError(t, err)
	assert.Nil(t, plaintext)
}

func TestNewExternalEncrypter(t *testing.T) {
	t.Run("disabled config returns noop", func(tt *testing.T) {
		encrypter, decrypter, err := NewExternalEncrypter(context.Background(), testKMSConfig{})
		require.NoError(tt, err)

		data := []byte("plain")
		ciphertext, err := encrypter.Encrypt(context.Background(), data, nil)
		assert.NoError(tt, err)
		assert.Equal(tt, data, ciphertext)

		plaintext, err := decrypter.Decrypt(context.Background(), ciphertext, nil)
		assert.NoError(tt, err)
		assert.Equal(tt, data, plaintext)
	})

	t.Run("unsupported scheme", func(tt *testing.T) {
		_, _, err := NewExternalEncrypter(context.Background(), testKMSConfig{uri: "vault://my-key"})
		assert.ErrorContains(tt, err, "is not supported")
	})
}
