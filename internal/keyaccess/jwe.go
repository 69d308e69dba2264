package keyaccess

import (
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwe"
	"github.com/pkg/errors"
)

// JWE is a compact serialized JSON Web Encryption object.
type JWE string

func (j JWE) String() string {
	return string(j)
}

// EncryptForRecipient encrypts plaintext to an X25519 public key using ECDH-ES+A256KW key agreement and
// A256GCM content encryption.
func EncryptForRecipient(plaintext []byte, recipient PublicKeyJWK) (JWE, error) {
	if !recipient.IsX25519() {
		return "", errors.Wrapf(ErrUnsupportedCurve, "encryption requires an X25519 key, got <%s/%s>", recipient.KTY, recipient.CRV)
	}
	key, err := recipient.ToPublicKey()
	if err != nil {
		return "", err
	}
	encrypted, err := jwe.Encrypt(plaintext, jwe.WithKey(jwa.ECDH_ES_A256KW, key), jwe.WithContentEncryption(jwa.A256GCM))
	if err != nil {
		return "", errors.Wrap(err, "encrypting payload")
	}
	return JWE(encrypted), nil
}

// Decrypt opens a JWE produced by EncryptForRecipient with the recipient's private key.
func Decrypt(token JWE, key PrivateKeyJWK) ([]byte, error) {
	if token == "" {
		return nil, errors.New("token cannot be empty")
	}
	privateKey, err := key.ToPrivateKey()
	if err != nil {
		return nil, err
	}
	plaintext, err := jwe.Decrypt([]byte(token), jwe.WithKey(jwa.ECDH_ES_A256KW, privateKey))
	if err != nil {
		return nil, errors.Wrap(err, "decrypting jwe")
	}
	return plaintext, nil
}
