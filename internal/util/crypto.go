package util

import (
	"crypto/rand"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// Argon2SaltSize is the salt size recommended for argon2
	// https://tools.ietf.org/id/draft-irtf-cfrg-argon2-05.html#rfc.section.3.1
	Argon2SaltSize = 16

	// ServiceKeySize is the size of keys accepted by XChaCha20-Poly1305
	ServiceKeySize = chacha20poly1305.KeySize

	// parameters recommended by https://pkg.go.dev/golang.org/x/crypto/argon2 for IDKey
	argon2Time    = 1
	argon2Memory  = 64 * 1024
	argon2Threads = 4
)

// XChaCha20Poly1305Encrypt seals data with a 32 byte key. The random nonce is prepended to the ciphertext.
func XChaCha20Poly1305Encrypt(key, data []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Wrap(err, "creating aead with provided key")
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(data)+aead.Overhead())
	if _, err = rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, "generating nonce for encryption")
	}
	return aead.Seal(nonce, nonce, data, nil), nil
}

// XChaCha20Poly1305Decrypt opens data produced by XChaCha20Poly1305Encrypt.
func XChaCha20Poly1305Decrypt(key, data []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Wrap(err, "creating aead with provided key")
	}
	if len(data) < aead.NonceSize() {
		return nil, errors.New("ciphertext too short; could not decrypt data")
	}

	nonce, ciphertext := data[:aead.NonceSize()], data[aead.NonceSize():]
	decrypted, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.Wrap(err, "decrypting data")
	}
	return decrypted, nil
}

// Argon2KeyGen derives a key of keyLen bytes from a password using Argon2id.
func Argon2KeyGen(password string, salt []byte, keyLen int) ([]byte, error) {
	if password == "" {
		return nil, errors.New("password cannot be empty")
	}
	if len(salt) == 0 {
		return nil, errors.New("salt cannot be empty")
	}
	if keyLen <= 0 {
		return nil, errors.New("invalid key length")
	}
	return argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, uint32(keyLen)), nil
}

// GenerateSalt returns size random bytes.
func GenerateSalt(size int) ([]byte, error) {
	if size <= 0 {
		return nil, errors.New("invalid size")
	}
	salt := make([]byte, size)
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.Wrap(err, "reading random bytes")
	}
	return salt, nil
}
