package did

import (
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/tbd54566975/issuer-service/internal/keyaccess"
)

// Identifier is a freshly created DID together with its key pair.
type Identifier struct {
	DID           string
	PublicKeyJWK  keyaccess.PublicKeyJWK
	PrivateKeyJWK keyaccess.PrivateKeyJWK
}

// CreateIdentifier generates a key pair and derives a DID for it. did:web identifiers take a domain and an Ed25519
// key; did:key identifiers take an Ed25519 or X25519 key and ignore the domain.
func CreateIdentifier(method Method, domain string, keyType keyaccess.KeyType) (*Identifier, error) {
	switch method {
	case WebMethod:
		if keyType != keyaccess.Ed25519 {
			return nil, errors.Wrapf(keyaccess.ErrUnsupportedCurve, "did:web identifiers require an Ed25519 key, got <%s>", keyType)
		}
		did, err := WebDIDFromDomain(domain)
		if err != nil {
			return nil, err
		}
		return newIdentifier(did, "", keyType)
	case KeyMethod:
		if keyType != keyaccess.Ed25519 && keyType != keyaccess.X25519 {
			return nil, errors.Wrapf(keyaccess.ErrUnsupportedCurve, "did:key identifiers require an Ed25519 or X25519 key, got <%s>", keyType)
		}
		return newIdentifier("", "", keyType)
	default:
		return nil, errors.Errorf("unsupported method: %s", method)
	}
}

func newIdentifier(did, kid string, keyType keyaccess.KeyType) (*Identifier, error) {
	pub, priv, err := keyaccess.GenerateKeyPair(keyType)
	if err != nil {
		return nil, errors.Wrap(err, "generating key pair")
	}
	if did == "" {
		if did, err = CreateDIDKey(pub); err != nil {
			return nil, errors.Wrap(err, "creating did:key")
		}
		kid = did + "#" + did[len(KeyPrefix)+1:]
	}
	pubJWK, privJWK, err := keyaccess.PrivateKeyToJWK(kid, priv)
	if err != nil {
		return nil, err
	}
	return &Identifier{DID: did, PublicKeyJWK: *pubJWK, PrivateKeyJWK: *privJWK}, nil
}

// X25519KeyFor returns the X25519 private key matching the key agreement method of an Ed25519 did:key.
func X25519KeyFor(privateKey keyaccess.PrivateKeyJWK) (*keyaccess.PrivateKeyJWK, error) {
	raw, err := privateKey.ToPrivateKey()
	if err != nil {
		return nil, err
	}
	edKey, ok := raw.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.Wrapf(keyaccess.ErrUnsupportedCurve, "expected an Ed25519 key, got %T", raw)
	}
	xKey, err := Ed25519ToX25519PrivateKey(edKey)
	if err != nil {
		return nil, err
	}
	_, privJWK, err := keyaccess.PrivateKeyToJWK("", xKey)
	if err != nil {
		return nil, err
	}
	return privJWK, nil
}
