package did

import (
	"bytes"
	"context"
	gocrypto "crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"strings"

	"github.com/jorrizza/ed2curve25519"
	"github.com/lestrrat-go/jwx/v2/x25519"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/tbd54566975/issuer-service/internal/keyaccess"
)

const (
	KeyMethod Method = "key"

	KeyPrefix = "did:key"

	// Base58BTCMultiBase is the multibase prefix for base58btc https://github.com/multiformats/multibase
	Base58BTCMultiBase = 'z'
)

// multicodec varint prefixes https://github.com/multiformats/multicodec/blob/master/table.csv
var (
	ed25519Multicodec = []byte{0xed, 0x01}
	x25519Multicodec  = []byte{0xec, 0x01}
	p256Multicodec    = []byte{0x80, 0x24}
)

// CreateDIDKey returns the did:key identifier for a public key.
func CreateDIDKey(publicKey gocrypto.PublicKey) (string, error) {
	encoded, err := encodeMultibaseKey(publicKey)
	if err != nil {
		return "", err
	}
	return KeyPrefix + ":" + encoded, nil
}

func encodeMultibaseKey(publicKey gocrypto.PublicKey) (string, error) {
	var codec, keyBytes []byte
	switch k := publicKey.(type) {
	case ed25519.PublicKey:
		codec, keyBytes = ed25519Multicodec, k
	case x25519.PublicKey:
		codec, keyBytes = x25519Multicodec, k
	case *ecdsa.PublicKey:
		if k.Curve != elliptic.P256() {
			return "", errors.Wrapf(keyaccess.ErrUnsupportedCurve, "curve<%s>", k.Curve.Params().Name)
		}
		codec, keyBytes = p256Multicodec, elliptic.MarshalCompressed(k.Curve, k.X, k.Y)
	default:
		return "", errors.Errorf("unsupported key type: %T", publicKey)
	}
	prefixed := append(append([]byte{}, codec...), keyBytes...)
	return string(Base58BTCMultiBase) + base58.Encode(prefixed), nil
}

func decodeMultibaseKey(value string) (gocrypto.PublicKey, keyaccess.KeyType, error) {
	if len(value) < 2 || value[0] != Base58BTCMultiBase {
		return nil, "", errors.New("value must be base58btc multibase encoded")
	}
	decoded, err := base58.Decode(value[1:])
	if err != nil {
		return nil, "", errors.Wrap(err, "decoding base58")
	}
	switch {
	case bytes.HasPrefix(decoded, ed25519Multicodec):
		keyBytes := decoded[len(ed25519Multicodec):]
		if len(keyBytes) != ed25519.PublicKeySize {
			return nil, "", errors.Errorf("ed25519 key must be %d bytes", ed25519.PublicKeySize)
		}
		return ed25519.PublicKey(keyBytes), keyaccess.Ed25519, nil
	case bytes.HasPrefix(decoded, x25519Multicodec):
		keyBytes := decoded[len(x25519Multicodec):]
		if len(keyBytes) != x25519.PublicKeySize {
			return nil, "", errors.Errorf("x25519 key must be %d bytes", x25519.PublicKeySize)
		}
		return x25519.PublicKey(keyBytes), keyaccess.X25519, nil
	case bytes.HasPrefix(decoded, p256Multicodec):
		x, y := elliptic.UnmarshalCompressed(elliptic.P256(), decoded[len(p256Multicodec):])
		if x == nil {
			return nil, "", errors.New("invalid compressed P-256 point")
		}
		return &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}, keyaccess.P256, nil
	default:
		return nil, "", errors.New("unsupported multicodec key type")
	}
}

// ParseDIDKey returns the public key embedded in a did:key identifier.
func ParseDIDKey(did string) (gocrypto.PublicKey, keyaccess.KeyType, error) {
	if !strings.HasPrefix(did, KeyPrefix+":") {
		return nil, "", errors.Errorf("not a did:key: %s", did)
	}
	identifier := strings.TrimPrefix(did, KeyPrefix+":")
	// a fragment or path is not part of the key
	if i := strings.IndexAny(identifier, "#/?"); i >= 0 {
		identifier = identifier[:i]
	}
	return decodeMultibaseKey(identifier)
}

// ExpandDIDKey builds the DID Document for a did:key. Ed25519 keys also get an X25519 key agreement method derived
// from the same key https://w3c-ccg.github.io/did-method-key/#encryption-method-creation-algorithm
func ExpandDIDKey(did string) (*Document, error) {
	publicKey, keyType, err := ParseDIDKey(did)
	if err != nil {
		return nil, errors.Wrap(err, "parsing did:key")
	}
	identifier := strings.TrimPrefix(did, KeyPrefix+":")

	primary, err := jwkVerificationMethod(did, identifier, publicKey)
	if err != nil {
		return nil, err
	}
	doc := Document{
		Context:            Contexts{KnownDIDContext, JWS2020Context},
		ID:                 did,
		VerificationMethod: []VerificationMethod{*primary},
	}
	primaryRef := []VerificationRelationship{NewReference(primary.ID)}

	switch keyType {
	case keyaccess.X25519:
		doc.KeyAgreement = primaryRef
	case keyaccess.Ed25519:
		doc.Authentication = primaryRef
		doc.AssertionMethod = primaryRef

		agreementKey, err := Ed25519ToX25519PublicKey(publicKey.(ed25519.PublicKey))
		if err != nil {
			return nil, errors.Wrap(err, "deriving key agreement key")
		}
		agreementID, err := encodeMultibaseKey(agreementKey)
		if err != nil {
			return nil, err
		}
		agreement, err := jwkVerificationMethod(did, agreementID, agreementKey)
		if err != nil {
			return nil, err
		}
		doc.VerificationMethod = append(doc.VerificationMethod, *agreement)
		doc.KeyAgreement = []VerificationRelationship{NewReference(agreement.ID)}
	default:
		doc.Authentication = primaryRef
		doc.AssertionMethod = primaryRef
		doc.KeyAgreement = primaryRef
	}
	return &doc, nil
}

func jwkVerificationMethod(did, fragment string, publicKey gocrypto.PublicKey) (*VerificationMethod, error) {
	id := did + "#" + fragment
	publicKeyJWK, err := keyaccess.PublicKeyToJWK(id, publicKey)
	if err != nil {
		return nil, errors.Wrap(err, "converting key to jwk")
	}
	return &VerificationMethod{
		ID:           id,
		Type:         JSONWebKey2020Type,
		Controller:   did,
		PublicKeyJWK: publicKeyJWK,
	}, nil
}

// Ed25519ToX25519PublicKey maps an Ed25519 public key to its Montgomery form.
func Ed25519ToX25519PublicKey(publicKey ed25519.PublicKey) (_ x25519.PublicKey, err error) {
	if len(publicKey) != ed25519.PublicKeySize {
		return nil, errors.New("invalid ed25519 public key size")
	}
	// the conversion panics on bytes that do not decode to a curve point
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("ed25519 public key is not a valid curve point: %v", r)
		}
	}()
	converted := ed2curve25519.Ed25519PublicKeyToCurve25519(publicKey)
	if len(converted) != x25519.PublicKeySize {
		return nil, errors.New("ed25519 public key is not a valid curve point")
	}
	return x25519.PublicKey(converted), nil
}

// Ed25519ToX25519PrivateKey maps an Ed25519 private key to the X25519 private key matching
// Ed25519ToX25519PublicKey of its public half.
func Ed25519ToX25519PrivateKey(privateKey ed25519.PrivateKey) (x25519.PrivateKey, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, errors.New("invalid ed25519 private key size")
	}
	return x25519.NewKeyFromSeed(ed2curve25519.Ed25519PrivateKeyToCurve25519(privateKey))
}

// KeyResolver resolves did:key identifiers locally.
type KeyResolver struct{}

var _ Resolver = (*KeyResolver)(nil)

func (KeyResolver) Resolve(_ context.Context, did string) (*ResolutionResult, error) {
	doc, err := ExpandDIDKey(did)
	if err != nil {
		return nil, err
	}
	return &ResolutionResult{Document: *doc}, nil
}

func (KeyResolver) Methods() []Method {
	return []Method{KeyMethod}
}
