package keyaccess

import (
	gocrypto "crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"

	"github.com/goccy/go-json"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/x25519"
	"github.com/pkg/errors"
)

type KeyType string

const (
	Ed25519 KeyType = "Ed25519"
	X25519  KeyType = "X25519"
	P256    KeyType = "P-256"

	OKP = "OKP"
	EC  = "EC"

	// Ed25519 and X25519 public keys are both 32 bytes
	okpKeySize = 32
)

var (
	// ErrMalformedKey is returned when a JWK cannot be decoded into key material.
	ErrMalformedKey = errors.New("malformed key")
	// ErrUnsupportedCurve is returned when a key's curve cannot be used for the requested operation.
	ErrUnsupportedCurve = errors.New("unsupported curve")
)

// PublicKeyJWK is the public half of a JSON Web Key https://datatracker.ietf.org/doc/html/rfc7517
type PublicKeyJWK struct {
	KTY    string   `json:"kty" validate:"required"`
	CRV    string   `json:"crv,omitempty"`
	X      string   `json:"x,omitempty"`
	Y      string   `json:"y,omitempty"`
	N      string   `json:"n,omitempty"`
	E      string   `json:"e,omitempty"`
	Use    string   `json:"use,omitempty"`
	KeyOps []string `json:"key_ops,omitempty"`
	Alg    string   `json:"alg,omitempty"`
	KID    string   `json:"kid,omitempty"`
}

// PrivateKeyJWK is a JSON Web Key carrying private key material. It must never leave the process that owns it.
type PrivateKeyJWK struct {
	KTY    string   `json:"kty" validate:"required"`
	CRV    string   `json:"crv,omitempty"`
	X      string   `json:"x,omitempty"`
	Y      string   `json:"y,omitempty"`
	N      string   `json:"n,omitempty"`
	E      string   `json:"e,omitempty"`
	Use    string   `json:"use,omitempty"`
	KeyOps []string `json:"key_ops,omitempty"`
	Alg    string   `json:"alg,omitempty"`
	KID    string   `json:"kid,omitempty"`
	D      string   `json:"d,omitempty"`
	DP     string   `json:"dp,omitempty"`
	DQ     string   `json:"dq,omitempty"`
	P      string   `json:"p,omitempty"`
	Q      string   `json:"q,omitempty"`
	QI     string   `json:"qi,omitempty"`
}

// GenerateKeyPair returns a fresh key pair of the given type.
func GenerateKeyPair(kt KeyType) (gocrypto.PublicKey, gocrypto.PrivateKey, error) {
	switch kt {
	case Ed25519:
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		return pub, priv, err
	case X25519:
		pub, priv, err := x25519.GenerateKey(rand.Reader)
		return pub, priv, err
	case P256:
		priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, nil, err
		}
		return priv.Public(), priv, nil
	default:
		return nil, nil, errors.Errorf("unsupported key type: %s", kt)
	}
}

// PublicKeyToJWK encodes a public key as a JWK, setting kid when it is not empty.
func PublicKeyToJWK(kid string, key gocrypto.PublicKey) (*PublicKeyJWK, error) {
	jwkKey, err := rawToJWK(kid, key)
	if err != nil {
		return nil, err
	}
	var publicKeyJWK PublicKeyJWK
	if err = convert(jwkKey, &publicKeyJWK); err != nil {
		return nil, errors.Wrap(err, "converting public key to jwk")
	}
	return &publicKeyJWK, nil
}

// PrivateKeyToJWK encodes a private key and its public half as JWKs.
func PrivateKeyToJWK(kid string, key gocrypto.PrivateKey) (*PublicKeyJWK, *PrivateKeyJWK, error) {
	jwkKey, err := rawToJWK(kid, key)
	if err != nil {
		return nil, nil, err
	}
	var privateKeyJWK PrivateKeyJWK
	if err = convert(jwkKey, &privateKeyJWK); err != nil {
		return nil, nil, errors.Wrap(err, "converting private key to jwk")
	}
	publicKey, err := jwk.PublicKeyOf(jwkKey)
	if err != nil {
		return nil, nil, errors.Wrap(err, "getting public key from private key")
	}
	var publicKeyJWK PublicKeyJWK
	if err = convert(publicKey, &publicKeyJWK); err != nil {
		return nil, nil, errors.Wrap(err, "converting public key to jwk")
	}
	return &publicKeyJWK, &privateKeyJWK, nil
}

func rawToJWK(kid string, key any) (jwk.Key, error) {
	if key == nil {
		return nil, errors.New("key cannot be nil")
	}
	jwkKey, err := jwk.FromRaw(key)
	if err != nil {
		return nil, errors.Wrap(err, "creating jwk from raw key")
	}
	if kid != "" {
		if err = jwkKey.Set(jwk.KeyIDKey, kid); err != nil {
			return nil, errors.Wrap(err, "setting kid")
		}
	}
	return jwkKey, nil
}

func convert(in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// ToJWK parses the key into a jwx key. Keys that do not decode are reported as ErrMalformedKey.
func (k PublicKeyJWK) ToJWK() (jwk.Key, error) {
	if err := validateCoordinates(k.KTY, k.CRV, k.X, k.Y); err != nil {
		return nil, err
	}
	data, err := json.Marshal(k)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling jwk")
	}
	key, err := jwk.ParseKey(data)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedKey, "parsing jwk: %s", err.Error())
	}
	return key, nil
}

// validateCoordinates checks the public coordinates jwx does not check on parse.
func validateCoordinates(kty, crv, x, y string) error {
	switch kty {
	case OKP:
		decoded, err := base64.RawURLEncoding.DecodeString(x)
		if err != nil {
			return errors.Wrapf(ErrMalformedKey, "decoding x: %s", err.Error())
		}
		if len(decoded) != okpKeySize {
			return errors.Wrapf(ErrMalformedKey, "%s key must be %d bytes, got %d", crv, okpKeySize, len(decoded))
		}
	case EC:
		if x == "" || y == "" {
			return errors.Wrap(ErrMalformedKey, "x and y are required for EC keys")
		}
	case "":
		return errors.Wrap(ErrMalformedKey, "kty is required")
	}
	return nil
}

// ToPublicKey returns the raw public key (ed25519.PublicKey, x25519.PublicKey, *ecdsa.PublicKey).
func (k PublicKeyJWK) ToPublicKey() (gocrypto.PublicKey, error) {
	key, err := k.ToJWK()
	if err != nil {
		return nil, err
	}
	var raw any
	if err = key.Raw(&raw); err != nil {
		return nil, errors.Wrapf(ErrMalformedKey, "decoding public key: %s", err.Error())
	}
	return raw, nil
}

// ToJWK parses the key into a jwx key.
func (k PrivateKeyJWK) ToJWK() (jwk.Key, error) {
	if k.D == "" {
		return nil, errors.Wrap(ErrMalformedKey, "d is required")
	}
	if err := validateCoordinates(k.KTY, k.CRV, k.X, k.Y); err != nil {
		return nil, err
	}
	data, err := json.Marshal(k)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling jwk")
	}
	key, err := jwk.ParseKey(data)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedKey, "parsing jwk: %s", err.Error())
	}
	return key, nil
}

// ToPrivateKey returns the raw private key (ed25519.PrivateKey, x25519.PrivateKey, *ecdsa.PrivateKey).
func (k PrivateKeyJWK) ToPrivateKey() (gocrypto.PrivateKey, error) {
	key, err := k.ToJWK()
	if err != nil {
		return nil, err
	}
	var raw any
	if err = key.Raw(&raw); err != nil {
		return nil, errors.Wrapf(ErrMalformedKey, "decoding private key: %s", err.Error())
	}
	return raw, nil
}

// Public strips the private material from the key.
func (k PrivateKeyJWK) Public() PublicKeyJWK {
	return PublicKeyJWK{
		KTY:    k.KTY,
		CRV:    k.CRV,
		X:      k.X,
		Y:      k.Y,
		N:      k.N,
		E:      k.E,
		Use:    k.Use,
		KeyOps: k.KeyOps,
		Alg:    k.Alg,
		KID:    k.KID,
	}
}

// IsX25519 reports whether the key is an OKP key on curve X25519.
func (k PublicKeyJWK) IsX25519() bool {
	return k.KTY == OKP && k.CRV == string(X25519)
}
