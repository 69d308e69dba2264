package keyaccess

import (
	"github.com/goccy/go-json"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/pkg/errors"
)

const JWTType = "JWT"

// JWS is a compact serialized JSON Web Signature.
type JWS string

func (j JWS) String() string {
	return string(j)
}

// JWKKeyAccess signs and verifies EdDSA compact JWS objects for a single key.
type JWKKeyAccess struct {
	kid        string
	privateKey jwk.Key
	publicKey  jwk.Key
}

// NewJWKKeyAccess creates a JWKKeyAccess able to sign and verify with an Ed25519 private key.
func NewJWKKeyAccess(kid string, key PrivateKeyJWK) (*JWKKeyAccess, error) {
	if kid == "" {
		return nil, errors.New("kid cannot be empty")
	}
	if key.CRV != string(Ed25519) {
		return nil, errors.Wrapf(ErrUnsupportedCurve, "signing requires an Ed25519 key, got <%s>", key.CRV)
	}
	privateKey, err := key.ToJWK()
	if err != nil {
		return nil, errors.Wrapf(err, "could not create key access for kid: %s", kid)
	}
	publicKey, err := jwk.PublicKeyOf(privateKey)
	if err != nil {
		return nil, errors.Wrapf(err, "could not create key access for kid: %s, getting public key", kid)
	}
	return &JWKKeyAccess{kid: kid, privateKey: privateKey, publicKey: publicKey}, nil
}

// NewJWKKeyAccessVerifier creates a JWKKeyAccess that can only verify.
func NewJWKKeyAccessVerifier(kid string, key PublicKeyJWK) (*JWKKeyAccess, error) {
	if kid == "" {
		return nil, errors.New("kid cannot be empty")
	}
	if key.CRV != string(Ed25519) {
		return nil, errors.Wrapf(ErrUnsupportedCurve, "verification requires an Ed25519 key, got <%s>", key.CRV)
	}
	publicKey, err := key.ToJWK()
	if err != nil {
		return nil, errors.Wrapf(err, "could not create key access verifier for kid: %s", kid)
	}
	return &JWKKeyAccess{kid: kid, publicKey: publicKey}, nil
}

// SignJSON serializes data as JSON and signs the bytes. The protected header carries alg EdDSA, typ JWT and the kid.
func (ka JWKKeyAccess) SignJSON(data any) (JWS, error) {
	if ka.privateKey == nil {
		return "", errors.New("cannot sign with nil signer")
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return "", errors.Wrap(err, "serializing payload")
	}
	return ka.Sign(payload)
}

func (ka JWKKeyAccess) Sign(payload []byte) (JWS, error) {
	if ka.privateKey == nil {
		return "", errors.New("cannot sign with nil signer")
	}
	if len(payload) == 0 {
		return "", errors.New("payload cannot be empty")
	}
	headers := jws.NewHeaders()
	if err := headers.Set(jws.TypeKey, JWTType); err != nil {
		return "", errors.Wrap(err, "setting typ header")
	}
	if err := headers.Set(jws.KeyIDKey, ka.kid); err != nil {
		return "", errors.Wrap(err, "setting kid header")
	}
	signed, err := jws.Sign(payload, jws.WithKey(jwa.EdDSA, ka.privateKey, jws.WithProtectedHeaders(headers)))
	if err != nil {
		return "", errors.Wrap(err, "could not sign payload")
	}
	return JWS(signed), nil
}

// Verify checks the signature and returns the payload.
func (ka JWKKeyAccess) Verify(token JWS) ([]byte, error) {
	if token == "" {
		return nil, errors.New("token cannot be empty")
	}
	payload, err := jws.Verify([]byte(token), jws.WithKey(jwa.EdDSA, ka.publicKey))
	if err != nil {
		return nil, errors.Wrap(err, "verifying jws")
	}
	return payload, nil
}

// ParseUnverified returns the kid header and payload of a token without checking its signature.
func ParseUnverified(token JWS) (kid string, payload []byte, err error) {
	msg, err := jws.Parse([]byte(token))
	if err != nil {
		return "", nil, errors.Wrap(err, "parsing jws")
	}
	if len(msg.Signatures()) != 1 {
		return "", nil, errors.Errorf("expected one signature, got %d", len(msg.Signatures()))
	}
	return msg.Signatures()[0].ProtectedHeaders().KeyID(), msg.Payload(), nil
}
