package did

import (
	"context"

	"github.com/pkg/errors"

	"github.com/tbd54566975/issuer-service/internal/keyaccess"
	"github.com/tbd54566975/issuer-service/internal/util"
)

var (
	// ErrNoVerificationMethods is returned when a resolved document lists no verification methods.
	ErrNoVerificationMethods = errors.New("no verification methods")
	// ErrMissingKey is returned when the selected verification method carries no public key.
	ErrMissingKey = errors.New("verification method has no public key")
)

// SelectKeyAgreementKey picks the key to encrypt to from a document's verification methods: the first X25519
// method, or the first method when none is X25519. The selected key must be X25519.
func SelectKeyAgreementKey(doc Document) (*keyaccess.PublicKeyJWK, error) {
	if len(doc.VerificationMethod) == 0 {
		return nil, errors.Wrapf(ErrNoVerificationMethods, "did doc<%s>", doc.ID)
	}
	selected := doc.VerificationMethod[0]
	for _, method := range doc.VerificationMethod {
		if method.Curve() == string(keyaccess.X25519) {
			selected = method
			break
		}
	}
	if selected.PublicKeyJWK == nil && selected.PublicKeyMultibase == "" {
		return nil, errors.Wrapf(ErrMissingKey, "verification method<%s>", selected.ID)
	}
	publicKeyJWK, err := selected.JWK()
	if err != nil {
		return nil, err
	}
	if !publicKeyJWK.IsX25519() {
		return nil, errors.Wrapf(keyaccess.ErrUnsupportedCurve, "verification method<%s> has curve<%s>", selected.ID, publicKeyJWK.CRV)
	}
	// surface undecodable key material before it reaches encryption
	if _, err = publicKeyJWK.ToPublicKey(); err != nil {
		return nil, err
	}
	if publicKeyJWK.KID == "" {
		publicKeyJWK.KID = FullVerificationMethodID(doc.ID, selected.ID)
	}
	return publicKeyJWK, nil
}

// GetVerificationInformation returns the kid and public key of the assertion method matching maybeKID, or the
// document's first assertion method when maybeKID is empty.
func GetVerificationInformation(doc Document, maybeKID string) (kid string, pubKey *keyaccess.PublicKeyJWK, err error) {
	if doc.IsEmpty() {
		return "", nil, errors.New("did doc is empty")
	}
	if len(doc.VerificationMethod) == 0 {
		return "", nil, errors.Wrapf(ErrNoVerificationMethods, "did doc<%s>", doc.ID)
	}

	wanted := maybeKID
	if wanted == "" {
		if len(doc.AssertionMethod) == 0 {
			return "", nil, errors.Errorf("did doc<%s> has no assertion methods", doc.ID)
		}
		wanted = doc.AssertionMethod[0].ID()
	}
	wanted = FullVerificationMethodID(doc.ID, wanted)
	for _, method := range doc.VerificationMethod {
		if FullVerificationMethodID(doc.ID, method.ID) != wanted {
			continue
		}
		pubKey, err = method.JWK()
		return wanted, pubKey, err
	}
	for _, relationship := range doc.AssertionMethod {
		if relationship.Embedded != nil && FullVerificationMethodID(doc.ID, relationship.Embedded.ID) == wanted {
			pubKey, err = relationship.Embedded.JWK()
			return wanted, pubKey, err
		}
	}
	return "", nil, errors.Errorf("did doc<%s> has no verification method<%s>", doc.ID, wanted)
}

// VerifyTokenFromDID checks that token was signed by the key of the DID's assertion method named kid.
func VerifyTokenFromDID(ctx context.Context, did, kid string, token keyaccess.JWS, resolver Resolver) ([]byte, error) {
	resolved, err := resolver.Resolve(ctx, did)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving DID: %s", did)
	}
	kid, pubKey, err := GetVerificationInformation(resolved.Document, kid)
	if err != nil {
		return nil, errors.Wrapf(err, "getting verification information from the DID document: %s", did)
	}
	verifier, err := keyaccess.NewJWKKeyAccessVerifier(kid, *pubKey)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "could not create verifier")
	}
	payload, err := verifier.Verify(token)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "could not verify the token's signature")
	}
	return payload, nil
}
