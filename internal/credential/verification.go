package credential

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	didint "github.com/tbd54566975/issuer-service/internal/did"
	"github.com/tbd54566975/issuer-service/internal/keyaccess"
	"github.com/tbd54566975/issuer-service/internal/util"
)

// Verifier checks credentials signed by issuers it can resolve.
type Verifier struct {
	didResolver didint.Resolver
}

func NewCredentialVerifier(didResolver didint.Resolver) (*Verifier, error) {
	if didResolver == nil {
		return nil, errors.New("didResolver cannot be nil")
	}
	return &Verifier{didResolver: didResolver}, nil
}

// VerifyJWSCredential checks the signature on token against the issuer's DID Document, then runs static checks
// on the credential at the given time.
func (v Verifier) VerifyJWSCredential(ctx context.Context, token keyaccess.JWS, at time.Time) (*VerifiableCredential, error) {
	kid, payload, err := keyaccess.ParseUnverified(token)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "could not parse credential token")
	}
	var cred VerifiableCredential
	if err = json.Unmarshal(payload, &cred); err != nil {
		return nil, util.LoggingErrorMsg(err, "could not parse credential from token payload")
	}
	if cred.Issuer == "" {
		return nil, util.LoggingNewError("credential has no issuer")
	}
	if _, err = didint.VerifyTokenFromDID(ctx, cred.Issuer, kid, token, v.didResolver); err != nil {
		return nil, errors.Wrapf(err, "verifying credential signature for issuer<%s>", cred.Issuer)
	}
	if err = staticVerificationChecks(cred, at); err != nil {
		return nil, err
	}
	return &cred, nil
}

func staticVerificationChecks(cred VerifiableCredential, at time.Time) error {
	if len(cred.Context) == 0 || cred.Context[0] != VerifiableCredentialsContext {
		return errors.Errorf("credential<%s> is missing the base context", cred.ID)
	}
	if len(cred.Type) == 0 || cred.Type[0] != VerifiableCredentialType {
		return errors.Errorf("credential<%s> is missing the base type", cred.ID)
	}
	if cred.Subject() == "" {
		return errors.Errorf("credential<%s> has no subject id", cred.ID)
	}
	issuanceDate, err := time.Parse(time.RFC3339, cred.IssuanceDate)
	if err != nil {
		return errors.Wrapf(err, "parsing issuance date of credential<%s>", cred.ID)
	}
	if at.Before(issuanceDate) {
		return errors.Errorf("credential<%s> is not valid before %s", cred.ID, cred.IssuanceDate)
	}
	if cred.ExpirationDate != "" {
		expirationDate, err := time.Parse(time.RFC3339, cred.ExpirationDate)
		if err != nil {
			return errors.Wrapf(err, "parsing expiration date of credential<%s>", cred.ID)
		}
		if !at.Before(expirationDate) {
			return errors.Errorf("credential<%s> expired at %s", cred.ID, cred.ExpirationDate)
		}
	}
	return nil
}
