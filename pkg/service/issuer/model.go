package issuer

import (
	"time"

	"github.com/tbd54566975/issuer-service/internal/keyaccess"
)

// IssuerIdentity is a did:web identity credentials are signed with. PrivateKeyJWK is never serialized.
type IssuerIdentity struct {
	ID            string                  `json:"id"`
	DID           string                  `json:"did"`
	Domain        string                  `json:"domain"`
	PublicKeyJWK  keyaccess.PublicKeyJWK  `json:"publicKeyJwk"`
	PrivateKeyJWK keyaccess.PrivateKeyJWK `json:"-"`
	Organization  string                  `json:"organization,omitempty"`
	Description   string                  `json:"description,omitempty"`
	CreatedAt     time.Time               `json:"createdAt"`
}

// VerificationMethodID is the id of the issuer's signing key in its DID Document.
func (i IssuerIdentity) VerificationMethodID() string {
	return verificationMethodID(i.DID, i.ID)
}

func verificationMethodID(did, id string) string {
	return did + "#" + id + "-key-1"
}

type CreateIssuerRequest struct {
	Domain       string `json:"domain" validate:"required"`
	Organization string `json:"organization,omitempty"`
	Description  string `json:"description,omitempty"`
}

type CreateIssuerResponse struct {
	Issuer IssuerIdentity
	// false when an issuer already existed for the domain's DID
	Created bool
}
