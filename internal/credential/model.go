package credential

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	VerifiableCredentialsContext = "https://www.w3.org/2018/credentials/v1"
	VerifiableCredentialType     = "VerifiableCredential"

	// ValidityYears is how long an issued credential stays valid.
	ValidityYears = 5
)

// VerifiableCredential is the payload signed into a VC-JWS https://www.w3.org/TR/vc-data-model/
type VerifiableCredential struct {
	Context           []string       `json:"@context"`
	ID                string         `json:"id"`
	Type              []string       `json:"type"`
	Issuer            string         `json:"issuer"`
	IssuanceDate      string         `json:"issuanceDate"`
	ExpirationDate    string         `json:"expirationDate,omitempty"`
	CredentialSubject map[string]any `json:"credentialSubject"`
}

// Subject returns the id of the credential subject.
func (vc VerifiableCredential) Subject() string {
	id, _ := vc.CredentialSubject["id"].(string)
	return id
}

// Builder assembles the unsigned credential for one subject.
type Builder struct {
	IssuerDID      string
	SubjectDID     string
	CredentialType string
	Claims         map[string]any
}

// Build returns a credential issued at now. Claims are copied verbatim into the subject, except a claim named id,
// which never replaces the subject DID.
func (b Builder) Build(now time.Time) (*VerifiableCredential, error) {
	if b.IssuerDID == "" {
		return nil, errors.New("issuer cannot be empty")
	}
	if b.SubjectDID == "" {
		return nil, errors.New("subject cannot be empty")
	}
	if strings.TrimSpace(b.CredentialType) == "" {
		return nil, errors.New("credential type cannot be empty")
	}

	subject := make(map[string]any, len(b.Claims)+1)
	for k, v := range b.Claims {
		subject[k] = v
	}
	subject["id"] = b.SubjectDID

	issuanceDate := now.UTC().Truncate(time.Second)
	return &VerifiableCredential{
		Context:           []string{VerifiableCredentialsContext},
		ID:                "urn:uuid:" + uuid.NewString(),
		Type:              []string{VerifiableCredentialType, b.CredentialType},
		Issuer:            b.IssuerDID,
		IssuanceDate:      issuanceDate.Format(time.RFC3339),
		ExpirationDate:    issuanceDate.AddDate(ValidityYears, 0, 0).Format(time.RFC3339),
		CredentialSubject: subject,
	}, nil
}
