package issuance

import (
	"time"

	"github.com/tbd54566975/issuer-service/internal/keyaccess"
)

type IssueRequest struct {
	CaseID string `json:"caseId" validate:"required"`
}

// IssueResponse is the outcome of a run of the pipeline. AlreadyIssued is set when the case had been issued before
// this run and the stored envelope is returned.
type IssueResponse struct {
	CaseID            string        `json:"caseId"`
	CredentialID      string        `json:"credentialId"`
	SubjectDID        string        `json:"subjectDid"`
	IssuerDID         string        `json:"issuerDid"`
	EncryptedEnvelope keyaccess.JWE `json:"encryptedEnvelope"`
	IssuedAt          time.Time     `json:"issuedAt"`
	AlreadyIssued     bool          `json:"alreadyIssued"`
}
