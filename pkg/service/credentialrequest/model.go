package credentialrequest

import (
	"reflect"
	"time"

	"github.com/tbd54566975/issuer-service/internal/keyaccess"
)

type Status string

const (
	StatusPendingHolder      Status = "pending_holder"
	StatusHolderReady        Status = "holder_ready"
	StatusIssued             Status = "issued"
	StatusSharedWithVerifier Status = "shared_with_verifier"
	StatusVerified           Status = "verified"
	StatusRejected           Status = "rejected"
)

// CredentialRequest tracks one case from creation through holder registration, issuance and verification.
type CredentialRequest struct {
	ID              string                  `json:"id"`
	CaseID          string                  `json:"caseId"`
	SubjectDID      string                  `json:"subjectDid,omitempty"`
	CredentialType  string                  `json:"credentialType"`
	Claims          map[string]any          `json:"claims"`
	HolderKeyJWK    *keyaccess.PublicKeyJWK `json:"holderKeyJwk,omitempty"`
	Status          Status                  `json:"status"`
	IssuedAt        *time.Time              `json:"issuedAt,omitempty"`
	CreatedAt       time.Time               `json:"createdAt"`
	UpdatedAt       time.Time               `json:"updatedAt"`
	RejectionReason string                  `json:"rejectionReason,omitempty"`
}

// Binding is the holder the request is currently registered to.
func (r CredentialRequest) Binding() HolderBinding {
	return HolderBinding{SubjectDID: r.SubjectDID, HolderKeyJWK: r.HolderKeyJWK}
}

// HolderBinding identifies the holder a credential is built and encrypted for.
type HolderBinding struct {
	SubjectDID   string
	HolderKeyJWK *keyaccess.PublicKeyJWK
}

func (b HolderBinding) Equal(other HolderBinding) bool {
	if b.SubjectDID != other.SubjectDID {
		return false
	}
	if b.HolderKeyJWK == nil || other.HolderKeyJWK == nil {
		return b.HolderKeyJWK == other.HolderKeyJWK
	}
	return reflect.DeepEqual(*b.HolderKeyJWK, *other.HolderKeyJWK)
}

func (r CredentialRequest) FilterVariablesMap() map[string]any {
	return map[string]any{
		"status":         string(r.Status),
		"credentialType": r.CredentialType,
		"subjectDid":     r.SubjectDID,
		"caseId":         r.CaseID,
	}
}

// IssuedCredential is the artifact produced for a case. It is written in the same transaction that moves the
// request to issued.
type IssuedCredential struct {
	ID                string        `json:"id"`
	CaseID            string        `json:"caseId"`
	SubjectDID        string        `json:"subjectDid"`
	IssuerDID         string        `json:"issuerDid"`
	CredentialType    string        `json:"credentialType"`
	EncryptedEnvelope keyaccess.JWE `json:"encryptedEnvelope"`
	IssuedAt          time.Time     `json:"issuedAt"`
}

type CreateRequestRequest struct {
	CaseID         string         `json:"caseId" validate:"required"`
	CredentialType string         `json:"credentialType" validate:"required"`
	Claims         map[string]any `json:"claims" validate:"required"`
}

type RegisterHolderRequest struct {
	CaseID       string                  `json:"caseId" validate:"required"`
	HolderDID    string                  `json:"holderDid" validate:"required"`
	HolderKeyJWK *keyaccess.PublicKeyJWK `json:"holderKeyJwk,omitempty"`
}

type CaseStatus struct {
	CaseID   string     `json:"caseId"`
	Status   Status     `json:"status"`
	IssuedAt *time.Time `json:"issuedAt,omitempty"`
}

// HolderRequest is the holder facing summary of a request.
type HolderRequest struct {
	ID             string     `json:"id"`
	CaseID         string     `json:"caseId"`
	CredentialType string     `json:"credentialType"`
	Status         Status     `json:"status"`
	IssuedAt       *time.Time `json:"issuedAt,omitempty"`
}
