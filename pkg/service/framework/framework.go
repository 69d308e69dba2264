package framework

type (
	Type        string
	StatusState string
)

const (
	// List of all service

	Issuer            Type = "issuer"
	DID               Type = "did"
	CredentialRequest Type = "credential_request"
	Issuance          Type = "issuance"

	StatusReady    StatusState = "ready"
	StatusNotReady StatusState = "not_ready"
)

// Status is for service reporting on their status
type Status struct {
	Status  StatusState `json:"status,omitempty"`
	Message string      `json:"message,omitempty"`
}

func (s Status) IsReady() bool {
	return s.Status == StatusReady
}

// Service is an interface each service must comply with to be registered and orchestrated by the http.
type Service interface {
	Type() Type
	Status() Status
}
