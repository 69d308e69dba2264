package did

import (
	didint "github.com/tbd54566975/issuer-service/internal/did"
)

type ResolveDIDRequest struct {
	DID string `json:"did" validate:"required"`
}

type ResolveDIDResponse struct {
	ResolutionMetadata  *didint.ResolutionMetadata `json:"didResolutionMetadata,omitempty"`
	DIDDocument         *didint.Document           `json:"didDocument"`
	DIDDocumentMetadata *didint.DocumentMetadata   `json:"didDocumentMetadata,omitempty"`
}

type GetSupportedMethodsResponse struct {
	Methods []didint.Method `json:"method"`
}
