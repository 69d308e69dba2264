package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	didint "github.com/tbd54566975/issuer-service/internal/did"
	"github.com/tbd54566975/issuer-service/pkg/server/framework"
	"github.com/tbd54566975/issuer-service/pkg/service/did"
)

const IDParam = "id"

// DIDRouter represents the dependencies required to instantiate a DID-HTTP service
type DIDRouter struct {
	service *did.Service
}

// NewDIDRouter creates an HTTP router for the DID Service
func NewDIDRouter(s *did.Service) (*DIDRouter, error) {
	if s == nil {
		return nil, errors.New("service cannot be nil")
	}
	return &DIDRouter{service: s}, nil
}

type GetDIDMethodsResponse struct {
	DIDMethods []didint.Method `json:"method,omitempty"`
}

// GetDIDMethods lists the DID methods this service resolves.
func (dr DIDRouter) GetDIDMethods(c *gin.Context) {
	methods := dr.service.GetSupportedMethods()
	framework.Respond(c, GetDIDMethodsResponse{DIDMethods: methods.Methods}, http.StatusOK)
}

type ResolveDIDResponse struct {
	ResolutionMetadata  *didint.ResolutionMetadata `json:"didResolutionMetadata,omitempty"`
	DIDDocument         *didint.Document           `json:"didDocument"`
	DIDDocumentMetadata *didint.DocumentMetadata   `json:"didDocumentMetadata,omitempty"`
}

// ResolveDID resolves a DID through the configured resolvers.
func (dr DIDRouter) ResolveDID(c *gin.Context) {
	id := framework.GetParam(c, IDParam)
	if id == nil {
		framework.RespondError(c, framework.NewRequestErrorMsg("cannot resolve DID without an id", http.StatusBadRequest))
		return
	}
	resolved, err := dr.service.ResolveDID(c, did.ResolveDIDRequest{DID: *id})
	if err != nil {
		framework.RespondError(c, framework.NewRequestError(err))
		return
	}
	resp := ResolveDIDResponse{
		ResolutionMetadata:  resolved.ResolutionMetadata,
		DIDDocument:         resolved.DIDDocument,
		DIDDocumentMetadata: resolved.DIDDocumentMetadata,
	}
	framework.Respond(c, resp, http.StatusOK)
}
