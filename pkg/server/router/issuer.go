package router

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/tbd54566975/issuer-service/config"
	"github.com/tbd54566975/issuer-service/internal/keyaccess"
	"github.com/tbd54566975/issuer-service/pkg/server/framework"
	svcframework "github.com/tbd54566975/issuer-service/pkg/service/framework"
	"github.com/tbd54566975/issuer-service/pkg/service/issuer"
)

const (
	DomainParam = "domain"

	wellKnownDIDPath = "/.well-known/did.json"
	didDocumentFile  = "/did.json"
)

// IssuerRouter serves the identity registry and the DID documents of its issuers.
type IssuerRouter struct {
	service *issuer.Service
}

func NewIssuerRouter(s *issuer.Service) (*IssuerRouter, error) {
	if s == nil {
		return nil, errors.New("service cannot be nil")
	}
	return &IssuerRouter{service: s}, nil
}

type CreateIssuerRequest struct {
	// Domain the issuer's did:web is derived from, optionally with a port or path, e.g. `issuer.example.com`.
	Domain       string `json:"domain" validate:"required"`
	Organization string `json:"organization,omitempty"`
	Description  string `json:"description,omitempty"`
}

// IssuerResponse carries the public fields of an issuer.
type IssuerResponse struct {
	ID           string                 `json:"id"`
	DID          string                 `json:"did"`
	Domain       string                 `json:"domain"`
	PublicKeyJWK keyaccess.PublicKeyJWK `json:"publicKeyJwk"`
	Organization string                 `json:"organization,omitempty"`
	Description  string                 `json:"description,omitempty"`
	CreatedAt    time.Time              `json:"createdAt"`
}

func toIssuerResponse(i issuer.IssuerIdentity) IssuerResponse {
	return IssuerResponse{
		ID:           i.ID,
		DID:          i.DID,
		Domain:       i.Domain,
		PublicKeyJWK: i.PublicKeyJWK,
		Organization: i.Organization,
		Description:  i.Description,
		CreatedAt:    i.CreatedAt,
	}
}

// CreateIssuer creates the issuer for a domain, or returns the one that already exists for it.
// Responds with a 201 when an issuer was created and a 200 otherwise.
func (ir IssuerRouter) CreateIssuer(c *gin.Context) {
	var request CreateIssuerRequest
	if err := framework.DecodeAndValidate(c.Request, &request); err != nil {
		framework.RespondError(c, err)
		return
	}
	resp, err := ir.service.CreateOrGetIssuer(c, issuer.CreateIssuerRequest{
		Domain:       request.Domain,
		Organization: request.Organization,
		Description:  request.Description,
	})
	if err != nil {
		framework.RespondError(c, framework.NewRequestError(err))
		return
	}
	status := http.StatusOK
	if resp.Created {
		status = http.StatusCreated
		c.Header("Location", config.GetServicePath(svcframework.Issuer)+"/"+resp.Issuer.ID)
	}
	framework.Respond(c, toIssuerResponse(resp.Issuer), status)
}

// GetCurrentIssuer returns the issuer new credentials are signed by.
func (ir IssuerRouter) GetCurrentIssuer(c *gin.Context) {
	current, err := ir.service.CurrentIssuer(c)
	if err != nil {
		framework.RespondError(c, framework.NewRequestError(err))
		return
	}
	framework.Respond(c, toIssuerResponse(*current), http.StatusOK)
}

func (ir IssuerRouter) GetIssuer(c *gin.Context) {
	id := framework.GetParam(c, IDParam)
	if id == nil {
		framework.RespondError(c, framework.NewRequestErrorMsg("cannot get issuer without an id", http.StatusBadRequest))
		return
	}
	got, err := ir.service.GetIssuer(c, *id)
	if err != nil {
		framework.RespondError(c, framework.NewRequestError(err))
		return
	}
	framework.Respond(c, toIssuerResponse(*got), http.StatusOK)
}

type ListIssuersResponse struct {
	Issuers []IssuerResponse `json:"issuers"`
}

// ListIssuers returns every issuer, earliest created first.
func (ir IssuerRouter) ListIssuers(c *gin.Context) {
	issuers, err := ir.service.ListIssuers(c)
	if err != nil {
		framework.RespondError(c, framework.NewRequestError(err))
		return
	}
	resp := ListIssuersResponse{Issuers: make([]IssuerResponse, 0, len(issuers))}
	for _, i := range issuers {
		resp.Issuers = append(resp.Issuers, toIssuerResponse(i))
	}
	framework.Respond(c, resp, http.StatusOK)
}

// GetDIDDocument serves the DID Document of the issuer hosted at the domain in the `domain` query parameter, or at the
// request's host.
func (ir IssuerRouter) GetDIDDocument(c *gin.Context) {
	domain := c.Request.Host
	if d := framework.GetQueryValue(c, DomainParam); d != nil {
		domain = *d
	}
	ir.respondDIDDocument(c, domain)
}

// DIDDocumentFallback serves the documents of path based did:web issuers, e.g. `/tenants/a/did.json` for
// `did:web:<host>:tenants:a`. Other unmatched requests get a 404.
func (ir IssuerRouter) DIDDocumentFallback(c *gin.Context) {
	path := c.Request.URL.Path
	if c.Request.Method != http.MethodGet || !strings.HasSuffix(path, didDocumentFile) || path == wellKnownDIDPath {
		framework.RespondError(c, framework.NewRequestErrorMsg("not found", http.StatusNotFound))
		return
	}
	ir.respondDIDDocument(c, c.Request.Host+strings.TrimSuffix(path, didDocumentFile))
}

func (ir IssuerRouter) respondDIDDocument(c *gin.Context, domain string) {
	if domain == "" {
		framework.RespondError(c, framework.NewRequestErrorMsg("cannot get DID document without a domain", http.StatusBadRequest))
		return
	}
	doc, err := ir.service.GetDIDDocument(c, domain)
	if err != nil {
		framework.RespondError(c, framework.NewRequestError(err))
		return
	}
	framework.Respond(c, doc, http.StatusOK)
}
