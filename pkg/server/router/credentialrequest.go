package router

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.einride.tech/aip/filtering"

	"github.com/tbd54566975/issuer-service/config"
	"github.com/tbd54566975/issuer-service/internal/keyaccess"
	"github.com/tbd54566975/issuer-service/pkg/server/framework"
	"github.com/tbd54566975/issuer-service/pkg/server/pagination"
	"github.com/tbd54566975/issuer-service/pkg/service/credentialrequest"
	svcframework "github.com/tbd54566975/issuer-service/pkg/service/framework"
)

const (
	CaseIDParam = "caseId"
	FilterParam = "filter"
	HolderParam = "holder"

	// Parsing filters can be expensive, so their size is bounded.
	FilterCharacterLimit = 1024
)

// CredentialRequestRouter serves the lifecycle of credential requests.
type CredentialRequestRouter struct {
	service *credentialrequest.Service
}

func NewCredentialRequestRouter(s *credentialrequest.Service) (*CredentialRequestRouter, error) {
	if s == nil {
		return nil, errors.New("service cannot be nil")
	}
	return &CredentialRequestRouter{service: s}, nil
}

type CreateCredentialRequestRequest struct {
	CaseID         string         `json:"caseId" validate:"required"`
	CredentialType string         `json:"credentialType" validate:"required"`
	Claims         map[string]any `json:"claims" validate:"required"`
}

// CreateRequest opens a case waiting on its holder.
func (rr CredentialRequestRouter) CreateRequest(c *gin.Context) {
	var request CreateCredentialRequestRequest
	if err := framework.DecodeAndValidate(c.Request, &request); err != nil {
		framework.RespondError(c, err)
		return
	}
	created, err := rr.service.CreateRequest(c, credentialrequest.CreateRequestRequest{
		CaseID:         request.CaseID,
		CredentialType: request.CredentialType,
		Claims:         request.Claims,
	})
	if err != nil {
		framework.RespondError(c, framework.NewRequestError(err))
		return
	}
	c.Header("Location", config.GetServicePath(svcframework.CredentialRequest)+"/"+url.PathEscape(created.CaseID))
	framework.Respond(c, created, http.StatusCreated)
}

type ListRequestsResponse struct {
	Requests []credentialrequest.CredentialRequest `json:"requests"`
	// Pass as the `pageToken` query parameter to get the next page. Empty on the last page.
	NextPageToken string `json:"nextPageToken,omitempty"`
}

type ListHolderRequestsResponse struct {
	Requests      []credentialrequest.HolderRequest `json:"requests"`
	NextPageToken string                            `json:"nextPageToken,omitempty"`
}

type listRequestsRequest struct {
	filter string
}

func (l listRequestsRequest) GetFilter() string {
	return l.filter
}

// ListRequests lists requests matching the `filter` query parameter, which follows https://google.aip.dev/160, e.g.
// `status="issued"`. With a `holder` query parameter it lists the requests bound to that holder, most recent first.
// Results are paged with the `pageSize` and `pageToken` query parameters.
func (rr CredentialRequestRouter) ListRequests(c *gin.Context) {
	pageRequest, err := pagination.ParsePaginationParams(c)
	if err != nil {
		framework.RespondError(c, err)
		return
	}

	if holder := framework.GetQueryValue(c, HolderParam); holder != nil {
		requests, err := rr.service.ListRequestsForHolder(c, *holder)
		if err != nil {
			framework.RespondError(c, framework.NewRequestError(err))
			return
		}
		page, next, err := pagination.Paginate(c, requests, pageRequest)
		if err != nil {
			framework.RespondError(c, err)
			return
		}
		framework.Respond(c, ListHolderRequestsResponse{Requests: page, NextPageToken: next}, http.StatusOK)
		return
	}

	var request listRequestsRequest
	if f := framework.GetQueryValue(c, FilterParam); f != nil {
		request.filter = *f
	}
	filter, err := parseRequestFilter(request)
	if err != nil {
		framework.RespondError(c, framework.NewRequestErrorWithMsg(err, "invalid filter", http.StatusBadRequest))
		return
	}
	requests, err := rr.service.ListRequests(c, filter)
	if err != nil {
		framework.RespondError(c, framework.NewRequestError(err))
		return
	}
	page, next, err := pagination.Paginate(c, requests, pageRequest)
	if err != nil {
		framework.RespondError(c, err)
		return
	}
	framework.Respond(c, ListRequestsResponse{Requests: page, NextPageToken: next}, http.StatusOK)
}

func parseRequestFilter(request filtering.Request) (filtering.Filter, error) {
	if len(request.GetFilter()) > FilterCharacterLimit {
		return filtering.Filter{}, errors.Errorf("filter longer than %d character size limit", FilterCharacterLimit)
	}
	declarations, err := filtering.NewDeclarations(
		filtering.DeclareFunction(filtering.FunctionEquals,
			filtering.NewFunctionOverload(
				filtering.FunctionOverloadEqualsString, filtering.TypeBool, filtering.TypeString, filtering.TypeString)),
		filtering.DeclareIdent("status", filtering.TypeString),
		filtering.DeclareIdent("credentialType", filtering.TypeString),
		filtering.DeclareIdent("subjectDid", filtering.TypeString),
		filtering.DeclareIdent("caseId", filtering.TypeString),
	)
	if err != nil {
		return filtering.Filter{}, errors.Wrap(err, "creating filter declarations")
	}
	return filtering.ParseFilter(request, declarations)
}

// GetCaseStatus returns the status of a case.
func (rr CredentialRequestRouter) GetCaseStatus(c *gin.Context) {
	caseID := framework.GetParam(c, CaseIDParam)
	if caseID == nil {
		framework.RespondError(c, framework.NewRequestErrorMsg("cannot get request without a case id", http.StatusBadRequest))
		return
	}
	status, err := rr.service.GetCaseStatus(c, *caseID)
	if err != nil {
		framework.RespondError(c, framework.NewRequestError(err))
		return
	}
	framework.Respond(c, status, http.StatusOK)
}

type RegisterHolderRequest struct {
	HolderDID string `json:"holderDid" validate:"required"`
	// An X25519 key. When set, credentials are encrypted to it instead of a key resolved from the holder's DID.
	HolderKeyJWK *keyaccess.PublicKeyJWK `json:"holderKeyJwk,omitempty"`
}

// RegisterHolder binds the holder of a case, making it ready for issuance.
func (rr CredentialRequestRouter) RegisterHolder(c *gin.Context) {
	caseID := framework.GetParam(c, CaseIDParam)
	if caseID == nil {
		framework.RespondError(c, framework.NewRequestErrorMsg("cannot register holder without a case id", http.StatusBadRequest))
		return
	}
	var request RegisterHolderRequest
	if err := framework.DecodeAndValidate(c.Request, &request); err != nil {
		framework.RespondError(c, err)
		return
	}
	updated, err := rr.service.RegisterHolder(c, credentialrequest.RegisterHolderRequest{
		CaseID:       *caseID,
		HolderDID:    request.HolderDID,
		HolderKeyJWK: request.HolderKeyJWK,
	})
	if err != nil {
		framework.RespondError(c, framework.NewRequestError(err))
		return
	}
	framework.Respond(c, updated, http.StatusOK)
}

type RejectRequestRequest struct {
	Reason string `json:"reason,omitempty"`
}

// RejectRequest closes a case that has not been issued. The body is optional.
func (rr CredentialRequestRouter) RejectRequest(c *gin.Context) {
	caseID := framework.GetParam(c, CaseIDParam)
	if caseID == nil {
		framework.RespondError(c, framework.NewRequestErrorMsg("cannot reject request without a case id", http.StatusBadRequest))
		return
	}
	var request RejectRequestRequest
	if c.Request.ContentLength != 0 {
		if err := framework.Decode(c.Request, &request); err != nil {
			framework.RespondError(c, err)
			return
		}
	}
	updated, err := rr.service.RejectRequest(c, *caseID, request.Reason)
	if err != nil {
		framework.RespondError(c, framework.NewRequestError(err))
		return
	}
	framework.Respond(c, updated, http.StatusOK)
}

type TransitionStatusRequest struct {
	// One of `shared_with_verifier` or `verified`.
	Status credentialrequest.Status `json:"status" validate:"required"`
}

// TransitionStatus records what happened to an issued credential after it left the service.
func (rr CredentialRequestRouter) TransitionStatus(c *gin.Context) {
	caseID := framework.GetParam(c, CaseIDParam)
	if caseID == nil {
		framework.RespondError(c, framework.NewRequestErrorMsg("cannot update request without a case id", http.StatusBadRequest))
		return
	}
	var request TransitionStatusRequest
	if err := framework.DecodeAndValidate(c.Request, &request); err != nil {
		framework.RespondError(c, err)
		return
	}
	updated, err := rr.service.TransitionStatus(c, *caseID, request.Status)
	if err != nil {
		framework.RespondError(c, framework.NewRequestError(err))
		return
	}
	framework.Respond(c, updated, http.StatusOK)
}
