package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/tbd54566975/issuer-service/pkg/server/framework"
	"github.com/tbd54566975/issuer-service/pkg/service/issuance"
)

// IssuanceRouter runs the issuance pipeline for a case.
type IssuanceRouter struct {
	service *issuance.Service
}

func NewIssuanceRouter(s *issuance.Service) (*IssuanceRouter, error) {
	if s == nil {
		return nil, errors.New("service cannot be nil")
	}
	return &IssuanceRouter{service: s}, nil
}

type IssueCredentialResponse struct {
	issuance.IssueResponse
	Message string `json:"message,omitempty"`
}

const alreadyIssuedMessage = "credential was already issued for this case"

// IssueCredential signs and encrypts the credential of a case ready for issuance. Repeated calls for an issued case
// return the stored envelope with a 200, a first issuance responds with a 201.
func (ir IssuanceRouter) IssueCredential(c *gin.Context) {
	caseID := framework.GetParam(c, CaseIDParam)
	if caseID == nil {
		framework.RespondError(c, framework.NewRequestErrorMsg("cannot issue without a case id", http.StatusBadRequest))
		return
	}
	resp, err := ir.service.Issue(c, issuance.IssueRequest{CaseID: *caseID})
	if err != nil {
		framework.RespondError(c, framework.NewRequestError(err))
		return
	}
	if resp.AlreadyIssued {
		framework.Respond(c, IssueCredentialResponse{IssueResponse: *resp, Message: alreadyIssuedMessage}, http.StatusOK)
		return
	}
	framework.Respond(c, IssueCredentialResponse{IssueResponse: *resp}, http.StatusCreated)
}
