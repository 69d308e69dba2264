package credentialrequest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.einride.tech/aip/filtering"

	"github.com/tbd54566975/issuer-service/config"
	"github.com/tbd54566975/issuer-service/internal/util"
	"github.com/tbd54566975/issuer-service/pkg/service/framework"
	"github.com/tbd54566975/issuer-service/pkg/storage"
)

// Service owns the credential request lifecycle.
type Service struct {
	config  config.CredentialRequestConfig
	storage *Storage
	clock   clock.Clock
}

type Option func(*Service)

// WithClock replaces the wall clock used for request timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

func (s *Service) Type() framework.Type {
	return framework.CredentialRequest
}

func (s *Service) Status() framework.Status {
	var problems []string
	if s.storage == nil {
		problems = append(problems, "no storage configured")
	}
	if s.clock == nil {
		problems = append(problems, "no clock configured")
	}
	if len(problems) > 0 {
		return framework.Status{
			Status:  framework.StatusNotReady,
			Message: fmt.Sprintf("credential request service is not ready: %s", strings.Join(problems, ", ")),
		}
	}
	return framework.Status{Status: framework.StatusReady}
}

func (s *Service) Config() config.CredentialRequestConfig {
	return s.config
}

func NewCredentialRequestService(cfg config.CredentialRequestConfig, s storage.ServiceStorage, opts ...Option) (*Service, error) {
	requestStorage, err := NewCredentialRequestStorage(s)
	if err != nil {
		return nil, errors.Wrap(err, "could not instantiate storage for the credential request service")
	}
	service := Service{
		config:  cfg,
		storage: requestStorage,
		clock:   clock.New(),
	}
	for _, opt := range opts {
		opt(&service)
	}
	if !service.Status().IsReady() {
		return nil, errors.New(service.Status().Message)
	}
	return &service, nil
}

// Now is the service's notion of the current time, in UTC.
func (s *Service) Now() time.Time {
	return s.clock.Now().UTC()
}

// CreateRequest opens a case awaiting its holder.
func (s *Service) CreateRequest(ctx context.Context, request CreateRequestRequest) (*CredentialRequest, error) {
	caseID := strings.TrimSpace(request.CaseID)
	credentialType := strings.TrimSpace(request.CredentialType)
	switch {
	case caseID == "":
		return nil, framework.NewError(framework.ErrInvalidInput, "caseId is required")
	case credentialType == "":
		return nil, framework.NewError(framework.ErrInvalidInput, "credentialType is required")
	case len(request.Claims) == 0:
		return nil, framework.NewError(framework.ErrInvalidInput, "claims are required")
	}

	now := s.Now()
	credentialRequest := CredentialRequest{
		ID:             uuid.NewString(),
		CaseID:         caseID,
		CredentialType: credentialType,
		Claims:         request.Claims,
		Status:         StatusPendingHolder,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.storage.Insert(ctx, credentialRequest); err != nil {
		return nil, err
	}
	logrus.WithField("caseId", util.SanitizeLog(caseID)).Info("created credential request")
	return &credentialRequest, nil
}

// RegisterHolder binds the holder DID, and optionally the holder's encryption key, to a case.
func (s *Service) RegisterHolder(ctx context.Context, request RegisterHolderRequest) (*CredentialRequest, error) {
	request.CaseID = strings.TrimSpace(request.CaseID)
	if request.CaseID == "" {
		return nil, framework.NewError(framework.ErrInvalidInput, "caseId is required")
	}
	if !util.IsValidDID(request.HolderDID) {
		return nil, framework.NewErrorf(framework.ErrInvalidInput, "holderDid<%s> is not a valid DID", util.SanitizeLog(request.HolderDID))
	}
	if request.HolderKeyJWK != nil {
		if !request.HolderKeyJWK.IsX25519() {
			return nil, framework.NewError(framework.ErrInvalidInput, "holderKeyJwk must be an X25519 key")
		}
		if _, err := request.HolderKeyJWK.ToPublicKey(); err != nil {
			return nil, framework.WithKind(framework.ErrInvalidInput, err)
		}
	}

	updated, err := s.storage.Update(ctx, request.CaseID, func(r *CredentialRequest) error {
		if err := checkTransition(r.CaseID, r.Status, StatusHolderReady); err != nil {
			return err
		}
		r.SubjectDID = request.HolderDID
		r.HolderKeyJWK = request.HolderKeyJWK
		r.Status = StatusHolderReady
		r.UpdatedAt = s.Now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	logrus.WithField("caseId", util.SanitizeLog(request.CaseID)).Info("holder registered")
	return updated, nil
}

// RejectRequest closes a case that has not been issued.
func (s *Service) RejectRequest(ctx context.Context, caseID, reason string) (*CredentialRequest, error) {
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		return nil, framework.NewError(framework.ErrInvalidInput, "caseId is required")
	}
	return s.storage.Update(ctx, caseID, func(r *CredentialRequest) error {
		if err := checkTransition(r.CaseID, r.Status, StatusRejected); err != nil {
			return err
		}
		r.Status = StatusRejected
		r.RejectionReason = reason
		r.UpdatedAt = s.Now()
		return nil
	})
}

// TransitionStatus applies a verifier side transition: shared_with_verifier or verified.
func (s *Service) TransitionStatus(ctx context.Context, caseID string, to Status) (*CredentialRequest, error) {
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		return nil, framework.NewError(framework.ErrInvalidInput, "caseId is required")
	}
	if !IsExternalTransition(to) {
		return nil, framework.NewErrorf(framework.ErrInvalidInput, "status<%s> cannot be set directly", util.SanitizeLog(string(to)))
	}
	return s.storage.Update(ctx, caseID, func(r *CredentialRequest) error {
		if err := checkTransition(r.CaseID, r.Status, to); err != nil {
			return err
		}
		r.Status = to
		r.UpdatedAt = s.Now()
		return nil
	})
}

// GetRequest looks a case up by its id. Surrounding whitespace is ignored, as it is when the case is created.
func (s *Service) GetRequest(ctx context.Context, caseID string) (*CredentialRequest, error) {
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		return nil, framework.NewError(framework.ErrInvalidInput, "caseId is required")
	}
	request, err := s.storage.Get(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, framework.NewErrorf(framework.ErrNotFound, "no request for case<%s>", util.SanitizeLog(caseID))
	}
	return request, nil
}

func (s *Service) GetCaseStatus(ctx context.Context, caseID string) (*CaseStatus, error) {
	request, err := s.GetRequest(ctx, caseID)
	if err != nil {
		return nil, err
	}
	return &CaseStatus{CaseID: request.CaseID, Status: request.Status, IssuedAt: request.IssuedAt}, nil
}

// ListRequests returns the requests matching filter, oldest first.
func (s *Service) ListRequests(ctx context.Context, filter filtering.Filter) ([]CredentialRequest, error) {
	include, err := storage.Evaluator(filter)
	if err != nil {
		return nil, framework.WithKind(framework.ErrInvalidInput, err)
	}
	all, err := s.storage.List(ctx)
	if err != nil {
		return nil, err
	}
	requests := make([]CredentialRequest, 0, len(all))
	for _, request := range all {
		if include(request) {
			requests = append(requests, request)
		}
	}
	sort.Slice(requests, func(i, j int) bool {
		if requests[i].CreatedAt.Equal(requests[j].CreatedAt) {
			return requests[i].CaseID < requests[j].CaseID
		}
		return requests[i].CreatedAt.Before(requests[j].CreatedAt)
	})
	return requests, nil
}

// ListRequestsForHolder returns the requests bound to a holder, newest first.
func (s *Service) ListRequestsForHolder(ctx context.Context, holderDID string) ([]HolderRequest, error) {
	if holderDID == "" {
		return nil, framework.NewError(framework.ErrInvalidInput, "holder DID is required")
	}
	all, err := s.storage.List(ctx)
	if err != nil {
		return nil, err
	}
	var matching []CredentialRequest
	for _, request := range all {
		if request.SubjectDID == holderDID {
			matching = append(matching, request)
		}
	}
	sort.Slice(matching, func(i, j int) bool {
		if matching[i].CreatedAt.Equal(matching[j].CreatedAt) {
			return matching[i].CaseID > matching[j].CaseID
		}
		return matching[i].CreatedAt.After(matching[j].CreatedAt)
	})
	summaries := make([]HolderRequest, 0, len(matching))
	for _, request := range matching {
		summaries = append(summaries, HolderRequest{
			ID:             request.ID,
			CaseID:         request.CaseID,
			CredentialType: request.CredentialType,
			Status:         request.Status,
			IssuedAt:       request.IssuedAt,
		})
	}
	return summaries, nil
}

// MarkIssued commits an issued credential for its case. See Storage.MarkIssued.
func (s *Service) MarkIssued(ctx context.Context, credential IssuedCredential, builtFor HolderBinding) (*MarkIssuedResult, error) {
	credential.CaseID = strings.TrimSpace(credential.CaseID)
	if credential.CaseID == "" {
		return nil, framework.NewError(framework.ErrInvalidInput, "caseId is required")
	}
	result, err := s.storage.MarkIssued(ctx, credential, builtFor)
	if err != nil {
		return nil, err
	}
	if !result.AlreadyIssued {
		logrus.WithField("caseId", util.SanitizeLog(credential.CaseID)).WithField("credentialId", credential.ID).Info("credential issued")
	}
	return result, nil
}

func (s *Service) GetIssuedCredential(ctx context.Context, caseID string) (*IssuedCredential, error) {
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		return nil, framework.NewError(framework.ErrInvalidInput, "caseId is required")
	}
	credential, err := s.storage.GetIssued(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if credential == nil {
		return nil, framework.NewErrorf(framework.ErrNotFound, "no issued credential for case<%s>", util.SanitizeLog(caseID))
	}
	return credential, nil
}
