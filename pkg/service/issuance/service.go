package issuance

import (
	"context"
	"fmt"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tbd54566975/issuer-service/config"
	"github.com/tbd54566975/issuer-service/internal/credential"
	didint "github.com/tbd54566975/issuer-service/internal/did"
	"github.com/tbd54566975/issuer-service/internal/keyaccess"
	"github.com/tbd54566975/issuer-service/internal/util"
	"github.com/tbd54566975/issuer-service/pkg/service/credentialrequest"
	"github.com/tbd54566975/issuer-service/pkg/service/framework"
	"github.com/tbd54566975/issuer-service/pkg/service/issuer"
)

// IdentityRegistry supplies the identity credentials are issued under.
type IdentityRegistry interface {
	CurrentIssuer(ctx context.Context) (*issuer.IssuerIdentity, error)
}

// RequestStore is the part of the credential request lifecycle the pipeline drives.
type RequestStore interface {
	GetRequest(ctx context.Context, caseID string) (*credentialrequest.CredentialRequest, error)
	GetIssuedCredential(ctx context.Context, caseID string) (*credentialrequest.IssuedCredential, error)
	MarkIssued(ctx context.Context, credential credentialrequest.IssuedCredential, builtFor credentialrequest.HolderBinding) (*credentialrequest.MarkIssuedResult, error)
}

// Service runs the sign then encrypt issuance pipeline for a case.
type Service struct {
	config   config.IssuanceConfig
	issuers  IdentityRegistry
	requests RequestStore
	resolver didint.Resolver
	clock    clock.Clock
	metrics  *Metrics
}

type Option func(*Service)

func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func (s *Service) Type() framework.Type {
	return framework.Issuance
}

func (s *Service) Status() framework.Status {
	var problems []string
	if s.issuers == nil {
		problems = append(problems, "no identity registry configured")
	}
	if s.requests == nil {
		problems = append(problems, "no request store configured")
	}
	if s.resolver == nil {
		problems = append(problems, "no did resolver configured")
	}
	if len(problems) > 0 {
		return framework.Status{
			Status:  framework.StatusNotReady,
			Message: fmt.Sprintf("issuance service is not ready: %s", strings.Join(problems, ", ")),
		}
	}
	return framework.Status{Status: framework.StatusReady}
}

func (s *Service) Config() config.IssuanceConfig {
	return s.config
}

func NewIssuanceService(cfg config.IssuanceConfig, issuers IdentityRegistry, requests RequestStore, resolver didint.Resolver, opts ...Option) (*Service, error) {
	if cfg.ResolutionTimeout <= 0 {
		cfg.ResolutionTimeout = config.DefaultResolutionTimeout
	}
	service := Service{
		config:   cfg,
		issuers:  issuers,
		requests: requests,
		resolver: resolver,
		clock:    clock.New(),
	}
	for _, opt := range opts {
		opt(&service)
	}
	if !service.Status().IsReady() {
		return nil, errors.New(service.Status().Message)
	}
	return &service, nil
}

// Issue builds, signs and encrypts the credential for a holder_ready case and commits it. Running it again for an
// issued case returns the stored envelope.
func (s *Service) Issue(ctx context.Context, request IssueRequest) (*IssueResponse, error) {
	request.CaseID = strings.TrimSpace(request.CaseID)
	if request.CaseID == "" {
		return nil, framework.NewError(framework.ErrInvalidInput, "caseId is required")
	}
	start := s.clock.Now()
	logger := logrus.WithField("caseId", util.SanitizeLog(request.CaseID))

	credentialRequest, err := s.requests.GetRequest(ctx, request.CaseID)
	if err != nil {
		return nil, err
	}
	switch credentialRequest.Status {
	case credentialrequest.StatusHolderReady:
	case credentialrequest.StatusIssued, credentialrequest.StatusSharedWithVerifier, credentialrequest.StatusVerified:
		stored, err := s.requests.GetIssuedCredential(ctx, request.CaseID)
		if err != nil {
			return nil, err
		}
		s.metrics.IncrementOutcome(outcomeAlreadyIssued)
		return toResponse(*stored, true), nil
	default:
		return nil, framework.NewErrorf(framework.ErrInvalidState, "case<%s> is %s, not %s",
			util.SanitizeLog(request.CaseID), credentialRequest.Status, credentialrequest.StatusHolderReady)
	}

	issuerIdentity, err := s.issuers.CurrentIssuer(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	vc, err := credential.Builder{
		IssuerDID:      issuerIdentity.DID,
		SubjectDID:     credentialRequest.SubjectDID,
		CredentialType: credentialRequest.CredentialType,
		Claims:         credentialRequest.Claims,
	}.Build(now)
	if err != nil {
		return nil, framework.WithKind(framework.ErrInvalidState, err)
	}

	signer, err := keyaccess.NewJWKKeyAccess(issuerIdentity.VerificationMethodID(), issuerIdentity.PrivateKeyJWK)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "could not create issuer key access")
	}
	signed, err := signer.SignJSON(vc)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "could not sign credential")
	}

	holderKey, err := s.resolveHolderKey(ctx, *credentialRequest)
	if err != nil {
		var holderKeyErr *framework.HolderKeyError
		if errors.As(err, &holderKeyErr) {
			s.metrics.IncrementHolderKeyFailure(string(holderKeyErr.Reason))
		}
		logger.WithError(err).Warn("could not resolve holder key")
		return nil, err
	}

	envelope, err := keyaccess.EncryptForRecipient([]byte(signed), *holderKey)
	if err != nil {
		if errors.Is(err, keyaccess.ErrUnsupportedCurve) || errors.Is(err, keyaccess.ErrMalformedKey) {
			holderKeyErr := &framework.HolderKeyError{Reason: holderKeyReason(err), DID: credentialRequest.SubjectDID, Err: err}
			s.metrics.IncrementHolderKeyFailure(string(holderKeyErr.Reason))
			return nil, holderKeyErr
		}
		return nil, util.LoggingErrorMsg(err, "could not encrypt credential for holder")
	}

	result, err := s.requests.MarkIssued(ctx, credentialrequest.IssuedCredential{
		ID:                vc.ID,
		CaseID:            credentialRequest.CaseID,
		SubjectDID:        credentialRequest.SubjectDID,
		IssuerDID:         issuerIdentity.DID,
		CredentialType:    credentialRequest.CredentialType,
		EncryptedEnvelope: envelope,
		IssuedAt:          now,
	}, credentialRequest.Binding())
	if err != nil {
		return nil, err
	}
	if result.AlreadyIssued {
		logger.Info("case was issued concurrently, returning the stored credential")
		s.metrics.IncrementOutcome(outcomeAlreadyIssued)
		return toResponse(result.Credential, true), nil
	}

	s.metrics.IncrementOutcome(outcomeIssued)
	s.metrics.ObserveIssueLatency(s.clock.Since(start))
	return toResponse(result.Credential, false), nil
}

// resolveHolderKey returns the registered holder key, or the key agreement key of the holder's DID Document.
func (s *Service) resolveHolderKey(ctx context.Context, request credentialrequest.CredentialRequest) (*keyaccess.PublicKeyJWK, error) {
	if request.HolderKeyJWK != nil {
		return request.HolderKeyJWK, nil
	}

	resolveCtx, cancel := context.WithTimeout(ctx, s.config.ResolutionTimeout)
	defer cancel()
	resolved, err := s.resolver.Resolve(resolveCtx, request.SubjectDID)
	if err != nil {
		reason := framework.ReasonResolutionFailed
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(resolveCtx.Err(), context.DeadlineExceeded) {
			reason = framework.ReasonTimeout
		}
		return nil, &framework.HolderKeyError{Reason: reason, DID: request.SubjectDID, Err: err}
	}

	key, err := didint.SelectKeyAgreementKey(resolved.Document)
	if err != nil {
		return nil, &framework.HolderKeyError{Reason: holderKeyReason(err), DID: request.SubjectDID, Err: err}
	}
	return key, nil
}

func holderKeyReason(err error) framework.HolderKeyReason {
	switch {
	case errors.Is(err, didint.ErrNoVerificationMethods):
		return framework.ReasonNoVerificationMethods
	case errors.Is(err, didint.ErrMissingKey):
		return framework.ReasonMissingKey
	case errors.Is(err, keyaccess.ErrUnsupportedCurve):
		return framework.ReasonUnsupportedCurve
	default:
		return framework.ReasonMalformedKey
	}
}

func toResponse(stored credentialrequest.IssuedCredential, alreadyIssued bool) *IssueResponse {
	return &IssueResponse{
		CaseID:            stored.CaseID,
		CredentialID:      stored.ID,
		SubjectDID:        stored.SubjectDID,
		IssuerDID:         stored.IssuerDID,
		EncryptedEnvelope: stored.EncryptedEnvelope,
		IssuedAt:          stored.IssuedAt,
		AlreadyIssued:     alreadyIssued,
	}
}

