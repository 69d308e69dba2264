package issuer

import (
	"context"
	"fmt"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tbd54566975/issuer-service/config"
	"github.com/tbd54566975/issuer-service/internal/did"
	"github.com/tbd54566975/issuer-service/internal/keyaccess"
	"github.com/tbd54566975/issuer-service/internal/util"
	"github.com/tbd54566975/issuer-service/pkg/service/framework"
	"github.com/tbd54566975/issuer-service/pkg/storage"
)

// Service is the identity registry. It creates did:web issuer identities and answers which one currently signs.
type Service struct {
	config  config.IssuerConfig
	storage *Storage
	clock   clock.Clock
}

var _ did.Resolver = (*Service)(nil)

type Option func(*Service)

// WithClock replaces the wall clock used for creation timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

func (s *Service) Type() framework.Type {
	return framework.Issuer
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
			Message: fmt.Sprintf("issuer service is not ready: %s", strings.Join(problems, ", ")),
		}
	}
	return framework.Status{Status: framework.StatusReady}
}

func (s *Service) Config() config.IssuerConfig {
	return s.config
}

func NewIssuerService(ctx context.Context, cfg config.IssuerConfig, s storage.ServiceStorage, opts ...Option) (*Service, error) {
	issuerStorage, err := NewIssuerStorage(ctx, s, cfg.KeyPassword)
	if err != nil {
		return nil, errors.Wrap(err, "could not instantiate storage for the issuer service")
	}
	service := Service{
		config:  cfg,
		storage: issuerStorage,
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

// CreateOrGetIssuer creates an issuer for the domain, or returns the issuer already registered for its DID.
func (s *Service) CreateOrGetIssuer(ctx context.Context, request CreateIssuerRequest) (*CreateIssuerResponse, error) {
	domain := strings.TrimSpace(request.Domain)
	if domain == "" {
		return nil, framework.NewError(framework.ErrInvalidInput, "domain is required")
	}
	webDID, err := did.WebDIDFromDomain(domain)
	if err != nil {
		return nil, framework.WithKind(framework.ErrInvalidInput, err)
	}

	if existing, err := s.storage.GetIssuerByDID(ctx, webDID); err != nil {
		return nil, framework.WithKind(framework.ErrPersistenceFailure, err)
	} else if existing != nil {
		logrus.Debugf("issuer for <%s> already exists", webDID)
		return &CreateIssuerResponse{Issuer: *existing, Created: false}, nil
	}

	identifier, err := did.CreateIdentifier(did.WebMethod, domain, keyaccess.Ed25519)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "could not create issuer identifier")
	}
	id := uuid.NewString()
	vmID := verificationMethodID(identifier.DID, id)
	identifier.PublicKeyJWK.KID = vmID
	identifier.PrivateKeyJWK.KID = vmID

	issuer := IssuerIdentity{
		ID:            id,
		DID:           identifier.DID,
		Domain:        domain,
		PublicKeyJWK:  identifier.PublicKeyJWK,
		PrivateKeyJWK: identifier.PrivateKeyJWK,
		Organization:  request.Organization,
		Description:   request.Description,
		CreatedAt:     s.clock.Now().UTC(),
	}
	stored, created, err := s.storage.InsertIfAbsent(ctx, issuer)
	if err != nil {
		return nil, framework.WithKind(framework.ErrPersistenceFailure, util.LoggingErrorMsg(err, "could not store issuer"))
	}
	if created {
		logrus.WithField("did", stored.DID).WithField("id", stored.ID).Info("created issuer")
	}
	return &CreateIssuerResponse{Issuer: *stored, Created: created}, nil
}

// CurrentIssuer returns the earliest created issuer.
func (s *Service) CurrentIssuer(ctx context.Context) (*IssuerIdentity, error) {
	issuers, err := s.storage.ListIssuers(ctx)
	if err != nil {
		return nil, framework.WithKind(framework.ErrPersistenceFailure, err)
	}
	if len(issuers) == 0 {
		return nil, framework.NewError(framework.ErrNotConfigured, "no issuer has been created")
	}
	return &issuers[0], nil
}

func (s *Service) GetIssuer(ctx context.Context, id string) (*IssuerIdentity, error) {
	if id == "" {
		return nil, framework.NewError(framework.ErrInvalidInput, "id is required")
	}
	issuer, err := s.storage.GetIssuer(ctx, id)
	if err != nil {
		return nil, framework.WithKind(framework.ErrPersistenceFailure, err)
	}
	if issuer == nil {
		return nil, framework.NewErrorf(framework.ErrNotFound, "issuer<%s>", util.SanitizeLog(id))
	}
	return issuer, nil
}

func (s *Service) GetIssuerByDomain(ctx context.Context, domain string) (*IssuerIdentity, error) {
	webDID, err := did.WebDIDFromDomain(domain)
	if err != nil {
		return nil, framework.WithKind(framework.ErrInvalidInput, err)
	}
	issuer, err := s.storage.GetIssuerByDID(ctx, webDID)
	if err != nil {
		return nil, framework.WithKind(framework.ErrPersistenceFailure, err)
	}
	if issuer == nil {
		return nil, framework.NewErrorf(framework.ErrNotFound, "issuer for domain<%s>", util.SanitizeLog(domain))
	}
	return issuer, nil
}

// ListIssuers returns all issuers, earliest created first.
func (s *Service) ListIssuers(ctx context.Context) ([]IssuerIdentity, error) {
	issuers, err := s.storage.ListIssuers(ctx)
	if err != nil {
		return nil, framework.WithKind(framework.ErrPersistenceFailure, err)
	}
	return issuers, nil
}
