package did

import (
	"context"
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/tbd54566975/issuer-service/config"
	didint "github.com/tbd54566975/issuer-service/internal/did"
	"github.com/tbd54566975/issuer-service/internal/util"
	"github.com/tbd54566975/issuer-service/pkg/service/did/resolution"
	"github.com/tbd54566975/issuer-service/pkg/service/framework"
)

// Service resolves DIDs for the issuer: issuer DIDs it hosts, methods it resolves locally and methods delegated to
// a universal resolver.
type Service struct {
	config   config.DIDServiceConfig
	resolver *resolution.ServiceResolver
}

func (s *Service) Type() framework.Type {
	return framework.DID
}

// Status is a self-reporting status for the DID service.
func (s *Service) Status() framework.Status {
	if s.resolver == nil {
		return framework.Status{
			Status:  framework.StatusNotReady,
			Message: fmt.Sprintf("did service is not ready: %s", "no resolver configured"),
		}
	}
	return framework.Status{Status: framework.StatusReady}
}

func (s *Service) Config() config.DIDServiceConfig {
	return s.config
}

func (s *Service) GetResolver() didint.Resolver {
	return s.resolver
}

// NewDIDService builds the resolution chain. hosted resolves the DIDs this service publishes and may be nil.
func NewDIDService(cfg config.DIDServiceConfig, hosted didint.Resolver, opts ...resolution.Option) (*Service, error) {
	if len(cfg.UniversalResolverMethods) > 0 {
		opts = append(opts, resolution.WithUniversalMethods(cfg.UniversalResolverMethods))
	}
	resolver, err := resolution.NewServiceResolver(hosted, cfg.LocalResolutionMethods, cfg.UniversalResolverURL, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "could not instantiate DID resolver")
	}
	service := Service{config: cfg, resolver: resolver}
	if !service.Status().IsReady() {
		return nil, errors.New(service.Status().Message)
	}
	return &service, nil
}

func (s *Service) ResolveDID(ctx context.Context, request ResolveDIDRequest) (*ResolveDIDResponse, error) {
	if request.DID == "" {
		return nil, framework.NewError(framework.ErrInvalidInput, "cannot resolve empty DID")
	}
	if !util.IsValidDID(request.DID) {
		return nil, framework.NewErrorf(framework.ErrInvalidInput, "<%s> is not a DID", util.SanitizeLog(request.DID))
	}
	resolved, err := s.resolver.Resolve(ctx, request.DID)
	if err != nil {
		return nil, framework.WithKind(framework.ErrNotFound, util.LoggingErrorMsgf(err, "could not resolve DID: %s", util.SanitizeLog(request.DID)))
	}
	return &ResolveDIDResponse{
		ResolutionMetadata:  resolved.ResolutionMetadata,
		DIDDocument:         &resolved.Document,
		DIDDocumentMetadata: resolved.DocumentMetadata,
	}, nil
}

func (s *Service) GetSupportedMethods() GetSupportedMethodsResponse {
	methods := s.resolver.Methods()
	sort.Slice(methods, func(i, j int) bool { return methods[i] < methods[j] })
	return GetSupportedMethodsResponse{Methods: methods}
}
