package service

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tbd54566975/issuer-service/config"
	"github.com/tbd54566975/issuer-service/internal/util"
	"github.com/tbd54566975/issuer-service/pkg/encryption"
	"github.com/tbd54566975/issuer-service/pkg/service/credentialrequest"
	"github.com/tbd54566975/issuer-service/pkg/service/did"
	"github.com/tbd54566975/issuer-service/pkg/service/framework"
	"github.com/tbd54566975/issuer-service/pkg/service/issuance"
	"github.com/tbd54566975/issuer-service/pkg/service/issuer"
	"github.com/tbd54566975/issuer-service/pkg/storage"
)

// IssuerService represents all services and their dependencies independent of transport
type IssuerService struct {
	Issuer            *issuer.Service
	CredentialRequest *credentialrequest.Service
	Issuance          *issuance.Service
	DID               *did.Service

	storage storage.ServiceStorage
}

// InstantiateIssuerService creates a new instance of the issuer service which instantiates all services and their
// dependencies independent of transport. reg receives the service metrics.
func InstantiateIssuerService(ctx context.Context, config config.ServicesConfig, reg prometheus.Registerer) (*IssuerService, error) {
	if err := validateServiceConfig(config); err != nil {
		return nil, util.LoggingErrorMsg(err, "could not instantiate issuer service, invalid config")
	}
	storageProvider, err := instantiateStorage(ctx, config)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "could not instantiate storage")
	}
	service, err := instantiateServices(ctx, config, storageProvider, reg)
	if err != nil {
		_ = storageProvider.Close()
		return nil, util.LoggingErrorMsg(err, "could not instantiate the issuer service")
	}
	return service, nil
}

func validateServiceConfig(config config.ServicesConfig) error {
	if !storage.IsStorageAvailable(storage.Type(config.StorageProvider)) {
		return fmt.Errorf("%s storage provider configured, but not available", config.StorageProvider)
	}
	if config.IssuerConfig.KeyPassword == "" {
		return fmt.Errorf("%s no key password provided", framework.Issuer)
	}
	if len(config.DIDConfig.LocalResolutionMethods) == 0 && config.DIDConfig.UniversalResolverURL == "" {
		return fmt.Errorf("%s no resolution methods configured", framework.DID)
	}
	return nil
}

func instantiateStorage(ctx context.Context, config config.ServicesConfig) (storage.ServiceStorage, error) {
	storageProvider, err := storage.NewStorage(storage.Type(config.StorageProvider), config.StorageOptions...)
	if err != nil {
		return nil, util.LoggingErrorMsgf(err, "could not instantiate storage provider: %s", config.StorageProvider)
	}
	if !config.AppLevelEncryptionConfiguration.EncryptionEnabled() {
		return storageProvider, nil
	}
	encrypter, decrypter, err := encryption.NewExternalEncrypter(ctx, config.AppLevelEncryptionConfiguration)
	if err != nil {
		_ = storageProvider.Close()
		return nil, util.LoggingErrorMsg(err, "could not instantiate app level encryption")
	}
	return storage.NewEncryptedWrapper(storageProvider, encrypter, decrypter), nil
}

// instantiateServices begins all instantiates and their dependencies
func instantiateServices(ctx context.Context, config config.ServicesConfig, storageProvider storage.ServiceStorage, reg prometheus.Registerer) (*IssuerService, error) {
	issuerService, err := issuer.NewIssuerService(ctx, config.IssuerConfig, storageProvider)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "could not instantiate the issuer registry")
	}

	// issuer DIDs this service publishes resolve without a network round trip
	didService, err := did.NewDIDService(config.DIDConfig, issuerService)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "could not instantiate the DID service")
	}

	requestService, err := credentialrequest.NewCredentialRequestService(config.CredentialRequestConfig, storageProvider)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "could not instantiate the credential request service")
	}

	var issuanceOpts []issuance.Option
	if reg != nil {
		issuanceOpts = append(issuanceOpts, issuance.WithMetrics(issuance.NewMetrics(reg)))
	}
	issuanceService, err := issuance.NewIssuanceService(config.IssuanceConfig, issuerService, requestService, didService.GetResolver(), issuanceOpts...)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "could not instantiate the issuance service")
	}

	return &IssuerService{
		Issuer:            issuerService,
		CredentialRequest: requestService,
		Issuance:          issuanceService,
		DID:               didService,
		storage:           storageProvider,
	}, nil
}

// GetServices returns all services
func (s *IssuerService) GetServices() []framework.Service {
	return []framework.Service{
		s.Issuer,
		s.CredentialRequest,
		s.Issuance,
		s.DID,
	}
}

// Close releases the storage provider.
func (s *IssuerService) Close() error {
	if s.storage == nil {
		return nil
	}
	return s.storage.Close()
}
