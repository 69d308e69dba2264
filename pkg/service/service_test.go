package service

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbd54566975/issuer-service/config"
	"github.com/tbd54566975/issuer-service/pkg/service/credentialrequest"
	"github.com/tbd54566975/issuer-service/pkg/service/issuance"
	"github.com/tbd54566975/issuer-service/pkg/service/issuer"
	"github.com/tbd54566975/issuer-service/pkg/storage"
)

func testServicesConfig() config.ServicesConfig {
	return config.ServicesConfig{
		StorageProvider: string(storage.Memory),
		IssuerConfig:    config.IssuerConfig{KeyPassword: "test-password"},
		DIDConfig:       config.DIDServiceConfig{LocalResolutionMethods: []string{"key", "web"}},
	}
}

func TestInstantiateIssuerService(t *testing.T) {
	t.Run("all services are ready", func(tt *testing.T) {
		service, err := InstantiateIssuerService(context.Background(), testServicesConfig(), prometheus.NewRegistry())
		require.NoError(tt, err)
		defer func() { _ = service.Close() }()

		services := service.GetServices()
		assert.Len(tt, services, 4)
		for _, s := range services {
			assert.True(tt, s.Status().IsReady(), s.Type())
		}
	})

	t.Run("end to end issuance", func(tt *testing.T) {
		service, err := InstantiateIssuerService(context.Background(), testServicesConfig(), nil)
		require.NoError(tt, err)
		ctx := context.Background()

		_, err = service.Issuer.CreateOrGetIssuer(ctx, issuer.CreateIssuerRequest{Domain: "issuer.example.com"})
		require.NoError(tt, err)
		_, err = service.CredentialRequest.CreateRequest(ctx, credentialrequest.CreateRequestRequest{
			CaseID:         "case-1",
			CredentialType: "KYCCredential",
			Claims:         map[string]any{"name": "Alice"},
		})
		require.NoError(tt, err)
		_, err = service.CredentialRequest.RegisterHolder(ctx, credentialrequest.RegisterHolderRequest{
			CaseID:    "case-1",
			HolderDID: "did:key:z6MkiTBz1ymuepAQ4HEHYSF1H8quG5GLVVQR3djdX3mDooWp",
		})
		require.NoError(tt, err)

		resp, err := service.Issuance.Issue(ctx, issuance.IssueRequest{CaseID: "case-1"})
		assert.NoError(tt, err)
		assert.False(tt, resp.AlreadyIssued)
		assert.Equal(tt, "did:web:issuer.example.com", resp.IssuerDID)
	})

	t.Run("invalid config", func(tt *testing.T) {
		cfg := testServicesConfig()
		cfg.StorageProvider = "mongo"
		_, err := InstantiateIssuerService(context.Background(), cfg, nil)
		assert.ErrorContains(tt, err, "not available")

		cfg = testServicesConfig()
		cfg.IssuerConfig.KeyPassword = ""
		_, err = InstantiateIssuerService(context.Background(), cfg, nil)
		assert.ErrorContains(tt, err, "no key password")

		cfg = testServicesConfig()
		cfg.DIDConfig = config.DIDServiceConfig{}
		_, err = InstantiateIssuerService(context.Background(), cfg, nil)
		assert.ErrorContains(tt, err, "no resolution methods")
	})
}
