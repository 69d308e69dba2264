package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbd54566975/issuer-service/config"
	"github.com/tbd54566975/issuer-service/internal/did"
	"github.com/tbd54566975/issuer-service/internal/keyaccess"
	"github.com/tbd54566975/issuer-service/pkg/server/framework"
	"github.com/tbd54566975/issuer-service/pkg/server/router"
	"github.com/tbd54566975/issuer-service/pkg/service/credentialrequest"
	"github.com/tbd54566975/issuer-service/pkg/storage"
)

const testHolderDID = "did:key:z6MkiTBz1ymuepAQ4HEHYSF1H8quG5GLVVQR3djdX3mDooWp"

func testServerConfig() config.IssuerServiceConfig {
	return config.IssuerServiceConfig{
		Server: config.ServerConfig{
			Environment:        config.EnvironmentTest,
			APIHost:            "0.0.0.0:3000",
			EnableAllowAllCORS: true,
		},
		Services: config.ServicesConfig{
			StorageProvider: string(storage.Memory),
			ServiceEndpoint: "http://localhost:3000",
			IssuerConfig:    config.IssuerConfig{KeyPassword: "test-password"},
			DIDConfig:       config.DIDServiceConfig{LocalResolutionMethods: []string{"key", "web"}},
			IssuanceConfig:  config.IssuanceConfig{ResolutionTimeout: config.DefaultResolutionTimeout},
		},
	}
}

func newTestServer(t *testing.T) *IssuerServer {
	shutdown := make(chan os.Signal, 1)
	server, err := NewIssuerServer(context.Background(), shutdown, testServerConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.IssuerService.Close() })
	return server
}

func serve(t *testing.T, server *IssuerServer, method, target string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	var req *http.Request
	if reader != nil {
		req = httptest.NewRequest(method, target, reader)
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	server.Handler.ServeHTTP(w, req)
	return w
}

func TestHealthAndReadiness(t *testing.T) {
	server := newTestServer(t)

	w := serve(t, server, http.MethodGet, "http://localhost:3000/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var health router.GetHealthCheckResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, router.HealthOK, health.Status)

	w = serve(t, server, http.MethodGet, "http://localhost:3000/readiness", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var readiness router.GetReadinessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &readiness))
	assert.True(t, readiness.Status.IsReady())
	assert.Len(t, readiness.ServiceStatuses, 4)
}

func TestNewIssuerServerErrors(t *testing.T) {
	cfg := testServerConfig()
	cfg.Services.StorageProvider = "unknown"
	_, err := NewIssuerServer(context.Background(), make(chan os.Signal, 1), cfg)
	assert.Error(t, err)

	cfg = testServerConfig()
	cfg.Services.IssuerConfig.KeyPassword = ""
	_, err = NewIssuerServer(context.Background(), make(chan os.Signal, 1), cfg)
	assert.ErrorContains(t, err, "no key password")
}

func TestCredentialIssuanceAPI(t *testing.T) {
	server := newTestServer(t)

	// issuer
	w := serve(t, server, http.MethodPut, "http://localhost:3000/v1/issuers", router.CreateIssuerRequest{Domain: "issuer.example.com"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var createdIssuer router.IssuerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &createdIssuer))
	assert.Equal(t, "http://localhost:3000/v1/issuers/"+createdIssuer.ID, w.Header().Get("Location"))

	w = serve(t, server, http.MethodGet, "http://localhost:3000/v1/issuers/current", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var current router.IssuerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &current))
	assert.Equal(t, createdIssuer.ID, current.ID)

	w = serve(t, server, http.MethodGet, "http://localhost:3000/v1/issuers/"+createdIssuer.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(t, server, http.MethodGet, "https://issuer.example.com/.well-known/did.json", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	doc, err := did.ParseDocument(w.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, createdIssuer.DID, doc.ID)

	// request lifecycle
	w = serve(t, server, http.MethodPut, "http://localhost:3000/v1/requests", router.CreateCredentialRequestRequest{
		CaseID:         "case-1",
		CredentialType: "KYCCredential",
		Claims:         map[string]any{"name": "Alice", "level": "gold"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "http://localhost:3000/v1/requests/case-1", w.Header().Get("Location"))

	_, holderKey, err := keyaccess.GenerateKeyPair(keyaccess.X25519)
	require.NoError(t, err)
	holderPublicJWK, holderPrivateJWK, err := keyaccess.PrivateKeyToJWK("", holderKey)
	require.NoError(t, err)
	w = serve(t, server, http.MethodPut, "http://localhost:3000/v1/requests/case-1/holder", router.RegisterHolderRequest{
		HolderDID:    testHolderDID,
		HolderKeyJWK: holderPublicJWK,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = serve(t, server, http.MethodPut, "http://localhost:3000/v1/requests/case-1/issue", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var issued router.IssueCredentialResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issued))
	_, err = keyaccess.Decrypt(issued.EncryptedEnvelope, *holderPrivateJWK)
	assert.NoError(t, err)

	w = serve(t, server, http.MethodGet, "http://localhost:3000/v1/requests/case-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var status credentialrequest.CaseStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, credentialrequest.StatusIssued, status.Status)
	require.NotNil(t, status.IssuedAt)

	w = serve(t, server, http.MethodPut, "http://localhost:3000/v1/requests/case-1/status", router.TransitionStatusRequest{Status: credentialrequest.StatusVerified})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = serve(t, server, http.MethodGet, `http://localhost:3000/v1/requests?filter=status%3D%22verified%22`, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var list router.ListRequestsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Requests, 1)
	assert.Equal(t, "case-1", list.Requests[0].CaseID)

	// metrics
	w = serve(t, server, http.MethodGet, "http://localhost:3000/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "issuer_issuance_outcomes_total")
	assert.Contains(t, w.Body.String(), "issuer_http_requests_total")
}

func TestUnknownRoutes(t *testing.T) {
	server := newTestServer(t)

	w := serve(t, server, http.MethodGet, "http://localhost:3000/v1/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	var resp framework.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, strings.Contains(resp.Error, "not found"))

	w = serve(t, server, http.MethodGet, "https://unknown.example.com/tenants/a/did.json", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
