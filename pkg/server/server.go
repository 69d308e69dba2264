// Package server contains the full set of handler functions and routes
// supported by the http api
package server

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbd54566975/issuer-service/config"
	"github.com/tbd54566975/issuer-service/internal/util"
	"github.com/tbd54566975/issuer-service/pkg/server/framework"
	"github.com/tbd54566975/issuer-service/pkg/server/middleware"
	"github.com/tbd54566975/issuer-service/pkg/server/router"
	"github.com/tbd54566975/issuer-service/pkg/service"
	"github.com/tbd54566975/issuer-service/pkg/service/credentialrequest"
	"github.com/tbd54566975/issuer-service/pkg/service/did"
	svcframework "github.com/tbd54566975/issuer-service/pkg/service/framework"
	"github.com/tbd54566975/issuer-service/pkg/service/issuance"
	"github.com/tbd54566975/issuer-service/pkg/service/issuer"
)

const (
	HealthPrefix      = "/health"
	ReadinessPrefix   = "/readiness"
	MetricsPrefix     = "/metrics"
	WellKnownDIDPath  = "/.well-known/did.json"
	V1Prefix          = "/v1"
	DIDsPrefix        = "/dids"
	ResolverPrefix    = "/resolver"
	IssuersPrefix     = "/issuers"
	CurrentPath       = "/current"
	RequestsPrefix    = "/requests"
	HolderPath        = "/holder"
	RejectPath        = "/reject"
	StatusPath        = "/status"
	IssuePath         = "/issue"
	caseIDPathSegment = "/:" + router.CaseIDParam
)

// IssuerServer exposes all dependencies needed to run a http server and all its services
type IssuerServer struct {
	*config.ServerConfig
	*service.IssuerService
	*framework.Server
}

// NewIssuerServer does two things: instantiates all services and registers their HTTP bindings
func NewIssuerServer(ctx context.Context, shutdown chan os.Signal, cfg config.IssuerServiceConfig) (*IssuerServer, error) {
	// creates an HTTP server from the framework, and wrap it to extend it for the issuer service
	engine := setUpEngine(cfg.Server, shutdown)
	httpServer := framework.NewServer(cfg.Server, engine, shutdown)
	// service metrics live in a registry owned by this server, served along with the process wide one
	registry := prometheus.NewRegistry()
	issuerService, err := service.InstantiateIssuerService(ctx, cfg.Services, registry)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "unable to instantiate issuer service")
	}

	config.SetAPIBase(cfg.Services.ServiceEndpoint)
	config.SetServicePath(svcframework.Issuer, IssuersPrefix)
	config.SetServicePath(svcframework.DID, DIDsPrefix)
	config.SetServicePath(svcframework.CredentialRequest, RequestsPrefix)

	// service-level routers
	engine.GET(HealthPrefix, router.Health)
	engine.GET(ReadinessPrefix, router.Readiness(issuerService.GetServices()))
	gatherers := prometheus.Gatherers{prometheus.DefaultGatherer, registry}
	engine.GET(MetricsPrefix, gin.WrapH(promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{})))

	if err = IssuerAPI(engine, issuerService.Issuer); err != nil {
		return nil, util.LoggingErrorMsg(err, "unable to instantiate Issuer API")
	}
	v1 := engine.Group(V1Prefix)
	if err = DecentralizedIdentityAPI(v1, issuerService.DID); err != nil {
		return nil, util.LoggingErrorMsg(err, "unable to instantiate DID API")
	}
	if err = CredentialRequestAPI(v1, issuerService.CredentialRequest, issuerService.Issuance); err != nil {
		return nil, util.LoggingErrorMsg(err, "unable to instantiate Credential Request API")
	}

	return &IssuerServer{
		Server:        httpServer,
		IssuerService: issuerService,
		ServerConfig:  &cfg.Server,
	}, nil
}

// setUpEngine creates the gin engine and sets up the middleware based on config
func setUpEngine(cfg config.ServerConfig, shutdown chan os.Signal) *gin.Engine {
	switch cfg.Environment {
	case config.EnvironmentDev:
		gin.SetMode(gin.DebugMode)
	case config.EnvironmentTest:
		gin.SetMode(gin.TestMode)
	case config.EnvironmentProd:
		gin.SetMode(gin.ReleaseMode)
	}

	middlewares := gin.HandlersChain{
		otelgin.Middleware(config.ServiceName),
		middleware.Panics(),
		middleware.Errors(shutdown),
		middleware.Logger(logrus.StandardLogger()),
		middleware.Metrics(),
	}
	if cfg.EnableAllowAllCORS {
		middlewares = append(middlewares, middleware.CORS())
	}

	// set up engine and middleware
	engine := gin.New()
	engine.Use(middlewares...)
	return engine
}

// IssuerAPI registers the identity registry and the DID documents it publishes
func IssuerAPI(engine *gin.Engine, service *issuer.Service) error {
	issuerRouter, err := router.NewIssuerRouter(service)
	if err != nil {
		return util.LoggingErrorMsg(err, "creating issuer router")
	}

	engine.GET(WellKnownDIDPath, issuerRouter.GetDIDDocument)
	engine.NoRoute(issuerRouter.DIDDocumentFallback)

	issuerAPI := engine.Group(V1Prefix + IssuersPrefix)
	issuerAPI.PUT("", issuerRouter.CreateIssuer)
	issuerAPI.GET("", issuerRouter.ListIssuers)
	issuerAPI.GET(CurrentPath, issuerRouter.GetCurrentIssuer)
	issuerAPI.GET("/:"+router.IDParam, issuerRouter.GetIssuer)
	return nil
}

// DecentralizedIdentityAPI registers all HTTP routers for the DID Service
func DecentralizedIdentityAPI(rg *gin.RouterGroup, service *did.Service) error {
	didRouter, err := router.NewDIDRouter(service)
	if err != nil {
		return util.LoggingErrorMsg(err, "creating DID router")
	}

	didAPI := rg.Group(DIDsPrefix)
	didAPI.GET("", didRouter.GetDIDMethods)
	didAPI.GET(ResolverPrefix+"/:"+router.IDParam, didRouter.ResolveDID)
	return nil
}

// CredentialRequestAPI registers the lifecycle of credential requests and their issuance
func CredentialRequestAPI(rg *gin.RouterGroup, requestService *credentialrequest.Service, issuanceService *issuance.Service) error {
	requestRouter, err := router.NewCredentialRequestRouter(requestService)
	if err != nil {
		return util.LoggingErrorMsg(err, "creating credential request router")
	}
	issuanceRouter, err := router.NewIssuanceRouter(issuanceService)
	if err != nil {
		return util.LoggingErrorMsg(err, "creating issuance router")
	}

	requestAPI := rg.Group(RequestsPrefix)
	requestAPI.PUT("", requestRouter.CreateRequest)
	requestAPI.GET("", requestRouter.ListRequests)
	requestAPI.GET(caseIDPathSegment, requestRouter.GetCaseStatus)
	requestAPI.PUT(caseIDPathSegment+HolderPath, requestRouter.RegisterHolder)
	requestAPI.PUT(caseIDPathSegment+RejectPath, requestRouter.RejectRequest)
	requestAPI.PUT(caseIDPathSegment+StatusPath, requestRouter.TransitionStatus)
	requestAPI.PUT(caseIDPathSegment+IssuePath, issuanceRouter.IssueCredential)
	return nil
}
