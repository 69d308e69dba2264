package resolution

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	didint "github.com/tbd54566975/issuer-service/internal/did"
	utilint "github.com/tbd54566975/issuer-service/internal/util"
)

// ServiceResolver is a resolver that can resolve DIDs using a combination of local and universal resolvers.
type ServiceResolver struct {
	resolutionMethods []string
	hr                didint.Resolver
	lr                didint.Resolver
	ur                *universalResolver
}

var _ didint.Resolver = (*ServiceResolver)(nil)

// Option configures a ServiceResolver.
type Option func(*options)

type options struct {
	client           *http.Client
	universalMethods []string
}

// WithHTTPClient sets the client used by the did:web and universal resolvers.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.client = client
	}
}

// WithUniversalMethods restricts the universal resolver to the given methods.
func WithUniversalMethods(methods []string) Option {
	return func(o *options) {
		o.universalMethods = methods
	}
}

// NewServiceResolver creates a new ServiceResolver instance which can resolve DIDs using a combination of local and
// universal resolvers. handlerResolver resolves the DIDs this service hosts itself and may be nil.
func NewServiceResolver(handlerResolver didint.Resolver, localResolutionMethods []string, universalResolverURL string, opts ...Option) (*ServiceResolver, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var lr didint.Resolver
	var err error
	if len(localResolutionMethods) > 0 {
		var webOpts []didint.WebResolverOption
		if o.client != nil {
			webOpts = append(webOpts, didint.WithHTTPClient(o.client))
		}
		lr, err = didint.BuildMultiMethodResolver(localResolutionMethods, webOpts...)
		if err != nil {
			return nil, errors.Wrap(err, "instantiating local DID resolver")
		}
	}

	var ur *universalResolver
	if universalResolverURL != "" {
		ur, err = newUniversalResolver(universalResolverURL, o.client, o.universalMethods)
		if err != nil {
			return nil, errors.Wrap(err, "instantiating universal resolver")
		}
	}

	if handlerResolver == nil && lr == nil && ur == nil {
		return nil, errors.New("no resolvers configured")
	}

	return &ServiceResolver{
		resolutionMethods: localResolutionMethods,
		hr:                handlerResolver,
		lr:                lr,
		ur:                ur,
	}, nil
}

// Resolve resolves a DID using a combination of local and universal resolvers. The ordering is as follows:
// 1. Try to resolve with the handler resolver, for DIDs hosted by this service
// 2. Try to resolve with the local resolver
// 3. Try to resolve with the universal resolver
// A cancelled or expired context stops the chain.
func (sr *ServiceResolver) Resolve(ctx context.Context, did string) (*didint.ResolutionResult, error) {
	if _, err := utilint.GetMethodForDID(did); err != nil {
		return nil, errors.Wrap(err, "getting method DID")
	}

	if sr.hr != nil {
		handlersResolvedDID, err := sr.hr.Resolve(ctx, did)
		if err == nil {
			return handlersResolvedDID, nil
		}
		logrus.WithError(err).Debug("DID not resolved by handler resolver")
	}

	if sr.lr != nil {
		locallyResolvedDID, err := sr.lr.Resolve(ctx, did)
		if err == nil {
			return locallyResolvedDID, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Wrapf(ctxErr, "resolving DID %s", did)
		}
		logrus.WithError(err).Error("error resolving DID with local resolver")
	}

	if sr.ur != nil {
		universallyResolvedDID, err := sr.ur.Resolve(ctx, did)
		if err == nil {
			return universallyResolvedDID, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Wrapf(ctxErr, "resolving DID %s", did)
		}
		logrus.WithError(err).Error("error resolving DID with universal resolver")
	}

	return nil, fmt.Errorf("unable to resolve DID %s", did)
}

func (sr *ServiceResolver) Methods() []didint.Method {
	methods := make([]didint.Method, 0, len(sr.resolutionMethods))
	for _, m := range sr.resolutionMethods {
		methods = append(methods, didint.Method(m))
	}
	return methods
}
