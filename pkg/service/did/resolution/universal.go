package resolution

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	didint "github.com/tbd54566975/issuer-service/internal/did"
	utilint "github.com/tbd54566975/issuer-service/internal/util"
)

// universalResolver is a struct that implements the Resolver interface. It calls the universal resolver endpoint
// to resolve any DID according to https://github.com/decentralized-identity/universal-resolver.
type universalResolver struct {
	client  *http.Client
	url     string
	allowed map[didint.Method]bool

	mu               sync.Mutex
	supportedMethods []didint.Method
}

var _ didint.Resolver = (*universalResolver)(nil)

func newUniversalResolver(url string, client *http.Client, methods []string) (*universalResolver, error) {
	if url == "" {
		return nil, errors.New("universal resolver url cannot be empty")
	}
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	var allowed map[didint.Method]bool
	if len(methods) > 0 {
		allowed = make(map[didint.Method]bool, len(methods))
		for _, m := range methods {
			allowed[didint.Method(m)] = true
		}
	}
	return &universalResolver{
		client:  client,
		url:     strings.TrimSuffix(url, "/"),
		allowed: allowed,
	}, nil
}

// Resolve results resolution results by doing a GET on <url>/1.0/identifiers/<did>.
func (ur *universalResolver) Resolve(ctx context.Context, did string) (*didint.ResolutionResult, error) {
	method, err := didint.GetMethod(did)
	if err != nil {
		return nil, err
	}
	if ur.allowed != nil && !ur.allowed[method] {
		return nil, errors.Errorf("method %s is not enabled for universal resolution", method)
	}

	url := ur.url + "/1.0/identifiers/" + did
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}

	resp, err := ur.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "performing http get")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(bufio.NewReader(resp.Body))
	if err != nil {
		return nil, err
	}
	if !utilint.Is2xxResponse(resp.StatusCode) {
		return nil, errors.Errorf("universal resolver returned status %d", resp.StatusCode)
	}
	var result didint.ResolutionResult
	if err = json.Unmarshal(respBody, &result); err != nil {
		return nil, errors.Wrap(err, "unmarshalling JSON")
	}
	if result.Document.ID == "" {
		return nil, errors.Errorf("universal resolver returned no document for %s", did)
	}
	return &result, nil
}

// Methods returns the methods that this resolver supports
// as per https://github.com/decentralized-identity/universal-resolver/blob/main/swagger/api.yml#L121
func (ur *universalResolver) Methods() []didint.Method {
	ur.mu.Lock()
	defer ur.mu.Unlock()
	if len(ur.supportedMethods) > 0 {
		return ur.supportedMethods
	}

	url := ur.url + "/1.0/methods"
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to create request for universal resolver methods")
		return nil
	}

	resp, err := ur.client.Do(req)
	if err != nil {
		logrus.WithError(err).Error("Failed to perform http get for universal resolver methods")
		return nil
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(bufio.NewReader(resp.Body))
	if err != nil {
		logrus.WithError(err).Error("Failed to read response body for universal resolver methods")
		return nil
	}
	var methods []didint.Method
	if err = json.Unmarshal(respBody, &methods); err != nil {
		logrus.WithError(err).Error("Failed to unmarshal response body for universal resolver methods")
		return nil
	}
	if ur.allowed != nil {
		filtered := methods[:0]
		for _, m := range methods {
			if ur.allowed[m] {
				filtered = append(filtered, m)
			}
		}
		methods = filtered
	}

	ur.supportedMethods = methods
	return methods
}
