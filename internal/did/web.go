package did

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tbd54566975/issuer-service/internal/util"
)

const (
	WebMethod Method = "web"

	WebPrefix = "did:web"

	wellKnownPath  = "/.well-known"
	didJSONFile    = "/did.json"
	encodedPortSep = "%3A"

	defaultWebResolverTimeout = 10 * time.Second
	maxDocumentSize           = 1 << 20
)

// WebDIDFromDomain derives the did:web identifier for a domain, which may carry a scheme, a port and a path.
// https://w3c-ccg.github.io/did-method-web/#create-register
func WebDIDFromDomain(domain string) (string, error) {
	trimmed := strings.TrimSpace(domain)
	if i := strings.Index(trimmed, "://"); i >= 0 {
		trimmed = trimmed[i+3:]
	}
	trimmed = strings.Trim(trimmed, "/")
	if trimmed == "" {
		return "", errors.Errorf("invalid domain: %q", domain)
	}
	if strings.ContainsAny(trimmed, "?# ") {
		return "", errors.Errorf("domain cannot contain a query, fragment or whitespace: %q", domain)
	}

	segments := strings.Split(trimmed, "/")
	host := strings.ToLower(segments[0])
	if host == "" || strings.HasPrefix(host, ":") {
		return "", errors.Errorf("invalid domain: %q", domain)
	}
	host = strings.ReplaceAll(host, ":", encodedPortSep)

	parts := []string{WebPrefix, host}
	for _, segment := range segments[1:] {
		if segment == "" {
			return "", errors.Errorf("domain path cannot contain empty segments: %q", domain)
		}
		parts = append(parts, url.PathEscape(segment))
	}
	return strings.Join(parts, ":"), nil
}

// WebDIDURL returns the https URL the DID Document of a did:web is served from.
func WebDIDURL(did string) (string, error) {
	if !strings.HasPrefix(did, WebPrefix+":") {
		return "", errors.Errorf("not a did:web: %s", did)
	}
	identifier := strings.TrimPrefix(did, WebPrefix+":")
	if i := strings.IndexAny(identifier, "#?"); i >= 0 {
		identifier = identifier[:i]
	}
	segments := strings.Split(identifier, ":")
	host, err := url.PathUnescape(segments[0])
	if err != nil || host == "" {
		return "", errors.Errorf("invalid did:web host: %s", did)
	}

	var sb strings.Builder
	sb.WriteString("https://")
	sb.WriteString(host)
	if len(segments) == 1 {
		sb.WriteString(wellKnownPath)
	} else {
		for _, segment := range segments[1:] {
			if segment == "" {
				return "", errors.Errorf("invalid did:web path: %s", did)
			}
			sb.WriteString("/")
			sb.WriteString(segment)
		}
	}
	sb.WriteString(didJSONFile)
	return sb.String(), nil
}

// WebResolver resolves did:web identifiers by fetching their DID Document over https.
type WebResolver struct {
	client *http.Client
}

var _ Resolver = (*WebResolver)(nil)

type WebResolverOption func(*WebResolver)

// WithHTTPClient replaces the traced default client.
func WithHTTPClient(client *http.Client) WebResolverOption {
	return func(r *WebResolver) {
		r.client = client
	}
}

func NewWebResolver(opts ...WebResolverOption) *WebResolver {
	r := &WebResolver{
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   defaultWebResolverTimeout,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *WebResolver) Resolve(ctx context.Context, did string) (*ResolutionResult, error) {
	docURL, err := WebDIDURL(did)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}
	req.Header.Set("Accept", "application/did+json, application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %s", docURL)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, errors.Wrap(err, "reading response")
	}
	if !util.Is2xxResponse(resp.StatusCode) {
		return nil, errors.Errorf("fetching %s: status %d", docURL, resp.StatusCode)
	}

	doc, err := ParseDocument(body)
	if err != nil {
		return nil, err
	}
	base := did
	if i := strings.IndexAny(base, "#?"); i >= 0 {
		base = base[:i]
	}
	if doc.ID != base {
		return nil, errors.Errorf("document id<%s> does not match did<%s>", doc.ID, base)
	}
	return &ResolutionResult{
		Document:           *doc,
		ResolutionMetadata: &ResolutionMetadata{ContentType: resp.Header.Get("Content-Type")},
	}, nil
}

func (r *WebResolver) Methods() []Method {
	return []Method{WebMethod}
}
