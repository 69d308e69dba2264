package did

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Method is a DID method name, the segment after "did:".
type Method string

// Resolver resolves a DID to its DID Document.
type Resolver interface {
	Resolve(ctx context.Context, did string) (*ResolutionResult, error)
	Methods() []Method
}

// ResolutionResult is the output of DID resolution https://w3c-ccg.github.io/did-resolution/#did-resolution-result
type ResolutionResult struct {
	Context            string              `json:"@context,omitempty"`
	Document           Document            `json:"didDocument"`
	DocumentMetadata   *DocumentMetadata   `json:"didDocumentMetadata,omitempty"`
	ResolutionMetadata *ResolutionMetadata `json:"didResolutionMetadata,omitempty"`
}

type DocumentMetadata struct {
	Created     string `json:"created,omitempty"`
	Updated     string `json:"updated,omitempty"`
	Deactivated bool   `json:"deactivated,omitempty"`
}

type ResolutionMetadata struct {
	ContentType string `json:"contentType,omitempty"`
	Error       string `json:"error,omitempty"`
}

// GetMethod returns the method of a DID.
func GetMethod(did string) (Method, error) {
	parts := strings.SplitN(did, ":", 3)
	if len(parts) != 3 || parts[0] != "did" || parts[1] == "" || parts[2] == "" {
		return "", errors.Errorf("invalid did: %s", did)
	}
	return Method(parts[1]), nil
}

// MultiMethodResolver dispatches resolution to a resolver per method.
type MultiMethodResolver struct {
	resolvers map[Method]Resolver
	methods   []Method
}

var _ Resolver = (*MultiMethodResolver)(nil)

// NewResolver builds a resolver from method resolvers. Later resolvers do not override earlier ones for a method.
func NewResolver(resolvers ...Resolver) (*MultiMethodResolver, error) {
	if len(resolvers) == 0 {
		return nil, errors.New("no resolvers provided")
	}
	r := MultiMethodResolver{resolvers: make(map[Method]Resolver)}
	for _, resolver := range resolvers {
		for _, method := range resolver.Methods() {
			if _, ok := r.resolvers[method]; ok {
				continue
			}
			r.resolvers[method] = resolver
			r.methods = append(r.methods, method)
		}
	}
	return &r, nil
}

func (r *MultiMethodResolver) Resolve(ctx context.Context, did string) (*ResolutionResult, error) {
	method, err := GetMethod(did)
	if err != nil {
		return nil, err
	}
	resolver, ok := r.resolvers[method]
	if !ok {
		return nil, errors.Errorf("unsupported method: %s", method)
	}
	return resolver.Resolve(ctx, did)
}

func (r *MultiMethodResolver) Methods() []Method {
	return r.methods
}

// BuildMultiMethodResolver builds a multi method DID resolver from a list of methods to support resolution for
func BuildMultiMethodResolver(methods []string, opts ...WebResolverOption) (*MultiMethodResolver, error) {
	if len(methods) == 0 {
		return nil, errors.New("no methods provided")
	}
	resolvers := make([]Resolver, 0, len(methods))
	for _, method := range methods {
		resolver, err := getKnownResolver(method, opts...)
		if err != nil {
			// not all methods are supported locally
			logrus.WithError(err).Errorf("failed to create resolver for method %s", method)
			continue
		}
		resolvers = append(resolvers, resolver)
	}
	if len(resolvers) == 0 {
		return nil, errors.New("no resolvers created")
	}
	return NewResolver(resolvers...)
}

func getKnownResolver(method string, opts ...WebResolverOption) (Resolver, error) {
	switch Method(method) {
	case KeyMethod:
		return new(KeyResolver), nil
	case WebMethod:
		return NewWebResolver(opts...), nil
	}
	return nil, fmt.Errorf("unsupported method: %s", method)
}
