package issuer

import (
	"context"

	"github.com/pkg/errors"

	"github.com/tbd54566975/issuer-service/internal/did"
	"github.com/tbd54566975/issuer-service/internal/util"
	"github.com/tbd54566975/issuer-service/pkg/service/framework"
)

// PublishDIDDocument builds the DID Document served at the issuer's did:web location. It only carries the public key.
func PublishDIDDocument(issuer IssuerIdentity) did.Document {
	vmID := issuer.VerificationMethodID()
	publicKeyJWK := issuer.PublicKeyJWK
	publicKeyJWK.KID = vmID
	return did.Document{
		Context: did.Contexts{did.KnownDIDContext, did.JWS2020Context},
		ID:      issuer.DID,
		VerificationMethod: []did.VerificationMethod{{
			ID:           vmID,
			Type:         did.JSONWebKey2020Type,
			Controller:   issuer.DID,
			PublicKeyJWK: &publicKeyJWK,
		}},
		Authentication:  []did.VerificationRelationship{did.NewReference(vmID)},
		AssertionMethod: []did.VerificationRelationship{did.NewReference(vmID)},
	}
}

// GetDIDDocument returns the DID Document of the issuer hosted at domain.
func (s *Service) GetDIDDocument(ctx context.Context, domain string) (*did.Document, error) {
	issuer, err := s.GetIssuerByDomain(ctx, domain)
	if err != nil {
		return nil, err
	}
	doc := PublishDIDDocument(*issuer)
	return &doc, nil
}

// Resolve serves the DID Documents of issuers hosted by this service without a network round trip.
func (s *Service) Resolve(ctx context.Context, id string) (*did.ResolutionResult, error) {
	if method, err := did.GetMethod(id); err != nil || method != did.WebMethod {
		return nil, errors.Errorf("not a did:web: %s", util.SanitizeLog(id))
	}
	issuer, err := s.storage.GetIssuerByDID(ctx, id)
	if err != nil {
		return nil, framework.WithKind(framework.ErrPersistenceFailure, err)
	}
	if issuer == nil {
		return nil, framework.NewErrorf(framework.ErrNotFound, "no hosted issuer for <%s>", util.SanitizeLog(id))
	}
	return &did.ResolutionResult{Document: PublishDIDDocument(*issuer)}, nil
}

func (s *Service) Methods() []did.Method {
	return []did.Method{did.WebMethod}
}
