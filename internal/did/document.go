package did

import (
	"strings"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/tbd54566975/issuer-service/internal/keyaccess"
)

const (
	KnownDIDContext        = "https://www.w3.org/ns/did/v1"
	JWS2020Context         = "https://w3id.org/security/suites/jws-2020/v1"
	X25519KeyAgreement2020 = "https://w3id.org/security/suites/x25519-2020/v1"

	JSONWebKey2020Type         = "JsonWebKey2020"
	X25519KeyAgreementKey2020  = "X25519KeyAgreementKey2020"
	Ed25519VerificationKey2020 = "Ed25519VerificationKey2020"
)

// Document is a DID Document https://www.w3.org/TR/did-core/#core-properties
type Document struct {
	Context            Contexts                   `json:"@context,omitempty"`
	ID                 string                     `json:"id" validate:"required"`
	Controller         string                     `json:"controller,omitempty"`
	AlsoKnownAs        []string                   `json:"alsoKnownAs,omitempty"`
	VerificationMethod []VerificationMethod       `json:"verificationMethod,omitempty"`
	Authentication     []VerificationRelationship `json:"authentication,omitempty"`
	AssertionMethod    []VerificationRelationship `json:"assertionMethod,omitempty"`
	KeyAgreement       []VerificationRelationship `json:"keyAgreement,omitempty"`
	Service            []Service                  `json:"service,omitempty"`
}

// VerificationMethod carries a public key as a JWK or as a multibase value.
type VerificationMethod struct {
	ID                 string                  `json:"id" validate:"required"`
	Type               string                  `json:"type" validate:"required"`
	Controller         string                  `json:"controller" validate:"required"`
	PublicKeyJWK       *keyaccess.PublicKeyJWK `json:"publicKeyJwk,omitempty"`
	PublicKeyMultibase string                  `json:"publicKeyMultibase,omitempty"`
}

type Service struct {
	ID              string `json:"id" validate:"required"`
	Type            string `json:"type" validate:"required"`
	ServiceEndpoint any    `json:"serviceEndpoint" validate:"required"`
}

// Contexts accepts either a single JSON-LD context string or an array of them.
type Contexts []string

func (c *Contexts) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*c = Contexts{single}
		return nil
	}
	var many []any
	if err := json.Unmarshal(data, &many); err != nil {
		return errors.Wrap(err, "@context must be a string or an array")
	}
	result := make(Contexts, 0, len(many))
	for _, ctx := range many {
		// embedded context objects carry no information needed here
		if s, ok := ctx.(string); ok {
			result = append(result, s)
		}
	}
	*c = result
	return nil
}

// VerificationRelationship is either a reference to a verification method by id, or an embedded method.
type VerificationRelationship struct {
	Reference string
	Embedded  *VerificationMethod
}

// ID returns the id of the referenced or embedded method.
func (v VerificationRelationship) ID() string {
	if v.Embedded != nil {
		return v.Embedded.ID
	}
	return v.Reference
}

func (v VerificationRelationship) MarshalJSON() ([]byte, error) {
	if v.Embedded != nil {
		return json.Marshal(v.Embedded)
	}
	return json.Marshal(v.Reference)
}

func (v *VerificationRelationship) UnmarshalJSON(data []byte) error {
	var reference string
	if err := json.Unmarshal(data, &reference); err == nil {
		v.Reference = reference
		return nil
	}
	var embedded VerificationMethod
	if err := json.Unmarshal(data, &embedded); err != nil {
		return errors.Wrap(err, "verification relationship must be a string or a verification method")
	}
	v.Embedded = &embedded
	return nil
}

// NewReference returns a relationship referencing a method by id.
func NewReference(id string) VerificationRelationship {
	return VerificationRelationship{Reference: id}
}

// JWK returns the method's public key as a JWK, decoding publicKeyMultibase when no JWK is present.
func (vm VerificationMethod) JWK() (*keyaccess.PublicKeyJWK, error) {
	if vm.PublicKeyJWK != nil {
		return vm.PublicKeyJWK, nil
	}
	if vm.PublicKeyMultibase != "" {
		pubKey, _, err := decodeMultibaseKey(vm.PublicKeyMultibase)
		if err != nil {
			return nil, errors.Wrapf(keyaccess.ErrMalformedKey, "decoding publicKeyMultibase of <%s>: %s", vm.ID, err.Error())
		}
		return keyaccess.PublicKeyToJWK("", pubKey)
	}
	return nil, errors.Errorf("verification method<%s> has no public key", vm.ID)
}

// Curve returns the curve name of the method's key, or an empty string when it cannot be determined.
func (vm VerificationMethod) Curve() string {
	if vm.PublicKeyJWK != nil {
		return vm.PublicKeyJWK.CRV
	}
	if vm.PublicKeyMultibase != "" {
		if _, kt, err := decodeMultibaseKey(vm.PublicKeyMultibase); err == nil {
			return string(kt)
		}
	}
	return ""
}

// ParseDocument decodes data into a Document, rejecting documents without an id.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "parsing did document")
	}
	if doc.ID == "" {
		return nil, errors.New("did document is missing an id")
	}
	return &doc, nil
}

// IsEmpty reports whether the document carries no id.
func (d *Document) IsEmpty() bool {
	return d == nil || d.ID == ""
}

// FullVerificationMethodID expands a relative id (#key-1) against the document's DID.
func FullVerificationMethodID(did, id string) string {
	if strings.HasPrefix(id, "#") {
		return did + id
	}
	return id
}
