package did

import (
	"context"
	"net/http"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/h2non/gock.v1"

	"github.com/tbd54566975/issuer-service/internal/keyaccess"
)

func TestWebDIDFromDomain(t *testing.T) {
	tests := []struct {
		domain string
		want   string
	}{
		{domain: "example.com", want: "did:web:example.com"},
		{domain: "https://Example.com/", want: "did:web:example.com"},
		{domain: "localhost:8443", want: "did:web:localhost%3A8443"},
		{domain: "https://example.com/issuers/acme", want: "did:web:example.com:issuers:acme"},
		{domain: "http://localhost:3000/u/1", want: "did:web:localhost%3A3000:u:1"},
	}
	for _, test := range tests {
		t.Run(test.domain, func(tt *testing.T) {
			got, err := WebDIDFromDomain(test.domain)
			assert.NoError(tt, err)
			assert.Equal(tt, test.want, got)
		})
	}

	for _, bad := range []string{"", "https://", "/", "example.com/a//b", "example.com?x=1", ":8080"} {
		_, err := WebDIDFromDomain(bad)
		assert.Error(t, err, bad)
	}
}

func TestWebDIDURL(t *testing.T) {
	tests := []struct {
		did  string
		want string
	}{
		{did: "did:web:example.com", want: "https://example.com/.well-known/did.json"},
		{did: "did:web:localhost%3A8443", want: "https://localhost:8443/.well-known/did.json"},
		{did: "did:web:example.com:issuers:acme", want: "https://example.com/issuers/acme/did.json"},
		{did: "did:web:example.com#key-1", want: "https://example.com/.well-known/did.json"},
	}
	for _, test := range tests {
		got, err := WebDIDURL(test.did)
		assert.NoError(t, err)
		assert.Equal(t, test.want, got)
	}

	_, err := WebDIDURL("did:key:z6Mk")
	assert.ErrorContains(t, err, "not a did:web")
}

func TestWebResolver(t *testing.T) {
	client := &http.Client{}
	resolver := NewWebResolver(WithHTTPClient(client))
	assert.Equal(t, []Method{WebMethod}, resolver.Methods())

	holder, err := CreateIdentifier(KeyMethod, "", keyaccess.X25519)
	require.NoError(t, err)
	doc := Document{
		Context: Contexts{KnownDIDContext},
		ID:      "did:web:holder.example.com",
		VerificationMethod: []VerificationMethod{{
			ID:           "did:web:holder.example.com#key-1",
			Type:         JSONWebKey2020Type,
			Controller:   "did:web:holder.example.com",
			PublicKeyJWK: &holder.PublicKeyJWK,
		}},
		KeyAgreement: []VerificationRelationship{NewReference("did:web:holder.example.com#key-1")},
	}
	docBytes, err := json.Marshal(doc)
	require.NoError(t, err)

	t.Run("resolves a hosted document", func(tt *testing.T) {
		defer gock.Off()
		gock.InterceptClient(client)
		defer gock.RestoreClient(client)
		gock.New("https://holder.example.com").
			Get("/.well-known/did.json").
			Reply(200).
			SetHeader("Content-Type", "application/did+json").
			BodyString(string(docBytes))

		resolved, err := resolver.Resolve(context.Background(), "did:web:holder.example.com")
		require.NoError(tt, err)
		assert.Equal(tt, doc.ID, resolved.Document.ID)
		require.Len(tt, resolved.Document.VerificationMethod, 1)
		assert.Equal(tt, holder.PublicKeyJWK, *resolved.Document.VerificationMethod[0].PublicKeyJWK)
		assert.Equal(tt, "application/did+json", resolved.ResolutionMetadata.ContentType)
	})

	t.Run("non 2xx is a failure", func(tt *testing.T) {
		defer gock.Off()
		gock.InterceptClient(client)
		defer gock.RestoreClient(client)
		gock.New("https://holder.example.com").
			Get("/.well-known/did.json").
			Reply(404)

		_, err := resolver.Resolve(context.Background(), "did:web:holder.example.com")
		assert.ErrorContains(tt, err, "status 404")
	})

	t.Run("unparseable document is a failure", func(tt *testing.T) {
		defer gock.Off()
		gock.InterceptClient(client)
		defer gock.RestoreClient(client)
		gock.New("https://holder.example.com").
			Get("/.well-known/did.json").
			Reply(200).
			BodyString(`{"id": 42}`)

		_, err := resolver.Resolve(context.Background(), "did:web:holder.example.com")
		assert.ErrorContains(tt, err, "parsing did document")
	})

	t.Run("document for another did is a failure", func(tt *testing.T) {
		defer gock.Off()
		gock.InterceptClient(client)
		defer gock.RestoreClient(client)
		gock.New("https://other.example.com").
			Get("/.well-known/did.json").
			Reply(200).
			BodyString(string(docBytes))

		_, err := resolver.Resolve(context.Background(), "did:web:other.example.com")
		assert.ErrorContains(tt, err, "does not match")
	})
}
