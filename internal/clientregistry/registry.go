// Package clientregistry holds per-relying-party verification policy. The
// registry is an explicit read-only object handed to the session engine and
// crypto boundary at construction, never a process-wide singleton, so tests
// can substitute arbitrary policies per case.
package clientregistry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	dErrors "domicile/pkg/domain-errors"
)

// Policy is the verification contract for one relying party.
type Policy struct {
	ClientID string `json:"client_id"`
	// Algorithm is the exact JWS algorithm the client signs session
	// assertions with: RS256, RS384, ES256 or ES384.
	Algorithm string `json:"authentication_alg"`
	// SigningPublicKeyBase64 is base64 of either an X.509 certificate (DER)
	// for RSA clients or a JWK JSON document for EC clients.
	SigningPublicKeyBase64 string `json:"public_signing_key_base64"`
	// Issuer is the exact iss value the client's assertions must carry.
	Issuer string `json:"issuer"`
	// Audience is the value this deployment expects inside aud.
	Audience string `json:"audience"`
	// RedirectURI is the single registered redirect URI; compared
	// byte-for-byte against the assertion's redirect_uri claim.
	RedirectURI string `json:"redirect_uri"`
}

// Registry resolves the policy for a client id.
type Registry interface {
	Policy(ctx context.Context, clientID string) (*Policy, error)
}

// Static is an immutable in-memory registry.
type Static struct {
	policies map[string]Policy
}

// NewStatic builds a registry from a fixed policy list.
func NewStatic(policies []Policy) *Static {
	byID := make(map[string]Policy, len(policies))
	for _, p := range policies {
		byID[p.ClientID] = p
	}
	return &Static{policies: byID}
}

// LoadFile reads a JSON array of policies from disk.
func LoadFile(path string) (*Static, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read client policy file: %w", err)
	}
	var policies []Policy
	if err := json.Unmarshal(raw, &policies); err != nil {
		return nil, fmt.Errorf("parse client policy file: %w", err)
	}
	return NewStatic(policies), nil
}

// Policy returns the policy for clientID. An unknown client is a bad request,
// with the same message shape callers already surface to relying parties.
func (s *Static) Policy(_ context.Context, clientID string) (*Policy, error) {
	p, ok := s.policies[clientID]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "no configuration for client id '%s'", clientID)
	}
	return &p, nil
}
