// Package cryptoboundary is the only place JOSE material is decrypted,
// verified or signed. It wraps the key oracle so standard JWE/JWS semantics
// are all the rest of the system sees.
package cryptoboundary

import (
	"encoding/json"

	"github.com/go-jose/go-jose/v4"

	"domicile/internal/keyoracle"
)

// Failure kinds carried on domain errors so callers and tests can branch on
// the precise way a cryptographic operation failed.
const (
	ReasonDecryptionFailure   = "decryption_failure"
	ReasonAlgorithmMismatch   = "algorithm_mismatch"
	ReasonSignatureInvalid    = "signature_invalid"
	ReasonClientConfiguration = "client_configuration_error"
	ReasonClaimsMissing       = "claims_missing"
	ReasonClaimsInvalid       = "claims_invalid"
	ReasonCryptographic       = "cryptographic_failure"
)

// signatureAlgorithms the session-verification path accepts. The VC signing
// path is pinned to ES256 separately.
var signatureAlgorithms = []jose.SignatureAlgorithm{
	jose.RS256, jose.RS384, jose.ES256, jose.ES384,
}

// Boundary wraps the key oracle with JOSE semantics.
type Boundary struct {
	oracle          keyoracle.Oracle
	decryptionKeyID string
}

// New builds a Boundary. decryptionKeyID names the oracle key that unwraps
// inbound session assertions.
func New(oracle keyoracle.Oracle, decryptionKeyID string) *Boundary {
	return &Boundary{oracle: oracle, decryptionKeyID: decryptionKeyID}
}

// Audience is the aud claim, which may arrive as a string or an array.
type Audience []string

func (a *Audience) UnmarshalJSON(b []byte) error {
	var single string
	if err := json.Unmarshal(b, &single); err == nil {
		*a = Audience{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*a = Audience(many)
	return nil
}

// Contains reports whether the audience includes value.
func (a Audience) Contains(value string) bool {
	for _, v := range a {
		if v == value {
			return true
		}
	}
	return false
}

// AssertionClaims is the verified claim set of an inbound session assertion.
// SharedClaims is passed through opaque: it pre-populates person identity
// context downstream and is not validated here.
type AssertionClaims struct {
	Issuer       string          `json:"iss"`
	Subject      string          `json:"sub"`
	Audience     Audience        `json:"aud"`
	Expiry       *int64          `json:"exp"`
	NotBefore    *int64          `json:"nbf"`
	ClientID     string          `json:"client_id"`
	RedirectURI  string          `json:"redirect_uri"`
	ResponseType string          `json:"response_type"`
	State        string          `json:"state"`
	SharedClaims json.RawMessage `json:"shared_claims,omitempty"`
}
