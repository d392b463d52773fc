// Package credential assembles and signs verifiable credentials.
//
// Downstream verifiers compare credentials on the wire, so field order is
// part of the contract. encoding/json emits struct fields in declaration
// order; the structs below are therefore the canonical serializer and must
// not be reordered.
package credential

import (
	"encoding/json"

	addressmodels "domicile/internal/address/models"
)

// JSON-LD contexts and types fixed for every issued credential.
var (
	credentialContexts = []string{
		"https://www.w3.org/2018/credentials/v1",
		"https://vocab.london.cloudapps.digital/contexts/identity-v1.jsonld",
	}
	credentialTypes = []string{"VerifiableCredential", "AddressCredential"}
)

// Payload is the signed JWT payload: iss, sub, nbf, exp, vc, jti.
type Payload struct {
	Issuer    string `json:"iss"`
	Subject   string `json:"sub"`
	NotBefore int64  `json:"nbf"`
	Expiry    int64  `json:"exp"`
	VC        VC     `json:"vc"`
	JWTID     string `json:"jti,omitempty"`
}

// VC is the W3C credential envelope.
type VC struct {
	Type              []string          `json:"type"`
	Context           []string          `json:"@context"`
	CredentialSubject CredentialSubject `json:"credentialSubject"`
}

// CredentialSubject carries the attested identity: name, birthDate, address.
// Name and birth date pass through from the relying party's shared claims
// unmodified.
type CredentialSubject struct {
	Name      json.RawMessage                  `json:"name,omitempty"`
	BirthDate json.RawMessage                  `json:"birthDate,omitempty"`
	Address   []addressmodels.CanonicalAddress `json:"address,omitempty"`
}
