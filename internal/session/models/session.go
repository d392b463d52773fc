// Package models defines the session aggregate for one credential-issuance
// attempt.
package models

import (
	"encoding/json"
	"time"

	addressmodels "domicile/internal/address/models"
)

// Status is the protocol position of a session. Status is the machine's
// state; the State field below is the relying party's anti-CSRF token and
// has nothing to do with it.
type Status string

const (
	StatusCreated            Status = "CREATED"
	StatusAddressesSubmitted Status = "ADDRESSES_SUBMITTED"
	StatusCodeIssued         Status = "CODE_ISSUED"
	StatusTokenIssued        Status = "TOKEN_ISSUED"
	StatusCredentialIssued   Status = "CREDENTIAL_ISSUED"
	StatusExpired            Status = "EXPIRED"
)

// SharedClaims is prior evidence forwarded by the relying party. It is
// stored verbatim to pre-populate the user journey and never validated.
type SharedClaims struct {
	Name      json.RawMessage                  `json:"name,omitempty"`
	BirthDate json.RawMessage                  `json:"birthDate,omitempty"`
	Addresses []addressmodels.CanonicalAddress `json:"address,omitempty"`
}

// Session is one credential-issuance attempt. The authorization code is kept
// after consumption as a historical fact; single use is enforced by the
// access-token binding, not by deletion.
type Session struct {
	ID                string        `json:"id"`
	ClientID          string        `json:"client_id"`
	State             string        `json:"state"`
	RedirectURI       string        `json:"redirect_uri"`
	Subject           string        `json:"subject"`
	Status            Status        `json:"status"`
	ExpiryTime        time.Time     `json:"expiry_time"`
	AuthorizationCode string        `json:"authorization_code,omitempty"`
	AccessToken       string        `json:"access_token,omitempty"`
	SharedClaims      *SharedClaims `json:"shared_claims,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
}

// Expired reports whether the session is past its expiry. Expiry is checked
// lazily on access; nothing sweeps sessions in the background.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiryTime)
}
