// Package token implements the OAuth2 authorization-code exchange and the
// bearer tokens it mints.
package token

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	sessionmodels "domicile/internal/session/models"
	dErrors "domicile/pkg/domain-errors"
	"domicile/pkg/requestcontext"
)

// Claims are the bearer-token claims. The session id is the only lookup key
// the credential endpoint needs; everything else is standard.
type Claims struct {
	SessionID string `json:"session_id"`
	ClientID  string `json:"client_id"`
	jwt.RegisteredClaims
}

// Minter creates and validates HS256 bearer tokens.
type Minter struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
}

// NewMinter constructs a token minter. ttl is the access-token lifetime.
func NewMinter(signingKey, issuer string, ttl time.Duration) *Minter {
	return &Minter{signingKey: []byte(signingKey), issuer: issuer, ttl: ttl}
}

// TTL is the configured access-token lifetime.
func (m *Minter) TTL() time.Duration { return m.ttl }

// Mint signs a bearer token bound to the session.
func (m *Minter) Mint(ctx context.Context, session *sessionmodels.Session) (string, error) {
	now := requestcontext.Now(ctx)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		SessionID: session.ID,
		ClientID:  session.ClientID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.issuer,
			Subject:   session.Subject,
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(m.signingKey)
}

// Validate parses and verifies a bearer token.
func (m *Minter) Validate(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return m.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "access token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid access token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid access token")
	}
	return claims, nil
}
