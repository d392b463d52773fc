// Package store persists sessions and the secondary indexes the token
// exchange depends on.
package store

import (
	"context"

	"domicile/internal/session/models"
)

//go:generate mockgen -source=store.go -destination=mocks/mocks.go -package=mocks Store

// Store is the session persistence boundary. Implementations return
// sentinel errors; the engine translates them into domain errors.
//
// BindAccessToken is the one conditional write: it must set the token only
// if the session has none, returning sentinel.ErrAlreadyUsed otherwise.
// Plain Update offers no such guard and must not be used to bind tokens.
type Store interface {
	Create(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Update(ctx context.Context, session *models.Session) error
	FindByAuthorizationCode(ctx context.Context, code string) (*models.Session, error)
	FindByAccessToken(ctx context.Context, token string) (*models.Session, error)
	BindAccessToken(ctx context.Context, sessionID, token string) error
}
