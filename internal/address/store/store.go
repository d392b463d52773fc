// Package store persists the resolved address batch for a session.
package store

import (
	"context"

	"domicile/internal/address/models"
)

// Store is keyed by session id. Save replaces any previously saved batch;
// resubmission before code issuance is allowed and last write wins.
type Store interface {
	Save(ctx context.Context, sessionID string, addresses []models.CanonicalAddress) error
	// Find returns the saved batch, or sentinel.ErrNotFound when the
	// session never submitted addresses.
	Find(ctx context.Context, sessionID string) ([]models.CanonicalAddress, error)
}
