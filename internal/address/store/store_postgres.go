package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"domicile/internal/address/models"
	"domicile/pkg/platform/sentinel"
	"domicile/pkg/requestcontext"
)

// PostgresStore persists address batches in PostgreSQL. The batch is stored
// as a single jsonb document: it is written and read whole, never queried by
// field.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed address store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema is the DDL the store expects. Applied by migrations in deployed
// environments and executed directly by integration tests.
const Schema = `
CREATE TABLE IF NOT EXISTS session_addresses (
    session_id TEXT PRIMARY KEY,
    addresses  JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);`

func (s *PostgresStore) Save(ctx context.Context, sessionID string, addresses []models.CanonicalAddress) error {
	payload, err := json.Marshal(addresses)
	if err != nil {
		return fmt.Errorf("encode address batch: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO session_addresses (session_id, addresses, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id) DO UPDATE
		SET addresses = EXCLUDED.addresses, updated_at = EXCLUDED.updated_at`,
		sessionID, payload, requestcontext.Now(ctx))
	if err != nil {
		return fmt.Errorf("save address batch: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, sessionID string) ([]models.CanonicalAddress, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT addresses FROM session_addresses WHERE session_id = $1`, sessionID).
		Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find address batch: %w", err)
	}

	var addresses []models.CanonicalAddress
	if err := json.Unmarshal(payload, &addresses); err != nil {
		return nil, fmt.Errorf("decode address batch: %w", err)
	}
	return addresses, nil
}
