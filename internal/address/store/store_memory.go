package store

import (
	"context"
	"sync"

	"domicile/internal/address/models"
	"domicile/pkg/platform/sentinel"
)

// MemoryStore keeps address batches in process memory. Suitable for tests
// and standalone development; production deployments use PostgresStore.
type MemoryStore struct {
	mu      sync.RWMutex
	batches map[string][]models.CanonicalAddress
}

// NewMemory constructs an empty in-memory address store.
func NewMemory() *MemoryStore {
	return &MemoryStore{batches: make(map[string][]models.CanonicalAddress)}
}

func (s *MemoryStore) Save(_ context.Context, sessionID string, addresses []models.CanonicalAddress) error {
	copied := make([]models.CanonicalAddress, len(addresses))
	copy(copied, addresses)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[sessionID] = copied
	return nil
}

func (s *MemoryStore) Find(_ context.Context, sessionID string) ([]models.CanonicalAddress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	batch, ok := s.batches[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := make([]models.CanonicalAddress, len(batch))
	copy(out, batch)
	return out, nil
}
