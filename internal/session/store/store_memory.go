package store

import (
	"context"
	"sync"

	"domicile/internal/session/models"
	"domicile/pkg/platform/sentinel"
)

// MemoryStore keeps sessions in process memory with code and token indexes
// maintained alongside. Suitable for tests and standalone development;
// production deployments use RedisStore.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	byCode   map[string]string
	byToken  map[string]string
}

// NewMemory constructs an empty in-memory session store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*models.Session),
		byCode:   make(map[string]string),
		byToken:  make(map[string]string),
	}
}

func (s *MemoryStore) Create(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *session
	s.sessions[session.ID] = &copied
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot(id)
}

func (s *MemoryStore) Update(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; !ok {
		return sentinel.ErrNotFound
	}
	copied := *session
	s.sessions[session.ID] = &copied
	if session.AuthorizationCode != "" {
		s.byCode[session.AuthorizationCode] = session.ID
	}
	if session.AccessToken != "" {
		s.byToken[session.AccessToken] = session.ID
	}
	return nil
}

func (s *MemoryStore) FindByAuthorizationCode(_ context.Context, code string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byCode[code]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.snapshot(id)
}

func (s *MemoryStore) FindByAccessToken(_ context.Context, token string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byToken[token]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.snapshot(id)
}

func (s *MemoryStore) BindAccessToken(_ context.Context, sessionID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if session.AccessToken != "" {
		return sentinel.ErrAlreadyUsed
	}
	session.AccessToken = token
	session.Status = models.StatusTokenIssued
	s.byToken[token] = sessionID
	return nil
}

// snapshot returns a copy so callers never share the stored struct. Callers
// must hold at least a read lock.
func (s *MemoryStore) snapshot(id string) (*models.Session, error) {
	session, ok := s.sessions[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *session
	return &copied, nil
}
