package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	platformredis "domicile/internal/platform/redis"
	"domicile/internal/session/models"
	"domicile/pkg/platform/sentinel"
	"domicile/pkg/requestcontext"
)

const (
	sessionKeyPrefix = "session:"
	codeKeyPrefix    = "session:code:"
	tokenKeyPrefix   = "session:token:"
	guardKeyPrefix   = "session:guard:"

	// indexSlack keeps index keys alive slightly past the session so a
	// lookup never resolves to an already-evicted session.
	indexSlack = time.Minute
)

// RedisStore persists sessions as JSON documents with TTLs derived from the
// session expiry, plus index keys mapping authorization codes and access
// tokens back to session ids. The token-binding guard key is written with
// SET NX, which is the conditional primitive backing single-use codes.
type RedisStore struct {
	client *platformredis.Client
}

// NewRedis constructs a Redis-backed session store.
func NewRedis(client *platformredis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Create(ctx context.Context, session *models.Session) error {
	return s.write(ctx, session)
}

func (s *RedisStore) Get(ctx context.Context, id string) (*models.Session, error) {
	raw, err := s.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

func (s *RedisStore) Update(ctx context.Context, session *models.Session) error {
	if _, err := s.Get(ctx, session.ID); err != nil {
		return err
	}
	return s.write(ctx, session)
}

func (s *RedisStore) FindByAuthorizationCode(ctx context.Context, code string) (*models.Session, error) {
	return s.findByIndex(ctx, codeKeyPrefix+code)
}

func (s *RedisStore) FindByAccessToken(ctx context.Context, token string) (*models.Session, error) {
	return s.findByIndex(ctx, tokenKeyPrefix+token)
}

func (s *RedisStore) BindAccessToken(ctx context.Context, sessionID, token string) error {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	ttl := s.ttl(ctx, session) + indexSlack
	claimed, err := s.client.SetNX(ctx, guardKeyPrefix+sessionID, token, ttl).Result()
	if err != nil {
		return fmt.Errorf("claim token guard: %w", err)
	}
	if !claimed {
		return sentinel.ErrAlreadyUsed
	}

	session.AccessToken = token
	session.Status = models.StatusTokenIssued
	return s.write(ctx, session)
}

func (s *RedisStore) write(ctx context.Context, session *models.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	ttl := s.ttl(ctx, session)
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKeyPrefix+session.ID, raw, ttl)
	if session.AuthorizationCode != "" {
		pipe.Set(ctx, codeKeyPrefix+session.AuthorizationCode, session.ID, ttl+indexSlack)
	}
	if session.AccessToken != "" {
		pipe.Set(ctx, tokenKeyPrefix+session.AccessToken, session.ID, ttl+indexSlack)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

func (s *RedisStore) findByIndex(ctx context.Context, key string) (*models.Session, error) {
	id, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve session index: %w", err)
	}
	return s.Get(ctx, id)
}

// ttl is the remaining lifetime of the session record. Expired sessions get
// a short grace period so the engine can still observe and report expiry.
func (s *RedisStore) ttl(ctx context.Context, session *models.Session) time.Duration {
	remaining := session.ExpiryTime.Sub(requestcontext.Now(ctx))
	if remaining < time.Minute {
		remaining = time.Minute
	}
	return remaining
}
