// Package service implements the session engine: session creation from an
// encrypted relying-party assertion and authorization-code issuance.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"domicile/internal/audit"
	"domicile/internal/clientregistry"
	"domicile/internal/cryptoboundary"
	"domicile/internal/platform/metrics"
	"domicile/internal/session/models"
	"domicile/internal/session/store"
	dErrors "domicile/pkg/domain-errors"
	"domicile/pkg/platform/sentinel"
	"domicile/pkg/requestcontext"
)

// Failure kinds surfaced by the engine.
const (
	ReasonRedirectURIMismatch = "redirect_uri_mismatch"
	ReasonSessionExpired      = "session_expired"
	ReasonInvalidState        = "invalid_session_state"
)

// Engine owns the session lifecycle. All mutation of a session's protocol
// position goes through here or through the token exchange.
type Engine struct {
	boundary *cryptoboundary.Boundary
	registry clientregistry.Registry
	store    store.Store
	audit    audit.Emitter
	metrics  *metrics.Metrics
	logger   *slog.Logger
	ttl      time.Duration
}

// NewEngine wires the session engine.
func NewEngine(
	boundary *cryptoboundary.Boundary,
	registry clientregistry.Registry,
	sessions store.Store,
	emitter audit.Emitter,
	m *metrics.Metrics,
	logger *slog.Logger,
	ttl time.Duration,
) *Engine {
	return &Engine{
		boundary: boundary,
		registry: registry,
		store:    sessions,
		audit:    emitter,
		metrics:  m,
		logger:   logger,
		ttl:      ttl,
	}
}

// Create decrypts and verifies the relying party's session assertion and,
// when the redirect URI matches the client's registered one byte for byte,
// persists a new session.
func (e *Engine) Create(ctx context.Context, clientID, serializedJWE string) (*models.Session, error) {
	ctx, span := otel.Tracer("domicile/session").Start(ctx, "session.create")
	defer span.End()

	session, err := e.create(ctx, clientID, serializedJWE)
	if err != nil {
		e.metrics.SessionsCreated.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, err
	}
	e.metrics.SessionsCreated.WithLabelValues(metrics.OutcomeOK).Inc()
	e.audit.Emit(ctx, audit.EventStart, clientID)
	e.logger.InfoContext(ctx, "session created",
		"session_id", session.ID, "client_id", clientID)
	return session, nil
}

func (e *Engine) create(ctx context.Context, clientID, serializedJWE string) (*models.Session, error) {
	if clientID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "client_id is required")
	}
	if serializedJWE == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}

	policy, err := e.registry.Policy(ctx, clientID)
	if err != nil {
		return nil, err
	}

	signedAssertion, err := e.boundary.DecryptAssertion(ctx, serializedJWE)
	if err != nil {
		return nil, err
	}
	claims, err := e.boundary.VerifySignedAssertion(ctx, signedAssertion, policy)
	if err != nil {
		return nil, err
	}

	if claims.RedirectURI != policy.RedirectURI {
		return nil, dErrors.Newf(dErrors.CodeBadRequest,
			"redirect uri %s does not match configuration uri %s",
			claims.RedirectURI, policy.RedirectURI).WithReason(ReasonRedirectURIMismatch)
	}

	shared, err := parseSharedClaims(claims.SharedClaims)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	session := &models.Session{
		ID:           uuid.NewString(),
		ClientID:     clientID,
		State:        claims.State,
		RedirectURI:  claims.RedirectURI,
		Subject:      claims.Subject,
		Status:       models.StatusCreated,
		ExpiryTime:   now.Add(e.ttl),
		SharedClaims: shared,
		CreatedAt:    now,
	}
	if err := e.store.Create(ctx, session); err != nil {
		return nil, storeError(err, "create session")
	}
	return session, nil
}

func parseSharedClaims(raw json.RawMessage) (*models.SharedClaims, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var shared models.SharedClaims
	if err := json.Unmarshal(raw, &shared); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "shared_claims could not be parsed")
	}
	return &shared, nil
}

// Get loads a session and enforces expiry lazily. An expired session is
// marked EXPIRED on the way out; the write is best-effort since the read
// already decides the outcome.
func (e *Engine) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := e.store.Get(ctx, sessionID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "session not found")
	}
	if err != nil {
		return nil, storeError(err, "get session")
	}

	if session.Status != models.StatusExpired && session.Expired(requestcontext.Now(ctx)) {
		session.Status = models.StatusExpired
		if err := e.store.Update(ctx, session); err != nil {
			e.logger.WarnContext(ctx, "could not persist session expiry",
				"session_id", session.ID, "error", err)
		}
	}
	if session.Status == models.StatusExpired {
		return nil, dErrors.NewWithReason(dErrors.CodeForbidden, ReasonSessionExpired,
			"session has expired")
	}
	return session, nil
}

// MarkAddressesSubmitted advances a session after a successful address
// submission.
func (e *Engine) MarkAddressesSubmitted(ctx context.Context, session *models.Session) error {
	session.Status = models.StatusAddressesSubmitted
	if err := e.store.Update(ctx, session); err != nil {
		return storeError(err, "update session")
	}
	return nil
}

// IssueAuthorizationCode mints a fresh code for a session whose addresses
// have been submitted. A second call replaces the stored code; last write
// wins, single use is enforced at exchange time.
func (e *Engine) IssueAuthorizationCode(ctx context.Context, sessionID string) (*models.Session, error) {
	ctx, span := otel.Tracer("domicile/session").Start(ctx, "session.issue_code")
	defer span.End()

	session, err := e.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.StatusAddressesSubmitted && session.Status != models.StatusCodeIssued {
		return nil, dErrors.Newf(dErrors.CodeForbidden,
			"authorization code cannot be issued for a session in status %s", session.Status).
			WithReason(ReasonInvalidState)
	}

	session.AuthorizationCode = uuid.NewString()
	session.Status = models.StatusCodeIssued
	if err := e.store.Update(ctx, session); err != nil {
		return nil, storeError(err, "update session")
	}
	e.logger.InfoContext(ctx, "authorization code issued", "session_id", session.ID)
	return session, nil
}

func storeError(err error, op string) error {
	if errors.Is(err, sentinel.ErrUnavailable) {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "session store unavailable")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, op+" failed")
}
