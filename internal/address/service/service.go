package service

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"

	"domicile/internal/address/models"
	"domicile/internal/address/store"
	"domicile/internal/audit"
	"domicile/internal/platform/metrics"
	sessionmodels "domicile/internal/session/models"
	sessionservice "domicile/internal/session/service"
	dErrors "domicile/pkg/domain-errors"
)

// Service orchestrates address submission against a live session.
type Service struct {
	sessions *sessionservice.Engine
	store    store.Store
	audit    audit.Emitter
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New wires the address submission service.
func New(
	sessions *sessionservice.Engine,
	addresses store.Store,
	emitter audit.Emitter,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		sessions: sessions,
		store:    addresses,
		audit:    emitter,
		metrics:  m,
		logger:   logger,
	}
}

// Submit resolves the batch's validity intervals, persists it, and advances
// the session. Resubmission is allowed until an authorization code has been
// issued; the last accepted batch wins.
func (s *Service) Submit(ctx context.Context, sessionID string, addresses []models.CanonicalAddress) error {
	ctx, span := otel.Tracer("domicile/address").Start(ctx, "address.submit")
	defer span.End()

	if err := s.submit(ctx, sessionID, addresses); err != nil {
		s.metrics.AddressesSubmitted.WithLabelValues(metrics.OutcomeError).Inc()
		return err
	}
	s.metrics.AddressesSubmitted.WithLabelValues(metrics.OutcomeOK).Inc()
	return nil
}

func (s *Service) submit(ctx context.Context, sessionID string, addresses []models.CanonicalAddress) error {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status != sessionmodels.StatusCreated &&
		session.Status != sessionmodels.StatusAddressesSubmitted {
		return dErrors.Newf(dErrors.CodeForbidden,
			"addresses cannot be submitted for a session in status %s", session.Status).
			WithReason(sessionservice.ReasonInvalidState)
	}

	resolved, err := ResolveValidity(addresses)
	if err != nil {
		return err
	}
	if err := s.store.Save(ctx, sessionID, resolved); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save addresses failed")
	}
	if err := s.sessions.MarkAddressesSubmitted(ctx, session); err != nil {
		return err
	}

	s.audit.Emit(ctx, audit.EventRequestSent, session.ClientID)
	s.logger.InfoContext(ctx, "addresses submitted",
		"session_id", sessionID, "count", len(resolved))
	return nil
}

// Find returns the resolved batch saved for a session.
func (s *Service) Find(ctx context.Context, sessionID string) ([]models.CanonicalAddress, error) {
	return s.store.Find(ctx, sessionID)
}
