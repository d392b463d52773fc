package credential

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	addressstore "domicile/internal/address/store"
	"domicile/internal/audit"
	"domicile/internal/cryptoboundary"
	"domicile/internal/platform/metrics"
	sessionmodels "domicile/internal/session/models"
	sessionstore "domicile/internal/session/store"
	"domicile/internal/token"
	dErrors "domicile/pkg/domain-errors"
	"domicile/pkg/platform/sentinel"
	"domicile/pkg/requestcontext"
)

// Issuer builds and signs verifiable credentials for sessions that have
// completed the token exchange.
type Issuer struct {
	boundary  *cryptoboundary.Boundary
	sessions  sessionstore.Store
	addresses addressstore.Store
	minter    *token.Minter
	audit     audit.Emitter
	metrics   *metrics.Metrics
	logger    *slog.Logger

	issuer       string
	ttl          time.Duration
	signingKeyID string
}

// NewIssuer wires the credential issuer. issuer is the iss claim value; ttl
// is the credential lifetime; signingKeyID names the oracle's ES256 key.
func NewIssuer(
	boundary *cryptoboundary.Boundary,
	sessions sessionstore.Store,
	addresses addressstore.Store,
	minter *token.Minter,
	emitter audit.Emitter,
	m *metrics.Metrics,
	logger *slog.Logger,
	issuer string,
	ttl time.Duration,
	signingKeyID string,
) *Issuer {
	return &Issuer{
		boundary:     boundary,
		sessions:     sessions,
		addresses:    addresses,
		minter:       minter,
		audit:        emitter,
		metrics:      m,
		logger:       logger,
		issuer:       issuer,
		ttl:          ttl,
		signingKeyID: signingKeyID,
	}
}

// Issue authenticates the bearer token, assembles the credential for its
// session, and returns the compact JWS.
func (i *Issuer) Issue(ctx context.Context, bearerToken string) (string, error) {
	ctx, span := otel.Tracer("domicile/credential").Start(ctx, "credential.issue")
	defer span.End()

	signed, clientID, err := i.issue(ctx, bearerToken)
	if err != nil {
		i.metrics.CredentialsIssued.WithLabelValues(metrics.OutcomeError).Inc()
		return "", err
	}
	i.metrics.CredentialsIssued.WithLabelValues(metrics.OutcomeOK).Inc()
	i.audit.Emit(ctx, audit.EventVCIssued, clientID)
	return signed, nil
}

func (i *Issuer) issue(ctx context.Context, bearerToken string) (string, string, error) {
	if _, err := i.minter.Validate(bearerToken); err != nil {
		return "", "", err
	}
	session, err := i.sessions.FindByAccessToken(ctx, bearerToken)
	if errors.Is(err, sentinel.ErrNotFound) {
		return "", "", dErrors.New(dErrors.CodeUnauthorized, "access token does not identify a session")
	}
	if err != nil {
		return "", "", dErrors.Wrap(err, dErrors.CodeUnavailable, "session lookup failed")
	}

	now := requestcontext.Now(ctx)
	if session.Expired(now) {
		return "", "", dErrors.New(dErrors.CodeForbidden, "session has expired")
	}

	batch, err := i.addresses.Find(ctx, session.ID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return "", "", dErrors.Wrap(err, dErrors.CodeUnavailable, "address lookup failed")
	}

	payload := Payload{
		Issuer:    i.issuer,
		Subject:   session.Subject,
		NotBefore: now.Unix(),
		Expiry:    now.Add(i.ttl).Unix(),
		VC: VC{
			Type:    credentialTypes,
			Context: credentialContexts,
			CredentialSubject: CredentialSubject{
				Address: batch,
			},
		},
		JWTID: uuid.NewString(),
	}
	if session.SharedClaims != nil {
		payload.VC.CredentialSubject.Name = session.SharedClaims.Name
		payload.VC.CredentialSubject.BirthDate = session.SharedClaims.BirthDate
	}

	claims, err := json.Marshal(payload)
	if err != nil {
		return "", "", dErrors.Wrap(err, dErrors.CodeInternal, "encode credential claims failed")
	}
	signed, err := i.boundary.SignClaims(ctx, claims, i.signingKeyID)
	if err != nil {
		return "", "", err
	}

	session.Status = sessionmodels.StatusCredentialIssued
	if err := i.sessions.Update(ctx, session); err != nil {
		return "", "", dErrors.Wrap(err, dErrors.CodeUnavailable, "update session failed")
	}
	i.logger.InfoContext(ctx, "credential issued", "session_id", session.ID)
	return signed, session.ClientID, nil
}
