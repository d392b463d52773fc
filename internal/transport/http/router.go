package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	addressservice "domicile/internal/address/service"
	"domicile/internal/credential"
	"domicile/internal/keyoracle"
	"domicile/internal/platform/metrics"
	"domicile/internal/platform/middleware"
	sessionservice "domicile/internal/session/service"
	"domicile/internal/token"
)

// Handler bundles the protocol services behind the HTTP surface.
type Handler struct {
	logger       *slog.Logger
	metrics      *metrics.Metrics
	sessions     *sessionservice.Engine
	addresses    *addressservice.Service
	tokens       *token.Exchange
	credentials  *credential.Issuer
	keys         keyoracle.PublicKeyResolver
	signingKeyID string
	health       map[string]HealthCheck
}

// HealthCheck reports the liveness of one backing dependency.
type HealthCheck func(ctx context.Context) error

// NewHandler wires the HTTP layer. health maps dependency names to liveness
// probes; a nil or empty map makes /healthz unconditionally healthy.
func NewHandler(
	logger *slog.Logger,
	m *metrics.Metrics,
	sessions *sessionservice.Engine,
	addresses *addressservice.Service,
	tokens *token.Exchange,
	credentials *credential.Issuer,
	keys keyoracle.PublicKeyResolver,
	signingKeyID string,
	health map[string]HealthCheck,
) *Handler {
	return &Handler{
		logger:       logger,
		metrics:      m,
		sessions:     sessions,
		addresses:    addresses,
		tokens:       tokens,
		credentials:  credentials,
		keys:         keys,
		signingKeyID: signingKeyID,
		health:       health,
	}
}

// NewRouter mounts every endpoint behind the standard middleware chain.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(h.logger))
	r.Use(middleware.Latency(h.metrics))

	r.Post("/session", h.handleCreateSession)
	r.Put("/address", h.handleSubmitAddresses)
	r.Get("/authorization", h.handleAuthorization)
	r.Post("/token", h.handleToken)
	r.Post("/credential/issue", h.handleIssueCredential)
	r.Get("/.well-known/jwks.json", h.handleJWKS)

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
