package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the credential-issuance
// protocol. One counter per protocol step, labelled by outcome, mirrors the
// per-step counters the dashboards alert on.
type Metrics struct {
	SessionsCreated    *prometheus.CounterVec
	AddressesSubmitted *prometheus.CounterVec
	TokensIssued       *prometheus.CounterVec
	CredentialsIssued  *prometheus.CounterVec
	AuditEmitFailures  prometheus.Counter
	RequestDuration    *prometheus.HistogramVec
}

// New creates and registers all instruments on the given registerer. Pass
// prometheus.DefaultRegisterer in main; tests use a fresh registry so suites
// don't collide on duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "domicile_sessions_created_total",
			Help: "Sessions created, by outcome.",
		}, []string{"outcome"}),
		AddressesSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "domicile_addresses_submitted_total",
			Help: "Address submissions processed, by outcome.",
		}, []string{"outcome"}),
		TokensIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "domicile_tokens_issued_total",
			Help: "Access-token exchanges, by outcome.",
		}, []string{"outcome"}),
		CredentialsIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "domicile_credentials_issued_total",
			Help: "Verifiable credentials issued, by outcome.",
		}, []string{"outcome"}),
		AuditEmitFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "domicile_audit_emit_failures_total",
			Help: "Audit events that could not be published.",
		}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "domicile_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

// Outcome labels kept as constants so counters stay low-cardinality.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)
