package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the server needs from the environment. Optional
// backends (redis, postgres, kafka, KMS) degrade to in-process substitutes
// when unset so the binary runs standalone in development.
type Config struct {
	Addr string

	// Verifiable credential issuance.
	VCIssuer       string
	VCTTL          time.Duration
	VCSigningKeyID string

	// Session protocol.
	SessionTTL      time.Duration
	AccessTokenTTL  time.Duration
	DecryptionKeyID string

	// Access tokens are minted as HS256 JWTs with this secret.
	AccessTokenSecret string

	// Client policy registry seed (JSON file of per-client policies).
	ClientPolicyFile string

	// Backends.
	RedisURL     string
	PostgresDSN  string
	KafkaBrokers []string
	AuditTopic   string
	AWSRegion    string
	// UseLocalKeys switches the key oracle to in-process dev keys instead
	// of KMS. Never set in production.
	UseLocalKeys bool
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Config{
		Addr:              getEnv("DOMICILE_ADDR", ":8080"),
		VCIssuer:          getEnv("VC_ISSUER", "https://domicile.example"),
		VCTTL:             getDuration("VC_TTL", 6*time.Hour),
		VCSigningKeyID:    getEnv("VC_SIGNING_KEY_ID", "alias/domicile-vc-signing"),
		SessionTTL:        getDuration("SESSION_TTL", 2*time.Hour),
		AccessTokenTTL:    getDuration("ACCESS_TOKEN_TTL", time.Hour),
		DecryptionKeyID:   getEnv("DECRYPTION_KEY_ID", "alias/domicile-session-decryption"),
		AccessTokenSecret: getEnv("ACCESS_TOKEN_SECRET", "dev-secret-key-change-in-production"),
		ClientPolicyFile:  os.Getenv("CLIENT_POLICY_FILE"),
		RedisURL:          os.Getenv("REDIS_URL"),
		PostgresDSN:       os.Getenv("POSTGRES_DSN"),
		AuditTopic:        getEnv("AUDIT_TOPIC", "audit-events"),
		AWSRegion:         getEnv("AWS_REGION", "eu-west-2"),
		UseLocalKeys:      os.Getenv("USE_LOCAL_KEYS") == "true",
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	// Plain integers are treated as seconds, matching deployment configs
	// that carry TTLs as epoch-second counts.
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
