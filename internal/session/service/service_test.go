package service

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"domicile/internal/audit"
	"domicile/internal/clientregistry"
	"domicile/internal/cryptoboundary"
	"domicile/internal/keyoracle"
	"domicile/internal/platform/metrics"
	"domicile/internal/session/models"
	"domicile/internal/session/store"
	dErrors "domicile/pkg/domain-errors"
	"domicile/pkg/requestcontext"
)

const (
	clientID        = "orchestrator"
	redirectURI     = "https://rp.example/callback"
	decryptionKeyID = "session-decryption"
)

type engineFixture struct {
	engine  *Engine
	store   *store.MemoryStore
	capture *audit.Capture
	ecKey   *ecdsa.PrivateKey
	rsaKey  *rsa.PrivateKey
	policy  clientregistry.Policy
	now     time.Time
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	oracle := keyoracle.NewLocal()
	oracle.AddRSAKey(decryptionKeyID, rsaKey)

	jwkJSON, err := json.Marshal(jose.JSONWebKey{Key: &ecKey.PublicKey, Algorithm: "ES256"})
	require.NoError(t, err)
	policy := clientregistry.Policy{
		ClientID:               clientID,
		Algorithm:              "ES256",
		SigningPublicKeyBase64: base64.StdEncoding.EncodeToString(jwkJSON),
		Issuer:                 "https://orchestrator.example",
		Audience:               "https://address.example",
		RedirectURI:            redirectURI,
	}

	memory := store.NewMemory()
	capture := audit.NewCapture()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := NewEngine(
		cryptoboundary.New(oracle, decryptionKeyID),
		clientregistry.NewStatic([]clientregistry.Policy{policy}),
		memory,
		capture,
		metrics.New(prometheus.NewRegistry()),
		logger,
		2*time.Hour,
	)
	return &engineFixture{
		engine:  engine,
		store:   memory,
		capture: capture,
		ecKey:   ecKey,
		rsaKey:  rsaKey,
		policy:  policy,
		now:     time.Date(2024, time.March, 12, 10, 0, 0, 0, time.UTC),
	}
}

func (f *engineFixture) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), f.now)
}

func (f *engineFixture) assertion(t *testing.T, mutate func(map[string]any)) string {
	t.Helper()
	claims := map[string]any{
		"iss":           f.policy.Issuer,
		"sub":           "urn:uuid:6a2f0b5c",
		"aud":           f.policy.Audience,
		"nbf":           f.now.Add(-time.Minute).Unix(),
		"exp":           f.now.Add(time.Hour).Unix(),
		"client_id":     clientID,
		"response_type": "code",
		"redirect_uri":  redirectURI,
		"state":         "af0ifjsldkj",
	}
	if mutate != nil {
		mutate(claims)
	}
	payload, err := json.Marshal(claims)
	require.NoError(t, err)

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.ES256, Key: f.ecKey}, nil)
	require.NoError(t, err)
	jws, err := signer.Sign(payload)
	require.NoError(t, err)
	compact, err := jws.CompactSerialize()
	require.NoError(t, err)

	encrypter, err := jose.NewEncrypter(jose.A256GCM,
		jose.Recipient{Algorithm: jose.RSA_OAEP_256, Key: &f.rsaKey.PublicKey}, nil)
	require.NoError(t, err)
	jwe, err := encrypter.Encrypt([]byte(compact))
	require.NoError(t, err)
	serialized, err := jwe.CompactSerialize()
	require.NoError(t, err)
	return serialized
}

func TestEngineCreate(t *testing.T) {
	t.Run("valid assertion creates session", func(t *testing.T) {
		f := newEngineFixture(t)
		session, err := f.engine.Create(f.ctx(), clientID, f.assertion(t, nil))
		require.NoError(t, err)

		assert.NotEmpty(t, session.ID)
		assert.Equal(t, clientID, session.ClientID)
		assert.Equal(t, "af0ifjsldkj", session.State)
		assert.Equal(t, redirectURI, session.RedirectURI)
		assert.Equal(t, "urn:uuid:6a2f0b5c", session.Subject)
		assert.Equal(t, models.StatusCreated, session.Status)
		assert.Equal(t, f.now.Add(2*time.Hour), session.ExpiryTime)

		stored, err := f.store.Get(context.Background(), session.ID)
		require.NoError(t, err)
		assert.Equal(t, session.ID, stored.ID)

		events := f.capture.Events()
		require.Len(t, events, 1)
		assert.Equal(t, audit.EventStart, events[0].EventName)
		assert.Equal(t, clientID, events[0].ClientID)
	})

	t.Run("shared claims are retained", func(t *testing.T) {
		f := newEngineFixture(t)
		serialized := f.assertion(t, func(claims map[string]any) {
			claims["shared_claims"] = map[string]any{
				"name":      []map[string]any{{"nameParts": []map[string]string{{"type": "GivenName", "value": "Mary"}}}},
				"birthDate": []map[string]string{{"value": "1984-06-27"}},
			}
		})
		session, err := f.engine.Create(f.ctx(), clientID, serialized)
		require.NoError(t, err)
		require.NotNil(t, session.SharedClaims)
		assert.NotEmpty(t, session.SharedClaims.Name)
		assert.NotEmpty(t, session.SharedClaims.BirthDate)
	})

	t.Run("redirect uri mismatch names both values", func(t *testing.T) {
		f := newEngineFixture(t)
		serialized := f.assertion(t, func(claims map[string]any) {
			claims["redirect_uri"] = "https://rp.example/other"
		})
		_, err := f.engine.Create(f.ctx(), clientID, serialized)
		require.Error(t, err)
		assert.True(t, dErrors.HasReason(err, ReasonRedirectURIMismatch))
		assert.Contains(t, err.Error(),
			"redirect uri https://rp.example/other does not match configuration uri https://rp.example/callback")
		assert.Empty(t, f.capture.Events())
	})

	t.Run("unknown client rejected", func(t *testing.T) {
		f := newEngineFixture(t)
		_, err := f.engine.Create(f.ctx(), "intruder", f.assertion(t, nil))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("missing inputs rejected", func(t *testing.T) {
		f := newEngineFixture(t)
		_, err := f.engine.Create(f.ctx(), "", f.assertion(t, nil))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
		_, err = f.engine.Create(f.ctx(), clientID, "")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func TestEngineGet_LazyExpiry(t *testing.T) {
	f := newEngineFixture(t)
	session, err := f.engine.Create(f.ctx(), clientID, f.assertion(t, nil))
	require.NoError(t, err)

	lateCtx := requestcontext.WithTime(context.Background(), f.now.Add(3*time.Hour))
	_, err = f.engine.Get(lateCtx, session.ID)
	require.Error(t, err)
	assert.True(t, dErrors.HasReason(err, ReasonSessionExpired))

	stored, err := f.store.Get(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, stored.Status)
}

func TestEngineGet_NotFound(t *testing.T) {
	f := newEngineFixture(t)
	_, err := f.engine.Get(f.ctx(), "nope")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestEngineIssueAuthorizationCode(t *testing.T) {
	f := newEngineFixture(t)
	session, err := f.engine.Create(f.ctx(), clientID, f.assertion(t, nil))
	require.NoError(t, err)

	t.Run("refused before addresses submitted", func(t *testing.T) {
		_, err := f.engine.IssueAuthorizationCode(f.ctx(), session.ID)
		require.Error(t, err)
		assert.True(t, dErrors.HasReason(err, ReasonInvalidState))
	})

	require.NoError(t, f.engine.MarkAddressesSubmitted(f.ctx(), session))

	t.Run("issues after submission", func(t *testing.T) {
		issued, err := f.engine.IssueAuthorizationCode(f.ctx(), session.ID)
		require.NoError(t, err)
		assert.NotEmpty(t, issued.AuthorizationCode)
		assert.Equal(t, models.StatusCodeIssued, issued.Status)
	})

	t.Run("second issuance replaces the code", func(t *testing.T) {
		first, err := f.engine.IssueAuthorizationCode(f.ctx(), session.ID)
		require.NoError(t, err)
		second, err := f.engine.IssueAuthorizationCode(f.ctx(), session.ID)
		require.NoError(t, err)
		assert.NotEqual(t, first.AuthorizationCode, second.AuthorizationCode)
	})
}
