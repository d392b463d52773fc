package credential

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	addressmodels "domicile/internal/address/models"
	addressstore "domicile/internal/address/store"
	"domicile/internal/audit"
	"domicile/internal/cryptoboundary"
	"domicile/internal/keyoracle"
	"domicile/internal/platform/metrics"
	sessionmodels "domicile/internal/session/models"
	sessionstore "domicile/internal/session/store"
	"domicile/internal/token"
	dErrors "domicile/pkg/domain-errors"
	"domicile/pkg/requestcontext"
)

const signingKeyID = "vc-signing"

type issuerFixture struct {
	issuer   *Issuer
	sessions *sessionstore.MemoryStore
	capture  *audit.Capture
	ecKey    *ecdsa.PrivateKey
	minter   *token.Minter
	now      time.Time
}

func newIssuerFixture(t *testing.T) *issuerFixture {
	t.Helper()
	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	oracle := keyoracle.NewLocal()
	oracle.AddECKey(signingKeyID, ecKey)

	sessions := sessionstore.NewMemory()
	addresses := addressstore.NewMemory()
	capture := audit.NewCapture()
	minter := token.NewMinter("test-secret", "https://address.example", time.Hour)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &issuerFixture{
		sessions: sessions,
		capture:  capture,
		ecKey:    ecKey,
		minter:   minter,
		now:      time.Now().UTC().Truncate(time.Second),
	}
	f.issuer = NewIssuer(
		cryptoboundary.New(oracle, "unused-decryption-key"),
		sessions,
		addresses,
		minter,
		capture,
		metrics.New(prometheus.NewRegistry()),
		logger,
		"https://address.example",
		6*time.Hour,
		signingKeyID,
	)

	validFrom := addressmodels.NewDate(2020, time.January, 1)
	require.NoError(t, addresses.Save(context.Background(), "session-1",
		[]addressmodels.CanonicalAddress{{
			BuildingNumber: "8",
			StreetName:     "Hadley Road",
			PostalCode:     "BA2 5AA",
			AddressCountry: "GB",
			ValidFrom:      &validFrom,
		}}))
	return f
}

func (f *issuerFixture) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), f.now)
}

// seedSession stores a session that has completed the token exchange and
// returns its bearer token.
func (f *issuerFixture) seedSession(t *testing.T, shared *sessionmodels.SharedClaims) string {
	t.Helper()
	session := &sessionmodels.Session{
		ID:                "session-1",
		ClientID:          "orchestrator",
		RedirectURI:       "https://rp.example/callback",
		Subject:           "urn:uuid:6a2f0b5c",
		Status:            sessionmodels.StatusCodeIssued,
		ExpiryTime:        f.now.Add(time.Hour),
		AuthorizationCode: "code-abc",
		SharedClaims:      shared,
	}
	require.NoError(t, f.sessions.Create(context.Background(), session))
	require.NoError(t, f.sessions.Update(context.Background(), session))

	bearer, err := f.minter.Mint(f.ctx(), session)
	require.NoError(t, err)
	require.NoError(t, f.sessions.BindAccessToken(context.Background(), session.ID, bearer))
	return bearer
}

func TestIssue(t *testing.T) {
	f := newIssuerFixture(t)
	bearer := f.seedSession(t, &sessionmodels.SharedClaims{
		Name:      json.RawMessage(`[{"nameParts":[{"type":"GivenName","value":"Mary"}]}]`),
		BirthDate: json.RawMessage(`[{"value":"1984-06-27"}]`),
	})

	signed, err := f.issuer.Issue(f.ctx(), bearer)
	require.NoError(t, err)

	jws, err := jose.ParseSigned(signed, []jose.SignatureAlgorithm{jose.ES256})
	require.NoError(t, err)
	payload, err := jws.Verify(&f.ecKey.PublicKey)
	require.NoError(t, err)

	t.Run("header is fixed", func(t *testing.T) {
		rawHeader, err := base64.RawURLEncoding.DecodeString(strings.SplitN(signed, ".", 2)[0])
		require.NoError(t, err)
		assert.Equal(t, `{"typ":"JWT","alg":"ES256"}`, string(rawHeader))
	})

	t.Run("claims", func(t *testing.T) {
		var decoded Payload
		require.NoError(t, json.Unmarshal(payload, &decoded))
		assert.Equal(t, "https://address.example", decoded.Issuer)
		assert.Equal(t, "urn:uuid:6a2f0b5c", decoded.Subject)
		assert.Equal(t, f.now.Unix(), decoded.NotBefore)
		assert.Equal(t, f.now.Add(6*time.Hour).Unix(), decoded.Expiry)
		assert.NotEmpty(t, decoded.JWTID)
		assert.Equal(t, []string{"VerifiableCredential", "AddressCredential"}, decoded.VC.Type)
		assert.Equal(t, []string{
			"https://www.w3.org/2018/credentials/v1",
			"https://vocab.london.cloudapps.digital/contexts/identity-v1.jsonld",
		}, decoded.VC.Context)
		require.Len(t, decoded.VC.CredentialSubject.Address, 1)
		assert.Equal(t, "BA2 5AA", decoded.VC.CredentialSubject.Address[0].PostalCode)
	})

	t.Run("wire field order is canonical", func(t *testing.T) {
		text := string(payload)
		assertOrdered(t, text, `"iss"`, `"sub"`, `"nbf"`, `"exp"`, `"vc"`, `"jti"`)
		assertOrdered(t, text, `"name"`, `"birthDate"`, `"address"`)
		assertOrdered(t, text, `"buildingNumber"`, `"streetName"`, `"postalCode"`,
			`"addressCountry"`, `"validFrom"`)
	})

	t.Run("session advances and audit event fires", func(t *testing.T) {
		stored, err := f.sessions.Get(context.Background(), "session-1")
		require.NoError(t, err)
		assert.Equal(t, sessionmodels.StatusCredentialIssued, stored.Status)

		events := f.capture.Events()
		require.Len(t, events, 1)
		assert.Equal(t, audit.EventVCIssued, events[0].EventName)
		assert.Equal(t, "orchestrator", events[0].ClientID)
	})
}

func TestIssue_Failures(t *testing.T) {
	t.Run("garbage bearer token", func(t *testing.T) {
		f := newIssuerFixture(t)
		f.seedSession(t, nil)
		_, err := f.issuer.Issue(f.ctx(), "not-a-jwt")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("valid token unknown to the store", func(t *testing.T) {
		f := newIssuerFixture(t)
		orphan, err := f.minter.Mint(f.ctx(), &sessionmodels.Session{ID: "ghost"})
		require.NoError(t, err)
		_, err = f.issuer.Issue(f.ctx(), orphan)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("expired session", func(t *testing.T) {
		f := newIssuerFixture(t)
		bearer := f.seedSession(t, nil)
		lateCtx := requestcontext.WithTime(context.Background(), f.now.Add(2*time.Hour))
		_, err := f.issuer.Issue(lateCtx, bearer)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func assertOrdered(t *testing.T, text string, keys ...string) {
	t.Helper()
	last := -1
	for _, key := range keys {
		idx := strings.Index(text, key)
		require.GreaterOrEqual(t, idx, 0, "key %s missing", key)
		assert.Greater(t, idx, last, "key %s out of order", key)
		last = idx
	}
}
