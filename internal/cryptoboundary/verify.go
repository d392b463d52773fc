package cryptoboundary

import (
	"context"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"

	"domicile/internal/clientregistry"
	dErrors "domicile/pkg/domain-errors"
	"domicile/pkg/requestcontext"
)

// VerifySignedAssertion checks a compact JWS against a client policy and
// returns the verified claims. The ladder is strict and ordered: algorithm,
// signature, then claims. EC signatures are accepted in both concatenated
// and DER form; DER is transcoded before re-verification.
func (b *Boundary) VerifySignedAssertion(ctx context.Context, rawJWS string, policy *clientregistry.Policy) (*AssertionClaims, error) {
	expectedAlg := jose.SignatureAlgorithm(policy.Algorithm)
	if !algorithmSupported(expectedAlg) {
		return nil, dErrors.Newf(dErrors.CodeInternal, "unexpected signing algorithm encountered: %s", policy.Algorithm).
			WithReason(ReasonClientConfiguration)
	}

	jws, err := jose.ParseSigned(rawJWS, signatureAlgorithms)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "could not parse request JWT").
			WithReason(ReasonClaimsInvalid)
	}
	headerAlg := jose.SignatureAlgorithm(jws.Signatures[0].Header.Algorithm)
	if headerAlg != expectedAlg {
		return nil, dErrors.Newf(dErrors.CodeBadRequest,
			"jwt signing algorithm %s does not match signing algorithm configured for client: %s",
			headerAlg, expectedAlg).WithReason(ReasonAlgorithmMismatch)
	}

	publicKey, err := publicKeyFromPolicy(policy, expectedAlg)
	if err != nil {
		return nil, err
	}

	payload, err := jws.Verify(publicKey)
	if err != nil {
		// Some relying parties emit raw DER ECDSA signatures instead of
		// the JOSE concatenated form. Transcode once and retry.
		payload, err = verifyTranscoded(rawJWS, publicKey, expectedAlg)
		if err != nil {
			return nil, dErrors.NewWithReason(dErrors.CodeForbidden, ReasonSignatureInvalid,
				"JWT signature verification failed")
		}
	}

	claims, err := parseAssertionClaims(payload)
	if err != nil {
		return nil, err
	}
	if err := checkAssertionClaims(ctx, claims, policy); err != nil {
		return nil, err
	}
	return claims, nil
}

func algorithmSupported(alg jose.SignatureAlgorithm) bool {
	for _, a := range signatureAlgorithms {
		if a == alg {
			return true
		}
	}
	return false
}

// publicKeyFromPolicy decodes the client's verification key. RSA clients
// register a base64 DER X.509 certificate; EC clients register a base64
// JSON-encoded JWK.
func publicKeyFromPolicy(policy *clientregistry.Policy, alg jose.SignatureAlgorithm) (any, error) {
	material, err := base64.StdEncoding.DecodeString(policy.SigningPublicKeyBase64)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "client signing key is not valid base64").
			WithReason(ReasonClientConfiguration)
	}

	switch alg {
	case jose.RS256, jose.RS384:
		cert, err := x509.ParseCertificate(material)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "client signing certificate could not be parsed").
				WithReason(ReasonClientConfiguration)
		}
		rsaKey, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return nil, dErrors.NewWithReason(dErrors.CodeInternal, ReasonClientConfiguration,
				"client signing certificate does not hold an RSA key")
		}
		return rsaKey, nil
	case jose.ES256, jose.ES384:
		var jwk jose.JSONWebKey
		if err := json.Unmarshal(material, &jwk); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "client signing JWK could not be parsed").
				WithReason(ReasonClientConfiguration)
		}
		ecKey, ok := jwk.Key.(*ecdsa.PublicKey)
		if !ok {
			return nil, dErrors.NewWithReason(dErrors.CodeInternal, ReasonClientConfiguration,
				"client signing JWK does not hold an EC key")
		}
		return ecKey, nil
	default:
		return nil, dErrors.Newf(dErrors.CodeInternal, "unexpected signing algorithm encountered: %s", alg).
			WithReason(ReasonClientConfiguration)
	}
}

// verifyTranscoded rewrites a DER ECDSA signature into concatenated form and
// verifies the rebuilt compact JWS. Non-EC algorithms have no second form.
func verifyTranscoded(rawJWS string, publicKey any, alg jose.SignatureAlgorithm) ([]byte, error) {
	var componentSize int
	switch alg {
	case jose.ES256:
		componentSize = 32
	case jose.ES384:
		componentSize = 48
	default:
		return nil, dErrors.NewWithReason(dErrors.CodeForbidden, ReasonSignatureInvalid,
			"JWT signature verification failed")
	}

	parts := strings.Split(rawJWS, ".")
	if len(parts) != 3 {
		return nil, dErrors.NewWithReason(dErrors.CodeForbidden, ReasonSignatureInvalid,
			"JWT signature verification failed")
	}
	derSig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, dErrors.NewWithReason(dErrors.CodeForbidden, ReasonSignatureInvalid,
			"JWT signature verification failed")
	}
	if len(derSig) == 2*componentSize {
		// Already concatenated; the first verification was authoritative.
		return nil, dErrors.NewWithReason(dErrors.CodeForbidden, ReasonSignatureInvalid,
			"JWT signature verification failed")
	}
	concat, err := ecdsaDERToConcat(derSig, componentSize)
	if err != nil {
		return nil, err
	}
	rebuilt := parts[0] + "." + parts[1] + "." + base64.RawURLEncoding.EncodeToString(concat)
	jws, err := jose.ParseSigned(rebuilt, signatureAlgorithms)
	if err != nil {
		return nil, err
	}
	return jws.Verify(publicKey)
}

func parseAssertionClaims(payload []byte) (*AssertionClaims, error) {
	var claims AssertionClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "could not parse request JWT claims").
			WithReason(ReasonClaimsInvalid)
	}

	var missing []string
	if claims.Issuer == "" {
		missing = append(missing, "iss")
	}
	if claims.Subject == "" {
		missing = append(missing, "sub")
	}
	if claims.Expiry == nil {
		missing = append(missing, "exp")
	}
	if claims.NotBefore == nil {
		missing = append(missing, "nbf")
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "JWT missing required claims: [%s]",
			strings.Join(missing, ", ")).WithReason(ReasonClaimsMissing)
	}
	return &claims, nil
}

func checkAssertionClaims(ctx context.Context, claims *AssertionClaims, policy *clientregistry.Policy) error {
	if claims.Issuer != policy.Issuer {
		return dErrors.Newf(dErrors.CodeBadRequest, "JWT iss claim has value %s, must be %s",
			claims.Issuer, policy.Issuer).WithReason(ReasonClaimsInvalid)
	}
	if !claims.Audience.Contains(policy.Audience) {
		return dErrors.Newf(dErrors.CodeBadRequest, "JWT aud claim has value %v, must be %s",
			[]string(claims.Audience), policy.Audience).WithReason(ReasonClaimsInvalid)
	}

	// No skew allowance: the window is exactly [nbf, exp].
	now := requestcontext.Now(ctx)
	if now.After(time.Unix(*claims.Expiry, 0)) {
		return dErrors.NewWithReason(dErrors.CodeBadRequest, ReasonClaimsInvalid, "expired JWT")
	}
	if now.Before(time.Unix(*claims.NotBefore, 0)) {
		return dErrors.NewWithReason(dErrors.CodeBadRequest, ReasonClaimsInvalid, "JWT before use time")
	}
	return nil
}
