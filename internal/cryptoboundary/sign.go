package cryptoboundary

import (
	"context"
	"crypto/sha256"
	"encoding/asn1"
	"encoding/base64"
	"math/big"

	dErrors "domicile/pkg/domain-errors"
)

// vcHeader is the fixed protected header for every issued credential. The
// oracle key is pinned to P-256 so the algorithm never varies.
var vcHeader = []byte(`{"typ":"JWT","alg":"ES256"}`)

// SignClaims produces a compact ES256 JWS over payload using the named
// oracle key. The payload bytes are signed exactly as given; claim ordering
// is the caller's responsibility.
func (b *Boundary) SignClaims(ctx context.Context, payload []byte, keyID string) (string, error) {
	signingInput := base64.RawURLEncoding.EncodeToString(vcHeader) +
		"." + base64.RawURLEncoding.EncodeToString(payload)

	digest := sha256.Sum256([]byte(signingInput))
	derSig, err := b.oracle.Sign(ctx, keyID, digest[:])
	if err != nil {
		return "", err
	}

	// The oracle returns DER; JOSE requires the 64-byte concatenated form.
	// A signature that fits neither shape means the key is not P-256, which
	// is fatal rather than retryable.
	concat, err := ecdsaDERToConcat(derSig, 32)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "unexpected signature shape from key service").
			WithReason(ReasonCryptographic)
	}

	return signingInput + "." + base64.RawURLEncoding.EncodeToString(concat), nil
}

type ecdsaSignature struct {
	R, S *big.Int
}

// ecdsaDERToConcat converts a DER-encoded ECDSA signature into the fixed
// width r||s form, left-padding each component to componentSize bytes.
func ecdsaDERToConcat(der []byte, componentSize int) ([]byte, error) {
	var sig ecdsaSignature
	rest, err := asn1.Unmarshal(der, &sig)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, asn1.SyntaxError{Msg: "trailing data after ECDSA signature"}
	}
	if sig.R.BitLen() > componentSize*8 || sig.S.BitLen() > componentSize*8 {
		return nil, asn1.StructuralError{Msg: "ECDSA signature component exceeds curve size"}
	}

	out := make([]byte, 2*componentSize)
	sig.R.FillBytes(out[:componentSize])
	sig.S.FillBytes(out[componentSize:])
	return out, nil
}
