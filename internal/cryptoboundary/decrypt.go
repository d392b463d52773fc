package cryptoboundary

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/go-jose/go-jose/v4"

	"domicile/internal/keyoracle"
	dErrors "domicile/pkg/domain-errors"
)

// oracleKeyDecrypter satisfies jose.OpaqueKeyDecrypter by delegating the CEK
// unwrap to the key oracle. The private key never enters this process. The
// oracle error is retained because go-jose collapses decrypter failures into
// a generic crypto error.
type oracleKeyDecrypter struct {
	ctx       context.Context
	decrypter keyoracle.Decrypter
	keyID     string

	oracleErr error
}

func (d *oracleKeyDecrypter) DecryptKey(encryptedKey []byte, _ jose.Header) ([]byte, error) {
	plaintext, err := d.decrypter.Decrypt(d.ctx, d.keyID, encryptedKey)
	if err != nil {
		d.oracleErr = err
		return nil, err
	}
	return plaintext, nil
}

// DecryptAssertion unwraps a compact JWE and returns the enclosed compact
// JWS. Only RSA-OAEP-256 with A256GCM is accepted; any other combination is
// a relying-party configuration fault, not a retryable input error.
func (b *Boundary) DecryptAssertion(ctx context.Context, serialized string) (string, error) {
	parts := strings.Split(serialized, ".")
	if len(parts) != 5 {
		return "", dErrors.NewWithReason(dErrors.CodeForbidden, ReasonDecryptionFailure,
			"malformed JWE: expected 5 dot-separated parts")
	}
	switch {
	case parts[1] == "":
		return "", dErrors.NewWithReason(dErrors.CodeForbidden, ReasonDecryptionFailure,
			"Missing JWE encrypted key")
	case parts[2] == "":
		return "", dErrors.NewWithReason(dErrors.CodeForbidden, ReasonDecryptionFailure,
			"Missing JWE initialization vector (IV)")
	case parts[4] == "":
		return "", dErrors.NewWithReason(dErrors.CodeForbidden, ReasonDecryptionFailure,
			"Missing JWE authentication tag")
	}

	// Inspect the protected header before handing the token to go-jose:
	// a wrong alg/enc pair is a relying-party configuration fault, while a
	// header that does not even decode is just a bad token.
	var header struct {
		Alg string `json:"alg"`
		Enc string `json:"enc"`
	}
	headerJSON, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err == nil {
		err = json.Unmarshal(headerJSON, &header)
	}
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeForbidden, "malformed JWE protected header").
			WithReason(ReasonDecryptionFailure)
	}
	if header.Alg != string(jose.RSA_OAEP_256) || header.Enc != string(jose.A256GCM) {
		return "", dErrors.Newf(dErrors.CodeInternal,
			"unsupported JWE algorithm or encryption method: alg=%s enc=%s", header.Alg, header.Enc).
			WithReason(ReasonClientConfiguration)
	}

	jwe, err := jose.ParseEncrypted(serialized,
		[]jose.KeyAlgorithm{jose.RSA_OAEP_256},
		[]jose.ContentEncryption{jose.A256GCM})
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeForbidden, "malformed JWE").
			WithReason(ReasonDecryptionFailure)
	}

	decrypter := &oracleKeyDecrypter{ctx: ctx, decrypter: b.oracle, keyID: b.decryptionKeyID}
	payload, err := jwe.Decrypt(decrypter)
	if err != nil {
		if decrypter.oracleErr != nil && dErrors.HasCode(decrypter.oracleErr, dErrors.CodeUnavailable) {
			return "", decrypter.oracleErr
		}
		return "", dErrors.Wrap(err, dErrors.CodeForbidden, "JWE decryption failed").
			WithReason(ReasonDecryptionFailure)
	}

	// The plaintext must itself be a compact JWS; fail here rather than
	// deeper in verification with a confusing parse error.
	if _, err := jose.ParseSigned(string(payload), signatureAlgorithms); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeForbidden, "decrypted payload is not a compact JWS").
			WithReason(ReasonDecryptionFailure)
	}
	return string(payload), nil
}
