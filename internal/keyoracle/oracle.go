// Package keyoracle abstracts the external asymmetric-key service. Private
// key material never crosses this boundary: callers hand over digests and
// ciphertexts, the oracle hands back signatures and plaintexts.
package keyoracle

import (
	"context"
	"crypto"
)

// Signer signs a precomputed digest with the named key. For EC keys the
// signature comes back in the service's native ASN.1 DER shape; the crypto
// boundary owns transcoding to JOSE form.
type Signer interface {
	Sign(ctx context.Context, keyID string, digest []byte) ([]byte, error)
}

// Decrypter decrypts an RSA-OAEP-256 ciphertext (the JWE encrypted content
// key) with the named key.
type Decrypter interface {
	Decrypt(ctx context.Context, keyID string, ciphertext []byte) ([]byte, error)
}

// PublicKeyResolver exposes the public half of a signing key, used to publish
// the JWK Set consumers verify credentials against.
type PublicKeyResolver interface {
	PublicKey(ctx context.Context, keyID string) (crypto.PublicKey, error)
}

// Oracle is the full key-service surface the credential issuer needs.
type Oracle interface {
	Signer
	Decrypter
	PublicKeyResolver
}
