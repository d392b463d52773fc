package keyoracle

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"

	dErrors "domicile/pkg/domain-errors"
)

// Local is an in-process oracle holding raw keys. It implements the exact
// call shape of the KMS oracle so tests and standalone development exercise
// the same code paths. Signatures use the same ASN.1 DER shape KMS returns.
type Local struct {
	ecKeys  map[string]*ecdsa.PrivateKey
	rsaKeys map[string]*rsa.PrivateKey
}

// NewLocal returns an empty local oracle; add keys with AddECKey / AddRSAKey.
func NewLocal() *Local {
	return &Local{
		ecKeys:  make(map[string]*ecdsa.PrivateKey),
		rsaKeys: make(map[string]*rsa.PrivateKey),
	}
}

// NewLocalDev generates one P-256 signing key and one 2048-bit RSA decryption
// key under the given ids, for standalone development.
func NewLocalDev(signingKeyID, decryptionKeyID string) (*Local, error) {
	l := NewLocal()
	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	l.AddECKey(signingKeyID, ecKey)
	l.AddRSAKey(decryptionKeyID, rsaKey)
	return l, nil
}

func (l *Local) AddECKey(keyID string, key *ecdsa.PrivateKey) { l.ecKeys[keyID] = key }
func (l *Local) AddRSAKey(keyID string, key *rsa.PrivateKey)  { l.rsaKeys[keyID] = key }

func (l *Local) Sign(_ context.Context, keyID string, digest []byte) ([]byte, error) {
	key, ok := l.ecKeys[keyID]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeInternal, "no signing key %q", keyID)
	}
	return ecdsa.SignASN1(rand.Reader, key, digest)
}

func (l *Local) Decrypt(_ context.Context, keyID string, ciphertext []byte) ([]byte, error) {
	key, ok := l.rsaKeys[keyID]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeInternal, "no decryption key %q", keyID)
	}
	plaintext, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, key, ciphertext, nil)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeForbidden, "local decrypt failed")
	}
	return plaintext, nil
}

func (l *Local) PublicKey(_ context.Context, keyID string) (crypto.PublicKey, error) {
	if key, ok := l.ecKeys[keyID]; ok {
		return &key.PublicKey, nil
	}
	if key, ok := l.rsaKeys[keyID]; ok {
		return &key.PublicKey, nil
	}
	return nil, dErrors.Newf(dErrors.CodeInternal, "no key %q", keyID)
}
