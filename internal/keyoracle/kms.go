package keyoracle

import (
	"context"
	"crypto"
	"crypto/x509"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"

	dErrors "domicile/pkg/domain-errors"
)

// kmsClient is the subset of the KMS API the oracle calls. Narrowing the
// surface keeps tests to a small fake instead of the full SDK client.
type kmsClient interface {
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
}

// KMS calls AWS KMS for signing and decryption. Calls are synchronous with no
// internal retry; a transport failure surfaces immediately as unavailable so
// the transport layer can decide whether to retry.
type KMS struct {
	client kmsClient
}

// NewKMS builds an oracle over a configured AWS client.
func NewKMS(cfg aws.Config) *KMS {
	return &KMS{client: kms.NewFromConfig(cfg)}
}

// NewKMSWithClient is for tests.
func NewKMSWithClient(client kmsClient) *KMS {
	return &KMS{client: client}
}

// Sign produces an ECDSA_SHA_256 signature over the digest. The returned
// signature is ASN.1 DER as KMS emits it.
func (k *KMS) Sign(ctx context.Context, keyID string, digest []byte) ([]byte, error) {
	out, err := k.client.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(keyID),
		Message:          digest,
		MessageType:      types.MessageTypeDigest,
		SigningAlgorithm: types.SigningAlgorithmSpecEcdsaSha256,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "kms sign failed")
	}
	return out.Signature, nil
}

// Decrypt unwraps an RSAES_OAEP_SHA_256 ciphertext.
func (k *KMS) Decrypt(ctx context.Context, keyID string, ciphertext []byte) ([]byte, error) {
	out, err := k.client.Decrypt(ctx, &kms.DecryptInput{
		KeyId:               aws.String(keyID),
		CiphertextBlob:      ciphertext,
		EncryptionAlgorithm: types.EncryptionAlgorithmSpecRsaesOaepSha256,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "kms decrypt failed")
	}
	return out.Plaintext, nil
}

// PublicKey fetches and parses the SPKI public half of the key.
func (k *KMS) PublicKey(ctx context.Context, keyID string) (crypto.PublicKey, error) {
	out, err := k.client.GetPublicKey(ctx, &kms.GetPublicKeyInput{KeyId: aws.String(keyID)})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "kms get public key failed")
	}
	pub, err := x509.ParsePKIXPublicKey(out.PublicKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "parse kms public key")
	}
	return pub, nil
}
