package keyoracle

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "domicile/pkg/domain-errors"
)

type fakeKMSClient struct {
	signInput    *kms.SignInput
	signOutput   *kms.SignOutput
	signErr      error
	decryptInput *kms.DecryptInput
	decryptErr   error
	publicKey    []byte
	publicKeyErr error
}

func (f *fakeKMSClient) Sign(_ context.Context, params *kms.SignInput, _ ...func(*kms.Options)) (*kms.SignOutput, error) {
	f.signInput = params
	return f.signOutput, f.signErr
}

func (f *fakeKMSClient) Decrypt(_ context.Context, params *kms.DecryptInput, _ ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	f.decryptInput = params
	if f.decryptErr != nil {
		return nil, f.decryptErr
	}
	return &kms.DecryptOutput{Plaintext: []byte("plaintext")}, nil
}

func (f *fakeKMSClient) GetPublicKey(_ context.Context, _ *kms.GetPublicKeyInput, _ ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error) {
	if f.publicKeyErr != nil {
		return nil, f.publicKeyErr
	}
	return &kms.GetPublicKeyOutput{PublicKey: f.publicKey}, nil
}

func TestKMS_Sign(t *testing.T) {
	t.Run("signs the digest as a digest", func(t *testing.T) {
		fake := &fakeKMSClient{signOutput: &kms.SignOutput{Signature: []byte{0x30, 0x01}}}
		oracle := NewKMSWithClient(fake)

		sig, err := oracle.Sign(context.Background(), "alias/vc-signing", []byte("digest-bytes"))
		require.NoError(t, err)
		assert.Equal(t, []byte{0x30, 0x01}, sig)
		assert.Equal(t, "alias/vc-signing", aws.ToString(fake.signInput.KeyId))
		assert.Equal(t, types.MessageTypeDigest, fake.signInput.MessageType)
		assert.Equal(t, types.SigningAlgorithmSpecEcdsaSha256, fake.signInput.SigningAlgorithm)
	})

	t.Run("transport failure is unavailable", func(t *testing.T) {
		oracle := NewKMSWithClient(&fakeKMSClient{signErr: errors.New("dial tcp: timeout")})

		_, err := oracle.Sign(context.Background(), "alias/vc-signing", []byte("digest-bytes"))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	})
}

func TestKMS_Decrypt(t *testing.T) {
	t.Run("unwraps with oaep sha256", func(t *testing.T) {
		fake := &fakeKMSClient{}
		oracle := NewKMSWithClient(fake)

		plain, err := oracle.Decrypt(context.Background(), "alias/jwe-decryption", []byte("ciphertext"))
		require.NoError(t, err)
		assert.Equal(t, []byte("plaintext"), plain)
		assert.Equal(t, types.EncryptionAlgorithmSpecRsaesOaepSha256, fake.decryptInput.EncryptionAlgorithm)
	})

	t.Run("transport failure is unavailable", func(t *testing.T) {
		oracle := NewKMSWithClient(&fakeKMSClient{decryptErr: errors.New("dial tcp: timeout")})

		_, err := oracle.Decrypt(context.Background(), "alias/jwe-decryption", []byte("ciphertext"))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	})
}

func TestKMS_PublicKey(t *testing.T) {
	t.Run("parses spki bytes", func(t *testing.T) {
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		require.NoError(t, err)
		spki, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
		require.NoError(t, err)

		oracle := NewKMSWithClient(&fakeKMSClient{publicKey: spki})
		pub, err := oracle.PublicKey(context.Background(), "alias/vc-signing")
		require.NoError(t, err)
		assert.True(t, key.PublicKey.Equal(pub.(*ecdsa.PublicKey)))
	})

	t.Run("garbage spki is internal", func(t *testing.T) {
		oracle := NewKMSWithClient(&fakeKMSClient{publicKey: []byte("not spki")})

		_, err := oracle.PublicKey(context.Background(), "alias/vc-signing")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	})
}
