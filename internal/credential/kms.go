package credential

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
)

const encryptedPrefix = "kms:"

// SecretDecrypter turns an encrypted secret from the credentials source into
// plaintext.
type SecretDecrypter interface {
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// KMSClient defines the AWS API surface required for KMS decryption.
type KMSClient interface {
	Decrypt(ctx context.Context, in *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// KMSDecrypter decrypts secrets that were encrypted with a symmetric KMS key.
// The key is identified by the ciphertext blob itself.
type KMSDecrypter struct {
	client KMSClient
}

func NewKMSDecrypter(client KMSClient) *KMSDecrypter {
	return &KMSDecrypter{client: client}
}

// NewKMSDecrypterFromEnvironment uses the default AWS credential chain.
func NewKMSDecrypterFromEnvironment(ctx context.Context) (*KMSDecrypter, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for KMS: %w", err)
	}

	return NewKMSDecrypter(kms.NewFromConfig(cfg)), nil
}

func (d *KMSDecrypter) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	out, err := d.client.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob: ciphertext,
	})
	if err != nil {
		return nil, fmt.Errorf("KMS decrypt failed: %w", err)
	}

	return out.Plaintext, nil
}

func isEncrypted(value string) bool {
	return strings.HasPrefix(value, encryptedPrefix)
}

func decodeEncrypted(value string) ([]byte, error) {
	encoded := strings.TrimPrefix(value, encryptedPrefix)

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("base64 decode failed: %w", err)
	}

	return decoded, nil
}
