package credential

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chinmina/ebay-oauth-bridge/internal/environment"
	"gopkg.in/yaml.v3"
)

// source is the YAML shape of the credentials file: a mapping of
// environment identifier (or name) to the application keys for it.
type source map[string]sourceEntry

type sourceEntry struct {
	ClientID              string `yaml:"clientId"`
	ClientSecret          string `yaml:"clientSecret"`
	RedirectURI           string `yaml:"redirectUri"`
	AuthorizationEndpoint string `yaml:"authorizationEndpoint"`
	TokenEndpoint         string `yaml:"tokenEndpoint"`
}

func parse(ctx context.Context, r io.Reader, decrypter SecretDecrypter) (map[environment.Environment]Credential, error) {
	var src source

	err := yaml.NewDecoder(r).Decode(&src)
	if errors.Is(err, io.EOF) {
		return nil, ConfigurationError{Reason: "credentials source is empty"}
	}
	if err != nil {
		return nil, ConfigurationError{Reason: "malformed credentials source", Err: err}
	}

	creds := make(map[environment.Environment]Credential, len(src))

	for key, entry := range src {
		env, err := environment.Parse(key)
		if err != nil {
			return nil, ConfigurationError{Reason: "unknown environment key", Err: err}
		}

		if _, dup := creds[env]; dup {
			return nil, ConfigurationError{Environment: env, Reason: "environment configured more than once"}
		}

		cred, err := entry.credential(ctx, env, decrypter)
		if err != nil {
			return nil, err
		}

		creds[env] = cred
	}

	if len(creds) == 0 {
		return nil, ConfigurationError{Reason: "no environments configured"}
	}

	return creds, nil
}

func (e sourceEntry) credential(ctx context.Context, env environment.Environment, decrypter SecretDecrypter) (Credential, error) {
	cred := Credential{
		ClientID:              strings.TrimSpace(e.ClientID),
		ClientSecret:          strings.TrimSpace(e.ClientSecret),
		RedirectURI:           strings.TrimSpace(e.RedirectURI),
		AuthorizationEndpoint: strings.TrimSpace(e.AuthorizationEndpoint),
		TokenEndpoint:         strings.TrimSpace(e.TokenEndpoint),
	}

	if cred.ClientID == "" {
		return Credential{}, ConfigurationError{Environment: env, Reason: "clientId is required"}
	}
	if cred.ClientSecret == "" {
		return Credential{}, ConfigurationError{Environment: env, Reason: "clientSecret is required"}
	}

	if isEncrypted(cred.ClientSecret) {
		if decrypter == nil {
			return Credential{}, ConfigurationError{Environment: env, Reason: "clientSecret is encrypted but no decrypter is configured"}
		}

		secret, err := decryptSecret(ctx, decrypter, cred.ClientSecret)
		if err != nil {
			return Credential{}, ConfigurationError{Environment: env, Reason: "clientSecret decryption failed", Err: err}
		}
		cred.ClientSecret = secret
	}

	if cred.AuthorizationEndpoint == "" {
		cred.AuthorizationEndpoint = env.AuthorizationEndpoint()
	}
	if cred.TokenEndpoint == "" {
		cred.TokenEndpoint = env.TokenEndpoint()
	}

	return cred, nil
}

func decryptSecret(ctx context.Context, decrypter SecretDecrypter, value string) (string, error) {
	ciphertext, err := decodeEncrypted(value)
	if err != nil {
		return "", err
	}

	plaintext, err := decrypter.Decrypt(ctx, ciphertext)
	if err != nil {
		return "", err
	}

	secret := strings.TrimSpace(string(plaintext))
	if secret == "" {
		return "", fmt.Errorf("decrypted secret is blank")
	}

	return secret, nil
}
