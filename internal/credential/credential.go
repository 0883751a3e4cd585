package credential

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/chinmina/ebay-oauth-bridge/internal/environment"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Credential holds the application keys registered for one environment.
type Credential struct {
	ClientID              string
	ClientSecret          string
	RedirectURI           string
	AuthorizationEndpoint string
	TokenEndpoint         string
}

// MarshalZerologObject keeps the secret out of logs.
func (c Credential) MarshalZerologObject(e *zerolog.Event) {
	e.Str("clientId", c.ClientID).
		Str("redirectUri", c.RedirectURI).
		Str("tokenEndpoint", c.TokenEndpoint)
}

// Store holds the credentials of the last successful load. Loading publishes
// a complete replacement, so readers never observe a partial load; readers
// before the first load receive a ConfigurationError.
type Store struct {
	credentials atomic.Pointer[map[environment.Environment]Credential]
	decrypter   SecretDecrypter
}

type StoreOption func(*Store)

// WithSecretDecrypter enables decryption of "kms:" prefixed secrets during
// load.
func WithSecretDecrypter(d SecretDecrypter) StoreOption {
	return func(s *Store) {
		s.decrypter = d
	}
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve returns the credential loaded for env.
func (s *Store) Resolve(env environment.Environment) (Credential, error) {
	loaded := s.credentials.Load()
	if loaded == nil {
		return Credential{}, ConfigurationError{Environment: env, Reason: "credentials have not been loaded"}
	}

	cred, ok := (*loaded)[env]
	if !ok {
		return Credential{}, ConfigurationError{Environment: env, Reason: "no credential configured"}
	}

	return cred, nil
}

// Load replaces the current credentials with those read from r. On failure
// the previous credentials remain in place.
func (s *Store) Load(ctx context.Context, r io.Reader) error {
	creds, err := parse(ctx, r, s.decrypter)
	if err != nil {
		return err
	}

	s.credentials.Store(&creds)

	ev := log.Info()
	for env, cred := range creds {
		ev = ev.Object(env.Identifier(), cred)
	}
	ev.Msg("credentials: loaded")

	return nil
}

// LoadFile reads credentials from the YAML file at path.
func (s *Store) LoadFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return ConfigurationError{Reason: fmt.Sprintf("cannot open %s", path), Err: err}
	}
	defer f.Close()

	return s.Load(ctx, f)
}
