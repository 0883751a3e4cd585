// Command authorize walks a user through the eBay authorization-code flow on
// the local machine: it opens the consent page in a browser, receives the
// redirect on a loopback address and prints the issued tokens as JSON.
//
// The application's redirect (RuName) accept URL must point at the listen
// address for the redirect to reach this command.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/chinmina/ebay-oauth-bridge/internal/cache"
	"github.com/chinmina/ebay-oauth-bridge/internal/credential"
	"github.com/chinmina/ebay-oauth-bridge/internal/endpoint"
	"github.com/chinmina/ebay-oauth-bridge/internal/environment"
	"github.com/chinmina/ebay-oauth-bridge/internal/oauth"
	"github.com/google/uuid"
	"github.com/pkg/browser"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Environment     string   `env:"AUTHORIZE_ENVIRONMENT, default=sandbox"`
	Scopes          []string `env:"AUTHORIZE_SCOPES, required"`
	ListenAddress   string   `env:"AUTHORIZE_LISTEN_ADDRESS, default=localhost:8085"`
	TimeoutSeconds  int      `env:"AUTHORIZE_TIMEOUT_SECS, default=300"`
	CredentialsFile string   `env:"OAUTH_CREDENTIALS_FILE, required"`
}

// urlOpener opens the consent page; replaced in tests.
type urlOpener func(url string) error

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg := Config{}
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error reading config: %v\n", err)
		os.Exit(1)
	}

	resp, err := authorize(context.Background(), cfg, browser.OpenURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "authorization failed: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		fmt.Fprintf(os.Stderr, "error writing tokens: %v\n", err)
		os.Exit(1)
	}
}

func authorize(ctx context.Context, cfg Config, open urlOpener) (oauth.Response, error) {
	env, err := environment.Parse(cfg.Environment)
	if err != nil {
		return oauth.Response{}, err
	}

	store := credential.NewStore()
	if err := store.LoadFile(ctx, cfg.CredentialsFile); err != nil {
		return oauth.Response{}, err
	}

	// exchanged tokens are never cached, so a small local cache suffices
	tokenCache, err := cache.NewMemory[oauth.Token](time.Hour, 16)
	if err != nil {
		return oauth.Response{}, err
	}
	defer tokenCache.Close()

	resolver := oauth.NewResolver(store, endpoint.New(30*time.Second), tokenCache)

	state := uuid.NewString()

	consentURL, err := resolver.GenerateUserAuthorizationURL(env, cfg.Scopes, state)
	if err != nil {
		return oauth.Response{}, err
	}

	callback := newCallbackServer(state)
	addr, err := callback.start(cfg.ListenAddress)
	if err != nil {
		return oauth.Response{}, err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = callback.shutdown(shutdownCtx)
	}()

	log.Info().Str("listening", addr.String()).Str("environment", env.Identifier()).Msg("waiting for authorization redirect")

	if err := open(consentURL); err != nil {
		log.Warn().Err(err).Msg("could not open a browser")
	}
	fmt.Fprintf(os.Stderr, "\nIf the browser did not open, visit:\n\n  %s\n\n", consentURL)

	waitCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	result := callback.wait(waitCtx)
	if result.Err != nil {
		return oauth.Response{}, result.Err
	}

	resp, err := resolver.ExchangeCodeForAccessToken(ctx, env, result.Code)
	if err != nil {
		return oauth.Response{}, err
	}
	if resp.Failed() {
		return oauth.Response{}, fmt.Errorf("code exchange: %s", resp.ErrorMessage)
	}

	return resp, nil
}
