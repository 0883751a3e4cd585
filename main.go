package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime/debug"
	"strings"

	"github.com/chinmina/ebay-oauth-bridge/internal/audit"
	"github.com/chinmina/ebay-oauth-bridge/internal/cache"
	"github.com/chinmina/ebay-oauth-bridge/internal/config"
	"github.com/chinmina/ebay-oauth-bridge/internal/credential"
	"github.com/chinmina/ebay-oauth-bridge/internal/endpoint"
	"github.com/chinmina/ebay-oauth-bridge/internal/oauth"
	"github.com/chinmina/ebay-oauth-bridge/internal/observe"
	"github.com/chinmina/ebay-oauth-bridge/internal/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/justinas/alice"
)

func configureServerRoutes(resolver TokenResolver) http.Handler {
	// wrap a mux such that HTTP telemetry is configured by default
	muxWithoutTelemetry := http.NewServeMux()
	mux := observe.NewMux(muxWithoutTelemetry)

	// The request body size is fairly limited to prevent accidental or
	// deliberate abuse. Given the current API shape, this is not configurable.
	requestLimitBytes := int64(20 << 10) // 20 KB
	requestLimiter := maxRequestSize(requestLimitBytes)

	// the request id is attached before auditing so the audit entry carries it
	tokenRouteMiddleware := alice.New(requestLimiter, requestLogger(), audit.Middleware())
	standardRouteMiddleware := alice.New(requestLimiter)

	mux.Handle("POST /token/{environment}", tokenRouteMiddleware.Then(handlePostToken(resolver)))
	mux.Handle("GET /authorize/{environment}", tokenRouteMiddleware.Then(handleGetAuthorizationURL(resolver)))
	mux.Handle("POST /exchange/{environment}", tokenRouteMiddleware.Then(handlePostExchange(resolver)))
	mux.Handle("POST /refresh/{environment}", tokenRouteMiddleware.Then(handlePostRefresh(resolver)))

	// healthchecks are not included in telemetry
	muxWithoutTelemetry.Handle("GET /healthcheck", standardRouteMiddleware.Then(handleHealthCheck()))

	return mux
}

func main() {
	configureLogging()

	logBuildInfo()

	err := launchServer()
	if err != nil {
		log.Fatal().Err(err).Msg("server failed to start")
	}
}

func launchServer() error {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("configuration load failed: %w", err)
	}

	// configure telemetry, including wrapping default HTTP client
	shutdownTelemetry, err := observe.Configure(ctx, cfg.Observe)
	if err != nil {
		return fmt.Errorf("telemetry bootstrap failed: %w", err)
	}

	http.DefaultTransport = observe.HTTPTransport(
		configureHTTPTransport(cfg.Server),
		cfg.Observe,
	)
	http.DefaultClient = &http.Client{
		Transport: http.DefaultTransport,
	}

	hooks := &server.ShutdownHooks{}

	store, err := loadCredentials(ctx, cfg.OAuth)
	if err != nil {
		return fmt.Errorf("credential load failed: %w", err)
	}

	if interval := cfg.OAuth.CredentialsRefresh(); interval > 0 {
		reloadCtx, stopReload := context.WithCancel(ctx)
		go credential.PeriodicReload(reloadCtx, store, cfg.OAuth.CredentialsFile, interval)
		hooks.AddCancel("credential-reload", stopReload)
	}

	tokenCache, err := cache.NewFromConfig[oauth.Token](ctx, cfg.Cache)
	if err != nil {
		return fmt.Errorf("token cache configuration failed: %w", err)
	}
	hooks.AddClose("token-cache", tokenCache)

	resolver := newResolver(cfg.OAuth, store, tokenCache)

	// telemetry goes last so the shutdown of everything else is recorded
	hooks.AddContext("telemetry", shutdownTelemetry)

	srv := server.New(cfg.Server, configureServerRoutes(resolver))

	err = server.Serve(ctx, cfg.Server, srv, hooks)
	if err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// newResolver configures the resolver for a service shared between callers.
// Refreshed tokens belong to the user who presented the refresh token, so
// they are never cached where application token requests would find them.
func newResolver(cfg config.OAuthConfig, credentials oauth.CredentialResolver, tokenCache cache.TokenCache[oauth.Token]) *oauth.Resolver {
	return oauth.NewResolver(
		credentials,
		endpoint.New(cfg.RequestTimeout()),
		tokenCache,
		oauth.WithExpiryBuffer(cfg.ExpiryBuffer()),
		oauth.WithRefreshCaching(false),
	)
}

func loadCredentials(ctx context.Context, cfg config.OAuthConfig) (*credential.Store, error) {
	var opts []credential.StoreOption

	if cfg.KMSEnabled {
		decrypter, err := credential.NewKMSDecrypterFromEnvironment(ctx)
		if err != nil {
			return nil, fmt.Errorf("kms configuration failed: %w", err)
		}
		opts = append(opts, credential.WithSecretDecrypter(decrypter))
	}

	store := credential.NewStore(opts...)
	if err := store.LoadFile(ctx, cfg.CredentialsFile); err != nil {
		return nil, err
	}

	return store, nil
}

func configureLogging() {
	// Set global level to the minimum: allows the Open Telemetry logging to be
	// configured separately. However, it means that any logger that sets its
	// level will log as this effectively disables the global level.
	zerolog.SetGlobalLevel(zerolog.Level(-128))

	// default level is Info
	log.Logger = log.Level(zerolog.InfoLevel)

	if os.Getenv("ENV") == "development" {
		log.Logger = log.
			Output(zerolog.ConsoleWriter{Out: os.Stdout}).
			Level(zerolog.DebugLevel)
	}

	zerolog.DefaultContextLogger = &log.Logger
}

func logBuildInfo() {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	ev := log.Info()
	for _, v := range buildInfo.Settings {
		if strings.HasPrefix(v.Key, "vcs.") ||
			strings.HasPrefix(v.Key, "GO") ||
			v.Key == "CGO_ENABLED" {
			ev = ev.Str(v.Key, v.Value)
		}
	}

	ev.Msg("build information")
}

func configureHTTPTransport(cfg config.ServerConfig) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	transport.MaxIdleConns = cfg.OutgoingHTTPMaxIdleConns
	transport.MaxConnsPerHost = cfg.OutgoingHTTPMaxConnsPerHost

	return transport
}
