package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/chinmina/ebay-oauth-bridge/internal/config"
	"github.com/rs/zerolog/log"
)

// New returns an HTTP server for handler with conservative limits on request
// headers.
func New(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		MaxHeaderBytes:    20 << 10,         // 20 KB
		ReadHeaderTimeout: 20 * time.Second, // Slowloris
	}
}

// Serve runs server until SIGINT or SIGTERM is received, then drains
// in-flight requests and executes hooks within the configured shutdown
// timeout.
func Serve(ctx context.Context, cfg config.ServerConfig, server *http.Server, hooks *ShutdownHooks) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second, server, hooks)
}

func serve(ctx context.Context, shutdownTimeout time.Duration, server *http.Server, hooks *ShutdownHooks) error {
	serverErr := make(chan error, 1)

	go func() {
		log.Info().Str("address", server.Addr).Msg("server: listening")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			hooks.Execute(context.Background())
			return fmt.Errorf("server: listen failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info().Msg("server: shutdown requested")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	err := server.Shutdown(shutdownCtx)
	if err != nil {
		log.Warn().Err(err).Msg("server: graceful shutdown incomplete")
	}

	hooks.Execute(shutdownCtx)

	log.Info().Msg("server: stopped")

	return err
}
