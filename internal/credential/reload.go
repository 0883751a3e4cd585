package credential

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PeriodicReload re-reads the credentials file at path every interval until
// ctx is cancelled. A failed reload keeps the previously loaded credentials.
func PeriodicReload(ctx context.Context, store *Store, path string, interval time.Duration) {
	for {
		select {
		case <-time.After(interval):
			reload(ctx, store, path)
		case <-ctx.Done():
			log.Info().Msg("credential reload goroutine shutting down gracefully")
			return
		}
	}
}

func reload(ctx context.Context, store *Store, path string) {
	tracer := otel.Tracer("github.com/chinmina/ebay-oauth-bridge/internal/credential")
	ctx, span := tracer.Start(ctx, "reload_credentials")
	defer span.End()

	span.SetAttributes(attribute.String("credentials.path", path))

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic during credential reload: %v", r)
			span.RecordError(err)
			span.SetStatus(codes.Error, "credential reload panicked")
			log.Warn().Interface("panic", r).Msg("credential reload panicked, recovered")
		}
	}()

	if err := store.LoadFile(ctx, path); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "credential reload failed")
		log.Warn().Err(err).Msg("credential reload failed, keeping previous credentials")
		return
	}

	span.SetStatus(codes.Ok, "credentials reloaded")
}
