package server

import (
	"context"
	"io"

	"github.com/rs/zerolog/log"
)

type hook struct {
	name string
	fn   func(context.Context) error
}

// ShutdownHooks runs cleanup for long-lived resources (credential reload,
// token cache connections, telemetry) once the server has stopped accepting
// requests. Hooks run in registration order; a failing hook is logged and
// the rest still run.
type ShutdownHooks struct {
	hooks []hook
}

// AddContext registers fn. Nil hooks are ignored.
func (s *ShutdownHooks) AddContext(name string, fn func(context.Context) error) {
	if fn == nil {
		log.Warn().Str("hook", name).Msg("ignoring nil shutdown hook")
		return
	}

	s.hooks = append(s.hooks, hook{name: name, fn: fn})
}

// AddCancel registers a context cancellation, used to stop background loops.
func (s *ShutdownHooks) AddCancel(name string, cancel context.CancelFunc) {
	if cancel == nil {
		log.Warn().Str("hook", name).Msg("ignoring nil shutdown hook")
		return
	}

	s.AddContext(name, func(context.Context) error {
		cancel()
		return nil
	})
}

// AddClose registers closer, such as a token cache.
func (s *ShutdownHooks) AddClose(name string, closer io.Closer) {
	if closer == nil {
		log.Warn().Str("hook", name).Msg("ignoring nil shutdown hook")
		return
	}

	s.AddContext(name, func(context.Context) error {
		return closer.Close()
	})
}

// Execute runs every hook with ctx, which usually carries the shutdown
// deadline.
func (s *ShutdownHooks) Execute(ctx context.Context) {
	for _, h := range s.hooks {
		l := log.Ctx(ctx).With().Str("hook", h.name).Logger()

		if err := h.fn(ctx); err != nil {
			l.Warn().Err(err).Msg("shutdown hook failed")
			continue
		}

		l.Info().Msg("shutdown hook complete")
	}
}
