package server

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestShutdownHooks_ExecutesInOrder(t *testing.T) {
	hooks := &ShutdownHooks{}
	var order []string

	hooks.AddContext("first", func(context.Context) error {
		order = append(order, "first")
		return nil
	})
	hooks.AddCancel("second", func() {
		order = append(order, "second")
	})
	hooks.AddClose("third", closerFunc(func() error {
		order = append(order, "third")
		return nil
	}))

	hooks.Execute(context.Background())

	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestShutdownHooks_ContinuesAfterFailure(t *testing.T) {
	hooks := &ShutdownHooks{}
	var executed []string

	hooks.AddClose("failing", closerFunc(func() error {
		executed = append(executed, "failing")
		return errors.New("connection already closed")
	}))
	hooks.AddContext("after", func(context.Context) error {
		executed = append(executed, "after")
		return nil
	})

	hooks.Execute(context.Background())

	assert.Equal(t, []string{"failing", "after"}, executed)
}

func TestShutdownHooks_IgnoresNil(t *testing.T) {
	hooks := &ShutdownHooks{}

	hooks.AddContext("nil-context", nil)
	hooks.AddCancel("nil-cancel", nil)
	hooks.AddClose("nil-closer", nil)

	require.Empty(t, hooks.hooks)

	hooks.Execute(context.Background())
}

func TestShutdownHooks_PassesContext(t *testing.T) {
	type ctxKey struct{}
	hooks := &ShutdownHooks{}

	var received any
	hooks.AddContext("ctx", func(ctx context.Context) error {
		received = ctx.Value(ctxKey{})
		return nil
	})

	hooks.Execute(context.WithValue(context.Background(), ctxKey{}, "value"))

	assert.Equal(t, "value", received)
}
