//go:build integration

package testhelpers

import (
	"context"
	"crypto/rand"
	"testing"

	"github.com/chinmina/ebay-oauth-bridge/internal/config"
	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/log"
	"github.com/testcontainers/testcontainers-go/wait"
)

// RunRedisContainer starts a Redis container and returns a cache
// configuration pointing at it, including the ephemeral address and
// password. Cleanup is handled automatically via t.Cleanup().
func RunRedisContainer(t *testing.T) config.CacheConfig {
	t.Helper()
	ctx := context.Background()

	redisPort := "6379"
	redisProtocolPort := redisPort + "/tcp"

	password := rand.Text()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		Cmd:          []string{"redis-server", "--requirepass", password},
		ExposedPorts: []string{redisProtocolPort},
		WaitingFor: wait.ForAll(
			wait.ForLog("Ready to accept connections"),
			wait.ForListeningPort(nat.Port(redisProtocolPort)),
		),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
		Logger:           log.TestLogger(t),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	port, err := container.MappedPort(ctx, nat.Port(redisPort))
	require.NoError(t, err)

	return config.CacheConfig{
		Type:       "redis",
		TTLSeconds: 60,
		Redis: config.RedisConfig{
			// Use 127.0.0.1 explicitly to avoid IPv6 issues
			Address:   "127.0.0.1:" + port.Port(),
			TLS:       false,
			Password:  password,
			KeyPrefix: "integration:",
		},
	}
}
