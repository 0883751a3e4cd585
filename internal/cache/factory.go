package cache

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/chinmina/ebay-oauth-bridge/internal/config"
	"github.com/redis/rueidis"
	"github.com/rs/zerolog/log"
)

// NewFromConfig creates a cache implementation based on the provided configuration.
// It returns the cache and any error encountered.
//
// The cache type must be either "memory" or "redis". Any other value returns an error.
// For "redis", the cacheConfig.Redis.Address must be provided.
func NewFromConfig[T any](ctx context.Context, cacheConfig config.CacheConfig) (TokenCache[T], error) {
	switch cacheConfig.Type {
	case "redis":
		log.Info().
			Str("cache_type", "redis").
			Str("address", cacheConfig.Redis.Address).
			Bool("tls", cacheConfig.Redis.TLS).
			Msg("initializing distributed cache")

		if cacheConfig.Redis.Address == "" {
			return nil, fmt.Errorf("redis address is required when cache type is redis")
		}

		redisOpts := rueidis.ClientOption{
			InitAddress: []string{cacheConfig.Redis.Address},
			Username:    cacheConfig.Redis.Username,
			Password:    cacheConfig.Redis.Password,
			SelectDB:    cacheConfig.Redis.DB,
		}

		// Configure TLS if enabled
		if cacheConfig.Redis.TLS {
			redisOpts.TLSConfig = &tls.Config{
				MinVersion: tls.VersionTLS12,
			}
		}

		redisClient, err := rueidis.NewClient(redisOpts)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis client: %w", err)
		}

		distributed, err := NewDistributed[T](redisClient, cacheConfig.TTL(), cacheConfig.Redis.KeyPrefix)
		if err != nil {
			redisClient.Close()
			return nil, fmt.Errorf("failed to create distributed cache: %w", err)
		}

		return NewInstrumented(distributed, "distributed"), nil

	case "memory":
		log.Info().
			Str("cache_type", "memory").
			Int("max_size", cacheConfig.MaxSize).
			Msg("initializing in-memory cache")

		memory, err := NewMemory[T](cacheConfig.TTL(), cacheConfig.MaxSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create memory cache: %w", err)
		}

		return NewInstrumented(memory, "memory"), nil

	default:
		return nil, fmt.Errorf("invalid cache type %q: must be either \"memory\" or \"redis\"", cacheConfig.Type)
	}
}
