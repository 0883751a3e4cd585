package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/rueidis"
)

// Distributed implements TokenCache using Redis with server-assisted
// client-side caching, allowing several instances to share issued tokens.
// The generic type T represents the token type being cached.
type Distributed[T any] struct {
	client    rueidis.Client
	ttl       time.Duration
	keyPrefix string
}

// NewDistributed creates a new Redis-backed cache. The ttl parameter
// specifies how long tokens remain in the store; keyPrefix namespaces every
// key written.
func NewDistributed[T any](client rueidis.Client, ttl time.Duration, keyPrefix string) (*Distributed[T], error) {
	if ttl < time.Second {
		return nil, fmt.Errorf("distributed cache ttl must be at least one second, got %s", ttl)
	}

	return &Distributed[T]{
		client:    client,
		ttl:       ttl,
		keyPrefix: keyPrefix,
	}, nil
}

func (d *Distributed[T]) storageKey(key string) string {
	return d.keyPrefix + key
}

// Get retrieves a token from the cache using server-assisted client-side caching.
// Returns the token, whether it was found, and any error.
func (d *Distributed[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T

	// The .Cache() method enables client-side caching with server tracking
	cmd := d.client.B().Get().Key(d.storageKey(key)).Cache()
	val, err := d.client.DoCache(ctx, cmd, d.ttl).ToString()
	if err != nil {
		// Key not found is not an error in our semantics
		if rueidis.IsRedisNil(err) {
			return zero, false, nil
		}
		return zero, false, fmt.Errorf("failed to get cached value: %w", err)
	}

	var token T
	if err := json.Unmarshal([]byte(val), &token); err != nil {
		return zero, false, fmt.Errorf("failed to unmarshal cached token: %w", err)
	}

	return token, true, nil
}

// Set stores a token in the cache with the configured TTL.
// The token is JSON-serialized before storage.
func (d *Distributed[T]) Set(ctx context.Context, key string, token T) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	cmd := d.client.B().Set().Key(d.storageKey(key)).Value(string(data)).ExSeconds(int64(d.ttl.Seconds())).Build()
	if err := d.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to set cached value: %w", err)
	}
	return nil
}

// Invalidate removes a token from the cache.
func (d *Distributed[T]) Invalidate(ctx context.Context, key string) error {
	cmd := d.client.B().Del().Key(d.storageKey(key)).Build()
	if err := d.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to invalidate cached value: %w", err)
	}
	return nil
}

// Close releases resources associated with the cache client.
func (d *Distributed[T]) Close() error {
	d.client.Close()
	return nil
}
