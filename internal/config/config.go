package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	OAuth   OAuthConfig
	Cache   CacheConfig
	Observe ObserveConfig
	Server  ServerConfig
}

type ServerConfig struct {
	Port                   int `env:"SERVER_PORT, default=8080"`
	ShutdownTimeoutSeconds int `env:"SERVER_SHUTDOWN_TIMEOUT_SECS, default=25"`

	OutgoingHTTPMaxIdleConns    int `env:"SERVER_OUTGOING_MAX_IDLE_CONNS, default=100"`
	OutgoingHTTPMaxConnsPerHost int `env:"SERVER_OUTGOING_MAX_CONNS_PER_HOST, default=20"`
}

// OAuthConfig controls credential loading and the token lifecycle.
type OAuthConfig struct {
	// CredentialsFile is the YAML file holding per-environment application
	// credentials.
	CredentialsFile string `env:"OAUTH_CREDENTIALS_FILE, required"`

	// CredentialsRefreshSeconds re-reads the credentials file on this
	// interval. Zero disables reloading.
	CredentialsRefreshSeconds int `env:"OAUTH_CREDENTIALS_REFRESH_SECS, default=0"`

	// KMSEnabled allows "kms:" prefixed secrets in the credentials file,
	// decrypted with AWS KMS at load time.
	KMSEnabled bool `env:"OAUTH_CREDENTIALS_KMS_ENABLED, default=false"`

	// ExpiryBufferSeconds is subtracted from a token's remaining lifetime
	// when deciding whether a cached token can still be used.
	ExpiryBufferSeconds int `env:"OAUTH_EXPIRY_BUFFER_SECS, default=60"`

	// RequestTimeoutSeconds bounds each call to the token endpoint.
	RequestTimeoutSeconds int `env:"OAUTH_REQUEST_TIMEOUT_SECS, default=30"`
}

func (c OAuthConfig) ExpiryBuffer() time.Duration {
	return time.Duration(c.ExpiryBufferSeconds) * time.Second
}

func (c OAuthConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func (c OAuthConfig) CredentialsRefresh() time.Duration {
	return time.Duration(c.CredentialsRefreshSeconds) * time.Second
}

// Validate checks that the token lifecycle settings are usable.
func (c *OAuthConfig) Validate() error {
	if c.ExpiryBufferSeconds < 0 {
		return fmt.Errorf("OAUTH_EXPIRY_BUFFER_SECS must not be negative")
	}

	if c.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("OAUTH_REQUEST_TIMEOUT_SECS must be positive")
	}

	if c.CredentialsRefreshSeconds < 0 {
		return fmt.Errorf("OAUTH_CREDENTIALS_REFRESH_SECS must not be negative")
	}

	return nil
}

// CacheConfig specifies cache configuration.
type CacheConfig struct {
	// Type selects the cache implementation: "memory" (default) or "redis"
	Type string `env:"CACHE_TYPE, default=memory"`

	// TTLSeconds is the upper bound on how long an entry is retained by the
	// backing store. Token liveness is judged separately from the token's own
	// expiry, so this only needs to exceed the longest token lifetime.
	TTLSeconds int `env:"CACHE_TTL_SECS, default=7200"`

	// MaxSize bounds the number of entries held by the memory cache.
	MaxSize int `env:"CACHE_MAX_SIZE, default=10000"`

	// Redis holds distributed cache settings.
	Redis RedisConfig
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// RedisConfig specifies distributed cache configuration.
type RedisConfig struct {
	// Address is the Redis server address (host:port).
	Address string `env:"REDIS_ADDRESS"`

	// TLS enables TLS connection to Redis. Defaults to true so the secure option
	// is the default.
	TLS bool `env:"REDIS_TLS, default=true"`

	// Username for Redis authentication.
	Username string `env:"REDIS_USERNAME"`

	// Password for Redis authentication.
	Password string `env:"REDIS_PASSWORD"`

	// DB selects the logical database.
	DB int `env:"REDIS_DB, default=0"`

	// KeyPrefix namespaces the cache keys, allowing several deployments to
	// share a server.
	KeyPrefix string `env:"REDIS_KEY_PREFIX, default=ebay-oauth:"`
}

type ObserveConfig struct {
	SDKLogLevel                string `env:"OBSERVE_OTEL_LOG_LEVEL, default=info"`
	Enabled                    bool   `env:"OBSERVE_ENABLED, default=false"`
	MetricsEnabled             bool   `env:"OBSERVE_METRICS_ENABLED, default=true"`
	Type                       string `env:"OBSERVE_TYPE, default=grpc"`
	ServiceName                string `env:"OBSERVE_SERVICE_NAME, default=ebay-oauth-bridge"`
	TraceBatchTimeoutSeconds   int    `env:"OBSERVE_TRACE_BATCH_TIMEOUT_SECS, default=20"`
	MetricReadIntervalSeconds  int    `env:"OBSERVE_METRIC_READ_INTERVAL_SECS, default=60"`
	HTTPTransportEnabled       bool   `env:"OBSERVE_HTTP_TRANSPORT_ENABLED, default=true"`
	HTTPConnectionTraceEnabled bool   `env:"OBSERVE_CONNECTION_TRACE_ENABLED, default=true"`
}

func Load(ctx context.Context) (Config, error) {
	return load(ctx, nil) // load from OS environment
}

func load(ctx context.Context, lookup envconfig.Lookuper) (Config, error) {
	var cfg Config
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookup, // nil defaults to OS environment
	})
	if err != nil {
		return cfg, err
	}

	err = cfg.OAuth.Validate()
	if err != nil {
		return cfg, fmt.Errorf("invalid oauth configuration: %w", err)
	}

	err = cfg.Cache.Validate()
	if err != nil {
		return cfg, fmt.Errorf("invalid cache configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the cache configuration is valid.
func (c *CacheConfig) Validate() error {
	switch c.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("CACHE_TYPE must be either \"memory\" or \"redis\", got %q", c.Type)
	}

	if c.TTLSeconds <= 0 {
		return fmt.Errorf("CACHE_TTL_SECS must be positive")
	}

	if c.Type == "memory" && c.MaxSize <= 0 {
		return fmt.Errorf("CACHE_MAX_SIZE must be positive")
	}

	// Redis requires address
	if c.Type == "redis" && c.Redis.Address == "" {
		return fmt.Errorf("REDIS_ADDRESS required when CACHE_TYPE=redis")
	}

	return nil
}
