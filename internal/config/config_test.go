package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OAUTH_CREDENTIALS_FILE", "/etc/ebay/credentials.yaml")

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Cache.Type)
	assert.Equal(t, 2*time.Hour, cfg.Cache.TTL())
	assert.Equal(t, 10_000, cfg.Cache.MaxSize)
	assert.Equal(t, time.Minute, cfg.OAuth.ExpiryBuffer())
	assert.Equal(t, 30*time.Second, cfg.OAuth.RequestTimeout())
	assert.Equal(t, time.Duration(0), cfg.OAuth.CredentialsRefresh())
	assert.False(t, cfg.OAuth.KMSEnabled)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_CredentialsFileRequired(t *testing.T) {
	_, err := load(context.Background(), envconfig.MapLookuper(map[string]string{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OAUTH_CREDENTIALS_FILE")
}

func TestLoad_Redis(t *testing.T) {
	cfg, err := load(context.Background(), envconfig.MapLookuper(map[string]string{
		"OAUTH_CREDENTIALS_FILE": "creds.yaml",
		"CACHE_TYPE":             "redis",
		"REDIS_ADDRESS":          "localhost:6379",
		"REDIS_TLS":              "false",
	}))
	require.NoError(t, err)

	expected := RedisConfig{
		Address:   "localhost:6379",
		TLS:       false,
		KeyPrefix: "ebay-oauth:",
	}
	assert.Equal(t, expected, cfg.Cache.Redis)
}

func TestLoad_InvalidCombinations(t *testing.T) {
	cases := []struct {
		name     string
		env      map[string]string
		contains string
	}{
		{
			name:     "redis without address",
			env:      map[string]string{"CACHE_TYPE": "redis"},
			contains: "REDIS_ADDRESS",
		},
		{
			name:     "unknown cache type",
			env:      map[string]string{"CACHE_TYPE": "valkey"},
			contains: "CACHE_TYPE",
		},
		{
			name:     "negative buffer",
			env:      map[string]string{"OAUTH_EXPIRY_BUFFER_SECS": "-1"},
			contains: "OAUTH_EXPIRY_BUFFER_SECS",
		},
		{
			name:     "zero timeout",
			env:      map[string]string{"OAUTH_REQUEST_TIMEOUT_SECS": "0"},
			contains: "OAUTH_REQUEST_TIMEOUT_SECS",
		},
		{
			name:     "zero ttl",
			env:      map[string]string{"CACHE_TTL_SECS": "0"},
			contains: "CACHE_TTL_SECS",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.env["OAUTH_CREDENTIALS_FILE"] = "creds.yaml"

			_, err := load(context.Background(), envconfig.MapLookuper(tc.env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.contains)
		})
	}
}
