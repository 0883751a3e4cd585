//go:build integration

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/chinmina/ebay-oauth-bridge/internal/cache"
	"github.com/chinmina/ebay-oauth-bridge/internal/config"
	"github.com/chinmina/ebay-oauth-bridge/internal/credential"
	"github.com/chinmina/ebay-oauth-bridge/internal/oauth"
	"github.com/chinmina/ebay-oauth-bridge/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

// APITestHarness runs the full API against a mock eBay token endpoint.
type APITestHarness struct {
	Server      *httptest.Server
	TokenServer *testhelpers.MockTokenServer

	cacheConfig config.CacheConfig
}

type APITestHarnessOption func(*APITestHarness)

// WithCacheConfig selects the token cache, e.g. a Redis container.
func WithCacheConfig(cfg config.CacheConfig) APITestHarnessOption {
	return func(h *APITestHarness) {
		h.cacheConfig = cfg
	}
}

// WithTokenServer shares a token endpoint between harnesses.
func WithTokenServer(server *testhelpers.MockTokenServer) APITestHarnessOption {
	return func(h *APITestHarness) {
		h.TokenServer = server
	}
}

func NewAPITestHarness(t *testing.T, options ...APITestHarnessOption) *APITestHarness {
	t.Helper()

	h := &APITestHarness{
		cacheConfig: config.CacheConfig{Type: "memory", TTLSeconds: 7200, MaxSize: 100},
	}
	for _, opt := range options {
		opt(h)
	}

	if h.TokenServer == nil {
		h.TokenServer = testhelpers.SetupMockTokenServer(t, map[string]any{
			"access_token": "app-token",
			"expires_in":   7200,
			"token_type":   "Application Access Token",
		})
	}

	store := credential.NewStore()
	err := store.Load(context.Background(), strings.NewReader(fmt.Sprintf(`
api.sandbox.ebay.com:
  clientId: sandbox-client
  clientSecret: sandbox-secret
  redirectUri: Harness-SBX-ru
  tokenEndpoint: %s
`, h.TokenServer.TokenURL())))
	require.NoError(t, err)

	tokenCache, err := cache.NewFromConfig[oauth.Token](context.Background(), h.cacheConfig)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tokenCache.Close() })

	resolver := newResolver(config.OAuthConfig{ExpiryBufferSeconds: 60, RequestTimeoutSeconds: 5}, store, tokenCache)

	h.Server = httptest.NewServer(configureServerRoutes(resolver))
	t.Cleanup(h.Server.Close)

	return h
}

func (h *APITestHarness) Client() *TestClient {
	return &TestClient{baseURL: h.Server.URL, client: h.Server.Client()}
}

type TestClient struct {
	baseURL string
	client  *http.Client
}

// Post sends payload as JSON and decodes the reply into an oauth.Response.
func (c *TestClient) Post(path string, payload any) (oauth.Response, int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return oauth.Response{}, 0, err
	}

	resp, err := c.client.Post(c.baseURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return oauth.Response{}, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return oauth.Response{}, resp.StatusCode, err
	}

	var decoded oauth.Response
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return oauth.Response{}, resp.StatusCode, fmt.Errorf("decoding %q: %w", raw, err)
	}

	return decoded, resp.StatusCode, nil
}

func (c *TestClient) ApplicationToken(env string, scopes ...string) (oauth.Response, int, error) {
	return c.Post("/token/"+env, map[string]any{"scopes": scopes})
}
