package audit_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chinmina/ebay-oauth-bridge/internal/audit"
	"github.com/chinmina/ebay-oauth-bridge/internal/testhelpers"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware(t *testing.T) {
	t.Run("captures request info and configures context", func(t *testing.T) {
		testhelpers.SetupLogger(t)

		testAgent := "kettle/1.0"
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			entry := audit.Log(r.Context())
			assert.Equal(t, testAgent, entry.UserAgent)
			assert.Equal(t, "/token/sandbox", entry.Path)

			w.WriteHeader(http.StatusTeapot)
		})

		req, w := requestSetup()
		req.Header.Set("User-Agent", testAgent)

		audit.Middleware()(handler).ServeHTTP(w, req)

		assert.Equal(t, http.StatusTeapot, w.Result().StatusCode)
	})

	t.Run("captures status code", func(t *testing.T) {
		testhelpers.SetupLogger(t)

		var capturedContext context.Context
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			capturedContext = r.Context()
			w.WriteHeader(http.StatusBadGateway)
			w.WriteHeader(http.StatusOK) // superfluous, ignored
		})

		req, w := requestSetup()
		audit.Middleware()(handler).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadGateway, audit.Log(capturedContext).Status)
	})

	t.Run("implicit status on write", func(t *testing.T) {
		testhelpers.SetupLogger(t)

		var capturedContext context.Context
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			capturedContext = r.Context()
			_, _ = w.Write([]byte("ok"))
		})

		req, w := requestSetup()
		audit.Middleware()(handler).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, audit.Log(capturedContext).Status)
	})

	t.Run("log written", func(t *testing.T) {
		testhelpers.SetupLogger(t)

		var written map[string]any
		ctx := withLogCapture(context.Background(), &written)

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			entry := audit.Log(r.Context())
			entry.Environment = "api.sandbox.ebay.com"
			entry.Grant = "client_credentials"
			entry.Scopes = []string{"https://api.ebay.com/oauth/api_scope"}
			w.WriteHeader(http.StatusOK)
		})

		req, w := requestSetup()
		audit.Middleware()(handler).ServeHTTP(w, req.WithContext(ctx))

		require.NotNil(t, written, "audit log entry should be written")
		assert.Equal(t, "audit", written["message"])

		token, ok := written["token"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "api.sandbox.ebay.com", token["environment"])
		assert.Equal(t, "client_credentials", token["grant"])
	})

	t.Run("log written on panic", func(t *testing.T) {
		testhelpers.SetupLogger(t)

		var written map[string]any
		ctx := withLogCapture(context.Background(), &written)

		var entry *audit.Entry
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, entry = audit.Context(r.Context())
			entry.Error = "failure pre-panic"
			panic("not a teapot")
		})

		req, w := requestSetup()

		assert.PanicsWithValue(t, "not a teapot", func() {
			audit.Middleware()(handler).ServeHTTP(w, req.WithContext(ctx))
		})

		assert.Equal(t, "failure pre-panic; panic: not a teapot", entry.Error)
		assert.NotNil(t, written, "audit log entry should be written")
	})
}

func TestAuditing(t *testing.T) {
	testhelpers.SetupLogger(t)

	ctx := context.Background()
	r, _ := requestSetup()

	_, e := audit.Context(ctx)
	e.Begin(r)
	e.End(ctx)()

	assert.Equal(t, &audit.Entry{
		Method:    "POST",
		Path:      "/token/sandbox",
		UserAgent: "kettle/1.0",
		SourceIP:  "192.0.2.1",
		Status:    200,
	}, e)
}

func TestLog_OutsideMiddleware(t *testing.T) {
	entry := audit.Log(context.Background())

	require.NotNil(t, entry)
	entry.Error = "not recorded anywhere"
}

func TestEntrySerialization(t *testing.T) {
	serialize := func(t *testing.T, entry audit.Entry) map[string]any {
		t.Helper()
		var buf bytes.Buffer
		logger := zerolog.New(&buf)
		logger.Log().EmbedObject(&entry).Send()

		var result map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &result))
		return result
	}

	t.Run("request fields nested", func(t *testing.T) {
		result := serialize(t, audit.Entry{
			Method:    "POST",
			Path:      "/token/production",
			Status:    200,
			SourceIP:  "10.0.0.1",
			UserAgent: "test/1.0",
		})

		request, ok := result["request"].(map[string]any)
		require.True(t, ok, "expected 'request' dict in log output")
		assert.Equal(t, "POST", request["method"])
		assert.Equal(t, "/token/production", request["path"])
		assert.Equal(t, float64(200), request["status"])
		assert.Equal(t, "10.0.0.1", request["sourceIP"])
		assert.Equal(t, "test/1.0", request["userAgent"])
	})

	t.Run("token fields nested", func(t *testing.T) {
		expiry := time.Date(2026, 5, 7, 17, 59, 36, 0, time.UTC)
		result := serialize(t, audit.Entry{
			Environment: "api.ebay.com",
			Grant:       "refresh_token",
			Scopes:      []string{"a", "b"},
			ExpiresAt:   expiry,
		})

		token, ok := result["token"].(map[string]any)
		require.True(t, ok, "expected 'token' dict in log output")
		assert.Equal(t, "api.ebay.com", token["environment"])
		assert.Equal(t, "refresh_token", token["grant"])
		assert.Equal(t, []any{"a", "b"}, token["scopes"])
		assert.Contains(t, token, "expiresAt")
	})

	t.Run("token omitted when empty", func(t *testing.T) {
		result := serialize(t, audit.Entry{Method: "GET"})

		assert.Contains(t, result, "request")
		assert.NotContains(t, result, "token")
		assert.NotContains(t, result, "error")
	})

	t.Run("error present when set", func(t *testing.T) {
		result := serialize(t, audit.Entry{Error: "something broke"})
		assert.Equal(t, "something broke", result["error"])
	})
}

func requestSetup() (*http.Request, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "http://example.com/token/sandbox", nil)
	req.Header.Set("User-Agent", "kettle/1.0")

	return req, httptest.NewRecorder()
}

// withLogCapture attaches a logger to ctx that decodes the audit entry into
// target.
func withLogCapture(ctx context.Context, target *map[string]any) context.Context {
	w := writerFunc(func(p []byte) (int, error) {
		var entry map[string]any
		if err := json.Unmarshal(p, &entry); err == nil && entry["message"] == "audit" {
			*target = entry
		}
		return len(p), nil
	})

	logger := log.Logger.Output(w)
	return logger.WithContext(ctx)
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
