package testhelpers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

// MockTokenServer is a configurable stand-in for the eBay identity token
// endpoint. Each request is recorded so tests can assert on what was sent.
type MockTokenServer struct {
	Server *httptest.Server

	mu         sync.Mutex
	statusCode int
	responses  []any
	requests   []url.Values
}

// SetupMockTokenServer starts a token endpoint that answers every request
// with the next queued response. When the queue has a single response left it
// is repeated.
func SetupMockTokenServer(t *testing.T, responses ...any) *MockTokenServer {
	t.Helper()

	mock := &MockTokenServer{
		statusCode: http.StatusOK,
		responses:  responses,
	}

	router := http.NewServeMux()
	router.HandleFunc("POST /identity/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		mock.mu.Lock()
		mock.requests = append(mock.requests, r.PostForm)
		status := mock.statusCode
		var payload any
		if len(mock.responses) > 0 {
			payload = mock.responses[0]
			if len(mock.responses) > 1 {
				mock.responses = mock.responses[1:]
			}
		}
		mock.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if payload != nil {
			WriteJSON(w, payload)
		}
	})

	mock.Server = httptest.NewServer(router)
	t.Cleanup(mock.Close)

	return mock
}

// TokenURL is the URL to configure as the credential's token endpoint.
func (m *MockTokenServer) TokenURL() string {
	return m.Server.URL + "/identity/v1/oauth2/token"
}

// SetStatus changes the status code returned for subsequent requests.
func (m *MockTokenServer) SetStatus(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusCode = status
}

// RequestCount is the number of requests received so far.
func (m *MockTokenServer) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of the forms received so far.
func (m *MockTokenServer) Requests() []url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]url.Values(nil), m.requests...)
}

// Close shuts down the mock server.
func (m *MockTokenServer) Close() {
	m.Server.Close()
}

// WriteJSON is a helper function that writes a JSON response.
// It marshals the payload to JSON; strings are written verbatim so tests can
// supply malformed bodies.
func WriteJSON(w http.ResponseWriter, payload any) {
	if raw, ok := payload.(string); ok {
		_, _ = w.Write([]byte(raw))
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		// In test context, this should never happen with valid test data
		http.Error(w, fmt.Sprintf("failed to marshal JSON: %v", err), http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(data)
}
