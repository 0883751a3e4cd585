package observe

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouteName(t *testing.T) {
	tests := []struct {
		pattern  string
		expected string
	}{
		{pattern: "POST /token/{environment}", expected: "/token/{environment}"},
		{pattern: "GET /authorize/{environment}", expected: "/authorize/{environment}"},
		{pattern: "DELETE /items/123", expected: "/items/123"},
		{pattern: "/healthcheck", expected: "/healthcheck"},
		{pattern: "INVALID /path", expected: "INVALID /path"},
		{pattern: "post /token", expected: "post /token"},
		{pattern: "GET", expected: "GET"},
		{pattern: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.expected, RouteName(tt.pattern))
		})
	}
}

func TestMux_RoutesThroughTelemetry(t *testing.T) {
	mux := NewMux(http.NewServeMux())

	var gotEnv string
	mux.Handle("POST /token/{environment}", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEnv = r.PathValue("environment")
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/token/sandbox", nil))

	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Equal(t, "sandbox", gotEnv)
}

func TestMux_UnknownRoute(t *testing.T) {
	mux := NewMux(http.NewServeMux())
	mux.Handle("POST /token/{environment}", http.NotFoundHandler())

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/token/sandbox", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
