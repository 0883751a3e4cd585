package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/chinmina/ebay-oauth-bridge/internal/audit"
	"github.com/chinmina/ebay-oauth-bridge/internal/environment"
	"github.com/chinmina/ebay-oauth-bridge/internal/oauth"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// HTTPStatuser provides HTTP status information for errors
type HTTPStatuser interface {
	Status() (int, string)
}

// TokenResolver is the token lifecycle the API exposes.
type TokenResolver interface {
	GetApplicationToken(ctx context.Context, env environment.Environment, scopes []string) (oauth.Response, error)
	GenerateUserAuthorizationURL(env environment.Environment, scopes []string, state string) (string, error)
	ExchangeCodeForAccessToken(ctx context.Context, env environment.Environment, code string) (oauth.Response, error)
	GetAccessToken(ctx context.Context, env environment.Environment, refreshToken string, scopes []string) (oauth.Response, error)
}

type applicationTokenRequest struct {
	Scopes []string `json:"scopes"`
}

type exchangeRequest struct {
	Code string `json:"code"`
}

type refreshRequest struct {
	RefreshToken string   `json:"refreshToken"`
	Scopes       []string `json:"scopes"`
}

type authorizationURLResponse struct {
	URL string `json:"url"`
}

func handlePostToken(resolver TokenResolver) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		env, err := pathEnvironment(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		var body applicationTokenRequest
		if err := readJSON(r, &body); err != nil {
			writeError(w, r, err)
			return
		}

		auditGrant(r, env, "client_credentials", body.Scopes)

		resp, err := resolver.GetApplicationToken(r.Context(), env, body.Scopes)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeTokenResponse(w, r, resp)
	})
}

func handleGetAuthorizationURL(resolver TokenResolver) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		env, err := pathEnvironment(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		query := r.URL.Query()
		auditGrant(r, env, "authorization_url", query["scope"])

		authURL, err := resolver.GenerateUserAuthorizationURL(env, query["scope"], query.Get("state"))
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, r, http.StatusOK, authorizationURLResponse{URL: authURL})
	})
}

func handlePostExchange(resolver TokenResolver) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		env, err := pathEnvironment(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		var body exchangeRequest
		if err := readJSON(r, &body); err != nil {
			writeError(w, r, err)
			return
		}

		auditGrant(r, env, "authorization_code", nil)

		resp, err := resolver.ExchangeCodeForAccessToken(r.Context(), env, body.Code)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeTokenResponse(w, r, resp)
	})
}

func handlePostRefresh(resolver TokenResolver) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		env, err := pathEnvironment(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		var body refreshRequest
		if err := readJSON(r, &body); err != nil {
			writeError(w, r, err)
			return
		}

		auditGrant(r, env, "refresh_token", body.Scopes)

		resp, err := resolver.GetAccessToken(r.Context(), env, body.RefreshToken, body.Scopes)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeTokenResponse(w, r, resp)
	})
}

func handleHealthCheck() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func maxRequestSize(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.MaxBytesHandler(next, limit)
	}
}

const requestIDHeader = "X-Request-Id"

// requestLogger tags the request's logger with a request id, reusing the
// caller's id when it sends a valid UUID.
func requestLogger() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := uuid.Parse(r.Header.Get(requestIDHeader))
			if err != nil {
				id = uuid.New()
			}

			w.Header().Set(requestIDHeader, id.String())

			logger := log.Ctx(r.Context()).With().Str("requestId", id.String()).Logger()
			next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context())))
		})
	}
}

func auditGrant(r *http.Request, env environment.Environment, grant string, scopes []string) {
	entry := audit.Log(r.Context())
	entry.Environment = env.Identifier()
	entry.Grant = grant
	entry.Scopes = scopes
}

func pathEnvironment(r *http.Request) (environment.Environment, error) {
	env, err := environment.Parse(r.PathValue("environment"))
	if err != nil {
		return environment.Unknown, oauth.ValidationError{Field: "environment", Reason: err.Error()}
	}
	return env, nil
}

// requestBodyError is a body that could not be read or decoded.
type requestBodyError struct {
	err error
}

func (e requestBodyError) Error() string {
	return "invalid request body: " + e.err.Error()
}

func (e requestBodyError) Unwrap() error {
	return e.err
}

func (e requestBodyError) Status() (int, string) {
	var tooLarge *http.MaxBytesError
	if errors.As(e.err, &tooLarge) {
		return http.StatusRequestEntityTooLarge, http.StatusText(http.StatusRequestEntityTooLarge)
	}
	return http.StatusBadRequest, e.Error()
}

func readJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return requestBodyError{err: err}
	}
	return nil
}

// writeTokenResponse writes resp, reporting a failed token endpoint exchange
// as a bad gateway. The body is the same shape in both cases.
func writeTokenResponse(w http.ResponseWriter, r *http.Request, resp oauth.Response) {
	entry := audit.Log(r.Context())

	status := http.StatusOK
	if resp.Failed() {
		status = http.StatusBadGateway
		entry.Error = resp.ErrorMessage
	} else if resp.AccessToken != nil {
		entry.ExpiresAt = resp.AccessToken.ExpiresAt
	}

	writeJSON(w, r, status, resp)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	marshalled, err := json.Marshal(payload)
	if err != nil {
		requestError(w, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if _, err := w.Write(marshalled); err != nil {
		// record failure to log: trying to respond to the client at this
		// point will likely fail
		log.Ctx(r.Context()).Info().Err(err).Msg("failed to write response")
	}
}

// ErrorResponse represents a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := errorStatus(err)
	audit.Log(r.Context()).Error = err.Error()
	log.Ctx(r.Context()).Debug().Err(err).Int("status", status).Msg("request failed")

	writeJSON(w, r, status, ErrorResponse{Error: message})
}

// errorStatus extracts HTTP status code and message from an error.
// Returns (StatusInternalServerError, StatusText) for errors that don't implement HTTPStatuser.
func errorStatus(err error) (int, string) {
	var statuser HTTPStatuser
	if errors.As(err, &statuser) {
		return statuser.Status()
	}
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
}

func requestError(w http.ResponseWriter, statusCode int) {
	http.Error(w, http.StatusText(statusCode), statusCode)
}

// drainRequestBody drains the request body by reading and discarding the contents.
// This is useful to ensure the request body is fully consumed, which is important
// for connection reuse in HTTP/1 clients.
func drainRequestBody(r *http.Request) {
	if r.Body != nil {
		io.CopyN(io.Discard, r.Body, 5*1024*1024)
	}
}
