package oauth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Token is an access or refresh token as issued by the provider. ExpiresAt is
// the provider's expiry; callers apply their own margin.
type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Live reports whether the token can still be used at now, leaving at least
// buffer of lifetime to cover the request it is about to be used for.
func (t Token) Live(now time.Time, buffer time.Duration) bool {
	return t.Value != "" && now.Before(t.ExpiresAt.Add(-buffer))
}

// Response is the outcome of a token operation. When ErrorMessage is set the
// tokens must not be trusted; a failed endpoint exchange is reported here
// rather than as an error.
type Response struct {
	AccessToken  *Token `json:"accessToken,omitempty"`
	RefreshToken *Token `json:"refreshToken,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// Failed reports whether the response carries an endpoint failure.
func (r Response) Failed() bool {
	return r.ErrorMessage != ""
}

func errorResponse(format string, args ...any) Response {
	return Response{ErrorMessage: fmt.Sprintf(format, args...)}
}

// providerResponse is the JSON document returned by the token endpoint.
type providerResponse struct {
	AccessToken           string `json:"access_token"`
	ExpiresIn             int64  `json:"expires_in"`
	RefreshToken          string `json:"refresh_token"`
	RefreshTokenExpiresIn int64  `json:"refresh_token_expires_in"`
	TokenType             string `json:"token_type"`
	ErrorMessage          string `json:"errorMessage"`

	// standard OAuth2 error fields, used by the provider on 4xx responses
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// parseProviderResponse converts a token endpoint reply into a Response.
// Issued token expiry is computed relative to now.
func parseProviderResponse(status int, body []byte, now time.Time) Response {
	var pr providerResponse
	decodeErr := json.Unmarshal(body, &pr)

	if status < 200 || status >= 300 {
		if decodeErr == nil {
			if msg := pr.failureMessage(); msg != "" {
				return errorResponse("token endpoint returned %d: %s", status, msg)
			}
		}
		return errorResponse("token endpoint returned %d %s", status, http.StatusText(status))
	}

	if decodeErr != nil {
		return errorResponse("malformed token endpoint response: %v", decodeErr)
	}

	if msg := pr.failureMessage(); msg != "" {
		return errorResponse("token endpoint error: %s", msg)
	}

	if pr.AccessToken == "" {
		return errorResponse("malformed token endpoint response: access_token missing")
	}

	resp := Response{
		AccessToken: &Token{
			Value:     pr.AccessToken,
			ExpiresAt: now.Add(time.Duration(pr.ExpiresIn) * time.Second),
		},
	}

	if pr.RefreshToken != "" {
		resp.RefreshToken = &Token{
			Value:     pr.RefreshToken,
			ExpiresAt: now.Add(time.Duration(pr.RefreshTokenExpiresIn) * time.Second),
		}
	}

	return resp
}

func (pr providerResponse) failureMessage() string {
	switch {
	case pr.ErrorMessage != "":
		return pr.ErrorMessage
	case pr.Error != "" && pr.ErrorDescription != "":
		return pr.Error + ": " + pr.ErrorDescription
	default:
		return pr.Error
	}
}
