package oauth

import (
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"

	"github.com/chinmina/ebay-oauth-bridge/internal/credential"
)

// Payload is a token endpoint request ready to be posted.
type Payload struct {
	Endpoint string
	Form     url.Values
	Header   http.Header
}

// BuildClientCredentialsRequest requests an application token for scopes.
func BuildClientCredentialsRequest(cred credential.Credential, scopes []string) (Payload, error) {
	if err := validateScopes(scopes); err != nil {
		return Payload{}, err
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", strings.Join(uniqueScopes(scopes), " "))

	return newPayload(cred, form), nil
}

// BuildAuthCodeExchangeRequest exchanges an authorization code for user
// tokens. The redirect URI must match the one used to obtain the code.
func BuildAuthCodeExchangeRequest(cred credential.Credential, code string) (Payload, error) {
	if strings.TrimSpace(code) == "" {
		return Payload{}, ValidationError{Field: "code", Reason: "must not be blank"}
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", cred.RedirectURI)

	return newPayload(cred, form), nil
}

// BuildRefreshRequest obtains a new user access token for scopes.
func BuildRefreshRequest(cred credential.Credential, refreshToken string, scopes []string) (Payload, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return Payload{}, ValidationError{Field: "refreshToken", Reason: "must not be blank"}
	}
	if err := validateScopes(scopes); err != nil {
		return Payload{}, err
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("scope", strings.Join(uniqueScopes(scopes), " "))

	return newPayload(cred, form), nil
}

func newPayload(cred credential.Credential, form url.Values) Payload {
	header := http.Header{}
	header.Set("Authorization", basicAuthorization(cred.ClientID, cred.ClientSecret))
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	header.Set("Accept", "application/json")

	return Payload{
		Endpoint: cred.TokenEndpoint,
		Form:     form,
		Header:   header,
	}
}

func basicAuthorization(clientID, clientSecret string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(clientID+":"+clientSecret))
}
