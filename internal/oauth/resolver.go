package oauth

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chinmina/ebay-oauth-bridge/internal/cache"
	"github.com/chinmina/ebay-oauth-bridge/internal/credential"
	"github.com/chinmina/ebay-oauth-bridge/internal/environment"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// DefaultExpiryBuffer is the lifetime a cached token must have left to be
// handed out.
const DefaultExpiryBuffer = 60 * time.Second

// CredentialResolver supplies the application credential for an environment.
type CredentialResolver interface {
	Resolve(env environment.Environment) (credential.Credential, error)
}

// TokenEndpoint posts a form to a token endpoint. Any HTTP status is a
// result; an error means no response was received.
type TokenEndpoint interface {
	Post(ctx context.Context, endpointURL string, form url.Values, header http.Header) (int, []byte, error)
}

// Resolver issues access tokens, serving scope-bound access tokens from the
// cache while they remain live. It is safe for concurrent use; no lock is
// held while the token endpoint is called.
type Resolver struct {
	credentials CredentialResolver
	endpoint    TokenEndpoint
	cache       cache.TokenCache[Token]

	buffer time.Duration
	now    func() time.Time

	// refreshed user tokens are stored under the application token key
	cacheRefreshed bool

	// concurrent misses for one key share a single endpoint call
	fetches singleflight.Group
}

type Option func(*Resolver)

// WithExpiryBuffer sets the minimum remaining lifetime of a cached token.
func WithExpiryBuffer(buffer time.Duration) Option {
	return func(r *Resolver) {
		r.buffer = buffer
	}
}

// WithRefreshCaching controls whether tokens obtained with a refresh token
// are stored under the same key that GetApplicationToken reads. Enabled by
// default. Disable it when one resolver serves more than one user, otherwise
// a user's delegated token is handed out as the application token.
func WithRefreshCaching(enabled bool) Option {
	return func(r *Resolver) {
		r.cacheRefreshed = enabled
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

func NewResolver(credentials CredentialResolver, endpoint TokenEndpoint, tokenCache cache.TokenCache[Token], opts ...Option) *Resolver {
	r := &Resolver{
		credentials: credentials,
		endpoint:    endpoint,
		cache:       tokenCache,
		buffer:      DefaultExpiryBuffer,
		now:         time.Now,

		cacheRefreshed: true,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// GetApplicationToken returns a client-credentials access token for scopes,
// from the cache when a live one exists. Invalid arguments and missing
// credentials are returned as errors; endpoint failures are reported in the
// response and are not cached.
func (r *Resolver) GetApplicationToken(ctx context.Context, env environment.Environment, scopes []string) (Response, error) {
	if err := validateEnvironment(env); err != nil {
		return Response{}, err
	}
	if err := validateScopes(scopes); err != nil {
		return Response{}, err
	}

	key := cacheKey(env, scopes)

	if token, ok := r.cached(ctx, key); ok {
		return Response{AccessToken: &token}, nil
	}

	cred, err := r.credentials.Resolve(env)
	if err != nil {
		return Response{}, err
	}

	payload, err := BuildClientCredentialsRequest(cred, scopes)
	if err != nil {
		return Response{}, err
	}

	// The shared fetch must not be abandoned because the first caller went
	// away; the endpoint client bounds it with its own timeout.
	fetchCtx := context.WithoutCancel(ctx)

	result, _, shared := r.fetches.Do(key, func() (any, error) {
		// a flight that finished just before this one started may have
		// stored a token already
		if token, ok := r.cached(fetchCtx, key); ok {
			return Response{AccessToken: &token}, nil
		}

		resp := r.exchange(fetchCtx, payload)
		if !resp.Failed() {
			r.store(fetchCtx, key, *resp.AccessToken)
		}
		return resp, nil
	})

	resp := result.(Response).clone()
	if resp.Failed() {
		log.Ctx(ctx).Warn().
			Str("environment", env.Identifier()).
			Str("key", key).
			Bool("shared", shared).
			Str("error", resp.ErrorMessage).
			Msg("application token request failed")
	}

	return resp, nil
}

// ExchangeCodeForAccessToken redeems a single-use authorization code for a
// user access token and refresh token. The endpoint is always called, and the
// result is not cached.
func (r *Resolver) ExchangeCodeForAccessToken(ctx context.Context, env environment.Environment, code string) (Response, error) {
	if err := validateEnvironment(env); err != nil {
		return Response{}, err
	}
	if strings.TrimSpace(code) == "" {
		return Response{}, ValidationError{Field: "code", Reason: "must not be blank"}
	}

	cred, err := r.credentials.Resolve(env)
	if err != nil {
		return Response{}, err
	}

	payload, err := BuildAuthCodeExchangeRequest(cred, code)
	if err != nil {
		return Response{}, err
	}

	resp := r.exchange(ctx, payload)
	if resp.Failed() {
		log.Ctx(ctx).Warn().
			Str("environment", env.Identifier()).
			Str("error", resp.ErrorMessage).
			Msg("authorization code exchange failed")
	}

	return resp, nil
}

// GetAccessToken uses a refresh token to obtain a user access token for
// scopes. The endpoint is always called; a successful token is cached under
// the same key an application token for these scopes would use, unless
// disabled with WithRefreshCaching.
func (r *Resolver) GetAccessToken(ctx context.Context, env environment.Environment, refreshToken string, scopes []string) (Response, error) {
	if err := validateEnvironment(env); err != nil {
		return Response{}, err
	}
	if strings.TrimSpace(refreshToken) == "" {
		return Response{}, ValidationError{Field: "refreshToken", Reason: "must not be blank"}
	}
	if err := validateScopes(scopes); err != nil {
		return Response{}, err
	}

	cred, err := r.credentials.Resolve(env)
	if err != nil {
		return Response{}, err
	}

	payload, err := BuildRefreshRequest(cred, refreshToken, scopes)
	if err != nil {
		return Response{}, err
	}

	resp := r.exchange(ctx, payload)
	if resp.Failed() {
		log.Ctx(ctx).Warn().
			Str("environment", env.Identifier()).
			Str("error", resp.ErrorMessage).
			Msg("refresh token exchange failed")
		return resp, nil
	}

	if r.cacheRefreshed {
		r.store(ctx, cacheKey(env, scopes), *resp.AccessToken)
	}

	return resp, nil
}

// GenerateUserAuthorizationURL builds the consent URL a user is sent to in
// order to grant scopes to the application. An empty state is omitted.
func (r *Resolver) GenerateUserAuthorizationURL(env environment.Environment, scopes []string, state string) (string, error) {
	if err := validateEnvironment(env); err != nil {
		return "", err
	}
	if err := validateScopes(scopes); err != nil {
		return "", err
	}

	cred, err := r.credentials.Resolve(env)
	if err != nil {
		return "", err
	}

	if cred.RedirectURI == "" {
		return "", credential.ConfigurationError{Environment: env, Reason: "redirectUri is required for user authorization"}
	}

	conf := oauth2.Config{
		ClientID:    cred.ClientID,
		RedirectURL: cred.RedirectURI,
		Scopes:      uniqueScopes(scopes),
		Endpoint: oauth2.Endpoint{
			AuthURL:  cred.AuthorizationEndpoint,
			TokenURL: cred.TokenEndpoint,
		},
	}

	return conf.AuthCodeURL(state), nil
}

func (r *Resolver) exchange(ctx context.Context, payload Payload) Response {
	requested := r.now()

	status, body, err := r.endpoint.Post(ctx, payload.Endpoint, payload.Form, payload.Header)
	if err != nil {
		return errorResponse("token request failed: %v", err)
	}

	// expiry is measured from when the request was sent, so the token is never
	// believed to live longer than it does
	return parseProviderResponse(status, body, requested)
}

func (r *Resolver) cached(ctx context.Context, key string) (Token, bool) {
	token, found, err := r.cache.Get(ctx, key)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("token cache read failed, treating as miss")
		return Token{}, false
	}

	if !found {
		return Token{}, false
	}

	if !token.Live(r.now(), r.buffer) {
		log.Ctx(ctx).Debug().
			Time("expiry", token.ExpiresAt).
			Str("key", key).
			Msg("expired: cached token is within the expiry buffer")
		return Token{}, false
	}

	log.Ctx(ctx).Debug().
		Time("expiry", token.ExpiresAt).
		Str("key", key).
		Msg("hit: existing token found")

	return token, true
}

func (r *Resolver) store(ctx context.Context, key string, token Token) {
	if err := r.cache.Set(ctx, key, token); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("token cache write failed")
		return
	}

	log.Ctx(ctx).Info().
		Time("expiry", token.ExpiresAt).
		Str("key", key).
		Msg("stored: new token cached")
}

// cacheKey identifies the tokens issued for a scope set in an environment.
// Structure: oauth://<environment identifier>/<normalized scopes>
func cacheKey(env environment.Environment, scopes []string) string {
	return "oauth://" + env.Identifier() + "/" + NormalizeScopes(scopes)
}

func validateEnvironment(env environment.Environment) error {
	if !env.Valid() {
		return ValidationError{Field: "environment", Reason: "must be production or sandbox"}
	}
	return nil
}

// clone gives each caller its own token values, so responses shared between
// concurrent callers cannot be modified through one another.
func (r Response) clone() Response {
	if r.AccessToken != nil {
		t := *r.AccessToken
		r.AccessToken = &t
	}
	if r.RefreshToken != nil {
		t := *r.RefreshToken
		r.RefreshToken = &t
	}
	return r
}
