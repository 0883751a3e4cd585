package oauth

import (
	"context"
	"errors"

	"github.com/chinmina/ebay-oauth-bridge/internal/environment"
	"golang.org/x/oauth2"
)

// applicationTokenSource adapts the resolver to oauth2.TokenSource so that
// application tokens can authorize an oauth2.NewClient HTTP client.
type applicationTokenSource struct {
	ctx      context.Context
	resolver *Resolver
	env      environment.Environment
	scopes   []string
}

// TokenSource returns an oauth2.TokenSource issuing application tokens for
// scopes. The reported expiry includes the resolver's buffer, so the source
// asks for a new token at the point the cache would stop serving the old one.
func (r *Resolver) TokenSource(ctx context.Context, env environment.Environment, scopes []string) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, &applicationTokenSource{
		ctx:      ctx,
		resolver: r,
		env:      env,
		scopes:   append([]string(nil), scopes...),
	})
}

func (s *applicationTokenSource) Token() (*oauth2.Token, error) {
	resp, err := s.resolver.GetApplicationToken(s.ctx, s.env, s.scopes)
	if err != nil {
		return nil, err
	}

	if resp.Failed() {
		return nil, errors.New(resp.ErrorMessage)
	}

	return &oauth2.Token{
		AccessToken: resp.AccessToken.Value,
		TokenType:   "Bearer",
		Expiry:      resp.AccessToken.ExpiresAt.Add(-s.resolver.buffer),
	}, nil
}
