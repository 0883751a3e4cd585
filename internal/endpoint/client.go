package endpoint

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// maxResponseBytes bounds how much of a token endpoint response is read.
// Token responses are a few kilobytes at most.
const maxResponseBytes = 1 << 20

// Client posts form-encoded requests to an OAuth2 token endpoint. Every status
// code is returned as data: only transport failures (including timeouts) are
// errors.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
}

type Option func(*Client)

// WithHTTPClient replaces the HTTP client. By default http.DefaultClient is
// used, which the application configures with telemetry.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

func New(timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		timeout:    timeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Post sends form to endpointURL with the given headers, waiting at most the
// configured timeout for the complete response.
func (c *Client) Post(ctx context.Context, endpointURL string, form url.Values, header http.Header) (int, []byte, error) {
	tracer := otel.Tracer("github.com/chinmina/ebay-oauth-bridge/internal/endpoint")
	ctx, span := tracer.Start(ctx, "token_endpoint_post")
	defer span.End()

	span.SetAttributes(
		attribute.String("oauth.endpoint", endpointURL),
		attribute.String("oauth.grant_type", form.Get("grant_type")),
	)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, strings.NewReader(form.Encode()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request creation failed")
		return 0, nil, fmt.Errorf("could not create token request: %w", err)
	}

	for name, values := range header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "token request failed")
		return 0, nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reading token response failed")
		return resp.StatusCode, nil, fmt.Errorf("reading token response failed: %w", err)
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode >= 300 {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	}

	return resp.StatusCode, body, nil
}
