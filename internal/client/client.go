package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/langflow-mcp/langflow-mcp/internal/apierror"
)

const (
	apiPrefix         = "/api/v1"
	defaultTimeout    = 30 * time.Second
	defaultRetries    = 2
	defaultBackoff    = 250 * time.Millisecond
	maxErrorBodyBytes = 4096
)

// Observer is notified after every outbound request attempt. route is the path
// template (e.g. /api/v1/flows/{id}) and status is 0 when no response was received.
type Observer func(ctx context.Context, method, route string, status int, elapsed time.Duration)

// Client is a Langflow REST API client.
type Client struct {
	BaseURL    string
	httpClient *http.Client
	apiKey     string

	limiter        *rate.Limiter
	maxRetries     int
	initialBackoff time.Duration
	observer       Observer
	logger         zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRetries sets how many times idempotent requests are retried on transient
// failures and the first backoff interval.
func WithRetries(n int, initial time.Duration) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
		if initial > 0 {
			c.initialBackoff = initial
		}
	}
}

// WithRateLimit throttles outbound requests. A non-positive rps disables it.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient constructs a client for the Langflow instance at baseURL.
func NewClient(baseURL, apiKey string, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil, apierror.New(apierror.KindConfiguration, "langflow base URL is required")
	}
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, apierror.New(apierror.KindConfiguration, "invalid langflow base URL %q", baseURL)
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, apierror.New(apierror.KindAuthentication, "langflow API key is required")
	}

	c := &Client{
		BaseURL: base,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		maxRetries:     defaultRetries,
		initialBackoff: defaultBackoff,
		logger:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// request describes one logical API call.
type request struct {
	method string
	// route is the path template reported to the observer.
	route string
	path  string
	query url.Values
	body  any
}

func (c *Client) newRequest(ctx context.Context, r request, body []byte) (*http.Request, error) {
	fullURL := c.BaseURL + r.path
	if len(r.query) > 0 {
		fullURL += "?" + r.query.Encode()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, fullURL, reader)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindConfiguration, err, "build request %s %s", r.method, r.path)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do performs r and decodes a 2xx body into out. GET requests are retried on
// transient failures; writes are attempted once.
func (c *Client) do(ctx context.Context, r request, out any) error {
	var payload []byte
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return apierror.Wrap(apierror.KindValidation, err, "failed to marshal %T", r.body)
		}
		payload = b
	}

	attempt := 0
	op := func() error {
		attempt++
		err := c.attempt(ctx, r, payload, out)
		if err == nil {
			return nil
		}
		if r.method != http.MethodGet || !apierror.IsKind(err, apierror.KindTransient) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		c.logger.Debug().Err(err).Str("route", r.route).Int("attempt", attempt).Msg("retrying langflow request")
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialBackoff
	b.MaxElapsedTime = 0
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxRetries)), ctx))
	var apiErr *apierror.Error
	if err != nil && !errors.As(err, &apiErr) {
		// the backoff loop reports context errors bare
		return apierror.Wrap(apierror.KindTransient, err, "%s %s", r.method, r.path)
	}
	return err
}

func (c *Client) attempt(ctx context.Context, r request, payload []byte, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return apierror.Wrap(apierror.KindTransient, err, "rate limit wait")
		}
	}
	req, err := c.newRequest(ctx, r, payload)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(ctx, r, 0, start)
		return classifyTransportError(r, err)
	}
	defer func() { _ = resp.Body.Close() }()
	c.observe(ctx, r, resp.StatusCode, start)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return apierror.FromStatus(resp.StatusCode, errorDetail(resp.Status, errBody))
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return apierror.Wrap(apierror.KindTransient, err, "read response %s %s", r.method, r.path)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apierror.Wrap(apierror.KindUnexpectedResponse, err, "failed to parse response of %s %s", r.method, r.route)
	}
	return nil
}

func (c *Client) observe(ctx context.Context, r request, status int, start time.Time) {
	if c.observer != nil {
		c.observer(ctx, r.method, r.route, status, time.Since(start))
	}
}

// classifyTransportError maps failures that produced no HTTP response. They are
// all transient; the retry loop stops on its own once ctx is done.
func classifyTransportError(r request, err error) error {
	if errors.Is(err, context.Canceled) {
		return apierror.Wrap(apierror.KindTransient, err, "%s %s cancelled", r.method, r.path)
	}
	return apierror.Wrap(apierror.KindTransient, err, "%s %s failed", r.method, r.path)
}

// errorDetail extracts FastAPI's "detail" field, which is either a string or a
// list of validation issues, falling back to the raw body.
func errorDetail(status string, body []byte) string {
	var envelope struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		var s string
		if err := json.Unmarshal(envelope.Detail, &s); err == nil && s != "" {
			return s
		}
		var issues []struct {
			Loc []any  `json:"loc"`
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(envelope.Detail, &issues); err == nil && len(issues) > 0 {
			parts := make([]string, 0, len(issues))
			for _, is := range issues {
				loc := make([]string, 0, len(is.Loc))
				for _, l := range is.Loc {
					loc = append(loc, fmt.Sprint(l))
				}
				if len(loc) > 0 {
					parts = append(parts, strings.Join(loc, ".")+": "+is.Msg)
				} else {
					parts = append(parts, is.Msg)
				}
			}
			return strings.Join(parts, "; ")
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return status
	}
	return text
}
