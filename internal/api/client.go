// Package api talks to the rating platform's JSON REST API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/pders01/profe/internal/config"
	"github.com/pders01/profe/internal/debuglog"
	"github.com/pders01/profe/internal/validation"
)

const (
	defaultUserAgent = "profe/1.0 (https://github.com/pders01/profe)"
	defaultTimeout   = 10 * time.Second
	maxBodySize      = 8 << 20
)

// Client is safe for concurrent use.
type Client struct {
	baseURL   string
	http      *http.Client
	limiter   *rate.Limiter
	cache     *expirable.LRU[string, []byte]
	flights   singleflight.Group
	token     string
	userAgent string
	timeout   time.Duration
	now       func() time.Time
	log       *debuglog.FieldLogger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRateLimiter caps outgoing requests. A nil limiter disables limiting.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithCache keeps successful GET bodies for ttl. A zero size or ttl
// disables caching.
func WithCache(size int, ttl time.Duration) Option {
	return func(c *Client) {
		if size <= 0 || ttl <= 0 {
			c.cache = nil
			return
		}
		c.cache = expirable.NewLRU[string, []byte](size, nil, ttl)
	}
}

// WithToken sets the bearer token for authenticated endpoints.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithTimeout bounds a single shared request, independent of the caller's
// context.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New builds a client for baseURL, e.g. "http://localhost:8080/v1".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API base URL %q", baseURL)
	}

	c := &Client{
		baseURL:   strings.TrimSuffix(u.String(), "/"),
		http:      &http.Client{},
		userAgent: defaultUserAgent,
		timeout:   defaultTimeout,
		now:       time.Now,
		log:       debuglog.WithFields(map[string]any{"component": "api"}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewFromConfig validates cfg.BaseURL and wires rate limiting, caching and
// credentials from the [api] section.
func NewFromConfig(cfg config.APIConfig) (*Client, error) {
	base, err := validation.NewAPIURLValidator(cfg.AllowPrivate).ValidateAndNormalize(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("api.base_url: %w", err)
	}

	opts := []Option{
		WithUserAgent(cfg.UserAgent),
		WithTimeout(cfg.Timeout),
		WithToken(cfg.Token),
		WithCache(cfg.CacheSize, cfg.CacheTTL),
	}
	if cfg.Rate > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		opts = append(opts, WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.Rate), burst)))
	}
	return New(base, opts...)
}

// BaseURL returns the normalized API root.
func (c *Client) BaseURL() string { return c.baseURL }

// HasToken reports whether authenticated endpoints can be called.
func (c *Client) HasToken() bool { return c.token != "" }

type request struct {
	path  string
	query url.Values
	auth  bool
}

func (r request) key() string {
	if len(r.query) == 0 {
		return r.path
	}
	return r.path + "?" + r.query.Encode()
}

// get performs a GET and decodes the "data" member of the envelope into out.
// A null or missing data member leaves out untouched.
func (c *Client) get(ctx context.Context, req request, out any) error {
	body, err := c.fetch(ctx, req)
	if err != nil {
		return err
	}
	return decodeEnvelope(body, out)
}

func decodeEnvelope(body []byte, out any) error {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	return nil
}

// fetch returns the raw body of a GET. Identical concurrent requests share
// one round trip; the shared call is not tied to any single caller's
// cancellation, so a superseded caller cannot fail the others.
func (c *Client) fetch(ctx context.Context, req request) ([]byte, error) {
	if req.auth && c.token == "" {
		return nil, ErrNoToken
	}

	key := req.key()
	if !req.auth && c.cache != nil {
		if body, ok := c.cache.Get(key); ok {
			c.log.Debugf("cache hit %s", key)
			return body, nil
		}
	}

	ch := c.flights.DoChan(key, func() (any, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		body, err := c.roundTrip(sctx, req)
		if err == nil && !req.auth && c.cache != nil {
			c.cache.Add(key, body)
		}
		return body, err
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrNetwork, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.log.Debugf("shared request %s", key)
		}
		return res.Val.([]byte), nil
	}
}

func (c *Client) roundTrip(ctx context.Context, req request) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limit wait: %w", ErrNetwork, err)
		}
	}

	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	requestID := uuid.NewString()
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if req.auth {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", ErrNetwork, req.path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrNetwork, err)
	}

	c.log.Debugf("GET %s -> %d in %s (request %s)", req.key(), resp.StatusCode, debuglog.Since(start), requestID)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.statusError(resp, body, requestID)
	}
	return body, nil
}

func (c *Client) statusError(resp *http.Response, body []byte, requestID string) error {
	se := &StatusError{
		Code:      resp.StatusCode,
		RequestID: requestID,
	}
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		se.Message = payload.Error
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		se.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), c.now())
	}
	return se
}

// Invalidate drops every cached body.
func (c *Client) Invalidate() {
	if c.cache != nil {
		c.cache.Purge()
	}
}

// IsNetwork reports whether err came from the transport or the server.
func IsNetwork(err error) bool {
	return errors.Is(err, ErrNetwork)
}
