package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultUsername is the basic auth user sent when none is configured
const DefaultUsername = "opencode"

// Config holds backend connection settings
type Config struct {
	BaseURL  string
	Username string
	Password string // basic auth is omitted entirely when empty
	Timeout  time.Duration
}

// Observer receives one observation per completed request
type Observer interface {
	ObserveBackendRequest(method, outcome string, duration time.Duration)
}

// Option customizes a Client
type Option func(*Client)

// WithObserver attaches a request observer (metrics)
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// Client issues requests against the backend API
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	observer   Observer
	logger     zerolog.Logger
}

// Response is a decoded-on-demand backend reply
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// New creates a backend client
func New(cfg Config, logger zerolog.Logger, opts ...Option) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, fmt.Errorf("backend base URL is required")
	}

	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid backend base URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid backend base URL %q: must be an absolute http(s) URL", base)
	}

	username := cfg.Username
	if username == "" {
		username = DefaultUsername
	}

	c := &Client{
		baseURL:    strings.TrimRight(u.String(), "/"),
		username:   username,
		password:   cfg.Password,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With().Str("component", "backend").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// BaseURL returns the normalized base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do issues a request. body is sent as JSON for POST and PATCH only.
// Every failure to complete the exchange is returned as an error wrapping ErrUnavailable.
func (c *Client) Do(ctx context.Context, method, path string, body any, query url.Values) (*Response, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	resp, err := c.do(ctx, method, path, body, query)
	duration := time.Since(start)

	if err != nil {
		c.logger.Error().
			Err(err).
			Str("method", method).
			Str("path", path).
			Dur("duration", duration).
			Msg("Backend request failed")
		c.observe(method, "unavailable", duration)
		return nil, fmt.Errorf("%w: %s %s: %w", ErrUnavailable, method, path, err)
	}

	if !resp.Success() {
		c.logger.Warn().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Dur("duration", duration).
			Msg("Backend returned non-success status")
		c.observe(method, "http_error", duration)
		return resp, nil
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Bool("json", resp.IsJSON()).
		Dur("duration", duration).
		Msg("Backend request completed")
	c.observe(method, "ok", duration)

	return resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, query url.Values) (*Response, error) {
	var reader io.Reader
	if body != nil && (method == http.MethodPost || method == http.MethodPatch) {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	out := &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}
	if out.IsJSON() && !json.Valid(data) {
		return nil, fmt.Errorf("invalid JSON body (status %d)", resp.StatusCode)
	}

	return out, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return endpoint
}

func (c *Client) observe(method, outcome string, duration time.Duration) {
	if c.observer != nil {
		c.observer.ObserveBackendRequest(method, outcome, duration)
	}
}

// Success reports a 2xx status
func (r *Response) Success() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode <= 299
}

// IsJSON reports whether the response declared a JSON content type
func (r *Response) IsJSON() bool {
	if r == nil || r.ContentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(r.ContentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// Text returns the raw body as text
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return string(r.Body)
}

// Decode unmarshals a JSON body into v
func (r *Response) Decode(v any) error {
	if r == nil {
		return fmt.Errorf("%w: empty response", ErrUnexpectedResponse)
	}
	if !r.IsJSON() {
		return fmt.Errorf("%w: expected JSON, got %q", ErrUnexpectedResponse, r.ContentType)
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
	}
	return nil
}
