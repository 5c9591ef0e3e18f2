// Package remote is the JSON-over-HTTP client shared by the repositories.
//
// Every failure leaving this package is a *core.Error: transport problems and
// unstructured non-2xx answers are network errors, 400/422 are validation
// errors, 401/403 auth errors and 404 not-found errors.
package remote

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

	"github.com/sony/gobreaker"

	"expensebook/internal/core"
	"expensebook/internal/log"
)

const (
	// DefaultTimeout matches the browser client the API was built for.
	DefaultTimeout = 100 * time.Second

	maxErrorBody = 64 << 10
)

// TokenSource returns the bearer token to attach, or "" for none.
type TokenSource func(ctx context.Context) string

// ClientConfig represents the configuration for the API client.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration // Default: 100 seconds

	// Breaker trips after this many consecutive network failures.
	BreakerMaxFailures uint32
	// BreakerOpenTimeout is how long the breaker stays open.
	BreakerOpenTimeout time.Duration

	HTTPClient *http.Client
	Token      TokenSource
	Logger     *log.Logger
}

// Client issues JSON requests against the expense API.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	token      TokenSource
	breaker    *gobreaker.CircuitBreaker
	logger     *log.Logger
}

// NewClient creates a new API client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("remote: base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("remote: invalid base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("remote: unsupported scheme %q", base.Scheme)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	logger = logger.WithComponent(log.ComponentRemote)

	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	openTimeout := cfg.BreakerOpenTimeout
	if openTimeout == 0 {
		openTimeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:     "expense-api",
		Interval: 60 * time.Second,
		Timeout:  openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// Answers from a reachable server never count against it.
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, core.ErrNetwork)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    base,
		token:      cfg.Token,
		breaker:    gobreaker.NewCircuitBreaker(settings),
		logger:     logger,
	}, nil
}

// BreakerState reports the circuit breaker state, for diagnostics.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// Do sends body as JSON to path and decodes a 2xx response into out.
// A nil body sends no payload; a nil out discards the response.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	op := method + " " + path

	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.do(ctx, op, method, path, query, body, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return core.NetworkError(op, err)
	}
	return err
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	endpoint := c.resolve(path, query)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		if token := c.token(ctx); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "Request failed",
			log.FieldOperation, op, log.FieldError, err.Error())
		return core.NetworkError(op, err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "Request completed",
		log.FieldOperation, op,
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseError(op, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.NetworkError(op, fmt.Errorf("failed to read response: %w", err))
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return core.BadResponseError(op, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

func (c *Client) resolve(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}
