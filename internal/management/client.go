// Package management is a read-only client for the gateway's management API.
package management

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/nghyane/llm-mux-monitor/internal/config"
	log "github.com/nghyane/llm-mux-monitor/internal/logging"
	"github.com/nghyane/llm-mux-monitor/internal/resilience"
)

// BasePath is the management API prefix.
const BasePath = "/v0/management/"

// Client reads configuration lists, auth files and usage from a gateway.
// It is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	key     string
	http    *http.Client
	exec    *resilience.Executor[[]byte]
}

// Option customises a Client.
type Option func(*options)

type options struct {
	httpClient *http.Client
	retry      *resilience.RetryConfig
	breaker    *resilience.BreakerConfig
}

// WithHTTPClient replaces the proxy-aware default client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithRetry overrides the retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(o *options) { o.retry = &cfg }
}

// WithBreaker overrides the circuit breaker settings.
func WithBreaker(cfg resilience.BreakerConfig) Option {
	return func(o *options) { o.breaker = &cfg }
}

// New builds a client from the management section of the config.
func New(cfg config.ManagementConfig, opts ...Option) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = config.DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid management base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid management base url %q: scheme must be http or https", base)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.Path = strings.TrimSuffix(u.Path, strings.TrimSuffix(BasePath, "/"))

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient, err = resilience.NewHTTPClient(strings.TrimSpace(cfg.ProxyURL), cfg.TimeoutDuration())
		if err != nil {
			return nil, err
		}
	}
	retry := resilience.DefaultRetryConfig
	retry.MaxRetries = max(cfg.RequestRetry, 0)
	if o.retry != nil {
		retry = *o.retry
	}
	breaker := resilience.DefaultBreakerConfig("management " + u.Host)
	if o.breaker != nil {
		breaker = *o.breaker
	}

	return &Client{
		baseURL: u,
		key:     strings.TrimSpace(cfg.Key),
		http:    o.httpClient,
		exec:    resilience.NewExecutor[[]byte](retry, &breaker),
	}, nil
}

// BaseURL returns the gateway address the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

func (c *Client) endpointURL(endpoint string) string {
	u := *c.baseURL
	u.Path = u.Path + BasePath + endpoint
	return u.String()
}

// get fetches one management endpoint and returns the decoded body.
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	body, err := c.exec.Execute(ctx, func() ([]byte, error) {
		return c.do(ctx, endpoint)
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpointURL(endpoint), nil)
	if err != nil {
		return nil, err
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", acceptEncoding)
	req.Header.Set("X-Request-ID", requestID)
	if c.key != "" {
		req.Header.Set("Authorization", "Bearer "+c.key)
		req.Header.Set("X-Management-Key", c.key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("management %s: %w", endpoint, err)
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Errorf("management %s: close response body: %v", endpoint, errClose)
		}
	}()

	body, err := readBody(resp.Body, resp.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, fmt.Errorf("management %s: %w", endpoint, err)
	}
	log.Debugf("management GET %s -> %d (%d bytes, request %s)", endpoint, resp.StatusCode, len(body), requestID)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newStatusError(endpoint, resp.StatusCode, body)
	}
	return body, nil
}
