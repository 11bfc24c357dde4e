// Package bigdata provides clients for the Bigdata API: the knowledge graph,
// watchlists, usage tracking and the thematic screener research workflow.
package bigdata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/helixir/thematic-screener-service/internal/domain"
)

const (
	// DefaultBaseURL is the default Bigdata API base URL.
	DefaultBaseURL = "https://api.bigdata.com"

	// APIKeyHeader carries the Bigdata API key.
	APIKeyHeader = "X-API-KEY"

	// LLMAPIKeyHeader forwards the LLM provider key to the research workflow.
	LLMAPIKeyHeader = "X-LLM-API-KEY"

	// DefaultUserAgent identifies the service to the API.
	DefaultUserAgent = "Helixir-ThematicScreener/1.0"

	// ClientVersion is reported in tracking events.
	ClientVersion = "1.0.0"

	// DefaultTimeout is the timeout of short API calls.
	DefaultTimeout = 30 * time.Second

	// DefaultWorkflowTimeout bounds a whole thematic screener run.
	DefaultWorkflowTimeout = 2 * time.Hour

	// DefaultRateLimit is the default rate limit for requests per second.
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 10

	// DefaultMaxRetries is the default retry budget for short API calls.
	DefaultMaxRetries = 3

	// DefaultLookupBatchSize is the number of entity IDs sent per lookup.
	DefaultLookupBatchSize = 100

	// DefaultLookupConcurrency is the number of lookup batches in flight.
	DefaultLookupConcurrency = 4

	// DefaultCacheSize is the number of entities kept in the lookup cache.
	DefaultCacheSize = 10000

	// DefaultCacheTTL is how long a cached entity stays valid.
	DefaultCacheTTL = time.Hour

	// maxResponseSize limits JSON bodies to prevent resource exhaustion.
	maxResponseSize = 10 << 20

	// maxErrorBodySize limits error bodies quoted in errors.
	maxErrorBodySize = 1 << 20

	sourceName = "Bigdata"
)

// Config holds configuration for the Bigdata client.
type Config struct {
	// BaseURL is the API base URL. Defaults to https://api.bigdata.com.
	BaseURL string

	// APIKey authenticates every request.
	APIKey string

	// LLMAPIKey is forwarded to the research workflow.
	LLMAPIKey string

	// Timeout is the timeout of short calls (lookups, watchlists, tracking).
	Timeout time.Duration

	// WorkflowTimeout bounds a thematic screener run.
	WorkflowTimeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxRetries is the retry budget of short calls.
	MaxRetries int

	// LookupBatchSize is the number of IDs per knowledge graph request.
	LookupBatchSize int

	// LookupConcurrency is the number of knowledge graph requests in flight.
	LookupConcurrency int

	// CacheSize is the entity cache capacity. Negative disables the cache.
	CacheSize int

	// CacheTTL is the entity cache entry lifetime.
	CacheTTL time.Duration
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.WorkflowTimeout == 0 {
		c.WorkflowTimeout = DefaultWorkflowTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.LookupBatchSize <= 0 {
		c.LookupBatchSize = DefaultLookupBatchSize
	}
	if c.LookupConcurrency <= 0 {
		c.LookupConcurrency = DefaultLookupConcurrency
	}
	if c.CacheSize == 0 {
		c.CacheSize = DefaultCacheSize
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = DefaultCacheTTL
	}
}

// Client talks to the Bigdata API. It is safe for concurrent use.
type Client struct {
	config Config

	// httpClient serves short calls and retries 429 and 5xx responses.
	httpClient *HTTPClient

	// streamClient serves the long-running workflow and never retries server errors.
	streamClient *HTTPClient

	// entities caches knowledge graph lookups. Nil when caching is disabled.
	entities *expirable.LRU[string, Entity]
}

// New creates a new Bigdata client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := NewHTTPClient(HTTPClientConfig{
		Timeout:           cfg.Timeout,
		RateLimit:         cfg.RateLimit,
		BurstSize:         cfg.BurstSize,
		MaxRetries:        cfg.MaxRetries,
		RetryServerErrors: true,
		APIKey:            cfg.APIKey,
	})
	streamClient := NewHTTPClient(HTTPClientConfig{
		Timeout:    cfg.WorkflowTimeout,
		RateLimit:  cfg.RateLimit,
		BurstSize:  cfg.BurstSize,
		MaxRetries: cfg.MaxRetries,
		APIKey:     cfg.APIKey,
	})

	return NewWithHTTPClient(cfg, httpClient, streamClient)
}

// NewWithHTTPClient creates a Bigdata client with custom HTTP clients.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient, streamClient *HTTPClient) *Client {
	cfg.applyDefaults()

	c := &Client{
		config:       cfg,
		httpClient:   httpClient,
		streamClient: streamClient,
	}
	if cfg.CacheSize > 0 {
		c.entities = expirable.NewLRU[string, Entity](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	return c
}

// Version returns the client version reported in tracking events.
func (c *Client) Version() string {
	return ClientVersion
}

// newJSONRequest builds a request with an optional JSON body.
// bytes.Reader bodies get GetBody set so retries can resend them.
func (c *Client) newJSONRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// doJSON executes req and decodes a 2xx JSON body into out when out is non-nil.
func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// checkResponse maps a non-2xx response to an ExternalAPIError.
func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	var cause error
	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		cause = domain.NewRateLimitError(sourceName, retryAfter)
	}
	return domain.NewExternalAPIError(sourceName, resp.StatusCode, strings.TrimSpace(string(body)), cause)
}
