package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"provider-lake/internal/common/errors"
	"provider-lake/internal/common/ratelimit"
	"provider-lake/internal/common/utils"
)

// ClientConfig holds HTTP client configuration
type ClientConfig struct {
	Timeout             time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	DisableKeepAlives   bool
	Transport           http.RoundTripper
}

// DefaultClientConfig returns default HTTP client configuration
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:             30 * time.Second,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DisableKeepAlives:   false,
	}
}

// ClientOption is a function that modifies ClientConfig
type ClientOption func(*ClientConfig)

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.Timeout = timeout
	}
}

// WithMaxIdleConnsPerHost sets the maximum number of idle connections per host
func WithMaxIdleConnsPerHost(max int) ClientOption {
	return func(c *ClientConfig) {
		c.MaxIdleConnsPerHost = max
	}
}

// WithTransport sets a custom transport
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *ClientConfig) {
		c.Transport = transport
	}
}

// NewHTTPClient creates a new HTTP client with the given options
func NewHTTPClient(opts ...ClientOption) *http.Client {
	cfg := DefaultClientConfig()

	for _, opt := range opts {
		opt(&cfg)
	}

	var transport http.RoundTripper
	if cfg.Transport != nil {
		transport = cfg.Transport
	} else {
		transport = &http.Transport{
			MaxIdleConns:        cfg.MaxIdleConns,
			MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
			IdleConnTimeout:     cfg.IdleConnTimeout,
			DisableKeepAlives:   cfg.DisableKeepAlives,
		}
	}

	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
	}
}

// TokenSource supplies bearer tokens for authenticated requests
type TokenSource interface {
	GetValidToken(ctx context.Context) (string, error)
}

// RetryConfig for HTTP client retry logic
type RetryConfig struct {
	MaxAttempts          int
	InitialDelay         time.Duration
	MaxDelay             time.Duration
	BackoffFactor        float64
	JitterFactor         float64
	RetryableStatusCodes []int
}

// DefaultRetryConfig returns sensible defaults for HTTP retries
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  1 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,
		RetryableStatusCodes: []int{
			429, // Too Many Requests
			408, // Request Timeout
			502, // Bad Gateway
			503, // Service Unavailable
			504, // Gateway Timeout
		},
	}
}

// RequestOptions for advanced HTTP requests
type RequestOptions struct {
	Method      string
	URL         string
	Body        io.Reader
	Headers     map[string]string
	ParseJSON   bool
	RetryConfig *RetryConfig
	TokenSource TokenSource
}

// Response represents an HTTP response with parsed body
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       interface{} // Can be string or parsed JSON
	RawBody    []byte
	Duration   time.Duration
}

// Wrapper wraps http.Client with retry, rate limiting and token injection
type Wrapper struct {
	client      *http.Client
	retryConfig *RetryConfig
	rateLimiter ratelimit.Limiter
	tokenSource TokenSource
}

// NewWrapper creates a wrapped HTTP client
func NewWrapper(opts ...ClientOption) *Wrapper {
	return &Wrapper{
		client:      NewHTTPClient(opts...),
		retryConfig: DefaultRetryConfig(),
	}
}

// WithRetryConfig sets custom retry configuration
func (w *Wrapper) WithRetryConfig(config *RetryConfig) *Wrapper {
	w.retryConfig = config
	return w
}

// WithRateLimiter adds rate limiting
func (w *Wrapper) WithRateLimiter(limiter ratelimit.Limiter) *Wrapper {
	w.rateLimiter = limiter
	return w
}

// WithTokenSource sets the default token source for all requests
func (w *Wrapper) WithTokenSource(source TokenSource) *Wrapper {
	w.tokenSource = source
	return w
}

// Get performs a GET request
func (w *Wrapper) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	return w.Request(ctx, &RequestOptions{
		Method:    "GET",
		URL:       url,
		Headers:   headers,
		ParseJSON: true,
	})
}

// Post performs a POST request
func (w *Wrapper) Post(ctx context.Context, url string, body io.Reader, headers map[string]string) (*Response, error) {
	return w.Request(ctx, &RequestOptions{
		Method:    "POST",
		URL:       url,
		Body:      body,
		Headers:   headers,
		ParseJSON: true,
	})
}

// Request performs an HTTP request with rate limiting and retry
func (w *Wrapper) Request(ctx context.Context, opts *RequestOptions) (*Response, error) {
	if w.rateLimiter != nil {
		if err := w.rateLimiter.Wait(ctx); err != nil {
			return nil, errors.RateLimitError(opts.URL)
		}
	}

	retryConfig := opts.RetryConfig
	if retryConfig == nil {
		retryConfig = w.retryConfig
	}

	// Read the request body once so retries can replay it
	bodyBytes, err := w.readRequestBody(opts.Body)
	if err != nil {
		return nil, errors.InternalError("failed to read request body", err)
	}

	var response *Response

	utilsRetryConfig := utils.RetryConfig{
		MaxAttempts:   retryConfig.MaxAttempts,
		InitialDelay:  retryConfig.InitialDelay,
		MaxDelay:      retryConfig.MaxDelay,
		BackoffFactor: retryConfig.BackoffFactor,
		JitterFactor:  retryConfig.JitterFactor,
		RetryableErrors: func(err error) bool {
			return w.isRetryableError(err)
		},
	}

	err = utils.RetryWithBackoff(ctx, utilsRetryConfig, func() error {
		var reqErr error
		response, reqErr = w.executeRequest(ctx, opts, bodyBytes, retryConfig)
		return reqErr
	})

	return response, err
}

// readRequestBody reads the request body and returns bytes for reuse
func (w *Wrapper) readRequestBody(body io.Reader) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	return io.ReadAll(body)
}

// executeRequest executes a single HTTP request attempt
func (w *Wrapper) executeRequest(ctx context.Context, opts *RequestOptions, bodyBytes []byte, retryConfig *RetryConfig) (*Response, error) {
	start := time.Now()

	var bodyReader io.Reader
	if bodyBytes != nil {
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, opts.URL, bodyReader)
	if err != nil {
		return nil, errors.InternalError("failed to create request", err)
	}

	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}

	// Per-request token source takes precedence over the wrapper's
	tokenSource := opts.TokenSource
	if tokenSource == nil {
		tokenSource = w.tokenSource
	}
	if tokenSource != nil {
		token, err := tokenSource.GetValidToken(ctx)
		if err != nil {
			return nil, errors.AuthError(fmt.Sprintf("failed to get access token: %v", err))
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := w.client.Do(req)
	duration := time.Since(start)

	if err != nil {
		return nil, errors.ConnectionError("request failed", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.InternalError("failed to read response body", err)
	}

	headers := make(map[string]string)
	for name, values := range resp.Header {
		if len(values) > 0 {
			headers[name] = values[0]
		}
	}

	var parsedBody interface{}
	if opts.ParseJSON {
		parsedBody = w.parseResponseBody(responseBody)
	} else {
		parsedBody = string(responseBody)
	}

	response := &Response{
		StatusCode: resp.StatusCode,
		Headers:    headers,
		Body:       parsedBody,
		RawBody:    responseBody,
		Duration:   duration,
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return response, nil
	}

	if w.shouldRetryStatusCode(resp.StatusCode, retryConfig.RetryableStatusCodes) {
		return response, errors.InternalError(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.Status), nil)
	}

	// Non-retryable HTTP errors use a different error type to prevent retries
	return response, errors.ValidationError(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(responseBody)))
}

// parseResponseBody attempts to parse response as JSON, falls back to string
func (w *Wrapper) parseResponseBody(body []byte) interface{} {
	if len(body) == 0 {
		return ""
	}

	var jsonResponse interface{}
	if err := json.Unmarshal(body, &jsonResponse); err == nil {
		return jsonResponse
	}

	return string(body)
}

// shouldRetryStatusCode checks if a status code should trigger a retry
func (w *Wrapper) shouldRetryStatusCode(statusCode int, retryableStatusCodes []int) bool {
	if statusCode >= 500 {
		return true
	}

	for _, code := range retryableStatusCodes {
		if statusCode == code {
			return true
		}
	}

	return false
}

// isRetryableError determines if an error should trigger a retry
func (w *Wrapper) isRetryableError(err error) bool {
	// Connection errors and retryable-status errors, never auth or
	// validation failures
	if errors.IsType(err, errors.ErrTypeConnection) {
		return true
	}

	if errors.IsType(err, errors.ErrTypeInternal) {
		return true
	}

	return false
}

// HTTPClient returns the underlying HTTP client for direct access if needed
func (w *Wrapper) HTTPClient() *http.Client {
	return w.client
}
