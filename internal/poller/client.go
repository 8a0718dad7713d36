package poller

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/net/http2"
)

const maxResponseBodySize = 1 << 20 // 1MB

// connection pooling limits to prevent resource exhaustion when polling many views
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second // conservative: matches common ALB defaults
)

// cacheBustParam is the query parameter carrying the request timestamp.
const cacheBustParam = "_"

// Request describes one HTTP call made by [Client].
type Request struct {
	// Method is the HTTP method. Empty defaults to GET.
	Method string

	// URL is the target URL.
	URL string

	// Headers are sent with the request. Cache-busting headers are added
	// on top unless the caller sets them explicitly.
	Headers map[string]string

	// Body is sent as the request body for POST requests.
	Body []byte

	// ContentType is set when Body is non-empty. Defaults to application/json.
	ContentType string

	// Timeout bounds the whole request including reading the body.
	Timeout time.Duration

	// NoCacheBust disables the timestamp query parameter.
	NoCacheBust bool
}

// Response holds the result of an HTTP request made by [Client].
//
// Response captures all relevant information from an HTTP request including
// the body (limited to 1MB), status code, latency, and any error that occurred.
type Response struct {
	// Body contains the HTTP response body, limited to 1MB.
	Body []byte

	// StatusCode is the HTTP status code (e.g., 200, 404, 500).
	// Zero if the request failed before receiving a response.
	StatusCode int

	// ContentType is the response Content-Type header.
	ContentType string

	// Latency is the total time taken for the request.
	Latency time.Duration

	// Error contains any error that occurred during the request.
	// nil indicates the request completed (though status may indicate an error).
	Error error
}

// Client is an HTTP client wrapper for polling the yard application.
//
// Client uses per-request timeouts via context rather than a global timeout,
// allowing different views to have different timeout configurations.
// Every request carries cache-busting headers and, unless disabled, a
// timestamp query parameter so intermediaries never serve stale state.
type Client struct {
	httpClient *http.Client
	now        func() time.Time
}

// ClientOption configures a [Client].
type ClientOption func(*http.Transport) error

// WithHTTP2 enables HTTP/2 on the client's transport via golang.org/x/net/http2.
func WithHTTP2() ClientOption {
	return func(t *http.Transport) error {
		if err := http2.ConfigureTransport(t); err != nil {
			return fmt.Errorf("configure http2 transport: %w", err)
		}
		return nil
	}
}

// NewClient creates a new polling [Client].
//
// The client is configured with connection pooling limits to prevent resource
// exhaustion when polling many views. Timeouts are applied per-request via
// the context parameter in [Client.Fetch], not as a global client timeout.
func NewClient(opts ...ClientOption) (*Client, error) {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        defaultMaxIdleConns,
		MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
		MaxConnsPerHost:     defaultMaxConnsPerHost,
		IdleConnTimeout:     defaultIdleConnTimeout,
	}
	for _, opt := range opts {
		if err := opt(transport); err != nil {
			return nil, err
		}
	}

	return &Client{
		httpClient: &http.Client{Transport: transport},
		now:        time.Now,
	}, nil
}

// Fetch performs an HTTP request and returns a structured [Response].
//
// Fetch always returns a Response; errors are captured in the Error field
// rather than returned separately. Errors caused by the timeout or by
// cancellation of ctx wrap context.DeadlineExceeded or context.Canceled.
func (c *Client) Fetch(ctx context.Context, r Request) Response {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	start := time.Now()

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	target := r.URL
	if !r.NoCacheBust {
		busted, err := c.cacheBust(target)
		if err != nil {
			return Response{
				Latency: time.Since(start),
				Error:   fmt.Errorf("invalid url: %w", err),
			}
		}
		target = busted
	}

	var body io.Reader
	if len(r.Body) > 0 {
		body = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("failed to create request: %w", err),
		}
	}

	req.Header.Set("Cache-Control", "no-cache, no-store")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if len(r.Body) > 0 {
		contentType := r.ContentType
		if contentType == "" {
			contentType = "application/json"
		}
		req.Header.Set("Content-Type", contentType)
	}
	for key, value := range r.Headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// surface the context cause so timeouts and aborts can be told apart
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("request failed: %w", err),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	// read body with size limit
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		return Response{
			StatusCode: resp.StatusCode,
			Latency:    time.Since(start),
			Error:      fmt.Errorf("failed to read response body: %w", err),
		}
	}

	return Response{
		Body:        data,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Latency:     time.Since(start),
	}
}

// cacheBust appends the current Unix millisecond timestamp to rawURL.
func (c *Client) cacheBust(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(cacheBustParam, strconv.FormatInt(c.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Close closes all idle connections in the client's connection pool.
//
// Safe to call multiple times. After Close, the client remains usable but
// new connections will be established as needed.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	c.httpClient.CloseIdleConnections()
}
