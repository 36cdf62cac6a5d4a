package webdav

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/icholy/digest"

	"github.com/stacklok/davsync/internal/versions"
)

const (
	// MethodLock is the WebDAV LOCK method
	MethodLock = "LOCK"

	// MethodUnlock is the WebDAV UNLOCK method
	MethodUnlock = "UNLOCK"

	// MaxResponseSize is the maximum allowed response size (100MB)
	MaxResponseSize = 100 * 1024 * 1024

	// UsernamePlaceholder is replaced by the configured username in the LOCK body
	UsernamePlaceholder = "{username}"

	// LockTokenScheme prefixes every lock token on the wire
	LockTokenScheme = "opaquelocktoken:"
)

// UserAgent is the user agent string for WebDAV requests
var UserAgent = "davsync/" + versions.GetVersionInfo().Version

// Response holds the raw headers and the UTF-8 body of a WebDAV response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       string
}

// Client issues the WebDAV requests needed to synchronize documents
//
//go:generate mockgen -destination=mocks/mock_client.go -package=mocks github.com/stacklok/davsync/internal/webdav Client
type Client interface {
	// Lock requests an exclusive write lock on the resource and returns its token.
	// An empty token with a nil error means the lock was not granted.
	Lock(ctx context.Context, resource string) (string, error)

	// Unlock releases the lock identified by token. The response is not validated.
	Unlock(ctx context.Context, resource, token string) error

	// Get fetches the resource
	Get(ctx context.Context, resource string) (*Response, error)

	// Put writes content to the resource, presenting token in the If header
	Put(ctx context.Context, resource, content, token string) error
}

// Option configures a DefaultClient
type Option func(*DefaultClient) error

// WithCredentials sets the digest credentials sent with every request
func WithCredentials(username, password string) Option {
	return func(c *DefaultClient) error {
		c.username = username
		c.password = password
		return nil
	}
}

// WithLockBody sets the LOCK request body template
func WithLockBody(body string) Option {
	return func(c *DefaultClient) error {
		c.lockBody = body
		return nil
	}
}

// WithTimeout sets the HTTP client timeout. Zero means no timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *DefaultClient) error {
		if timeout < 0 {
			return fmt.Errorf("timeout cannot be negative: %s", timeout)
		}
		c.timeout = timeout
		return nil
	}
}

// WithTransport sets the round tripper used underneath digest authentication
func WithTransport(transport http.RoundTripper) Option {
	return func(c *DefaultClient) error {
		c.transport = transport
		return nil
	}
}

// DefaultClient is the net/http implementation of Client
type DefaultClient struct {
	baseURL   string
	username  string
	password  string
	lockBody  string
	timeout   time.Duration
	transport http.RoundTripper
	client    *http.Client
}

// NewClient creates a WebDAV client for the origin at baseURL.
// One trailing slash is stripped from baseURL.
func NewClient(baseURL string, opts ...Option) (*DefaultClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base URL must include a host")
	}

	c := &DefaultClient{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		transport: http.DefaultTransport,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	transport := c.transport
	if c.username != "" {
		transport = &digest.Transport{
			Username:  c.username,
			Password:  c.password,
			Transport: c.transport,
		}
	}
	c.client = &http.Client{
		Transport: transport,
		Timeout:   c.timeout,
	}

	return c, nil
}

// BaseURL returns the normalized base URL
func (c *DefaultClient) BaseURL() string {
	return c.baseURL
}

// ResourceURL composes the absolute URL of a resource
func (c *DefaultClient) ResourceURL(resource string) string {
	return c.baseURL + "/" + strings.TrimPrefix(resource, "/")
}

// Lock sends a LOCK request and extracts the granted lock token
func (c *DefaultClient) Lock(ctx context.Context, resource string) (string, error) {
	body := strings.ReplaceAll(c.lockBody, UsernamePlaceholder, c.username)
	header := http.Header{}
	header.Set("Accept", "*/*")
	header.Set("Content-Type", "application/xml")

	resp, err := c.do(ctx, MethodLock, resource, header, strings.NewReader(body))
	if err != nil {
		return "", err
	}

	if !isSuccess(resp.StatusCode) {
		slog.Debug("Lock not granted", "resource", resource, "status", resp.StatusCode)
		return "", nil
	}

	return ExtractLockToken(resp.Body), nil
}

// Unlock sends an UNLOCK request for token
func (c *DefaultClient) Unlock(ctx context.Context, resource, token string) error {
	header := http.Header{}
	header.Set("Accept", "*/*")
	header.Set("Lock-Token", "<"+LockTokenScheme+token+">")

	resp, err := c.do(ctx, MethodUnlock, resource, header, nil)
	if err != nil {
		return err
	}
	if !isSuccess(resp.StatusCode) {
		slog.Debug("Unlock returned non-success status", "resource", resource, "status", resp.StatusCode)
	}
	return nil
}

// Get fetches a resource
func (c *DefaultClient) Get(ctx context.Context, resource string) (*Response, error) {
	header := http.Header{}
	header.Set("Accept", "*/*")

	resp, err := c.do(ctx, http.MethodGet, resource, header, nil)
	if err != nil {
		return nil, err
	}
	if !isSuccess(resp.StatusCode) {
		return nil, NewHTTPError(resp.StatusCode, http.MethodGet, c.ResourceURL(resource), http.StatusText(resp.StatusCode))
	}
	return resp, nil
}

// Put writes content to a resource conditioned on holding token
func (c *DefaultClient) Put(ctx context.Context, resource, content, token string) error {
	header := http.Header{}
	header.Set("Accept", "*/*")
	header.Set("If", "<"+c.ResourceURL(resource)+"> (<"+LockTokenScheme+token+">)")

	resp, err := c.do(ctx, http.MethodPut, resource, header, strings.NewReader(content))
	if err != nil {
		return err
	}
	if !isSuccess(resp.StatusCode) {
		return NewHTTPError(resp.StatusCode, http.MethodPut, c.ResourceURL(resource), http.StatusText(resp.StatusCode))
	}
	return nil
}

func (c *DefaultClient) do(
	ctx context.Context, method, resource string, header http.Header, body io.Reader,
) (*Response, error) {
	target := c.ResourceURL(resource)

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", method, err)
	}
	for key, values := range header {
		req.Header[key] = values
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute %s request: %w", method, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.ContentLength > MaxResponseSize {
		return nil, fmt.Errorf("response size %d bytes exceeds maximum allowed size of %d bytes",
			resp.ContentLength, MaxResponseSize)
	}

	limitedReader := io.LimitReader(resp.Body, MaxResponseSize+1)
	data, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response body: %w", method, err)
	}
	if int64(len(data)) > MaxResponseSize {
		return nil, fmt.Errorf("response size exceeds maximum allowed size of %d bytes", MaxResponseSize)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%s %s: response body is not valid UTF-8", method, target)
	}

	slog.Debug("WebDAV request completed", "method", method, "url", target, "status", resp.StatusCode)

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       string(data),
	}, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
