package connection

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/jmoanes1/phonebook/internal/core/domain"
	"github.com/jmoanes1/phonebook/internal/infra/buildinfo"
	"github.com/jmoanes1/phonebook/internal/telemetry/logger"
)

// DefaultTimeout is the fixed per-request timeout when none is configured.
const DefaultTimeout = 10 * time.Second

// Request headers.
const (
	HeaderAuthorization = "Authorization"
	HeaderRequestID     = "X-Request-ID"
)

// Options configures an HTTPClient. The zero value is usable.
type Options struct {
	// Timeout bounds each request. Expiry is a transport failure.
	Timeout time.Duration

	// RateLimit caps requests per second. 0 disables the limiter.
	RateLimit float64

	// Burst is the limiter bucket size. Defaults to 1 when RateLimit is set.
	Burst int

	// UserAgent overrides the default phonebook-cli/<version>.
	UserAgent string

	// Transport replaces http.DefaultTransport.
	Transport http.RoundTripper
}

// Outcome describes one finished remote call.
type Outcome struct {
	Method    string
	Path      string
	RequestID string
	Status    int         // 0 when no response was received
	Kind      domain.Kind // "" on success
	Duration  time.Duration
	Err       error
}

// Label returns "ok" for a successful call and the error kind otherwise.
func (o Outcome) Label() string {
	if o.Kind == "" {
		return "ok"
	}
	return string(o.Kind)
}

// Observer is called after every remote call. It must not block.
type Observer func(Outcome)

// HTTPClient provides HTTP communication with the contacts api.
type HTTPClient struct {
	baseURL   string
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string

	mu        sync.RWMutex
	token     string
	observers []Observer
}

// NewHTTPClient creates a client bound to server.
func NewHTTPClient(server string, opts Options) *HTTPClient {
	// Ensure baseURL has http:// prefix
	baseURL := strings.TrimRight(strings.TrimSpace(server), "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = buildinfo.UserAgent()
	}

	c := &HTTPClient{
		baseURL:   baseURL,
		userAgent: userAgent,
		client: &http.Client{
			Timeout:   timeout,
			Transport: opts.Transport,
		},
	}
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return c
}

// BaseURL returns the base URL of the client.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// SetToken sets the bearer token attached to every request.
// An empty token sends no Authorization header.
func (c *HTTPClient) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current bearer token.
func (c *HTTPClient) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Observe registers fn to receive every call outcome.
func (c *HTTPClient) Observe(fn Observer) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.observers = append(c.observers, fn)
	c.mu.Unlock()
}

// Do sends a JSON request and decodes a 2xx JSON response into out.
//
// body and out may be nil. A 204 response leaves out untouched. Every
// returned error is a *domain.DomainError.
func (c *HTTPClient) Do(ctx context.Context, method, path string, body, out any) error {
	return c.do(ctx, method, path, c.Token(), body, out)
}

func (c *HTTPClient) do(ctx context.Context, method, path, token string, body, out any) error {
	o := Outcome{
		Method:    method,
		Path:      path,
		RequestID: uuid.NewString(),
	}
	start := time.Now()
	o.Status, o.Err = c.roundTrip(ctx, o.RequestID, token, method, path, body, out)
	o.Duration = time.Since(start)
	o.Kind = domain.KindOf(o.Err)
	c.notify(o)

	log := logger.L(logger.WithRequestID(ctx, o.RequestID))
	if o.Err != nil {
		log.Debug("remote request failed",
			"method", method,
			"path", path,
			"status", o.Status,
			"kind", string(o.Kind),
			"error", o.Err)
		return o.Err
	}
	log.Debug("remote request",
		"method", method,
		"path", path,
		"status", o.Status,
		"duration", o.Duration)
	return nil
}

func (c *HTTPClient) roundTrip(ctx context.Context, requestID, token, method, path string, body, out any) (int, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, domain.ErrTransport.WithCause(err).WithDetails("rate limit wait")
		}
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, domain.ErrInternal.WithCause(err).WithDetails("marshal request body")
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return 0, domain.ErrInvalidRequest.WithCause(err).WithDetails(err.Error())
	}
	c.addHeaders(req, token, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, Classify(nil, err)
	}
	defer resp.Body.Close()

	if err := Classify(resp, nil); err != nil {
		return resp.StatusCode, err
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, domain.ErrMalformedResponse.
			WithStatus(resp.StatusCode).
			WithCause(err).
			WithDetails(method + " " + path)
	}
	return resp.StatusCode, nil
}

// addHeaders adds authentication and common headers.
func (c *HTTPClient) addHeaders(req *http.Request, token, requestID string) {
	if token != "" {
		req.Header.Set(HeaderAuthorization, "Bearer "+token)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, requestID)
}

func (c *HTTPClient) notify(o Outcome) {
	c.mu.RLock()
	observers := c.observers
	c.mu.RUnlock()
	for _, fn := range observers {
		fn(o)
	}
}
