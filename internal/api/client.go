// Package api is the single choke point for outbound calls to the task backend.
// It builds requests, injects the bearer credential, parses responses, classifies
// failures and applies the global unauthorized-response policy.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"

	"taskctl/internal/notify"
)

const (
	// DefaultBaseURL is used when no API base is configured.
	DefaultBaseURL = "http://localhost:8080/api/v1"

	// DefaultTimeout bounds a whole request/response exchange.
	DefaultTimeout = 30 * time.Second

	// authMarker identifies auth endpoints, whose failures are not notified.
	authMarker = "/auth/"
)

// Credentials is the dispatcher's view of the session: it supplies the bearer
// token and is told when the server rejects a token with 401.
type Credentials interface {
	oauth2.TokenSource

	// Unauthorized is called with the token that was sent (empty if none).
	Unauthorized(rejected string)
}

// Outcome is the result of a completed exchange.
type Outcome struct {
	OK     bool
	Status int

	// Body is the JSON payload. Nil when the response had no body.
	Body json.RawMessage

	// Error is set for non-success statuses.
	Error *ErrorPayload
}

// Decode unmarshals the outcome body into T.
func Decode[T any](o *Outcome) (T, error) {
	var v T
	if o == nil || len(o.Body) == 0 {
		return v, fmt.Errorf("empty response body")
	}
	if err := json.Unmarshal(o.Body, &v); err != nil {
		return v, fmt.Errorf("decode response: %w", err)
	}
	return v, nil
}

// Client dispatches requests against one API base.
type Client struct {
	baseURL   string
	http      *http.Client
	sink      notify.Sink
	logger    *slog.Logger
	userAgent string

	mu         sync.RWMutex
	creds      Credentials
	lastErr    string
	lastStatus int

	inFlight atomic.Int64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithNotifier sets the sink that receives error notifications.
func WithNotifier(s notify.Sink) Option {
	return func(c *Client) { c.sink = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New creates a client for baseURL. An empty baseURL selects DefaultBaseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		sink:      notify.Discard,
		userAgent: "taskctl",
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.sink == nil {
		c.sink = notify.Discard
	}
	return c
}

// SetCredentials binds the token source and unauthorized hook.
func (c *Client) SetCredentials(cr Credentials) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds = cr
}

// BaseURL returns the configured API base.
func (c *Client) BaseURL() string { return c.baseURL }

// URL resolves endpoint against the API base. Absolute http(s) URLs are returned verbatim.
func (c *Client) URL(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return c.baseURL + endpoint
}

// LastError returns the message of the most recent failure, or "" if the last
// request succeeded. Advisory only.
func (c *Client) LastError() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// LastStatus returns the HTTP status of the most recent failure. It is 0 when
// the last request succeeded or never got a response.
func (c *Client) LastStatus() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastStatus
}

// InFlight returns the number of requests currently awaiting a response.
func (c *Client) InFlight() int { return int(c.inFlight.Load()) }

// Loading reports whether any request is in flight.
func (c *Client) Loading() bool { return c.InFlight() > 0 }

// IsAuthEndpoint reports whether failures on endpoint are kept off the notification channel.
func IsAuthEndpoint(endpoint string) bool {
	return strings.Contains(endpoint, authMarker)
}

// RequestOption adjusts an outgoing request after the default headers are set.
type RequestOption func(h http.Header)

// WithHeader sets a header, overriding the defaults (including Authorization).
func WithHeader(key, value string) RequestOption {
	return func(h http.Header) { h.Set(key, value) }
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, endpoint string, opts ...RequestOption) (*Outcome, error) {
	return c.Do(ctx, http.MethodGet, endpoint, nil, opts...)
}

// Post issues a POST request. A nil body sends no body at all.
func (c *Client) Post(ctx context.Context, endpoint string, body any, opts ...RequestOption) (*Outcome, error) {
	return c.Do(ctx, http.MethodPost, endpoint, body, opts...)
}

// Put issues a PUT request. A nil body sends no body at all.
func (c *Client) Put(ctx context.Context, endpoint string, body any, opts ...RequestOption) (*Outcome, error) {
	return c.Do(ctx, http.MethodPut, endpoint, body, opts...)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, endpoint string, opts ...RequestOption) (*Outcome, error) {
	return c.Do(ctx, http.MethodDelete, endpoint, nil, opts...)
}

// Do sends one request and classifies the result:
//   - 2xx: outcome with OK set, nil error;
//   - 401: the credentials' Unauthorized hook runs, outcome returned with nil error;
//   - other statuses: *StatusError, notified unless endpoint is an auth endpoint;
//   - no usable response: *TransportError, notified unless endpoint is an auth endpoint.
func (c *Client) Do(ctx context.Context, method, endpoint string, body any, opts ...RequestOption) (*Outcome, error) {
	c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	c.setLastError(0, "")

	url := c.URL(endpoint)
	reqID := uuid.NewString()
	log := c.logger.With("method", method, "url", url, "request_id", reqID)

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, c.transportFailure(log, method, endpoint, fmt.Errorf("encode request body: %w", err))
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, c.transportFailure(log, method, endpoint, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", reqID)
	if tok := c.token(); tok != nil {
		tok.SetAuthHeader(req)
	}
	for _, opt := range opts {
		opt(req.Header)
	}
	sent := bearerToken(req.Header)

	log.Debug("api request")
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.transportFailure(log, method, endpoint, err)
	}
	defer resp.Body.Close()

	outcome, err := parseResponse(resp)
	if err != nil {
		return nil, c.transportFailure(log, method, endpoint, err)
	}
	log.Debug("api response", "status", resp.StatusCode, "duration", time.Since(start))

	if outcome.OK {
		return outcome, nil
	}

	msg := errorMessage(outcome.Error, resp)
	c.setLastError(resp.StatusCode, msg)

	if resp.StatusCode == http.StatusUnauthorized {
		log.Debug("unauthorized response", "error", msg)
		if cr := c.credentials(); cr != nil {
			cr.Unauthorized(sent)
		}
		return outcome, nil
	}

	log.Debug("api error", "status", resp.StatusCode, "error", msg)
	if !IsAuthEndpoint(endpoint) {
		notify.Send(c.sink, notify.Error, msg)
	}
	return nil, &StatusError{
		Method:   method,
		Endpoint: endpoint,
		Status:   resp.StatusCode,
		Message:  msg,
		Payload:  outcome.Error,
	}
}

func (c *Client) transportFailure(log *slog.Logger, method, endpoint string, err error) error {
	c.setLastError(0, err.Error())
	log.Debug("api request failed", "error", err)
	if !IsAuthEndpoint(endpoint) {
		notify.Send(c.sink, notify.Error, err.Error())
	}
	return &TransportError{Method: method, Endpoint: endpoint, Err: err}
}

func (c *Client) setLastError(status int, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastStatus = status
	c.lastErr = msg
}

func (c *Client) credentials() Credentials {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds
}

func (c *Client) token() *oauth2.Token {
	cr := c.credentials()
	if cr == nil {
		return nil
	}
	tok, err := cr.Token()
	if err != nil || tok == nil || tok.AccessToken == "" {
		return nil
	}
	return tok
}

func bearerToken(h http.Header) string {
	v := h.Get("Authorization")
	if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
		return v[7:]
	}
	return ""
}

// parseResponse reads the body. JSON-declared bodies must parse; anything else is
// wrapped as an ErrorPayload.
func parseResponse(resp *http.Response) (*Outcome, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	out := &Outcome{
		OK:     resp.StatusCode >= 200 && resp.StatusCode < 300,
		Status: resp.StatusCode,
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) > 0 {
			if err := validateJSON(trimmed); err != nil {
				return nil, err
			}
			out.Body = json.RawMessage(trimmed)
		}
		if !out.OK {
			ep := &ErrorPayload{}
			if len(out.Body) > 0 {
				// Non-object error bodies leave the payload empty.
				_ = json.Unmarshal(out.Body, ep)
			}
			out.Error = ep
		}
		return out, nil
	}

	ep := &ErrorPayload{Error: string(raw)}
	out.Body, _ = json.Marshal(ep)
	if !out.OK {
		out.Error = ep
	}
	return out, nil
}

// errorMessage picks message, then error, then "HTTP <status>: <text>".
func errorMessage(ep *ErrorPayload, resp *http.Response) string {
	if ep != nil {
		if ep.Message != "" {
			return ep.Message
		}
		if ep.Error != "" {
			return ep.Error
		}
	}
	text := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" ")
	if text == "" || text == resp.Status {
		text = http.StatusText(resp.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", resp.StatusCode, text)
}
