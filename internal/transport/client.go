// Package transport issues authenticated requests against the social API and
// decodes its {success, message, data} envelope.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"feedsync/internal/models"
	"feedsync/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

const (
	defaultTimeout        = 15 * time.Second
	defaultConnectTimeout = 5 * time.Second
	defaultTLSTimeout     = 5 * time.Second
	defaultCookieName     = "token"
	maxResponseBytes      = 8 << 20
)

func defaultHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout: defaultConnectTimeout,
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: defaultTLSTimeout,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// Client is the authenticated API transport. The session token lives in a
// cookie jar so the server's Set-Cookie on login is picked up automatically.
type Client struct {
	base       *url.URL
	httpClient *http.Client
	jar        http.CookieJar
	cookieName string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient uses a copy of hc for requests. The copy gets the
// transport's own jar; hc itself is left untouched.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		cp := *hc
		c.httpClient = &cp
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient = defaultHTTPClient(d)
	}
}

// WithCookieName sets the name of the session cookie.
func WithCookieName(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.cookieName = name
		}
	}
}

// New builds a transport for the API rooted at baseURL. Requests go to
// baseURL + "/api" + path.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	c := &Client{
		base:       u,
		httpClient: defaultHTTPClient(defaultTimeout),
		jar:        jar,
		cookieName: defaultCookieName,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.httpClient.Jar = c.jar
	return c, nil
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// ImageURL returns the absolute URL of an uploaded image reference.
func (c *Client) ImageURL(ref string) string {
	if ref == "" {
		return ""
	}
	return c.base.String() + "/images/" + url.PathEscape(ref)
}

// Token returns the current session cookie value, or "" if none is held.
func (c *Client) Token() string {
	for _, ck := range c.jar.Cookies(c.base) {
		if ck.Name == c.cookieName {
			return ck.Value
		}
	}
	return ""
}

// SetToken installs a session token, typically restored from a persisted
// session.
func (c *Client) SetToken(token string) {
	if token == "" {
		c.ClearToken()
		return
	}
	c.jar.SetCookies(c.base, []*http.Cookie{{
		Name:     c.cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
	}})
}

// ClearToken drops the session cookie.
func (c *Client) ClearToken() {
	c.jar.SetCookies(c.base, []*http.Cookie{{
		Name:   c.cookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	}})
}

// Request describes one API call.
type Request struct {
	Method string
	// Path is appended to /api, e.g. "/post/like/abc".
	Path string
	// Route is the low-cardinality label for metrics and spans,
	// e.g. "/post/like/:id". Defaults to Path.
	Route string
	// JSON is encoded as the request body when non-nil.
	JSON any
	// Form is sent as multipart/form-data when non-nil. JSON must be nil.
	Form *Multipart
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Do executes req and decodes the envelope's data into out (if non-nil).
// It returns the server message on success. Failures are *models.AppError:
// CodeUnauthorized for an invalid session, CodeTransport when no usable
// response arrived, otherwise the server's rejection.
func (c *Client) Do(ctx context.Context, req Request, out any) (string, error) {
	route := req.Route
	if route == "" {
		route = req.Path
	}
	span, ctx := observability.TraceRequest(ctx, req.Method, route)
	defer span.End()
	done := observability.TrackRequest(req.Method, route)

	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		done(0)
		span.SetError(err)
		return "", models.NewTransportError("could not build request", err)
	}
	observability.InjectHeaders(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		done(0)
		span.SetError(err)
		return "", models.NewTransportError("could not reach server", err)
	}
	defer func() { _ = resp.Body.Close() }()
	done(resp.StatusCode)
	span.AddAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		span.SetError(err)
		return "", models.NewTransportError("could not read response", err)
	}

	observability.GlobalLogger.DebugContext(ctx, "api response",
		"method", req.Method,
		"route", route,
		"status", resp.StatusCode,
		"correlation_id", observability.ExtractCorrelationID(ctx),
	)

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if resp.StatusCode == http.StatusUnauthorized {
			return "", models.NewUnauthorizedError("")
		}
		err = fmt.Errorf("status %d: %w", resp.StatusCode, err)
		span.SetError(err)
		return "", models.NewTransportError("invalid response from server", err)
	}

	if !env.Success {
		appErr := classify(resp.StatusCode, env.Message)
		span.SetError(appErr)
		return "", appErr
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			span.SetError(err)
			return "", models.NewTransportError("invalid response data", err)
		}
	}
	return env.Message, nil
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	var body io.Reader
	contentType := ""
	switch {
	case req.Form != nil:
		buf, ct, err := req.Form.encode()
		if err != nil {
			return nil, err
		}
		body, contentType = buf, ct
	case req.JSON != nil:
		data, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, err
		}
		body, contentType = bytes.NewReader(data), "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.base.String()+"/api"+req.Path, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if id := observability.ExtractCorrelationID(ctx); id != "" {
		httpReq.Header.Set("X-Request-ID", id)
	}
	return httpReq, nil
}

// classify maps a rejected envelope to a structured error. The legacy
// message match stays for servers that answer 200 with success:false.
func classify(status int, message string) *models.AppError {
	switch {
	case status == http.StatusUnauthorized || message == models.UnauthorizedMessage:
		return models.NewUnauthorizedError(message)
	case status == http.StatusNotFound:
		return &models.AppError{Code: models.CodeNotFound, Message: nonEmpty(message, "Not found")}
	case status >= http.StatusInternalServerError:
		return &models.AppError{Code: models.CodeInternal, Message: nonEmpty(message, "Internal server error")}
	default:
		return models.NewValidationError(nonEmpty(message, "Request rejected"))
	}
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
