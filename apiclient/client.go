// Package apiclient sends requests to the session backend with the current
// credentials attached, and recovers once from an expired access token by
// refreshing it and replaying the request.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/publicsuffix"

	"github.com/jrsteele09/go-auth-client/authmodel"
	"github.com/jrsteele09/go-auth-client/credentials"
	"github.com/jrsteele09/go-auth-client/internal/config"
	sessionerrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/token/refresh"
)

// maxResponseSize caps how much of a reply body is read.
const maxResponseSize = 10 * 1024 * 1024

// Request describes one backend call. Body, when set, is sent as JSON.
// NoRefresh marks calls that must not trigger a token refresh on 401.
type Request struct {
	Method    string
	Path      string
	Query     url.Values
	Body      any
	Header    http.Header
	Timeout   time.Duration
	NoRefresh bool
}

type Client struct {
	baseURL        *url.URL
	http           *http.Client
	creds          *credentials.Cache
	refresher      *refresh.Coordinator
	timeout        time.Duration
	loginPath      string
	onUnauthorized func(loginPath string)
}

var _ refresh.Exchanger = (*Client)(nil)

type Option func(*Client)

// WithHTTPClient replaces the underlying client. A cookie jar is added when
// the client has none.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		copied := *hc
		c.http = &copied
	}
}

// WithUnauthorizedHandler registers a hook run when a request stays
// unauthorized after the refresh-and-replay, typically a redirect to login.
func WithUnauthorizedHandler(fn func(loginPath string)) Option {
	return func(c *Client) {
		c.onUnauthorized = fn
	}
}

// New builds a client for cfg's base URL. store receives the identity clear
// when a refresh fails.
func New(cfg config.ClientConfig, creds *credentials.Cache, store refresh.IdentityStore, options ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("[apiclient.New] config is required")
	}
	baseURL, err := url.Parse(cfg.GetBaseURL())
	if err != nil {
		return nil, errors.Wrap(err, "[apiclient.New] base url")
	}

	c := &Client{
		baseURL:   baseURL,
		http:      &http.Client{},
		creds:     creds,
		timeout:   cfg.GetRequestTimeout(),
		loginPath: cfg.GetLoginPath(),
	}
	for _, opt := range options {
		opt(c)
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, errors.Wrap(err, "[apiclient.New] cookiejar.New")
		}
		c.http.Jar = jar
	}

	c.refresher, err = refresh.New(c, creds, store,
		refresh.WithIdentityPolicy(cfg.GetIdentityPolicy()),
		refresh.WithTimeout(cfg.GetRefreshTimeout()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[apiclient.New] refresh.New")
	}
	return c, nil
}

// Refresher exposes the coordinator shared by every request of this client.
func (c *Client) Refresher() *refresh.Coordinator {
	return c.refresher
}

// Jar is the cookie jar holding the backend's CSRF cookie.
func (c *Client) Jar() http.CookieJar {
	return c.http.Jar
}

// Get sends a GET for path with query.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post sends body as JSON to path.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
}

// Do sends req with the current credentials. A 401 is answered by one refresh
// and one replay; every other failure is returned as is. Transport failures
// match ErrTransport, non-2xx replies are *StatusError, and a replay that is
// still unauthorized, or a failed refresh, matches ErrAuthRejected.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	sent := c.creds.Access()
	resp, err := c.dispatch(ctx, req, sent)
	if err == nil || req.NoRefresh || StatusCode(err) != http.StatusUnauthorized {
		return resp, err
	}
	rejected := err

	// A refresh may have finished while this request was in flight.
	access := c.creds.Access()
	if access == "" || access == sent {
		var refreshErr error
		access, refreshErr = c.refresher.Refresh(ctx)
		if refreshErr != nil {
			if ctx.Err() != nil {
				return nil, sessionerrors.Join(sessionerrors.ErrTransport, refreshErr)
			}
			// A login that replaced the session during the refresh supplies the token.
			access = c.creds.Access()
			if !errors.Is(refreshErr, sessionerrors.ErrSessionChanged) || access == "" || access == sent {
				c.unauthorized()
				return nil, refreshRejected(rejected, refreshErr)
			}
		}
	}

	resp, err = c.dispatch(ctx, req, access)
	if StatusCode(err) == http.StatusUnauthorized {
		c.unauthorized()
		return nil, sessionerrors.Join(sessionerrors.ErrAuthRejected, err)
	}
	return resp, err
}

// Exchange posts the refresh token to the backend. It never triggers a
// refresh itself.
func (c *Client) Exchange(ctx context.Context, refreshToken string) (authmodel.RefreshResponse, error) {
	req := Request{Method: http.MethodPost, Path: RefreshPath, NoRefresh: true}
	if refreshToken != "" {
		req.Body = authmodel.RefreshRequest{RefreshToken: refreshToken}
	}

	var out authmodel.RefreshResponse
	resp, err := c.Do(ctx, req)
	if err != nil {
		return out, errors.Wrap(err, "[Client.Exchange] refresh request")
	}
	if err := resp.Decode(&out); err != nil {
		return out, errors.Wrap(err, "[Client.Exchange] malformed refresh response")
	}
	return out, nil
}

func (c *Client) dispatch(ctx context.Context, req Request, access string) (*Response, error) {
	timeout := req.Timeout
	if timeout == 0 {
		timeout = c.timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, errors.Wrap(err, "[Client.dispatch] json.Marshal body")
		}
		body = bytes.NewReader(data)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.resolve(req.Path, req.Query), body)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.dispatch] http.NewRequest")
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	requestID := uuid.New().String()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(RequestIDHeader, requestID)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if access != "" {
		httpReq.Header.Set("Authorization", "Bearer "+access)
	}
	if csrf := c.csrfToken(); csrf != "" {
		httpReq.Header.Set(CSRFHeader, csrf)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, sessionerrors.Join(sessionerrors.ErrTransport, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, sessionerrors.Join(sessionerrors.ErrTransport, err)
	}

	log.Debug().
		Str("method", method).
		Str("path", req.Path).
		Int("status", httpResp.StatusCode).
		Str("request_id", requestID).
		Msg("api request")

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: httpResp.StatusCode, Method: method, Path: req.Path, Body: data}
	}
	return &Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header, Body: data}, nil
}

func (c *Client) resolve(path string, query url.Values) string {
	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) csrfToken() string {
	for _, cookie := range c.http.Jar.Cookies(c.baseURL) {
		if cookie.Name == CSRFCookieName {
			return cookie.Value
		}
	}
	return ""
}

// refreshRejected reports a failed refresh as the original 401. The refresh
// cause is kept as text so that errors.As still resolves to the original reply.
func refreshRejected(rejected, refreshErr error) error {
	return fmt.Errorf("%w: %w: %w (refresh: %v)",
		sessionerrors.ErrAuthRejected, sessionerrors.ErrRefreshFailed, rejected, refreshErr)
}

func (c *Client) unauthorized() {
	if c.onUnauthorized != nil {
		c.onUnauthorized(c.loginPath)
	}
}
