package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/dmitrijs2005/dulo/internal/common"
	"github.com/dmitrijs2005/dulo/internal/logging"
)

const (
	refreshPath = "/auth/refresh"
	refreshKey  = "refresh"

	// expiryMargin is how close to the JWT exp claim a token counts as stale.
	expiryMargin = time.Minute
)

// APIClient talks to the DULO REST backend. It is safe for concurrent use.
type APIClient struct {
	baseURL   string
	http      *http.Client
	store     TokenStore
	log       logging.Logger
	threshold time.Duration
	timeout   time.Duration
	now       func() time.Time

	refreshes singleflight.Group
}

// Option customises an APIClient.
type Option func(*APIClient)

func WithHTTPClient(h *http.Client) Option {
	return func(c *APIClient) { c.http = h }
}

func WithLogger(l logging.Logger) Option {
	return func(c *APIClient) { c.log = l }
}

// WithRefreshThreshold sets the token age after which a proactive refresh
// happens.
func WithRefreshThreshold(d time.Duration) Option {
	return func(c *APIClient) { c.threshold = d }
}

// WithTimeout bounds every request, including refreshes started on behalf
// of callers that have since gone away. Non-positive values keep the
// default.
func WithTimeout(d time.Duration) Option {
	return func(c *APIClient) {
		if d <= 0 {
			return
		}
		c.timeout = d
		c.http.Timeout = d
	}
}

func withClock(now func() time.Time) Option {
	return func(c *APIClient) { c.now = now }
}

func NewAPIClient(baseURL string, store TokenStore, opts ...Option) *APIClient {
	c := &APIClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: 30 * time.Second},
		store:     store,
		log:       logging.Nop(),
		threshold: 4 * time.Minute,
		timeout:   30 * time.Second,
		now:       time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *APIClient) BaseURL() string {
	return c.baseURL
}

func (c *APIClient) Do(ctx context.Context, req *Request) (*Response, error) {
	if !req.Anonymous && !req.retry && c.ShouldRefresh(ctx) {
		if _, err := c.Refresh(ctx); err != nil {
			c.log.Warn(ctx, "proactive token refresh failed", "error", err)
		}
	}

	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && !req.retry && !req.Anonymous && c.owns(c.resolve(req.Path)) {
		token, err := c.Refresh(ctx)
		if err != nil {
			return nil, err
		}
		if token != "" {
			retry := *req
			retry.retry = true
			c.log.Debug(ctx, "retrying after token refresh", "method", req.Method, "path", req.Path)
			if resp, err = c.send(ctx, &retry); err != nil {
				return nil, err
			}
		}
	}

	if !resp.ok() {
		apiErr := newAPIError(resp)
		c.log.Debug(ctx, "api request failed", "method", req.Method, "path", req.Path,
			"status", resp.StatusCode, "message", apiErr.Message)
		return resp, apiErr
	}
	return resp, nil
}

// Refresh exchanges the refresh cookie for a new access token. Concurrent
// callers share the one in-flight call and its outcome. The call itself is
// detached from ctx so one caller giving up does not fail the others.
func (c *APIClient) Refresh(ctx context.Context) (string, error) {
	ch := c.refreshes.DoChan(refreshKey, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.refresh(rctx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *APIClient) refresh(ctx context.Context) (string, error) {
	resp, err := c.send(ctx, &Request{
		Method:      http.MethodPost,
		Path:        refreshPath,
		ContentType: common.ContentTypeJSON,
		Credentials: true,
		Anonymous:   true,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	if !resp.ok() {
		apiErr := newAPIError(resp)
		if apiErr.Message == "" {
			apiErr.Message = fmt.Sprintf("Refresh failed (%d)", resp.StatusCode)
		}
		if err := c.store.ClearSession(ctx); err != nil {
			c.log.Error(ctx, "failed to clear session after refresh failure", "error", err)
		}
		c.log.Info(ctx, "token refresh rejected", "status", resp.StatusCode, "message", apiErr.Message)
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, apiErr)
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if len(resp.Body) > 0 {
		if err := resp.Decode(&body); err != nil {
			return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
		}
	}

	if err := c.store.SaveToken(ctx, body.AccessToken, c.now()); err != nil {
		return "", fmt.Errorf("%w: store token: %w", ErrRefreshFailed, err)
	}
	c.log.Debug(ctx, "access token refreshed")
	return body.AccessToken, nil
}

// ShouldRefresh reports whether a stored token is old enough, or close
// enough to its exp claim, to be replaced before use.
func (c *APIClient) ShouldRefresh(ctx context.Context) bool {
	token, at, err := c.store.Token(ctx)
	if err != nil || token == "" {
		return false
	}
	now := c.now()
	if !at.IsZero() && now.Sub(at) > c.threshold {
		return true
	}
	if exp, ok := tokenExpiry(token); ok && exp.Sub(now) < expiryMargin {
		return true
	}
	return false
}

func (c *APIClient) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// owns reports whether target lives on the backend origin. Tokens and the
// refresh cookie never leave it.
func (c *APIClient) owns(target string) bool {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return false
	}
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, base.Scheme) && strings.EqualFold(u.Host, base.Host)
}

func (c *APIClient) send(ctx context.Context, req *Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	target := c.resolve(req.Path)
	own := c.owns(target)
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if req.ContentType != "" {
		httpReq.Header.Set(common.ContentTypeHeaderName, req.ContentType)
	}
	httpReq.Header.Set(common.RequestIDHeaderName, uuid.NewString())

	if !req.Anonymous && own {
		token, _, err := c.store.Token(ctx)
		if err != nil {
			c.log.Warn(ctx, "failed to read access token", "error", err)
		}
		if token != "" {
			httpReq.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
		}
	}
	if req.Credentials && own {
		cookie, err := c.store.RefreshCookie(ctx)
		if err != nil {
			c.log.Warn(ctx, "failed to read refresh cookie", "error", err)
		}
		if cookie != "" {
			httpReq.AddCookie(&http.Cookie{Name: common.RefreshCookieName, Value: cookie})
		}
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: read body: %w", ErrUnavailable, err)
	}

	if req.Credentials && own {
		c.captureRefreshCookie(ctx, httpResp)
	}

	return &Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header, Body: data}, nil
}

func (c *APIClient) captureRefreshCookie(ctx context.Context, resp *http.Response) {
	for _, ck := range resp.Cookies() {
		if ck.Name != common.RefreshCookieName {
			continue
		}
		value := ck.Value
		if ck.MaxAge < 0 || (!ck.Expires.IsZero() && ck.Expires.Before(c.now())) {
			value = ""
		}
		if err := c.store.SaveRefreshCookie(ctx, value); err != nil {
			c.log.Warn(ctx, "failed to store refresh cookie", "error", err)
		}
		return
	}
}

// IsUnavailable reports whether err means the backend could not be reached.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
