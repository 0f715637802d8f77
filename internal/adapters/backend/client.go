// Package backend talks to the POS backend over HTTP: the authenticated request
// executor, the auth endpoints and the identity check.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/singleflight"

	domainauth "github.com/nexoai/pos-client/internal/domain/auth"
	apperrors "github.com/nexoai/pos-client/internal/errors"
	"github.com/nexoai/pos-client/internal/observability/metrics"
	"github.com/nexoai/pos-client/internal/observability/statsd"
	"github.com/nexoai/pos-client/internal/ports"
)

// DefaultTimeout bounds every backend attempt.
const DefaultTimeout = 10 * time.Second

const (
	// HeaderRequestID correlates a logical request and its retry in backend logs.
	HeaderRequestID = "X-Request-ID"

	refreshFlightKey = "refresh"
	maxBodyBytes     = 4 << 20
)

// TokenRefresher exchanges a refresh token for new credentials.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (domainauth.TokenPair, error)
}

// ClientOptions configures NewClient.
type ClientOptions struct {
	BaseURL string
	Timeout time.Duration
	// HTTPClient overrides the default client (timeout + public-suffix cookie jar).
	HTTPClient *http.Client
	Vault      ports.SessionVault
	Refresher  TokenRefresher
	Logger     *slog.Logger
	Metrics    statsd.Sink
}

// Request describes one backend call. Path is relative to the base URL unless absolute.
type Request struct {
	Method string
	Path   string
	Body   any
	Header http.Header
}

// Client is the request executor. Authenticated calls carry the stored access
// token; a 401 triggers one single-flight refresh and one retry.
type Client struct {
	baseURL *url.URL
	timeout time.Duration
	http    *http.Client
	vault   ports.SessionVault
	logger  *slog.Logger
	metrics statsd.Sink

	flight singleflight.Group

	mu        sync.RWMutex
	refresher TokenRefresher
	onExpired func(context.Context)
}

// NewClient creates a request executor.
func NewClient(opts ClientOptions) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(opts.BaseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid backend base url %q", opts.BaseURL)
	}
	if opts.Vault == nil {
		return nil, errors.New("backend client requires a session vault")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	hc := opts.HTTPClient
	if hc == nil {
		jar, jarErr := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if jarErr != nil {
			return nil, fmt.Errorf("create cookie jar: %w", jarErr)
		}
		hc = &http.Client{Timeout: timeout, Jar: jar}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:   base,
		timeout:   timeout,
		http:      hc,
		vault:     opts.Vault,
		logger:    logger,
		metrics:   opts.Metrics,
		refresher: opts.Refresher,
	}, nil
}

// SetRefresher installs the refresh call used on 401.
func (c *Client) SetRefresher(r TokenRefresher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refresher = r
}

// SetSessionExpiredHandler registers the callback run after a failed refresh
// has cleared the vault.
func (c *Client) SetSessionExpiredHandler(fn func(context.Context)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onExpired = fn
}

// Get performs an authenticated GET and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path}, out)
}

// Post performs an authenticated POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

// Do performs an authenticated request. out may be nil, a *[]byte for the raw
// body, or any JSON-decodable value.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	start := time.Now()
	rm := metrics.RequestMetric{Method: req.Method}
	err := c.do(ctx, req, out, &rm)
	rm.Duration = time.Since(start)
	rm.Err = err
	metrics.EmitRequest(c.metrics, rm)
	return err
}

// DoPublic performs a request without credentials. It never attaches a token
// and never refreshes; a 401 means the credentials in the body were rejected.
func (c *Client) DoPublic(ctx context.Context, req Request, out any) error {
	start := time.Now()
	rm := metrics.RequestMetric{Method: req.Method}

	err := func() error {
		call, err := c.prepare(req)
		if err != nil {
			return err
		}
		status, body, err := c.send(ctx, call, "")
		rm.Status = status
		if err != nil {
			return err
		}
		return decodeResponse(status, body, out, true)
	}()

	rm.Duration = time.Since(start)
	rm.Err = err
	metrics.EmitRequest(c.metrics, rm)
	return err
}

func (c *Client) do(ctx context.Context, req Request, out any, rm *metrics.RequestMetric) error {
	call, err := c.prepare(req)
	if err != nil {
		return err
	}

	token, err := c.vault.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("read access token: %w", err)
	}

	status, body, err := c.send(ctx, call, token)
	rm.Status = status
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized && token != "" {
		fresh, refreshErr := c.refreshAccess(ctx, token)
		if refreshErr != nil {
			return refreshErr
		}

		rm.Retried = true
		status, body, err = c.send(ctx, call, fresh)
		rm.Status = status
		if err != nil {
			return err
		}
	}

	return decodeResponse(status, body, out, false)
}

// refreshAccess returns a usable access token, running at most one refresh at
// a time. Waiters share the outcome; a caller whose context ends stops waiting
// but the refresh itself runs to completion.
func (c *Client) refreshAccess(ctx context.Context, stale string) (string, error) {
	ch := c.flight.DoChan(refreshFlightKey, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.runRefresh(rctx, stale)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		token, _ := res.Val.(string)
		return token, nil
	case <-ctx.Done():
		return "", apperrors.MapTransportError(ctx.Err())
	}
}

func (c *Client) runRefresh(ctx context.Context, stale string) (string, error) {
	start := time.Now()

	current, err := c.vault.AccessToken(ctx)
	if err != nil {
		metrics.EmitRefresh(c.metrics, metrics.ResultError, time.Since(start), err)
		return "", err
	}
	// Another caller already rotated the token after our request went out.
	if current != "" && current != stale {
		metrics.EmitRefresh(c.metrics, metrics.ResultNoop, 0, nil)
		return current, nil
	}

	refreshToken, err := c.vault.RefreshToken(ctx)
	if err != nil {
		metrics.EmitRefresh(c.metrics, metrics.ResultError, time.Since(start), err)
		return "", err
	}

	c.mu.RLock()
	refresher := c.refresher
	c.mu.RUnlock()

	if refreshToken == "" || refresher == nil {
		return "", c.expire(ctx, start, apperrors.SessionExpired("Your session has expired. Please sign in again."))
	}

	pair, err := refresher.Refresh(ctx, refreshToken)
	if err == nil && pair.AccessToken == "" {
		err = apperrors.Internal("refresh response carried no access token")
	}
	if err != nil {
		return "", c.expire(ctx, start, apperrors.Wrap(err, apperrors.ErrCodeSessionExpired, "Your session has expired. Please sign in again."))
	}

	if err := c.vault.SetAccessToken(ctx, pair.AccessToken); err != nil {
		metrics.EmitRefresh(c.metrics, metrics.ResultError, time.Since(start), err)
		return "", fmt.Errorf("persist refreshed access token: %w", err)
	}
	if pair.RefreshToken != "" {
		if err := c.vault.SetRefreshToken(ctx, pair.RefreshToken); err != nil {
			metrics.EmitRefresh(c.metrics, metrics.ResultError, time.Since(start), err)
			return "", fmt.Errorf("persist rotated refresh token: %w", err)
		}
	}

	c.logger.Debug("access token refreshed", "rotated", pair.RefreshToken != "")
	metrics.EmitRefresh(c.metrics, metrics.ResultSuccess, time.Since(start), nil)
	return pair.AccessToken, nil
}

// expire clears the session and notifies the expired handler.
func (c *Client) expire(ctx context.Context, start time.Time, cause *apperrors.AppError) error {
	if err := c.vault.Clear(ctx); err != nil {
		c.logger.Warn("clear session after failed refresh", "error", err)
	}
	c.logger.Info("session expired", "reason", cause.Error())
	metrics.EmitRefresh(c.metrics, metrics.ResultError, time.Since(start), cause)

	c.mu.RLock()
	fn := c.onExpired
	c.mu.RUnlock()
	if fn != nil {
		fn(ctx)
	}
	return cause
}

// preparedCall is a request ready to be sent, possibly twice.
type preparedCall struct {
	method    string
	url       string
	body      []byte
	header    http.Header
	requestID string
}

func (c *Client) prepare(req Request) (preparedCall, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	target, err := c.resolve(req.Path)
	if err != nil {
		return preparedCall{}, err
	}

	var body []byte
	if req.Body != nil {
		body, err = json.Marshal(req.Body)
		if err != nil {
			return preparedCall{}, apperrors.Wrap(err, apperrors.ErrCodeValidation, "encode request body")
		}
	}

	return preparedCall{
		method:    method,
		url:       target,
		body:      body,
		header:    req.Header,
		requestID: uuid.NewString(),
	}, nil
}

// resolve joins path onto the base URL; absolute URLs pass through.
func (c *Client) resolve(path string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(path))
	if err != nil {
		return "", apperrors.Validationf("invalid request path %q", path)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	u := c.baseURL.JoinPath(ref.Path)
	u.RawQuery = ref.RawQuery
	return u.String(), nil
}

func (c *Client) send(ctx context.Context, call preparedCall, token string) (int, []byte, error) {
	var body io.Reader
	if call.body != nil {
		body = bytes.NewReader(call.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, call.method, call.url, body)
	if err != nil {
		return 0, nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "create request")
	}
	for k, vs := range call.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(HeaderRequestID, call.requestID)
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return 0, nil, apperrors.MapTransportError(err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("close response body", "error", cerr)
		}
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, apperrors.MapTransportError(err)
	}

	c.logger.Debug("backend request",
		"method", call.method,
		"url", call.url,
		"status", resp.StatusCode,
		"request_id", call.requestID,
	)
	return resp.StatusCode, respBody, nil
}

func decodeResponse(status int, body []byte, out any, public bool) error {
	if status < 200 || status >= 300 {
		return apperrors.FromHTTPStatus(status, errorMessage(body), public)
	}
	if out == nil {
		return nil
	}
	if raw, ok := out.(*[]byte); ok {
		*raw = append((*raw)[:0], body...)
		return nil
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeUpstream, "decode backend response")
	}
	return nil
}
