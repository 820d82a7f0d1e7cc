// Package backend is a client for the waste-management platform REST API.
//
// Requests carry a bearer access token. A 401 answer triggers one token
// refresh (shared by all requests that hit it at the same time) and one
// retry. Every failure is returned as an *apierror.Error.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/klynaa/internal/domain/apierror"
	"github.com/okian/klynaa/pkg/logger"
	"github.com/okian/klynaa/pkg/metrics"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Defaults used by New.
const (
	DefaultBaseURL = "http://localhost:8000/api"
	DefaultTimeout = 10 * time.Second

	refreshPath = "/auth/refresh/"
)

// Client talks to the platform API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        logger.Logger

	mu      sync.RWMutex
	access  string
	refresh string

	refreshes singleflight.Group
}

// New creates a platform API client. An empty baseURL means DefaultBaseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the API root requests are sent to.
func (c *Client) BaseURL() string { return c.baseURL }

// SetTokens replaces both tokens.
func (c *Client) SetTokens(access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.access = access
	c.refresh = refresh
}

// ClearTokens drops both tokens.
func (c *Client) ClearTokens() {
	c.SetTokens("", "")
}

// Tokens returns the current access and refresh tokens.
func (c *Client) Tokens() (access, refresh string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.access, c.refresh
}

// call sends one API request and decodes a JSON answer into out (when out
// is non-nil). body, when non-nil, is sent as JSON.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return apierror.Wrap(apierror.DefaultStatus, fmt.Sprintf("encode %s %s: %v", method, path, err), err)
		}
		payload = b
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	resp, err := c.send(ctx, method, target, payload)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if _, refresh := c.Tokens(); refresh != "" {
			drain(resp)
			if err := c.refreshAccess(ctx); err != nil {
				return err
			}
			resp, err = c.send(ctx, method, target, payload)
			if err != nil {
				return err
			}
		}
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return apierror.Wrap(apierror.DefaultStatus, fmt.Sprintf("decode %s %s: %v", method, path, err), err)
	}
	return nil
}

// send performs one attempt with the current access token.
func (c *Client) send(ctx context.Context, method, target string, payload []byte) (*http.Response, error) {
	if err := c.wait(ctx); err != nil {
		return nil, transportError(method+" "+target, err)
	}

	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return nil, transportError(method+" "+target, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	if access, _ := c.Tokens(); access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	took := time.Since(start)
	metrics.RecordBackendLatency(method, float64(took.Milliseconds()))
	if err != nil {
		metrics.RecordBackendRequest(method, "error")
		c.log.Warn(ctx, "platform request failed",
			logger.String("method", method),
			logger.String("url", target),
			logger.Error(err),
		)
		return nil, transportError(method+" "+target, err)
	}
	metrics.RecordBackendRequest(method, strconv.Itoa(resp.StatusCode))
	c.log.Debug(ctx, "platform request",
		logger.String("method", method),
		logger.String("url", target),
		logger.Int("status", resp.StatusCode),
		logger.Duration("took", took),
	)
	return resp, nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	start := time.Now()
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	metrics.RecordRateLimitWait(float64(time.Since(start).Milliseconds()))
	return nil
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access string `json:"access"`
}

// refreshAccess exchanges the refresh token for a new access token.
// Concurrent callers share one exchange. The exchange is detached from the
// caller's context and bounded by the client timeout, so a caller that gives
// up does not abort it for the others. Both tokens are cleared only when the
// platform rejects the refresh.
func (c *Client) refreshAccess(ctx context.Context) error {
	ch := c.refreshes.DoChan("refresh", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout())
		defer cancel()
		return nil, c.exchange(rctx)
	})

	var err error
	select {
	case <-ctx.Done():
		return transportError(http.MethodPost+" "+c.baseURL+refreshPath, ctx.Err())
	case res := <-ch:
		err = res.Err
	}
	if err == nil {
		return nil
	}
	status := apierror.StatusOf(err)
	return apierror.Wrap(status, fmt.Sprintf("%s: %s", ErrRefreshFailed, apierror.Normalize(err).Message),
		errors.Join(ErrRefreshFailed, err))
}

// exchange runs one refresh round trip and records its outcome.
func (c *Client) exchange(ctx context.Context) error {
	_, refresh := c.Tokens()
	if refresh == "" {
		metrics.RecordTokenRefresh("failure")
		return apierror.Wrap(http.StatusUnauthorized, ErrNoRefreshToken.Error(), ErrNoRefreshToken)
	}
	payload, err := json.Marshal(refreshRequest{Refresh: refresh})
	if err != nil {
		return err
	}

	resp, err := c.send(ctx, http.MethodPost, c.baseURL+refreshPath, payload)
	if err != nil {
		metrics.RecordTokenRefresh("failure")
		c.log.Warn(ctx, "token refresh did not complete; tokens kept", logger.Error(err))
		return err
	}
	defer drain(resp)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.rejectRefresh(ctx, decodeError(resp))
	}
	var out refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.Access == "" {
		return c.rejectRefresh(ctx, apierror.Wrap(http.StatusUnauthorized, "refresh response carried no access token", err))
	}
	c.SetTokens(out.Access, refresh)
	metrics.RecordTokenRefresh("success")
	return nil
}

func (c *Client) rejectRefresh(ctx context.Context, err error) error {
	metrics.RecordTokenRefresh("failure")
	c.ClearTokens()
	c.log.Warn(ctx, "token refresh rejected; tokens cleared", logger.Error(err))
	return err
}

func (c *Client) refreshTimeout() time.Duration {
	if c.httpClient.Timeout > 0 {
		return c.httpClient.Timeout
	}
	return DefaultTimeout
}

func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}
