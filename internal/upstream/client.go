// Package upstream talks to the Resource API and folds every result into an
// Outcome. Nothing above this package sees a raw transport error.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vector-ai/vector-mcp-server/internal/metrics"
)

// maxBodyBytes caps how much of an upstream body is read.
const maxBodyBytes = 8 << 20

// Request is one call against the Resource API.
type Request struct {
	Method string
	Path   string
	Body   any
	Query  url.Values
}

// Caller performs a single Resource API call.
type Caller interface {
	Call(ctx context.Context, req Request) Outcome
}

// Client is the HTTP implementation of Caller.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	userAgent  string
	log        *logrus.Entry
	metrics    *metrics.Metrics
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMetrics records every call on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithUserAgent sets the User-Agent header of every call.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient builds a client for baseURL with a per-call timeout.
func NewClient(baseURL string, timeout time.Duration, log *logrus.Entry, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		timeout:    timeout,
		httpClient: &http.Client{},
		log:        log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the normalized Resource API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Call issues req and normalizes the result.
func (c *Client) Call(ctx context.Context, req Request) (out Outcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out = Unknown("%v", r)
		}
		c.metrics.ObserveUpstream(req.Method, out.Label(), time.Since(start))
	}()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + req.Path
	if len(req.Query) > 0 {
		endpoint += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		buf, err := json.Marshal(req.Body)
		if err != nil {
			return Unknown("encode request: %v", err)
		}
		body = bytes.NewReader(buf)
	}

	httpReq, err := http.NewRequestWithContext(callCtx, req.Method, endpoint, body)
	if err != nil {
		return Unknown("build request: %v", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	log := c.log.WithFields(logrus.Fields{"http_method": req.Method, "url": endpoint})
	log.Info("resource api request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		out = classify(ctx, callCtx, err)
		log.WithError(err).WithField("outcome", out.Label()).Error("resource api call failed")
		return out
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		out = classify(ctx, callCtx, err)
		log.WithError(err).WithField("outcome", out.Label()).Error("resource api body read failed")
		return out
	}
	raw = bytes.TrimSpace(raw)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var detail any = string(raw)
		if len(raw) > 0 && json.Valid(raw) {
			detail = json.RawMessage(raw)
		}
		log.WithField("status", resp.StatusCode).Errorf("resource api returned %d", resp.StatusCode)
		return Fail(KindUpstreamStatus, resp.StatusCode, detail)
	}

	if len(raw) == 0 {
		return Success(nil)
	}
	if !json.Valid(raw) {
		log.WithField("status", resp.StatusCode).Error("resource api returned a non-JSON body")
		return Unknown("decode response: body is not valid JSON")
	}
	return Success(json.RawMessage(raw))
}

// classify maps a failed round trip to a failure kind. parent is the
// caller's context; callCtx carries the per-call timeout.
func classify(parent, callCtx context.Context, err error) Outcome {
	if errors.Is(parent.Err(), context.Canceled) {
		return Unknown("request canceled")
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return Fail(KindTimeout, 0, "request exceeded time limit")
	}

	inner := err
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		inner = urlErr.Err
	}

	var netErr net.Error
	if errors.As(inner, &netErr) && netErr.Timeout() {
		return Fail(KindTimeout, 0, "request exceeded time limit")
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	var addrErr *net.AddrError
	switch {
	case errors.As(inner, &opErr), errors.As(inner, &dnsErr), errors.As(inner, &addrErr),
		errors.Is(inner, io.EOF), errors.Is(inner, io.ErrUnexpectedEOF), errors.Is(inner, net.ErrClosed):
		return Fail(KindTransport, 0, err.Error())
	}
	return Fail(KindUnknown, 0, err.Error())
}
