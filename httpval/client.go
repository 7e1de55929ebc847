// Package httpval is an HTTP client speaking in dyncol values: request
// headers are a List of "Name: value" strings, response headers come back as
// a Map of strings, and bodies are decoded by their Content-Type.
package httpval

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/andreyvit/dyncol"
	"github.com/andreyvit/dyncol/codec"
	"github.com/andreyvit/dyncol/strutil"
)

const (
	DefaultUserAgent   = "dyncol/1.0 (+https://github.com/andreyvit/dyncol)"
	DefaultMaxBodySize = 32 << 20
)

var (
	ErrBadHeader    = errors.New("header must look like \"Name: value\"")
	ErrBodyTooLarge = errors.New("response body exceeds MaxBodySize")
)

type Options struct {
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client

	// UserAgent is sent unless the request headers carry their own.
	UserAgent string

	MaxBodySize int64

	// Logger defaults to the Context's logger.
	Logger *slog.Logger

	// Context builds response headers and decoded bodies.
	Context *dyncol.Context
}

type Client struct {
	hc        *http.Client
	userAgent string
	maxBody   int64
	logger    *slog.Logger
	ctx       *dyncol.Context
}

func New(opt Options) *Client {
	c := &Client{
		hc:        opt.HTTPClient,
		userAgent: opt.UserAgent,
		maxBody:   opt.MaxBodySize,
		logger:    opt.Logger,
		ctx:       opt.Context,
	}
	if c.hc == nil {
		c.hc = http.DefaultClient
	}
	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}
	if c.maxBody <= 0 {
		c.maxBody = DefaultMaxBodySize
	}
	if c.ctx == nil {
		c.ctx = dyncol.DefaultContext()
	}
	if c.logger == nil {
		c.logger = c.ctx.Logger()
	}
	return c
}

type Response struct {
	Status int

	// Headers maps canonical header names to values, sorted by name; repeated
	// headers are joined with ", ".
	Headers *dyncol.Map

	// Data is the decoded body, or null when the body is empty or its
	// Content-Type has no codec. It is owned by the Response.
	Data dyncol.Value

	// DecodeErr is set when the body claimed a known Content-Type but did
	// not parse.
	DecodeErr error

	Raw []byte

	// RetryAfter is set for 429 and 503 responses that say when to retry.
	RetryAfter time.Duration
}

// Free releases Headers and Data.
func (r *Response) Free() {
	if r.Headers != nil {
		r.Headers.Free()
		r.Headers = nil
	}
	r.Data.Release()
	r.Data = dyncol.Null()
}

func (c *Client) Get(ctx context.Context, url string, headers *dyncol.List) (*Response, error) {
	return c.Do(ctx, http.MethodGet, url, headers, dyncol.Value{})
}

func (c *Client) Delete(ctx context.Context, url string, headers *dyncol.List) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, url, headers, dyncol.Value{})
}

func (c *Client) Patch(ctx context.Context, url string, headers *dyncol.List, body dyncol.Value) (*Response, error) {
	return c.Do(ctx, http.MethodPatch, url, headers, body)
}

func (c *Client) Post(ctx context.Context, url string, headers *dyncol.List, body dyncol.Value) (*Response, error) {
	return c.Do(ctx, http.MethodPost, url, headers, body)
}

func (c *Client) Put(ctx context.Context, url string, headers *dyncol.List, body dyncol.Value) (*Response, error) {
	return c.Do(ctx, http.MethodPut, url, headers, body)
}

// Do sends a request. A body of KindInvalid sends no body; a string body is
// sent as is; anything else is encoded as JSON. Non-2xx statuses are not
// errors.
func (c *Client) Do(ctx context.Context, method, url string, headers *dyncol.List, body dyncol.Value) (*Response, error) {
	var payload []byte
	var contentType string
	switch body.Kind() {
	case dyncol.KindInvalid:
	case dyncol.KindString:
		payload, _ = body.AsBytes()
	default:
		var err error
		payload, err = codec.JSON.Encode(nil, body, c.codecOptions())
		if err != nil {
			return nil, fmt.Errorf("httpval: %s %s: %w", method, url, err)
		}
		contentType = "application/json"
	}

	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, fmt.Errorf("httpval: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if err := c.setHeaders(req.Header, headers); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		c.logger.Warn("httpval: request failed", slog.String("method", method), slog.String("url", url), slog.Any("err", err))
		return nil, fmt.Errorf("httpval: %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("httpval: %s %s: reading body: %w", method, url, err)
	}
	if int64(len(raw)) > c.maxBody {
		return nil, fmt.Errorf("httpval: %s %s: %w", method, url, ErrBodyTooLarge)
	}

	r := &Response{
		Status:  resp.StatusCode,
		Headers: c.headerMap(resp.Header),
		Data:    dyncol.Null(),
		Raw:     raw,
	}
	c.decodeBody(r, resp.Header.Get("Content-Type"))
	c.logger.Debug("httpval: response", slog.String("method", method), slog.String("url", url), slog.Int("status", r.Status), slog.Int("bytes", len(raw)), slog.Duration("elapsed", time.Since(start)))
	c.handleStatus(r, method, url)
	return r, nil
}

func (c *Client) codecOptions() codec.Options {
	return codec.Options{Context: c.ctx, Logger: c.logger}
}

func (c *Client) setHeaders(h http.Header, headers *dyncol.List) error {
	for i, v := range headers.All() {
		line, err := v.AsString()
		if err != nil {
			return fmt.Errorf("httpval: header %d: %w", i, err)
		}
		parts := strutil.Split(line, ":", 1)
		if parts.Len() != 2 {
			parts.Free()
			c.logger.Warn("httpval: malformed header", slog.Int("index", i), slog.String("header", line))
			return fmt.Errorf("httpval: header %d %q: %w", i, line, ErrBadHeader)
		}
		name := strings.TrimSpace(parts.Str(0))
		value := strings.TrimSpace(parts.Str(1))
		parts.Free()
		if name == "" {
			return fmt.Errorf("httpval: header %d %q: %w", i, line, ErrBadHeader)
		}
		h.Set(name, value)
	}
	return nil
}

func (c *Client) headerMap(h http.Header) *dyncol.Map {
	m := c.ctx.NewMap()
	for _, name := range slices.Sorted(maps.Keys(h)) {
		m.Set(name, dyncol.String(strings.Join(h[name], ", ")))
	}
	return m
}

func (c *Client) decodeBody(r *Response, contentType string) {
	if len(r.Raw) == 0 || contentType == "" {
		return
	}
	method, ok := codec.ParseMethod(contentType)
	if !ok {
		return
	}
	v, err := method.Decode(r.Raw, c.codecOptions())
	if err != nil {
		c.logger.Warn("httpval: undecodable body", slog.String("content_type", contentType), slog.Any("err", err))
		r.DecodeErr = err
		return
	}
	r.Data = v
}

// handleStatus logs unsuccessful statuses and extracts retry hints.
func (c *Client) handleStatus(r *Response, method, url string) {
	attrs := []any{slog.Int("status", r.Status), slog.String("method", method), slog.String("url", url)}
	switch {
	case r.Status >= 200 && r.Status < 300:
		return
	case r.Status == http.StatusMovedPermanently, r.Status == http.StatusNotModified:
		c.logger.Debug("httpval: "+http.StatusText(r.Status), attrs...)
	case r.Status == http.StatusTooManyRequests, r.Status == http.StatusServiceUnavailable:
		r.RetryAfter = c.retryAfter(r)
		c.logger.Warn("httpval: rate limited", append(attrs, slog.Duration("retry_after", r.RetryAfter))...)
	default:
		text := http.StatusText(r.Status)
		if text == "" {
			text = "unexpected status"
		}
		c.logger.Warn("httpval: "+strings.ToLower(text), attrs...)
	}
}

// retryAfter reads the Retry-After header (seconds or an HTTP date), falling
// back to a "retry_after" number of seconds in the decoded body.
func (c *Client) retryAfter(r *Response) time.Duration {
	if r.Headers.Contains("Retry-After") {
		h := r.Headers.Str("Retry-After")
		if secs, err := strconv.ParseFloat(h, 64); err == nil {
			return time.Duration(secs * float64(time.Second))
		}
		if t, err := http.ParseTime(h); err == nil {
			return max(time.Until(t), 0)
		}
	}
	if m, err := r.Data.AsMap(); err == nil && m.Contains("retry_after") {
		v, _ := m.Get("retry_after")
		switch v.Kind() {
		case dyncol.KindDouble:
			f, _ := v.AsDouble()
			return time.Duration(f * float64(time.Second))
		case dyncol.KindInt:
			n, _ := v.AsInt()
			return time.Duration(n) * time.Second
		}
	}
	return 0
}
