// Package httpcache is a small caching HTTP GET client. Responses are stored
// by request key, served from the store while fresh, revalidated after they
// expire and, if revalidation fails, served stale.
package httpcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	defaultHTTPTimeout = 60 * time.Second
	maxBodySize        = 32 * 1024 * 1024
)

// ErrBodyTooLarge is returned when a response exceeds the size limit.
var ErrBodyTooLarge = errors.New("httpcache: response body too large")

// Options configures a Client.
type Options struct {
	HTTPClient *http.Client
	// ExpireAfter is how long a stored response is served without a new
	// request. Negative means never expire, zero means always revalidate.
	ExpireAfter time.Duration
	// StaleIfError serves an expired entry when the new request fails.
	StaleIfError bool
	// IgnoredParams are left out of the cache key.
	IgnoredParams []string
	// Attempts per request on transport errors. Values below 1 mean 1.
	Attempts   uint
	RetryDelay time.Duration
	Logger     *slog.Logger
	Now        func() time.Time
}

// Response is a fetched or cached HTTP response with its body read.
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
	FromCache  bool
	Stale      bool
	Created    time.Time
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Client is a caching GET client. It is constructed once per run and owns
// its store; call Close when done.
type Client struct {
	http         *http.Client
	store        Store
	expireAfter  time.Duration
	staleIfError bool
	ignored      map[string]struct{}
	attempts     uint
	retryDelay   time.Duration
	log          *slog.Logger
	now          func() time.Time
}

func NewClient(store Store, opts Options) *Client {
	httpc := opts.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: defaultHTTPTimeout}
	}
	attempts := opts.Attempts
	if attempts < 1 {
		attempts = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ignored := make(map[string]struct{}, len(opts.IgnoredParams))
	for _, p := range opts.IgnoredParams {
		ignored[p] = struct{}{}
	}
	return &Client{
		http:         httpc,
		store:        store,
		expireAfter:  opts.ExpireAfter,
		staleIfError: opts.StaleIfError,
		ignored:      ignored,
		attempts:     attempts,
		retryDelay:   opts.RetryDelay,
		log:          logger.With("component", "httpcache"),
		now:          now,
	}
}

// Get fetches rawURL with params appended to its query. A transport error
// is returned only when no stale entry could be served instead; unsuccessful
// statuses are returned as responses.
func (c *Client) Get(ctx context.Context, rawURL string, params url.Values, header http.Header) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	key := c.key(http.MethodGet, u)

	cached, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.log.Warn("ignoring unreadable cache entry", "key", key, "error", err)
		}
		cached = nil
	}
	if cached != nil && c.fresh(cached) {
		c.log.Debug("cache hit", "url", u.Redacted())
		return responseFromEntry(cached, false), nil
	}

	resp, err := c.fetch(ctx, u.String(), header)
	if ctxErr := ctx.Err(); ctxErr != nil {
		// Cancelled runs never fall back to stale entries.
		if err == nil {
			err = ctxErr
		}
		return nil, err
	}
	if err != nil {
		if cached != nil && c.staleIfError {
			c.log.Warn("request failed, serving stale response", "url", u.Redacted(), "error", err)
			return responseFromEntry(cached, true), nil
		}
		return nil, err
	}
	if !resp.OK() {
		if cached != nil && c.staleIfError {
			c.log.Warn("unsuccessful status, serving stale response", "url", u.Redacted(), "status", resp.StatusCode)
			return responseFromEntry(cached, true), nil
		}
		return resp, nil
	}

	entry := &Entry{
		Key:        key,
		URL:        resp.URL,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
		Created:    resp.Created,
	}
	if err := c.store.Put(ctx, entry); err != nil {
		c.log.Warn("failed to cache response", "url", u.Redacted(), "error", err)
	}
	return resp, nil
}

// DeleteOlderThan evicts entries older than age.
func (c *Client) DeleteOlderThan(ctx context.Context, age time.Duration) (int, error) {
	return c.store.DeleteOlderThan(ctx, c.now().Add(-age))
}

// Close releases the underlying store.
func (c *Client) Close() error {
	return c.store.Close()
}

func (c *Client) fresh(e *Entry) bool {
	switch {
	case c.expireAfter < 0:
		return true
	case c.expireAfter == 0:
		return false
	}
	return c.now().Sub(e.Created) < c.expireAfter
}

// key hashes the method, URL and sorted query minus ignored parameters.
func (c *Client) key(method string, u *url.URL) string {
	q := u.Query()
	for p := range c.ignored {
		q.Del(p)
	}
	stripped := *u
	stripped.RawQuery = q.Encode()
	stripped.Fragment = ""
	hash := sha256.Sum256([]byte(method + " " + stripped.String()))
	return hex.EncodeToString(hash[:])
}

func (c *Client) fetch(ctx context.Context, target string, header http.Header) (*Response, error) {
	var resp *Response
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}
			for k, vs := range header {
				for _, v := range vs {
					req.Header.Add(k, v)
				}
			}

			r, err := c.http.Do(req)
			if err != nil {
				return err
			}
			defer r.Body.Close()

			body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
			if err != nil {
				return fmt.Errorf("read body: %w", err)
			}
			if len(body) > maxBodySize {
				return retry.Unrecoverable(ErrBodyTooLarge)
			}
			resp = &Response{
				URL:        target,
				StatusCode: r.StatusCode,
				Header:     r.Header.Clone(),
				Body:       body,
				Created:    c.now(),
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.log.Warn("request failed, retrying", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", redact(target), err)
	}
	return resp, nil
}

func responseFromEntry(e *Entry, stale bool) *Response {
	return &Response{
		URL:        e.URL,
		StatusCode: e.StatusCode,
		Header:     e.Header,
		Body:       e.Body,
		FromCache:  true,
		Stale:      stale,
		Created:    e.Created,
	}
}

func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Redacted()
}
