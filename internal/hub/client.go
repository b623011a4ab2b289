// Package hub is a client for the Hugging Face datasets-server HTTP API.
//
// Only the two read endpoints the exporter needs are covered:
//
//	GET /splits?dataset=<id>
//	GET /rows?dataset=<id>&config=<c>&split=<s>&offset=<o>&length=<n>
//
// Requests are issued one at a time. Network errors, 429 and 5xx responses are
// retried with exponential backoff (Retry-After wins for 429); any other
// non-2xx response fails immediately with a *StatusError.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"hfexport/internal/metrics"
)

// Options configures a Client. Zero values fall back to the defaults used by
// internal/config.
type Options struct {
	Endpoint string
	Token    string

	// Config is the dataset configuration (subset) to read. Empty selects
	// "default" when present, otherwise the first listed.
	Config string

	PageSize    int
	Timeout     time.Duration
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration

	// JobName tags HTTP metrics.
	JobName string

	// HTTPClient overrides the tuned default client.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to one datasets-server endpoint. It is not safe for concurrent
// use; the exporter drives it from a single goroutine.
type Client struct {
	endpoint    string
	token       string
	config      string
	pageSize    int
	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	jobName     string

	http *http.Client
	log  *zap.Logger

	// sleep waits for d or until ctx is done; false means ctx ended first.
	sleep func(ctx context.Context, d time.Duration) bool

	// resolved caches the config chosen per dataset by Splits so Records
	// reads from the same one without another /splits round trip.
	resolved map[string]string
}

// NewClient builds a Client from opts.
func NewClient(opts Options) *Client {
	endpoint := strings.TrimRight(strings.TrimSpace(opts.Endpoint), "/")
	if endpoint == "" {
		endpoint = "https://datasets-server.huggingface.co"
	}
	pageSize := opts.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	base := opts.BaseBackoff
	if base <= 0 {
		base = time.Second
	}
	maxBackoff := opts.MaxBackoff
	if maxBackoff < base {
		maxBackoff = base
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = newHTTPClient(timeout)
	}
	lg := opts.Logger
	if lg == nil {
		lg = zap.NewNop()
	}

	return &Client{
		endpoint:    endpoint,
		token:       opts.Token,
		config:      opts.Config,
		pageSize:    pageSize,
		maxAttempts: maxAttempts,
		baseBackoff: base,
		maxBackoff:  maxBackoff,
		jobName:     opts.JobName,
		http:        hc,
		log:         lg,
		sleep:       sleepContext,
		resolved:    make(map[string]string),
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConns:        16,
		MaxIdleConnsPerHost: 4,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// StatusError is returned for non-2xx responses once retries (if any) are
// exhausted. Body holds up to 4KB of the response for debugging.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.StatusCode, e.Body)
}

// attempt is the outcome of one HTTP round trip.
type attempt struct {
	status     int
	body       []byte
	retryAfter time.Duration
	err        error
}

// getJSON issues GET path?query with retries and decodes a 2xx body into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	rawURL := c.endpoint + path + "?" + query.Encode()

	var lastErr error
	for n := 1; n <= c.maxAttempts; n++ {
		a := c.do(ctx, rawURL)

		if a.err == nil && a.status >= 200 && a.status < 300 {
			if err := json.Unmarshal(a.body, out); err != nil {
				return fmt.Errorf("decode %s: %w", path, err)
			}
			return nil
		}

		if a.err != nil {
			lastErr = fmt.Errorf("get %s: %w", path, a.err)
		} else {
			lastErr = &StatusError{URL: rawURL, StatusCode: a.status, Body: snippet(a.body)}
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !retryable(a) || n == c.maxAttempts {
			break
		}

		wait := nextRetryDelay(a, n, c.baseBackoff, c.maxBackoff)
		c.log.Warn("hub request failed; retrying",
			zap.String("url", rawURL),
			zap.Int("attempt", n),
			zap.Int("status", a.status),
			zap.Duration("wait", wait),
			zap.Error(lastErr),
		)
		if !c.sleep(ctx, wait) {
			return ctx.Err()
		}
	}
	return lastErr
}

// do performs a single GET and records its metrics.
func (c *Client) do(ctx context.Context, rawURL string) attempt {
	start := time.Now()
	reqDur, respDur := time.Duration(-1), time.Duration(-1)
	size := int64(-1)

	a := func() attempt {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return attempt{err: fmt.Errorf("new request: %w", err)}
		}
		req.Header.Set("User-Agent", "hfexport/1.0")
		req.Header.Set("Accept", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return attempt{err: err}
		}
		defer resp.Body.Close()
		reqDur = time.Since(start)

		body, err := io.ReadAll(resp.Body)
		size = int64(len(body))
		respDur = time.Since(start)
		if err != nil {
			return attempt{status: resp.StatusCode, err: fmt.Errorf("read body: %w", err)}
		}

		out := attempt{status: resp.StatusCode, body: body}
		if resp.StatusCode == http.StatusTooManyRequests {
			out.retryAfter = parseRetryAfter(resp.Header)
		}
		return out
	}()

	if respDur < 0 {
		respDur = time.Since(start)
	}
	metrics.RecordHTTP(c.jobName, a.status, a.err, reqDur, respDur, size)
	return a
}

// retryable reports whether another attempt may succeed. Caller cancellation
// is checked separately before this.
func retryable(a attempt) bool {
	if a.err != nil {
		return true
	}
	return a.status == http.StatusTooManyRequests || a.status >= 500
}

func nextRetryDelay(a attempt, n int, base, max time.Duration) time.Duration {
	if a.status == http.StatusTooManyRequests && a.retryAfter > 0 {
		return a.retryAfter
	}
	d := base << uint(n-1)
	if d > max || d <= 0 {
		d = max
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func parseRetryAfter(h http.Header) time.Duration {
	ra := strings.TrimSpace(h.Get("Retry-After"))
	if ra == "" {
		return 0
	}
	if secs, err := strconv.Atoi(ra); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(ra); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func snippet(b []byte) string {
	const max = 4096
	if len(b) > max {
		b = b[:max]
	}
	return strings.TrimSpace(string(b))
}
