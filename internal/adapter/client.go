package adapter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/propfolio/catalog-cli/internal/resilience"
)

// ClientOptions configures a source API client.
type ClientOptions struct {
	Source      string
	UserAgent   string
	Timeout     time.Duration
	QuotaCalls  int
	QuotaWindow time.Duration
	HostRate    rate.Limit
	HostBurst   int
	Retry       resilience.RetryConfig
}

// Client is an HTTP client for one listing source. Each request passes
// two gates in order: the source's hard quota (sliding window, suspends
// until a slot frees) and a per-host courtesy limiter that smooths
// bursts. Transient failures are retried with backoff.
//
// One Client per adapter; the quota limiter is not shared.
type Client struct {
	http  *http.Client
	quota *resilience.WindowLimiter
	host  *rate.Limiter
	opts  ClientOptions
}

// NewClient creates a client with the given options; zero values fall
// back to sane defaults (30s timeout, 100 calls/hour, 2 rps courtesy).
func NewClient(opts ClientOptions) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "catalog-cli/1.0"
	}
	if opts.QuotaCalls == 0 {
		opts.QuotaCalls = 100
	}
	if opts.QuotaWindow == 0 {
		opts.QuotaWindow = time.Hour
	}
	if opts.HostRate == 0 {
		opts.HostRate = 2
	}
	if opts.HostBurst == 0 {
		opts.HostBurst = 5
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.FetchRetryConfig()
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost: 5,
		MaxConnsPerHost:     10,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		quota: resilience.NewWindowLimiter(opts.QuotaCalls, opts.QuotaWindow),
		host:  rate.NewLimiter(opts.HostRate, opts.HostBurst),
		opts:  opts,
	}
}

// GetJSON fetches rawURL with the given query parameters and decodes the
// response body into out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, params url.Values, out any) error {
	body, err := c.get(ctx, rawURL, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrapf(err, "adapter: decode %s response", c.opts.Source)
	}
	return nil
}

// get performs one rate-limited GET with retry and returns the body.
// 429 and 5xx responses are transient; other non-200 responses fail
// immediately. Exhausted retries surface as a *resilience.FetchError.
func (c *Client) get(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	target := rawURL
	if len(params) > 0 {
		target = rawURL + "?" + params.Encode()
	}

	cfg := c.opts.Retry
	cfg.OnRetry = resilience.RetryLogger(c.opts.Source, "get")

	body, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]byte, error) {
		return c.doOnce(ctx, target)
	})
	if err != nil {
		return nil, resilience.NewFetchError(c.opts.Source, target, err)
	}
	return body, nil
}

func (c *Client) doOnce(ctx context.Context, target string) ([]byte, error) {
	if err := c.quota.Acquire(ctx); err != nil {
		return nil, eris.Wrap(err, "adapter: quota wait")
	}
	if err := c.host.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "adapter: host limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, eris.Wrap(err, "adapter: create request")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// Network errors are classified by the retry layer.
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("adapter: http %d from %s", resp.StatusCode, target)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			zap.L().Warn("transient http status from source",
				zap.String("source", c.opts.Source),
				zap.Int("status", resp.StatusCode),
			)
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "adapter: read response body")
	}
	return body, nil
}
