package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/izotovlife/izotovlife.ru-sub000/app/links"
)

var errReadTimeout = errors.New("read timeout")

// Fetcher performs HTTP requests under per-domain timeout and retry policies.
// Clients are shared per connect timeout so connection pools are reused.
type Fetcher struct {
	cfg     Config
	mu      sync.Mutex
	clients map[time.Duration]*http.Client
	sleep   func(ctx context.Context, d time.Duration) error
}

func New(cfg Config) *Fetcher {
	def := DefaultConfig()
	if cfg.Default.ConnectTimeout <= 0 {
		cfg.Default.ConnectTimeout = def.Default.ConnectTimeout
	}
	if cfg.Default.ReadTimeout <= 0 {
		cfg.Default.ReadTimeout = def.Default.ReadTimeout
	}
	if cfg.Default.Retries < 0 {
		cfg.Default.Retries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = def.Backoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.ReadTimeoutBonus <= 0 {
		cfg.ReadTimeoutBonus = def.ReadTimeoutBonus
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}
	cfg.Domains = links.NormalizeDomainKeys(cfg.Domains)

	return &Fetcher{
		cfg:     cfg,
		clients: make(map[time.Duration]*http.Client),
		sleep:   sleepContext,
	}
}

// PolicyFor resolves the policy for rawURL from the domain table and defaults.
func (f *Fetcher) PolicyFor(rawURL string) Policy {
	policy := f.cfg.Default

	override, ok := links.MatchDomain(links.Hostname(rawURL), f.cfg.Domains)
	if !ok {
		return policy
	}
	if override.ConnectTimeout > 0 {
		policy.ConnectTimeout = override.ConnectTimeout
	}
	if override.ReadTimeout > 0 {
		policy.ReadTimeout = override.ReadTimeout
	}
	if override.Retries != nil && *override.Retries >= 0 {
		policy.Retries = *override.Retries
	}
	return policy
}

func (f *Fetcher) Get(ctx context.Context, rawURL string) (*Response, error) {
	return f.Fetch(ctx, http.MethodGet, rawURL)
}

func (f *Fetcher) Fetch(ctx context.Context, method, rawURL string) (*Response, error) {
	return f.FetchWithPolicy(ctx, method, rawURL, f.PolicyFor(rawURL))
}

// FetchWithPolicy runs the request with retries. Retryable HTTP statuses that
// persist after the budget are returned as a normal response; transport failures
// come back as *FetchError.
func (f *Fetcher) FetchWithPolicy(ctx context.Context, method, rawURL string, policy Policy) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		if err == nil {
			err = fmt.Errorf("unsupported URL")
		}
		return nil, &FetchError{URL: rawURL, Kind: KindRequest, Attempts: 0, Err: err}
	}

	idempotent := method == http.MethodGet || method == http.MethodHead
	maxAttempts := 1
	if idempotent {
		maxAttempts += policy.Retries
	}

	start := time.Now()
	var lastErr *FetchError

	for attempt := 1; ; attempt++ {
		resp, fetchErr := f.do(ctx, method, rawURL, policy)

		var wait time.Duration
		if fetchErr == nil {
			resp.Attempts = attempt
			resp.Elapsed = time.Since(start)
			if !idempotent || !retryableStatus(resp.StatusCode) || attempt >= maxAttempts {
				return resp, nil
			}
			wait = f.retryAfter(resp, attempt)
			slog.Debug("Retrying request", "url", rawURL, "status", resp.StatusCode, "attempt", attempt, "delay", wait.String())
		} else {
			fetchErr.Attempts = attempt
			lastErr = fetchErr
			if fetchErr.Kind == KindCanceled || fetchErr.Kind == KindRequest || attempt >= maxAttempts {
				break
			}
			wait = f.backoff(attempt)
			slog.Debug("Retrying request", "url", rawURL, "kind", fetchErr.Kind, "attempt", attempt, "delay", wait.String(), "error", fetchErr.Err)
		}

		if err := f.sleep(ctx, wait); err != nil {
			return nil, &FetchError{URL: rawURL, Kind: KindCanceled, Attempts: attempt, Err: err}
		}
	}

	// Slow sources get one extra chance with a longer read window, outside the retry budget.
	if lastErr.Kind == KindReadTimeout && idempotent {
		extended := policy
		extended.ReadTimeout += f.cfg.ReadTimeoutBonus
		slog.Debug("Read timeout, retrying with extended read timeout", "url", rawURL, "read_timeout", extended.ReadTimeout.String())

		resp, fetchErr := f.do(ctx, method, rawURL, extended)
		if fetchErr == nil {
			resp.Attempts = lastErr.Attempts + 1
			resp.Elapsed = time.Since(start)
			return resp, nil
		}
		fetchErr.Attempts = lastErr.Attempts + 1
		lastErr = fetchErr
	}

	return nil, lastErr
}

func (f *Fetcher) do(ctx context.Context, method, rawURL string, policy Policy) (*Response, *FetchError) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{URL: rawURL, Kind: KindCanceled, Err: err}
	}

	attemptCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	// The read window starts once a connection is available and covers headers and body.
	var timerMu sync.Mutex
	var timer *time.Timer
	trace := &httptrace.ClientTrace{
		GotConn: func(httptrace.GotConnInfo) {
			timerMu.Lock()
			defer timerMu.Unlock()
			if timer == nil {
				timer = time.AfterFunc(policy.ReadTimeout, func() { cancel(errReadTimeout) })
			}
		},
	}
	defer func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
	}()

	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(attemptCtx, trace), method, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Kind: KindRequest, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}
	req.Header.Set("Accept", "*/*")

	resp, err := f.clientFor(policy.ConnectTimeout).Do(req)
	if err != nil {
		return nil, f.classify(ctx, attemptCtx, rawURL, err)
	}
	defer resp.Body.Close()

	var body []byte
	if method != http.MethodHead {
		body, err = io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes))
		if err != nil {
			return nil, f.classify(ctx, attemptCtx, rawURL, fmt.Errorf("failed to read response body: %w", err))
		}
	}

	return &Response{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

func (f *Fetcher) classify(parent, attemptCtx context.Context, rawURL string, err error) *FetchError {
	if parent.Err() != nil {
		return &FetchError{URL: rawURL, Kind: KindCanceled, Err: parent.Err()}
	}
	if errors.Is(context.Cause(attemptCtx), errReadTimeout) {
		return &FetchError{URL: rawURL, Kind: KindReadTimeout, Err: err}
	}
	return &FetchError{URL: rawURL, Kind: KindConnection, Err: err}
}

func (f *Fetcher) clientFor(connectTimeout time.Duration) *http.Client {
	f.mu.Lock()
	defer f.mu.Unlock()

	if client, ok := f.clients[connectTimeout]; ok {
		return client
	}

	dialer := &net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   connectTimeout,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	client := &http.Client{Transport: transport}
	f.clients[connectTimeout] = client

	return client
}

func (f *Fetcher) backoff(attempt int) time.Duration {
	delay := f.cfg.Backoff << uint(attempt-1)
	if delay <= 0 || delay > f.cfg.MaxBackoff {
		delay = f.cfg.MaxBackoff
	}
	return delay
}

func (f *Fetcher) retryAfter(resp *Response, attempt int) time.Duration {
	delay := f.backoff(attempt)
	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusServiceUnavailable {
		return delay
	}
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs >= 0 {
		delay = min(time.Duration(secs)*time.Second, f.cfg.MaxBackoff)
	}
	return delay
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
