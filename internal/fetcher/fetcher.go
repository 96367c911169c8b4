package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"okasion-watch/collector/internal/logging"
	"okasion-watch/collector/internal/metrics"
)

// defaultUserAgents is the rotation pool. Varies the request signature, not
// a correctness requirement.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.0 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:90.0) Gecko/20100101 Firefox/90.0",
}

// FetchError is returned when a request ultimately fails. Exhausted is set
// once every retry attempt has been spent.
type FetchError struct {
	URL        string
	Attempts   int
	LastStatus int
	Exhausted  bool
	Err        error
}

func (e *FetchError) Error() string {
	if e.Exhausted {
		return fmt.Sprintf("fetch %s: exhausted %d attempts (last status %d)", e.URL, e.Attempts, e.LastStatus)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Config tunes the fetcher. Zero values fall back to production defaults.
type Config struct {
	MaxRetries int           // attempts per call, default 3
	BaseDelay  time.Duration // backoff is BaseDelay * 2^(attempt-1), default 5s
	Timeout    time.Duration // total per-attempt timeout, default 30s
	JitterMin  time.Duration // pre-request jitter lower bound, default 1s
	JitterMax  time.Duration // pre-request jitter upper bound, default 3s
	UserAgents []string
	Limiter    *rate.Limiter             // shared upstream pacing, optional
	Registry   *metrics.MetricsRegistry // fetch counters and latency, optional
}

// Request describes one outbound call. Set at most one of JSON or Form.
type Request struct {
	URL    string
	Method string
	Query  url.Values
	JSON   interface{} // marshalled as application/json body
	Form   url.Values  // sent as application/x-www-form-urlencoded body
	Header http.Header // extra headers, merged over the defaults
}

// Fetcher issues outbound HTTP requests with retry, exponential backoff and
// User-Agent rotation. It keeps no state between attempts beyond the shared
// rate limiter.
type Fetcher struct {
	client     *http.Client
	maxRetries int
	baseDelay  time.Duration
	jitterMin  time.Duration
	jitterMax  time.Duration
	userAgents []string
	limiter    *rate.Limiter
	registry   *metrics.MetricsRegistry
}

// New creates a fetcher from cfg, applying defaults for unset fields.
func New(cfg Config) *Fetcher {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.JitterMax <= 0 {
		cfg.JitterMin = 1 * time.Second
		cfg.JitterMax = 3 * time.Second
	}
	if len(cfg.UserAgents) == 0 {
		cfg.UserAgents = defaultUserAgents
	}

	// Connect timeout stays shorter than the total attempt timeout.
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	client := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			DialContext:         dialer.DialContext,
			MaxIdleConns:        10,
			MaxConnsPerHost:     5,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}

	return &Fetcher{
		client:     client,
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.BaseDelay,
		jitterMin:  cfg.JitterMin,
		jitterMax:  cfg.JitterMax,
		userAgents: cfg.UserAgents,
		limiter:    cfg.Limiter,
		registry:   cfg.Registry,
	}
}

// Fetch performs the request with up to MaxRetries attempts. Non-2xx
// statuses, transport errors and timeouts all count as failed attempts; the
// final failure is reported as an exhausted FetchError.
func (f *Fetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	start := time.Now()
	var lastStatus int
	var lastErr error

	for attempt := 1; attempt <= f.maxRetries; attempt++ {
		// Jittered delay before every attempt so the request cadence
		// never settles into a fixed rhythm.
		if err := f.sleep(ctx, f.jitter()); err != nil {
			return nil, err
		}

		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		body, status, err := f.attempt(ctx, req)
		if err == nil && status >= 200 && status < 300 {
			if f.registry != nil {
				f.registry.FetchRequestsTotal.WithLabelValues("success").Inc()
				f.registry.FetchDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())
			}
			return body, nil
		}

		lastStatus = status
		lastErr = err
		if err != nil {
			logging.Warn("fetch attempt failed",
				"url", req.URL, "attempt", attempt, "error", err.Error())
		} else {
			logging.Warn("fetch attempt returned non-success status",
				"url", req.URL, "attempt", attempt, "status", status)
		}

		if attempt < f.maxRetries {
			if f.registry != nil {
				f.registry.FetchRetriesTotal.Inc()
			}
			backoff := f.baseDelay * time.Duration(1<<(attempt-1))
			if err := f.sleep(ctx, backoff); err != nil {
				return nil, err
			}
		}
	}

	if f.registry != nil {
		f.registry.FetchRequestsTotal.WithLabelValues("exhausted").Inc()
		f.registry.FetchDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())
	}
	return nil, &FetchError{
		URL:        req.URL,
		Attempts:   f.maxRetries,
		LastStatus: lastStatus,
		Exhausted:  true,
		Err:        lastErr,
	}
}

func (f *Fetcher) attempt(ctx context.Context, req Request) ([]byte, int, error) {
	target := req.URL
	if len(req.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + req.Query.Encode()
	}

	var body io.Reader
	contentType := ""
	switch {
	case req.JSON != nil:
		payload, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	case req.Form != nil:
		body = strings.NewReader(req.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, 0, &FetchError{URL: req.URL, Err: err}
	}

	f.setHeaders(httpReq)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for name, vals := range req.Header {
		for _, v := range vals {
			httpReq.Header.Set(name, v)
		}
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, 0, &FetchError{URL: req.URL, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &FetchError{URL: req.URL, Err: err}
	}

	return data, resp.StatusCode, nil
}

// setHeaders applies the browser-shaped default headers with a freshly
// rotated User-Agent for every attempt.
func (f *Fetcher) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", f.userAgents[rand.Intn(len(f.userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;application/json;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "es-ES,es;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("Connection", "keep-alive")
}

func (f *Fetcher) jitter() time.Duration {
	span := f.jitterMax - f.jitterMin
	if span <= 0 {
		return f.jitterMin
	}
	return f.jitterMin + time.Duration(rand.Int63n(int64(span)))
}

func (f *Fetcher) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsExhausted reports whether err is a FetchError that spent all retries.
func IsExhausted(err error) bool {
	fe, ok := err.(*FetchError)
	return ok && fe.Exhausted
}
