package sources

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"listingwatch/config"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxBodyBytes bounds a single response body
const maxBodyBytes = 10 << 20

// Fetcher performs GET requests with a per-call timeout, a fixed retry budget
// and a shared rate limit.
type Fetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	attempts  int
	delay     time.Duration
	userAgent string
	logger    *zap.Logger
}

// NewHTTPClient builds the client shared by the fetcher and the HTTP notifiers
func NewHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

func NewFetcher(cfg config.HTTPConfig, logger *zap.Logger) *Fetcher {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Fetcher{
		client:    NewHTTPClient(cfg.Timeout),
		limiter:   rate.NewLimiter(limit, 1),
		attempts:  attempts,
		delay:     cfg.RetryDelay,
		userAgent: cfg.UserAgent,
		logger:    logger.Named("fetcher"),
	}
}

// Get fetches url and returns the body. Transport errors and non-2xx statuses
// are retried with a fixed delay; the last error is returned once the budget
// is spent.
func (f *Fetcher) Get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= f.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(f.delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		body, err := f.do(ctx, url, headers)
		if err == nil {
			return body, nil
		}
		lastErr = err
		f.logger.Warn("Request failed",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Int("attempts", f.attempts),
			zap.Error(err))
	}
	return nil, fmt.Errorf("fetch %s: %w", url, lastErr)
}

func (f *Fetcher) do(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}
