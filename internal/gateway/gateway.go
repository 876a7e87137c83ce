// Package gateway wraps outbound HTTP with per-destination rate limiting,
// timeouts, and exponential-backoff retry. Every network-facing adapter goes
// through a Gateway rather than a bare http.Client.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limit configures one destination's rate and retry policy.
type Limit struct {
	Requests    int           // Admitted requests per Window
	Window      time.Duration // Rate-limit window
	Timeout     time.Duration // Per-attempt timeout
	MaxAttempts int           // Total attempts including the first
	BackoffBase time.Duration // First retry delay
	BackoffMax  time.Duration // Backoff cap
	Multiplier  float64       // Exponential factor
	Jitter      float64       // Fraction of the delay added randomly (0..1)
}

// DefaultLimit is used for destinations without an explicit limit.
var DefaultLimit = Limit{
	Requests:    10,
	Window:      time.Second,
	Timeout:     30 * time.Second,
	MaxAttempts: 3,
	BackoffBase: 500 * time.Millisecond,
	BackoffMax:  30 * time.Second,
	Multiplier:  2.0,
	Jitter:      0.2,
}

// Gateway is the shared entry point for all outbound HTTP requests.
// Limiter state is owned here and mutated only under gw.mu.
type Gateway struct {
	client *http.Client
	sleep  func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	limits   map[string]Limit
	limiters map[string]*rate.Limiter
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *Gateway) {
		g.client = hc
	}
}

// WithLimit registers a destination's rate and retry policy.
func WithLimit(dest string, l Limit) Option {
	return func(g *Gateway) {
		g.limits[dest] = l
	}
}

// WithBackoffSleep replaces the backoff sleep function. Tests use this to
// avoid real delays.
func WithBackoffSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(g *Gateway) {
		g.sleep = fn
	}
}

// New creates a Gateway.
func New(opts ...Option) *Gateway {
	g := &Gateway{
		client:   &http.Client{},
		limits:   make(map[string]Limit),
		limiters: make(map[string]*rate.Limiter),
		sleep: func(ctx context.Context, d time.Duration) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
				return nil
			}
		},
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// limitFor returns the configured limit for a destination.
func (g *Gateway) limitFor(dest string) Limit {
	g.mu.Lock()
	defer g.mu.Unlock()
	if l, ok := g.limits[dest]; ok {
		return l
	}
	return DefaultLimit
}

// limiterFor returns (lazily creating) the shared limiter for a destination.
// A full burst is available immediately; afterwards tokens refill one per
// window, so the (N+1)th request within a window waits for rollover.
func (g *Gateway) limiterFor(dest string) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()

	if lim, ok := g.limiters[dest]; ok {
		return lim
	}

	l, ok := g.limits[dest]
	if !ok {
		l = DefaultLimit
	}
	lim := rate.NewLimiter(rate.Every(l.Window), l.Requests)
	g.limiters[dest] = lim
	return lim
}

// Do executes a request against the named destination, waiting for rate-limit
// admission and retrying transient failures with exponential backoff. The
// returned response's body is the caller's to close.
func (g *Gateway) Do(ctx context.Context, dest string, req *http.Request) (*http.Response, error) {
	return g.do(ctx, dest, req, true)
}

// TryDo is the non-blocking variant: if the destination's limiter has no
// token available it returns ErrRateLimited immediately, and no retries are
// attempted.
func (g *Gateway) TryDo(ctx context.Context, dest string, req *http.Request) (*http.Response, error) {
	if !g.limiterFor(dest).Allow() {
		return nil, fmt.Errorf("%s: %w", dest, ErrRateLimited)
	}

	l := g.limitFor(dest)
	resp, _, err := g.attempt(ctx, l, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dest, err)
	}
	return resp, nil
}

func (g *Gateway) do(ctx context.Context, dest string, req *http.Request, wait bool) (*http.Response, error) {
	l := g.limitFor(dest)
	limiter := g.limiterFor(dest)

	attempts := l.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := g.sleep(ctx, backoffFor(l, attempt-1)); err != nil {
				return nil, err
			}
		}

		if wait {
			if err := limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limiter: %w", err)
			}
		}

		resp, retryable, err := g.attempt(ctx, l, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryable {
			return nil, fmt.Errorf("%s: %w", dest, err)
		}
	}

	return nil, fmt.Errorf("%s after %d attempts: %w: %w", dest, attempts, ErrRetriesExhausted, lastErr)
}

// attempt performs one request with the per-attempt timeout applied and
// classifies the outcome. The bool return reports whether a failure is
// retryable.
func (g *Gateway) attempt(ctx context.Context, l Limit, req *http.Request) (*http.Response, bool, error) {
	actx := ctx
	var cancel context.CancelFunc
	if l.Timeout > 0 {
		actx, cancel = context.WithTimeout(ctx, l.Timeout)
	}

	resp, err := g.client.Do(req.Clone(actx))
	if err != nil {
		if cancel != nil {
			cancel()
		}
		// Distinguish the attempt deadline from caller cancellation.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, true, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	if resp.StatusCode >= 400 {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if cancel != nil {
			cancel()
		}
		statusErr := &StatusError{Code: resp.StatusCode}
		return nil, retryableStatus(resp.StatusCode), statusErr
	}

	if cancel != nil {
		// The response body must outlive the attempt context; release the
		// timer once the body is drained.
		resp.Body = &cancelReadCloser{rc: resp.Body, cancel: cancel}
	}
	return resp, false, nil
}

// retryableStatus reports whether an HTTP status is worth retrying.
func retryableStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}

// backoffFor computes the delay before retry number retry (0-indexed),
// with jitter applied to avoid thundering herds.
func backoffFor(l Limit, retry int) time.Duration {
	base := l.BackoffBase
	if base <= 0 {
		base = DefaultLimit.BackoffBase
	}
	mult := l.Multiplier
	if mult <= 0 {
		mult = DefaultLimit.Multiplier
	}

	d := float64(base)
	for i := 0; i < retry; i++ {
		d *= mult
	}
	if l.BackoffMax > 0 && d > float64(l.BackoffMax) {
		d = float64(l.BackoffMax)
	}
	if l.Jitter > 0 {
		d += rand.Float64() * l.Jitter * d
	}
	return time.Duration(d)
}

// cancelReadCloser releases an attempt's context when its body is closed.
type cancelReadCloser struct {
	rc     io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Read(p []byte) (int, error) { return c.rc.Read(p) }

func (c *cancelReadCloser) Close() error {
	err := c.rc.Close()
	c.cancel()
	return err
}
