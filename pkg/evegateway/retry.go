package evegateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// ErrErrorLimited is returned when the legacy rolling error cap is exhausted.
var ErrErrorLimited = errors.New("upstream error limit reached")

const (
	// Legacy upstream error cap: 100 errors in any rolling 60 s window.
	errorLimitCap    = 100
	errorLimitWindow = 60 * time.Second
)

// ErrorWindow tracks 4xx/5xx responses in a rolling window. When the cap is
// reached, requests are refused locally until old errors age out; the upstream
// would otherwise ban the IP.
type ErrorWindow struct {
	mu     sync.Mutex
	errors []time.Time
	cap    int
	window time.Duration

	// server-reported remaining budget overrides local counting when lower
	serverRemain int
	serverReset  time.Time
}

// NewErrorWindow creates the rolling error tracker with the legacy cap.
func NewErrorWindow() *ErrorWindow {
	return &ErrorWindow{cap: errorLimitCap, window: errorLimitWindow, serverRemain: -1}
}

func (w *ErrorWindow) trim(now time.Time) {
	cutoff := now.Add(-w.window)
	kept := w.errors[:0]
	for _, t := range w.errors {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	w.errors = kept
}

// Allow reports whether another request may be issued.
func (w *ErrorWindow) Allow() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	if w.serverRemain == 0 && now.Before(w.serverReset) {
		return false
	}
	w.trim(now)
	return len(w.errors) < w.cap
}

// RecordError registers a 4xx/5xx response.
func (w *ErrorWindow) RecordError() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	w.trim(now)
	w.errors = append(w.errors, now)
}

// ObserveHeaders ingests the server's error-limit headers, which are
// authoritative over local counting.
func (w *ErrorWindow) ObserveHeaders(headers http.Header) {
	remainStr := headers.Get("X-ESI-Error-Limit-Remain")
	if remainStr == "" {
		return
	}
	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.serverRemain = remain
	if resetStr := headers.Get("X-ESI-Error-Limit-Reset"); resetStr != "" {
		if secs, err := strconv.Atoi(resetStr); err == nil {
			w.serverReset = time.Now().Add(time.Duration(secs) * time.Second)
		}
	}
	if remain <= 10 {
		slog.Warn("Upstream error budget nearly exhausted",
			"remain", remain, "reset", w.serverReset.Format(time.RFC3339))
	}
}

// DefaultRetryClient implements retry with exponential backoff and the
// upstream's throttling semantics: 420 pauses a full minute, 429 honors
// Retry-After, 5xx backs off exponentially.
type DefaultRetryClient struct {
	httpClient  *http.Client
	errorWindow *ErrorWindow
}

// NewDefaultRetryClient creates a retry client sharing the error window.
func NewDefaultRetryClient(httpClient *http.Client, errorWindow *ErrorWindow) *DefaultRetryClient {
	return &DefaultRetryClient{
		httpClient:  httpClient,
		errorWindow: errorWindow,
	}
}

// DoWithRetry makes an HTTP request with retry logic. The caller owns the
// response body.
func (r *DefaultRetryClient) DoWithRetry(ctx context.Context, req *http.Request, maxRetries int) (*http.Response, error) {
	var resp *http.Response
	var err error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if !r.errorWindow.Allow() {
			return nil, ErrErrorLimited
		}

		reqClone := req.Clone(ctx)
		resp, err = r.httpClient.Do(reqClone)
		if err != nil {
			if attempt == maxRetries {
				return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries+1, err)
			}
			if err := backoff(ctx, time.Duration(1<<uint(attempt))*time.Second, 10*time.Second); err != nil {
				return nil, err
			}
			continue
		}

		r.errorWindow.ObserveHeaders(resp.Header)
		// 404 is an expected outcome and does not count against the error budget.
		if resp.StatusCode >= 400 && resp.StatusCode != http.StatusNotFound {
			r.errorWindow.RecordError()
		}

		if resp.StatusCode >= 500 || resp.StatusCode == 420 || resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := retryAfterDuration(resp)
			resp.Body.Close()

			if attempt == maxRetries {
				return nil, fmt.Errorf("request failed with status %d after %d attempts", resp.StatusCode, maxRetries+1)
			}
			if err := r.backoffForStatus(ctx, resp.StatusCode, retryAfter, attempt); err != nil {
				return nil, err
			}
			continue
		}

		break
	}

	return resp, nil
}

func (r *DefaultRetryClient) backoffForStatus(ctx context.Context, statusCode int, retryAfter time.Duration, attempt int) error {
	var wait time.Duration
	switch {
	case statusCode == 420:
		// Upstream "error limited" status: pause a full minute.
		wait = time.Minute
	case statusCode == http.StatusTooManyRequests:
		wait = retryAfter
		if wait == 0 {
			wait = time.Duration(1<<uint(attempt)) * time.Second
		}
		if wait > time.Minute {
			wait = time.Minute
		}
	case statusCode >= 500:
		wait = time.Duration(1<<uint(attempt)) * time.Second
		if wait > 30*time.Second {
			wait = 30 * time.Second
		}
	default:
		return nil
	}

	slog.WarnContext(ctx, "Upstream error requires backoff",
		"status_code", statusCode,
		"attempt", attempt,
		"backoff", wait.String())

	return backoff(ctx, wait, wait)
}

func retryAfterDuration(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

func backoff(ctx context.Context, d, max time.Duration) error {
	if d > max {
		d = max
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
