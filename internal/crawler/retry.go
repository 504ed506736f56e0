package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/masahif/sitescope/internal/config"
)

// FetchError reports a fetch that produced no usable response, either
// because every attempt failed or because the failure was not retryable.
type FetchError struct {
	URL        string
	Attempts   int
	StatusCode int // last retryable status seen, 0 for transport errors
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d %s after %d attempts",
			e.URL, e.StatusCode, http.StatusText(e.StatusCode), e.Attempts)
	}
	return fmt.Sprintf("fetch %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// permanentError marks failures that another attempt cannot fix
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// isRetryableStatus reports rate limiting and transient server failures
func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func shouldRetry(resp *HTTPResponse, err error) bool {
	if err != nil {
		var perm *permanentError
		if errors.As(err, &perm) || errors.Is(err, context.Canceled) {
			return false
		}
		return true
	}
	return resp != nil && isRetryableStatus(resp.StatusCode)
}

func normalizeRetry(cfg config.RetryConfig) config.RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 100 * time.Millisecond
	}
	// Backoff needs room to grow
	if cfg.MaxDelay <= cfg.BaseDelay {
		cfg.MaxDelay = 2 * cfg.BaseDelay
	}
	return cfg
}

// newRetryPolicy doubles the delay after each failed attempt, capped at
// MaxDelay. MaxAttempts counts the first attempt.
//
//nolint:bodyclose // *HTTPResponse is a generic type parameter, its body is already read
func newRetryPolicy(cfg config.RetryConfig) retrypolicy.RetryPolicy[*HTTPResponse] {
	return retrypolicy.NewBuilder[*HTTPResponse]().
		HandleIf(shouldRetry).
		WithBackoff(cfg.BaseDelay, cfg.MaxDelay).
		WithMaxRetries(cfg.MaxAttempts - 1).
		Build()
}

// Get fetches rawURL, retrying transport errors and retryable statuses.
// A non-nil response is final: any status other than the retryable ones,
// with the body captured only for 200 text/html. Every other outcome is
// returned as a *FetchError.
func (h *HTTPClient) Get(ctx context.Context, rawURL string) (*HTTPResponse, error) {
	var (
		attempts int
		lastResp *HTTPResponse
		lastErr  error
	)

	_, execErr := failsafe.With(h.retryPolicy).WithContext(ctx).Get(func() (*HTTPResponse, error) {
		attempts++
		resp, err := h.fetch(ctx, rawURL, false)
		lastResp, lastErr = resp, err
		h.metrics.observeAttempt(resp, err)

		if shouldRetry(resp, err) && attempts < h.retry.MaxAttempts {
			attrs := []any{"url", rawURL, "attempt", attempts}
			if err != nil {
				attrs = append(attrs, "error", err)
			} else {
				attrs = append(attrs, "status", resp.StatusCode)
			}
			slog.Debug("Retrying fetch", attrs...)
		}
		return resp, err
	})

	if lastErr == nil && lastResp != nil && !isRetryableStatus(lastResp.StatusCode) {
		lastResp.Attempts = attempts
		return lastResp, nil
	}

	fetchErr := &FetchError{URL: rawURL, Attempts: attempts, Err: lastErr}
	switch {
	case lastErr != nil:
	case lastResp != nil:
		fetchErr.StatusCode = lastResp.StatusCode
		fetchErr.Err = fmt.Errorf("retryable status %d", lastResp.StatusCode)
	default:
		fetchErr.Err = execErr
	}
	if fetchErr.Err == nil {
		fetchErr.Err = errors.New("no response")
	}
	return nil, fetchErr
}
