package discovery

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"time"
)

const (
	DefaultMaxRetries = 3
	BaseDelay         = 500 * time.Millisecond
	MaxDelay          = 10 * time.Second
)

// backoff is an exponential retry schedule.
type backoff struct {
	maxRetries int
	base       time.Duration
	max        time.Duration
}

func defaultBackoff() backoff {
	return backoff{maxRetries: DefaultMaxRetries, base: BaseDelay, max: MaxDelay}
}

func (b backoff) delay(attempt int) time.Duration {
	return min(time.Duration(float64(b.base)*math.Pow(2, float64(attempt))), b.max)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func withRetry[T any](ctx context.Context, b backoff, fn func() (T, error)) (T, error) {
	var result T
	var lastErr error

	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(b.delay(attempt - 1)):
			}
		}

		result, lastErr = fn()
		if lastErr == nil {
			return result, nil
		}
		if !isRetryable(lastErr) {
			return result, lastErr
		}
	}

	return result, lastErr
}

// doWithRetry sends req, retrying network timeouts and throttling statuses.
func doWithRetry(ctx context.Context, client *http.Client, b backoff, req *http.Request) (*http.Response, error) {
	return withRetry(ctx, b, func() (*http.Response, error) {
		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			return nil, err
		}
		if isRetryableStatus(resp.StatusCode) {
			resp.Body.Close()
			return nil, &retryableStatusError{StatusCode: resp.StatusCode}
		}
		return resp, nil
	})
}

type retryableStatusError struct {
	StatusCode int
}

func (e *retryableStatusError) Error() string {
	return http.StatusText(e.StatusCode)
}

// Timeout and Temporary make the error a net.Error so isRetryable accepts it.
func (e *retryableStatusError) Timeout() bool   { return true }
func (e *retryableStatusError) Temporary() bool { return true }
