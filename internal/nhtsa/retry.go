package nhtsa

import (
	"context"
	"math"
	"net/http"
	"time"
)

// RetryConfig holds backoff settings. The retry count lives on Config.
type RetryConfig struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns the default backoff settings.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	}
}

// shouldRetry determines if a status code is retryable.
func shouldRetry(statusCode int) bool {
	switch statusCode {
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

// calculateBackoff returns InitialBackoff * 2^attempt, capped at MaxBackoff.
func calculateBackoff(attempt int, cfg RetryConfig) time.Duration {
	backoff := float64(cfg.InitialBackoff) * math.Pow(2, float64(attempt))
	if backoff > float64(cfg.MaxBackoff) {
		backoff = float64(cfg.MaxBackoff)
	}
	return time.Duration(backoff)
}

// retryWithBackoff runs reqFunc until it returns a non-retryable response,
// retries are exhausted, or ctx is done. Transport errors are not retried.
func (c *Client) retryWithBackoff(ctx context.Context, reqFunc func() (*http.Response, error)) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := reqFunc()
		if err != nil {
			return nil, err
		}

		if !shouldRetry(resp.StatusCode) || attempt >= c.maxRetries {
			return resp, nil
		}
		resp.Body.Close()

		wait := calculateBackoff(attempt, c.retry)
		c.logger.Debug().Int("attempt", attempt+1).Int("status", resp.StatusCode).Dur("backoff", wait).Msg("retrying vPIC request")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
