package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryPolicy bounds FetchWithRetry.
type RetryPolicy struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	// BaseDelay is the wait after the first failed attempt; it doubles
	// after every further failure.
	BaseDelay time.Duration
}

// DefaultRetryPolicy waits 1s then 2s between three 8s attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		AttemptTimeout: 8 * time.Second,
		BaseDelay:      time.Second,
	}
}

// Backoff returns the wait after the given failed attempt (0-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	return p.BaseDelay * time.Duration(1<<uint(attempt))
}

// Result is a successful FetchWithRetry response.
type Result struct {
	Body     []byte
	Attempts int
	// Stale is set when the body carries the "_offline" marker, meaning a
	// cache answered instead of the live server.
	Stale bool
}

// FetchWithRetry issues the request up to MaxAttempts times. Each attempt is
// cut off after AttemptTimeout. 4xx responses are returned at once.
func (c *BaseClient) FetchWithRetry(ctx context.Context, method, endpoint string, body []byte) (*Result, error) {
	policy := c.retry
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := policy.Backoff(attempt - 1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-c.clock.After(delay):
			}
		}

		respBody, err := c.attempt(ctx, policy.AttemptTimeout, method, endpoint, body)
		if err == nil {
			if attempt > 0 {
				log.Info().
					Str("endpoint", endpoint).
					Int("attempt", attempt+1).
					Msg("fetch succeeded after retry")
			}
			return &Result{Body: respBody, Attempts: attempt + 1, Stale: isStale(respBody)}, nil
		}

		lastErr = err
		if IsClientError(err) || ctx.Err() != nil {
			return nil, err
		}

		log.Warn().
			Err(err).
			Str("endpoint", endpoint).
			Int("attempt", attempt+1).
			Int("max_attempts", policy.MaxAttempts).
			Msg("fetch failed")
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", policy.MaxAttempts, lastErr)
}

func (c *BaseClient) attempt(ctx context.Context, timeout time.Duration, method, endpoint string, body []byte) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if body == nil {
		return c.MakeRequest(ctx, method, endpoint, nil)
	}
	return c.MakeRequest(ctx, method, endpoint, bytes.NewReader(body))
}

func isStale(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}

	var marker struct {
		Offline bool `json:"_offline"`
	}
	if err := json.Unmarshal(trimmed, &marker); err != nil {
		return false
	}
	return marker.Offline
}
