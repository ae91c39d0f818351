package clients

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/jonboulle/clockwork"
)

// BaseClient is the shared HTTP transport for API clients.
type BaseClient struct {
	baseURL string
	client  *http.Client
	headers map[string]string
	clock   clockwork.Clock
	retry   RetryPolicy
}

// NewBaseClient creates a new base client for the given URL.
func NewBaseClient(baseURL string) *BaseClient {
	// The scouting API authenticates with a session cookie.
	jar, _ := cookiejar.New(nil)

	return &BaseClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
		},
		headers: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
		},
		clock: clockwork.NewRealClock(),
		retry: DefaultRetryPolicy(),
	}
}

// SetHeader sets a header sent with every request.
func (c *BaseClient) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetTimeout sets the overall HTTP client timeout.
func (c *BaseClient) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

// SetClock replaces the clock used for retry backoff.
func (c *BaseClient) SetClock(clock clockwork.Clock) {
	c.clock = clock
}

// SetRetryPolicy replaces the policy used by FetchWithRetry.
func (c *BaseClient) SetRetryPolicy(policy RetryPolicy) {
	c.retry = policy
}

func (c *BaseClient) BaseURL() string {
	return c.baseURL
}

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned status code: %d, response: %s", e.StatusCode, e.Body)
}

// IsTransient reports whether err is worth retrying later: transport
// failures, timeouts and 5xx responses. 4xx responses are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// IsClientError reports whether err is a 4xx response from the API.
func IsClientError(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 400 && statusErr.StatusCode < 500
	}
	return false
}

// IsReachable reports whether a probe that returned err reached a working
// server. A 4xx still proves the server is up; 5xx and transport failures
// do not.
func IsReachable(err error) bool {
	return err == nil || IsClientError(err)
}

// IsNetworkError reports whether the request never got a response.
func IsNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// MakeRequest performs a single request and returns the response body.
// Non-2xx responses are returned as *StatusError.
func (c *BaseClient) MakeRequest(ctx context.Context, method, endpoint string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		responseBody, _ := io.ReadAll(resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(responseBody)}
	}

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return responseBody, nil
}

// Get makes a GET request.
func (c *BaseClient) Get(ctx context.Context, endpoint string) ([]byte, error) {
	return c.MakeRequest(ctx, http.MethodGet, endpoint, nil)
}

// Post makes a POST request with a JSON body.
func (c *BaseClient) Post(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	return c.MakeRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
}

func (c *BaseClient) Put(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	return c.MakeRequest(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
}

func (c *BaseClient) Delete(ctx context.Context, endpoint string) ([]byte, error) {
	return c.MakeRequest(ctx, http.MethodDelete, endpoint, nil)
}
