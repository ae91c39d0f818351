package clients

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeRequestStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"Event key required"}`)
	}))
	defer srv.Close()

	c := NewBaseClient(srv.URL)
	_, err := c.Get(context.Background(), "/api/admin/matches")
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "Event key required")
	assert.True(t, IsClientError(err))
	assert.False(t, IsTransient(err))
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
		client    bool
		reachable bool
	}{
		{name: "nil", err: nil, reachable: true},
		{name: "server error", err: &StatusError{StatusCode: 503}, transient: true},
		{name: "not found", err: &StatusError{StatusCode: 404}, client: true, reachable: true},
		{name: "wrapped forbidden", err: fmt.Errorf("submit: %w", &StatusError{StatusCode: 403}), client: true, reachable: true},
		{name: "network", err: errors.New("dial tcp: connection refused"), transient: true},
		{name: "timeout", err: context.DeadlineExceeded, transient: true},
		{name: "canceled", err: context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.transient, IsTransient(tt.err))
			assert.Equal(t, tt.client, IsClientError(tt.err))
			assert.Equal(t, tt.reachable, IsReachable(tt.err))
		})
	}
}

func TestRetryPolicyBackoff(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, 8*time.Second, p.AttemptTimeout)
	assert.Equal(t, time.Second, p.Backoff(0))
	assert.Equal(t, 2*time.Second, p.Backoff(1))
	assert.Equal(t, 4*time.Second, p.Backoff(2))
}

func TestFetchWithRetryGivesUpAfterThreeAttempts(t *testing.T) {
	clock := clockwork.NewFakeClock()
	start := clock.Now()

	var mu sync.Mutex
	var seen []time.Duration
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, clock.Since(start))
		mu.Unlock()
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewBaseClient(srv.URL)
	c.SetClock(clock)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		_, err := c.FetchWithRetry(ctx, http.MethodGet, "/api/admin/matches?event=2025casj", nil)
		errCh <- err
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(2 * time.Second)

	err := <-errCh
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 attempts")

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []time.Duration{0, time.Second, 3 * time.Second}, seen)
}

func TestFetchWithRetrySucceedsOnSecondAttempt(t *testing.T) {
	clock := clockwork.NewFakeClock()

	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w, `[{"key":"2025casj_qm1","match_number":1}]`)
	}))
	defer srv.Close()

	c := NewBaseClient(srv.URL)
	c.SetClock(clock)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resCh := make(chan *Result, 1)
	go func() {
		res, err := c.FetchWithRetry(ctx, http.MethodGet, "/api/admin/matches", nil)
		assert.NoError(t, err)
		resCh <- res
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)

	res := <-resCh
	require.NotNil(t, res)
	assert.Equal(t, 2, res.Attempts)
	assert.False(t, res.Stale)
	assert.Contains(t, string(res.Body), "2025casj_qm1")
}

func TestFetchWithRetryDoesNotRetryClientErrors(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewBaseClient(srv.URL)
	c.SetClock(clockwork.NewFakeClock())

	_, err := c.FetchWithRetry(context.Background(), http.MethodGet, "/api/scouter/assignments", nil)
	require.Error(t, err)
	assert.True(t, IsClientError(err))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestFetchWithRetryFlagsStaleResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"success","_offline":true}`)
	}))
	defer srv.Close()

	c := NewBaseClient(srv.URL)
	res, err := c.FetchWithRetry(context.Background(), http.MethodGet, "/api/admin/match-summary", nil)
	require.NoError(t, err)
	assert.True(t, res.Stale)
	assert.Equal(t, 1, res.Attempts)
}

func TestFetchWithRetryStopsOnCancel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewBaseClient(srv.URL)
	c.SetClock(clock)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.FetchWithRetry(ctx, http.MethodGet, "/api/admin/teams", nil)
		errCh <- err
	}()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	cancel()

	assert.ErrorIs(t, <-errCh, context.Canceled)
}
