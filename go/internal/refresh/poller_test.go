package refresh

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

type counter struct {
	calls atomic.Int32
	err   error
	block chan struct{}
}

func (c *counter) callback(ctx context.Context) error {
	c.calls.Add(1)
	if c.block != nil {
		select {
		case <-c.block:
		case <-ctx.Done():
		}
	}
	return c.err
}

func (c *counter) n() int { return int(c.calls.Load()) }

func waitCalls(t *testing.T, p *Poller, c *counter, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.n() == want && !p.inFlight.Load()
	}, waitFor, tick)
}

func startPoller(t *testing.T, c *counter, interval time.Duration) (*Poller, *clockwork.FakeClock, context.Context) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	clock := clockwork.NewFakeClock()
	p := NewPoller("test", clock)
	require.NoError(t, p.Start(ctx, c.callback, interval))
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	return p, clock, ctx
}

func TestPollerRunsImmediatelyThenOnInterval(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	c := &counter{}
	p, clock, ctx := startPoller(t, c, 10*time.Second)
	waitCalls(t, p, c, 1)
	assert.ErrorIs(t, p.Start(ctx, c.callback, time.Second), ErrAlreadyRunning)

	clock.Advance(10 * time.Second)
	waitCalls(t, p, c, 2)
	clock.Advance(10 * time.Second)
	waitCalls(t, p, c, 3)

	require.NoError(t, p.Stop())
	assert.ErrorIs(t, p.Stop(), ErrNotRunning)
}

func TestPollerKeepsGoingAfterErrors(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	c := &counter{err: errors.New("network down")}
	p, clock, _ := startPoller(t, c, time.Second)
	waitCalls(t, p, c, 1)

	clock.Advance(time.Second)
	waitCalls(t, p, c, 2)
	clock.Advance(time.Second)
	waitCalls(t, p, c, 3)
	require.NoError(t, p.Stop())
}

func TestPollerSurvivesPanickingCallback(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var calls atomic.Int32
	callback := func(context.Context) error {
		if calls.Add(1) == 1 {
			panic("render failed")
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clock := clockwork.NewFakeClock()
	p := NewPoller("test", clock)
	require.NoError(t, p.Start(ctx, callback, time.Second))
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	require.Eventually(t, func() bool {
		return calls.Load() == 1 && !p.inFlight.Load()
	}, waitFor, tick)

	clock.Advance(time.Second)
	require.Eventually(t, func() bool {
		return calls.Load() == 2 && !p.inFlight.Load()
	}, waitFor, tick)
	require.NoError(t, p.Stop())
}

func TestPollerSkipsTickWhileInFlight(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	c := &counter{block: make(chan struct{})}
	p, clock, _ := startPoller(t, c, time.Second)
	require.Eventually(t, func() bool { return c.n() == 1 }, waitFor, tick)

	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return p.Skipped() == 1 }, waitFor, tick)
	assert.Equal(t, 1, c.n())

	close(c.block)
	waitCalls(t, p, c, 1)
	clock.Advance(time.Second)
	waitCalls(t, p, c, 2)
	require.NoError(t, p.Stop())
}

func TestPollerStopCancelsInFlightCycle(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	c := &counter{block: make(chan struct{})}
	p, _, _ := startPoller(t, c, time.Second)
	require.Eventually(t, func() bool { return c.n() == 1 }, waitFor, tick)
	require.NoError(t, p.Stop())
}

func TestPollerTriggerSpacing(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	c := &counter{}
	p, clock, _ := startPoller(t, c, time.Hour)
	waitCalls(t, p, c, 1)

	p.Trigger()
	waitCalls(t, p, c, 2)

	p.Trigger()
	assert.Never(t, func() bool { return c.n() > 2 }, 50*time.Millisecond, tick)

	clock.Advance(MinTriggerSpacing)
	p.Trigger()
	waitCalls(t, p, c, 3)
	require.NoError(t, p.Stop())
}

func TestPollerPauseResume(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	c := &counter{}
	p, clock, _ := startPoller(t, c, time.Second)
	waitCalls(t, p, c, 1)

	p.Pause()
	clock.Advance(time.Second)
	assert.Never(t, func() bool { return c.n() > 1 }, 50*time.Millisecond, tick)

	p.Resume()
	waitCalls(t, p, c, 2)
	require.NoError(t, p.Stop())
}

func TestPollerGate(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var online atomic.Bool
	c := &counter{}
	p, clock, _ := startPoller(t, c, time.Second)
	p.SetGate(online.Load)
	waitCalls(t, p, c, 1)

	clock.Advance(time.Second)
	assert.Never(t, func() bool { return c.n() > 1 }, 50*time.Millisecond, tick)

	online.Store(true)
	clock.Advance(time.Second)
	waitCalls(t, p, c, 2)
	require.NoError(t, p.Stop())
}

func TestPollerRejectsZeroInterval(t *testing.T) {
	p := NewPoller("bad", nil)
	assert.Error(t, p.Start(context.Background(), func(context.Context) error { return nil }, 0))
}
