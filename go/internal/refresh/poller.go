package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

var (
	ErrAlreadyRunning = errors.New("poller already running")
	ErrNotRunning     = errors.New("poller not running")
)

// MinTriggerSpacing is the shortest gap between two triggered refreshes.
const MinTriggerSpacing = 2 * time.Second

// Callback is one refresh cycle. It should call ChangeTracker.HasChanged
// before doing any expensive rendering.
type Callback func(ctx context.Context) error

// Poller runs a callback now and then on every interval tick. A tick that
// arrives while the previous cycle is still running is skipped.
type Poller struct {
	name  string
	clock clockwork.Clock
	gate  func() bool

	inFlight atomic.Bool
	paused   atomic.Bool
	skipped  atomic.Int64
	trigger  chan struct{}

	mu          sync.Mutex
	running     bool
	lastTrigger time.Time
	stopChan    chan struct{}
	wg          sync.WaitGroup
}

// NewPoller creates a stopped poller; name only labels its log lines.
func NewPoller(name string, clock clockwork.Clock) *Poller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Poller{
		name:     name,
		clock:    clock,
		trigger:  make(chan struct{}, 1),
		stopChan: make(chan struct{}),
	}
}

// SetGate installs a check consulted before every scheduled tick, e.g.
// whether the server is reachable. Triggered runs ignore it.
func (p *Poller) SetGate(gate func() bool) {
	p.mu.Lock()
	p.gate = gate
	p.mu.Unlock()
}

// Start runs callback once right away and then every interval until Stop
// or ctx is done.
func (p *Poller) Start(ctx context.Context, callback Callback, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("poll interval must be positive")
	}

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return ErrAlreadyRunning
	}
	p.running = true
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run(ctx, callback, interval)

	log.Info().
		Str("poller", p.name).
		Dur("interval", interval).
		Msg("auto-refresh started")
	return nil
}

// Stop halts the schedule and waits for an in-flight cycle to return.
func (p *Poller) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return ErrNotRunning
	}
	p.running = false
	p.mu.Unlock()

	close(p.stopChan)
	p.wg.Wait()

	log.Info().Str("poller", p.name).Msg("auto-refresh stopped")
	return nil
}

// Trigger requests a refresh outside the schedule, for example after
// connectivity returns. Requests closer than MinTriggerSpacing to the
// previous accepted one are dropped.
func (p *Poller) Trigger() {
	p.mu.Lock()
	now := p.clock.Now()
	if !p.lastTrigger.IsZero() && now.Sub(p.lastTrigger) < MinTriggerSpacing {
		p.mu.Unlock()
		return
	}
	p.lastTrigger = now
	p.mu.Unlock()

	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Pause stops scheduled ticks from running the callback until Resume.
func (p *Poller) Pause() {
	p.paused.Store(true)
}

// Resume re-enables scheduled ticks and refreshes right away.
func (p *Poller) Resume() {
	if p.paused.Swap(false) {
		p.Trigger()
	}
}

// Skipped is the number of cycles dropped because one was still in flight.
func (p *Poller) Skipped() int64 {
	return p.skipped.Load()
}

func (p *Poller) run(ctx context.Context, callback Callback, interval time.Duration) {
	defer p.wg.Done()

	ticker := p.clock.NewTicker(interval)
	defer ticker.Stop()

	var cycles sync.WaitGroup
	defer cycles.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.cycle(ctx, callback, &cycles)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopChan:
			return
		case <-ticker.Chan():
			if p.paused.Load() || !p.gateOpen() {
				continue
			}
			p.cycle(ctx, callback, &cycles)
		case <-p.trigger:
			p.cycle(ctx, callback, &cycles)
		}
	}
}

func (p *Poller) gateOpen() bool {
	p.mu.Lock()
	gate := p.gate
	p.mu.Unlock()
	return gate == nil || gate()
}

func (p *Poller) cycle(ctx context.Context, callback Callback, cycles *sync.WaitGroup) {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.skipped.Add(1)
		log.Debug().Str("poller", p.name).Msg("previous refresh still running, skipping")
		return
	}

	cycles.Add(1)
	go func() {
		defer cycles.Done()
		defer p.inFlight.Store(false)
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Str("poller", p.name).
					Interface("panic", r).
					Msg("auto-refresh panicked")
			}
		}()

		if err := callback(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Str("poller", p.name).Msg("auto-refresh failed")
		}
	}()
}
