// Package connectivity watches whether the scouting server is reachable and
// reports transitions.
package connectivity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/astraea/go/clients"
)

var (
	ErrAlreadyRunning = errors.New("connectivity monitor already running")
	ErrNotRunning     = errors.New("connectivity monitor not running")
)

// Prober checks the server once.
type Prober interface {
	Health(ctx context.Context) error
}

// Handler runs on a connectivity transition.
type Handler func(ctx context.Context)

// Config controls how often and how long the monitor probes.
type Config struct {
	Interval     time.Duration
	ProbeTimeout time.Duration
}

// DefaultConfig returns the default probe interval and timeout.
func DefaultConfig() Config {
	return Config{
		Interval:     10 * time.Second,
		ProbeTimeout: 5 * time.Second,
	}
}

// Monitor probes the server on an interval. Handlers run only when the
// state flips, never on repeated results.
type Monitor struct {
	prober Prober
	clock  clockwork.Clock
	config Config

	mu        sync.Mutex
	online    bool
	known     bool
	onOnline  []Handler
	onOffline []Handler
	running   bool
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewMonitor creates a stopped monitor. Zero config values use defaults.
func NewMonitor(prober Prober, clock clockwork.Clock, cfg Config) *Monitor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultConfig().ProbeTimeout
	}
	return &Monitor{
		prober:   prober,
		clock:    clock,
		config:   cfg,
		stopChan: make(chan struct{}),
	}
}

// OnOnline registers h for offline to online transitions.
func (m *Monitor) OnOnline(h Handler) {
	m.mu.Lock()
	m.onOnline = append(m.onOnline, h)
	m.mu.Unlock()
}

// OnOffline registers h for online to offline transitions, and for a
// first probe that finds the server down.
func (m *Monitor) OnOffline(h Handler) {
	m.mu.Lock()
	m.onOffline = append(m.onOffline, h)
	m.mu.Unlock()
}

// Online reports the last probe result. Before the first probe it is true.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.known || m.online
}

// Start probes right away and then every interval until Stop or ctx is
// done.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	m.running = true
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run(ctx)

	log.Info().Dur("interval", m.config.Interval).Msg("connectivity monitor started")
	return nil
}

// Stop halts probing and waits for the loop to exit.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return ErrNotRunning
	}
	m.running = false
	m.mu.Unlock()

	close(m.stopChan)
	m.wg.Wait()
	return nil
}

func (m *Monitor) run(ctx context.Context) {
	defer m.wg.Done()

	m.Check(ctx)

	ticker := m.clock.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		case <-ticker.Chan():
			m.Check(ctx)
		}
	}
}

// Check probes once and fires handlers if the state changed. The first
// probe only fires handlers when it finds the server down.
func (m *Monitor) Check(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.config.ProbeTimeout)
	err := m.prober.Health(probeCtx)
	cancel()
	if ctx.Err() != nil {
		return m.Online()
	}
	online := clients.IsReachable(err)

	m.mu.Lock()
	wasKnown, was := m.known, m.online
	m.known, m.online = true, online
	var handlers []Handler
	switch {
	case online && wasKnown && !was:
		handlers = append(handlers, m.onOnline...)
	case !online && (!wasKnown || was):
		handlers = append(handlers, m.onOffline...)
	}
	m.mu.Unlock()

	if len(handlers) > 0 {
		ev := log.Info()
		if !online {
			ev = log.Warn().Err(err)
		}
		ev.Bool("online", online).Msg("connectivity changed")
	}
	for _, h := range handlers {
		h(ctx)
	}
	return online
}
