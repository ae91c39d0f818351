package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/astraea/go/internal/models"
	"github.com/mcdev12/astraea/go/internal/notify"
)

var (
	ErrDrainInProgress = errors.New("drain already in progress")
	ErrAlreadyRunning  = errors.New("sync coordinator already running")
	ErrNotRunning      = errors.New("sync coordinator not running")
)

// CoordinatorConfig controls drain scheduling and delivery timeouts.
type CoordinatorConfig struct {
	// Interval between periodic drains. Zero drains only on start and when
	// connectivity returns.
	Interval        time.Duration
	DeliveryTimeout time.Duration
}

// DefaultCoordinatorConfig returns a config with periodic drains off.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		Interval:        0,
		DeliveryTimeout: DefaultSubmitTimeout,
	}
}

// SyncResult reports one drain pass.
type SyncResult struct {
	Delivered int `json:"delivered"`
	Remaining int `json:"remaining"`
}

// Coordinator drains the queue front to back and stops at the first
// delivery that fails, so entries are never delivered out of order.
type Coordinator struct {
	queue     *Queue
	client    Deliverer
	publisher notify.Publisher
	clock     clockwork.Clock
	config    CoordinatorConfig

	draining atomic.Bool
	trigger  chan struct{}

	mu       sync.Mutex
	running  bool
	lastSync time.Time
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewCoordinator creates a stopped coordinator for queue.
func NewCoordinator(queue *Queue, client Deliverer, publisher notify.Publisher, clock clockwork.Clock, cfg CoordinatorConfig) *Coordinator {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = DefaultSubmitTimeout
	}
	return &Coordinator{
		queue:     queue,
		client:    client,
		publisher: publisher,
		clock:     clock,
		config:    cfg,
		trigger:   make(chan struct{}, 1),
		stopChan:  make(chan struct{}),
	}
}

// Start drains once right away and then on every NotifyOnline call and
// interval tick until Stop or ctx is done.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	c.running = true
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run(ctx)

	log.Info().
		Dur("interval", c.config.Interval).
		Msg("sync coordinator started")
	return nil
}

// Stop halts the coordinator and waits for a running drain to finish.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return ErrNotRunning
	}
	c.running = false
	c.mu.Unlock()

	close(c.stopChan)
	c.wg.Wait()

	log.Info().Msg("sync coordinator stopped")
	return nil
}

// NotifyOnline asks the running coordinator for a drain. Repeated calls
// while one is pending collapse into one.
func (c *Coordinator) NotifyOnline() {
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

// LastSync returns when a drain last delivered something, or the zero
// time.
func (c *Coordinator) LastSync() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSync
}

func (c *Coordinator) run(ctx context.Context) {
	defer c.wg.Done()

	c.drainAndLog(ctx)

	var tick <-chan time.Time
	if c.config.Interval > 0 {
		ticker := c.clock.NewTicker(c.config.Interval)
		defer ticker.Stop()
		tick = ticker.Chan()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopChan:
			return
		case <-c.trigger:
			c.drainAndLog(ctx)
		case <-tick:
			c.drainAndLog(ctx)
		}
	}
}

func (c *Coordinator) drainAndLog(ctx context.Context) {
	result, err := c.Drain(ctx)
	if err != nil {
		if !errors.Is(err, ErrDrainInProgress) {
			log.Error().Err(err).Msg("queue drain failed")
		}
		return
	}
	if result.Delivered > 0 || result.Remaining > 0 {
		log.Info().
			Int("delivered", result.Delivered).
			Int("remaining", result.Remaining).
			Msg("queue drain finished")
	}
}

// Drain runs one pass over the queue. Delivery failures end the pass and
// are not returned as errors; only storage failures are.
func (c *Coordinator) Drain(ctx context.Context) (SyncResult, error) {
	if !c.draining.CompareAndSwap(false, true) {
		return SyncResult{}, ErrDrainInProgress
	}
	defer c.draining.Store(false)

	items, err := c.queue.PeekAll(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("failed to read queue: %w", err)
	}
	if len(items) == 0 {
		return SyncResult{}, nil
	}

	delivered := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if err := c.deliver(ctx, item.Kind, item.Payload); err != nil {
			log.Warn().
				Err(err).
				Str("submission_id", item.ID.String()).
				Int("position", len(delivered)).
				Msg("delivery failed, stopping drain")
			break
		}
		delivered = append(delivered, item.ID)
	}

	removed := 0
	if len(delivered) > 0 {
		removed, err = c.queue.RemovePrefix(ctx, delivered)
		if err != nil {
			return SyncResult{}, err
		}
	}

	remaining, err := c.queue.Len(ctx)
	if err != nil {
		return SyncResult{}, err
	}
	result := SyncResult{Delivered: len(delivered), Remaining: remaining}

	if removed > 0 {
		c.mu.Lock()
		c.lastSync = c.clock.Now()
		c.mu.Unlock()

		if err := c.publisher.Publish(ctx, notify.NewEvent(notify.EventBatchSynced, result.Delivered)); err != nil {
			log.Warn().Err(err).Msg("failed to publish batch_synced event")
		}
	}
	return result, nil
}

func (c *Coordinator) deliver(ctx context.Context, kind models.SubmissionKind, payload json.RawMessage) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.DeliveryTimeout)
	defer cancel()

	resp, err := c.client.Deliver(ctx, kind, payload)
	if err != nil {
		return err
	}
	if resp.Offline {
		return errAnsweredOffline
	}
	return nil
}

var errAnsweredOffline = errors.New("server answered from offline cache")
