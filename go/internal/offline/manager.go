package offline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/astraea/go/internal/models"
	"github.com/mcdev12/astraea/go/internal/notify"
	"github.com/mcdev12/astraea/go/internal/refresh"
	"github.com/mcdev12/astraea/go/internal/storage"
)

// Config configures a SyncManager.
type Config struct {
	SubmitTimeout time.Duration
	Coordinator   CoordinatorConfig
}

// DefaultConfig returns the default submit and coordinator settings.
func DefaultConfig() Config {
	return Config{
		SubmitTimeout: DefaultSubmitTimeout,
		Coordinator:   DefaultCoordinatorConfig(),
	}
}

// Status answers the UI's offline-status request.
type Status struct {
	Pending  int        `json:"pending"`
	Online   bool       `json:"online"`
	LastSync *time.Time `json:"last_sync,omitempty"`
}

// SyncManager owns the session's offline state: queue, drafts, submitter,
// coordinator and change tracker. Build one per process and pass it around.
type SyncManager struct {
	queue       *Queue
	drafts      *Drafts
	submitter   *Submitter
	coordinator *Coordinator
	tracker     *refresh.ChangeTracker
	publisher   notify.Publisher

	online atomic.Bool
}

// NewSyncManager creates a new sync manager over store.
func NewSyncManager(store storage.Store, client Deliverer, publisher notify.Publisher, clock clockwork.Clock, cfg Config) *SyncManager {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	queue := NewQueue(store)
	drafts := NewDrafts(store)

	m := &SyncManager{
		queue:       queue,
		drafts:      drafts,
		submitter:   NewSubmitter(client, queue, drafts, publisher, cfg.SubmitTimeout),
		coordinator: NewCoordinator(queue, client, publisher, clock, cfg.Coordinator),
		tracker:     refresh.NewChangeTracker(),
		publisher:   publisher,
	}
	// Assume reachable until a probe says otherwise.
	m.online.Store(true)
	return m
}

// Accessors for the components the manager owns.
func (m *SyncManager) Queue() *Queue                   { return m.queue }
func (m *SyncManager) Drafts() *Drafts                 { return m.drafts }
func (m *SyncManager) Submitter() *Submitter           { return m.submitter }
func (m *SyncManager) Coordinator() *Coordinator       { return m.coordinator }
func (m *SyncManager) Tracker() *refresh.ChangeTracker { return m.tracker }

// SubmitScout submits a match report, queueing it if the server is
// unreachable.
func (m *SyncManager) SubmitScout(ctx context.Context, report models.ScoutReport) (Outcome, error) {
	return m.submitter.SubmitScout(ctx, report)
}

// SubmitPitScout submits a pit report, queueing it if the server is
// unreachable.
func (m *SyncManager) SubmitPitScout(ctx context.Context, report models.PitScoutReport) (Outcome, error) {
	return m.submitter.SubmitPitScout(ctx, report)
}

// SyncNow runs one drain pass right away.
func (m *SyncManager) SyncNow(ctx context.Context) (SyncResult, error) {
	return m.coordinator.Drain(ctx)
}

// Start starts the sync coordinator.
func (m *SyncManager) Start(ctx context.Context) error {
	return m.coordinator.Start(ctx)
}

// Stop stops the sync coordinator.
func (m *SyncManager) Stop() error {
	return m.coordinator.Stop()
}

// HandleOnline records that the server is reachable again and asks for a
// drain.
func (m *SyncManager) HandleOnline(ctx context.Context) {
	m.online.Store(true)
	m.coordinator.NotifyOnline()
	m.publish(ctx, notify.EventConnectivityUp)
}

// HandleOffline records that the server is unreachable.
func (m *SyncManager) HandleOffline(ctx context.Context) {
	m.online.Store(false)
	m.publish(ctx, notify.EventConnectivityDown)
}

// Online reports the last known connectivity state.
func (m *SyncManager) Online() bool {
	return m.online.Load()
}

// OfflineStatus returns the pending count, connectivity and last sync.
func (m *SyncManager) OfflineStatus(ctx context.Context) (Status, error) {
	pending, err := m.queue.Len(ctx)
	if err != nil {
		return Status{}, err
	}
	status := Status{Pending: pending, Online: m.online.Load()}
	if last := m.coordinator.LastSync(); !last.IsZero() {
		status.LastSync = &last
	}
	return status, nil
}

func (m *SyncManager) publish(ctx context.Context, t notify.EventType) {
	pending, _ := m.queue.Len(ctx)
	if err := m.publisher.Publish(ctx, notify.NewEvent(t, pending)); err != nil {
		log.Warn().Err(err).Str("event_type", string(t)).Msg("failed to publish event")
	}
}
