// Package notify carries agent events (offline storage, batch sync,
// connectivity changes) to interested listeners.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType names an agent event.
type EventType string

const (
	EventStoredOffline    EventType = "submission.stored_offline"
	EventBatchSynced      EventType = "submission.batch_synced"
	EventConnectivityUp   EventType = "connectivity.online"
	EventConnectivityDown EventType = "connectivity.offline"
	EventDataUpdated      EventType = "data.updated"
)

// Event is a notification about the offline queue or connectivity.
type Event struct {
	ID    uuid.UUID `json:"id"`
	Type  EventType `json:"type"`
	Count int       `json:"count,omitempty"`

	// Key names the dataset for data.updated events.
	Key string    `json:"key,omitempty"`
	At  time.Time `json:"at"`
}

// NewEvent creates an event stamped with a new ID and the current time.
func NewEvent(t EventType, count int) Event {
	return Event{
		ID:    uuid.New(),
		Type:  t,
		Count: count,
		At:    time.Now().UTC(),
	}
}

// Publisher delivers events. Implementations must not block for long;
// callers publish from sync and polling paths.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
