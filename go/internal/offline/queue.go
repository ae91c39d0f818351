// Package offline holds submissions the server could not accept yet and
// drains them back to it, in order, once connectivity returns.
package offline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/mcdev12/astraea/go/internal/models"
	"github.com/mcdev12/astraea/go/internal/storage"
)

// Queue is a FIFO of pending submissions persisted as one JSON array.
// Every mutation rewrites the whole array. There is no size bound.
type Queue struct {
	mu    sync.Mutex
	store storage.Store
	key   string
}

// NewQueue creates a queue stored under the offline queue key.
func NewQueue(store storage.Store) *Queue {
	return &Queue{store: store, key: storage.KeyOfflineQueue}
}

// Enqueue appends item. A zero ID or QueuedAt is filled in.
func (q *Queue) Enqueue(ctx context.Context, item models.Submission) (models.Submission, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.QueuedAt.IsZero() {
		item.QueuedAt = nowUTC()
	}

	err := q.mutate(ctx, func(items []models.Submission) []models.Submission {
		return append(items, item)
	})
	if err != nil {
		return models.Submission{}, fmt.Errorf("failed to enqueue submission: %w", err)
	}
	return item, nil
}

// PeekAll returns the queued submissions in delivery order.
func (q *Queue) PeekAll(ctx context.Context) ([]models.Submission, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	raw, ok, err := q.store.Get(ctx, q.key)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue: %w", err)
	}
	if !ok {
		return []models.Submission{}, nil
	}
	return decodeQueue(raw)
}

// RemoveFirst drops the first n entries. n larger than the queue empties it.
func (q *Queue) RemoveFirst(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	err := q.mutate(ctx, func(items []models.Submission) []models.Submission {
		if n >= len(items) {
			return []models.Submission{}
		}
		return items[n:]
	})
	if err != nil {
		return fmt.Errorf("failed to remove submissions: %w", err)
	}
	return nil
}

// RemovePrefix drops leading entries while they match ids in order, and
// returns how many were removed. Entries another writer already removed
// are skipped silently.
func (q *Queue) RemovePrefix(ctx context.Context, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	removed := 0
	err := q.mutate(ctx, func(items []models.Submission) []models.Submission {
		removed = 0
		for removed < len(items) && removed < len(ids) && items[removed].ID == ids[removed] {
			removed++
		}
		return items[removed:]
	})
	if err != nil {
		return 0, fmt.Errorf("failed to remove delivered submissions: %w", err)
	}
	return removed, nil
}

// Clear drops every queued submission.
func (q *Queue) Clear(ctx context.Context) error {
	err := q.mutate(ctx, func([]models.Submission) []models.Submission {
		return []models.Submission{}
	})
	if err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	return nil
}

// Len returns the number of queued submissions.
func (q *Queue) Len(ctx context.Context) (int, error) {
	items, err := q.PeekAll(ctx)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

func (q *Queue) mutate(ctx context.Context, fn func([]models.Submission) []models.Submission) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.store.Update(ctx, q.key, func(raw []byte, ok bool) ([]byte, error) {
		items := []models.Submission{}
		if ok {
			decoded, err := decodeQueue(raw)
			if err != nil {
				return nil, err
			}
			items = decoded
		}
		return json.Marshal(fn(items))
	})
}

func decodeQueue(raw []byte) ([]models.Submission, error) {
	items := []models.Submission{}
	if len(raw) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("failed to decode queue: %w", err)
	}
	if items == nil {
		items = []models.Submission{}
	}
	return items, nil
}
