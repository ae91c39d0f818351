// Package storage provides the durable key/value stores that back the
// offline queue and form drafts.
package storage

import (
	"context"
	"errors"
)

// Namespace prefixes every key the agent writes.
const Namespace = "astraea:"

// Well-known keys.
const (
	KeyOfflineQueue  = Namespace + "offlineQueue"
	KeyScoutDraft    = Namespace + "scoutDraft"
	KeyPitScoutDraft = Namespace + "pitScoutDraft"
	KeyCurrentEvent  = Namespace + "currentEvent"
)

var ErrClosed = errors.New("storage closed")

// UpdateFunc receives the current value (ok is false when the key is absent)
// and returns the value to store.
type UpdateFunc func(current []byte, ok bool) ([]byte, error)

// Store is a durable key/value store. Values survive process restarts for
// every implementation except MemoryStore.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Update runs a read-modify-write of key atomically with respect to
	// other writers of the same store.
	Update(ctx context.Context, key string, fn UpdateFunc) error
	Close() error
}
