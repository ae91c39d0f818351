// Package refresh polls the scouting server and re-renders dashboards only
// when the data behind them changed.
package refresh

import (
	"crypto/sha256"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/astraea/go/internal/models"
)

// Well-known tracker keys.
const (
	KeyMatches       = "matches"
	KeyAssignments   = "assignments"
	KeyScouters      = "scouters"
	KeyMyAssignments = "my_assignments"
)

// ChangeTracker remembers a content hash per dataset key.
type ChangeTracker struct {
	mu     sync.Mutex
	hashes map[string][sha256.Size]byte
}

// NewChangeTracker creates an empty tracker.
func NewChangeTracker() *ChangeTracker {
	return &ChangeTracker{hashes: make(map[string][sha256.Size]byte)}
}

// HasChanged reports whether data differs from what was last seen under
// key, and records it when it does. The first call for a key is always a
// change. Data that cannot be encoded counts as changed and is not recorded.
func (t *ChangeTracker) HasChanged(key string, data any) bool {
	encoded, err := json.Marshal(data)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to hash data")
		return true
	}
	sum := sha256.Sum256(encoded)

	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.hashes[key]; ok && prev == sum {
		return false
	}
	t.hashes[key] = sum
	return true
}

// Forget drops the hash for key so the next HasChanged reports a change.
func (t *ChangeTracker) Forget(key string) {
	t.mu.Lock()
	delete(t.hashes, key)
	t.mu.Unlock()
}

// Reset forgets every key, so the next check of each reports a change.
func (t *ChangeTracker) Reset() {
	t.mu.Lock()
	t.hashes = make(map[string][sha256.Size]byte)
	t.mu.Unlock()
}

type assignmentFingerprint struct {
	Key       string `json:"key"`
	Completed bool   `json:"completed"`
	Home      bool   `json:"home"`
}

// AssignmentFingerprint keeps only the fields a scouter's list shows, so a
// changed timestamp alone does not trigger a render.
func AssignmentFingerprint(assignments []models.Assignment) any {
	out := make([]assignmentFingerprint, len(assignments))
	for i, a := range assignments {
		out[i] = assignmentFingerprint{
			Key:       a.AssignmentKey,
			Completed: a.Completed,
			Home:      a.IsHomeGame,
		}
	}
	return out
}
