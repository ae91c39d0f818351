package offline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mcdev12/astraea/go/internal/models"
	"github.com/mcdev12/astraea/go/internal/storage"
)

// DraftFields is the in-progress state of a form, keyed by field name.
type DraftFields map[string]any

// Drafts persists one in-progress form per submission kind.
type Drafts struct {
	store storage.Store
}

// NewDrafts creates a draft store backed by store.
func NewDrafts(store storage.Store) *Drafts {
	return &Drafts{store: store}
}

func draftKey(kind models.SubmissionKind) (string, error) {
	switch kind {
	case models.SubmissionKindScout:
		return storage.KeyScoutDraft, nil
	case models.SubmissionKindPitScout:
		return storage.KeyPitScoutDraft, nil
	default:
		return "", fmt.Errorf("unknown submission kind %q", kind)
	}
}

// SaveDraft replaces the saved draft for kind.
func (d *Drafts) SaveDraft(ctx context.Context, kind models.SubmissionKind, fields DraftFields) error {
	key, err := draftKey(kind)
	if err != nil {
		return err
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}
	if err := d.store.Put(ctx, key, data); err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

// LoadDraft returns the saved draft, or ok=false when there is none.
func (d *Drafts) LoadDraft(ctx context.Context, kind models.SubmissionKind) (DraftFields, bool, error) {
	key, err := draftKey(kind)
	if err != nil {
		return nil, false, err
	}
	raw, ok, err := d.store.Get(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load draft: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	var fields DraftFields
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, false, fmt.Errorf("failed to decode draft: %w", err)
	}
	return fields, true, nil
}

// ClearDraft deletes the saved draft for kind.
func (d *Drafts) ClearDraft(ctx context.Context, kind models.SubmissionKind) error {
	key, err := draftKey(kind)
	if err != nil {
		return err
	}
	if err := d.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to clear draft: %w", err)
	}
	return nil
}

// DropFields removes the named fields from a saved draft, e.g. the climb
// fields once the endgame action is no longer a climb.
func (d *Drafts) DropFields(ctx context.Context, kind models.SubmissionKind, names ...string) error {
	key, err := draftKey(kind)
	if err != nil {
		return err
	}

	err = d.store.Update(ctx, key, func(raw []byte, ok bool) ([]byte, error) {
		fields := DraftFields{}
		if ok {
			if err := json.Unmarshal(raw, &fields); err != nil {
				return nil, fmt.Errorf("failed to decode draft: %w", err)
			}
		}
		for _, name := range names {
			delete(fields, name)
		}
		return json.Marshal(fields)
	})
	if err != nil {
		return fmt.Errorf("failed to drop draft fields: %w", err)
	}
	return nil
}
