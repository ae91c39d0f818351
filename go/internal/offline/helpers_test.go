package offline

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/mcdev12/astraea/go/clients"
	"github.com/mcdev12/astraea/go/clients/scouting_api_client"
	"github.com/mcdev12/astraea/go/internal/models"
	"github.com/mcdev12/astraea/go/internal/notify"
)

// fakeDeliverer fails every call whose index is in failAt.
type fakeDeliverer struct {
	mu       sync.Mutex
	payloads []string
	kinds    []models.SubmissionKind
	failAt   map[int]error
	offline  bool
	block    chan struct{}
	entered  chan struct{}
}

func newFakeDeliverer() *fakeDeliverer {
	return &fakeDeliverer{failAt: map[int]error{}}
}

func (f *fakeDeliverer) Deliver(ctx context.Context, kind models.SubmissionKind, payload json.RawMessage) (*scouting_api_client.SubmitResponse, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	idx := len(f.payloads)
	f.payloads = append(f.payloads, string(payload))
	f.kinds = append(f.kinds, kind)
	if err, ok := f.failAt[idx]; ok {
		return nil, err
	}
	return &scouting_api_client.SubmitResponse{Status: "success", Offline: f.offline}, nil
}

func (f *fakeDeliverer) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.payloads...)
}

var errServerDown = &clients.StatusError{StatusCode: 503, Body: "unavailable"}

type eventRecorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *eventRecorder) Publish(_ context.Context, e notify.Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

func (r *eventRecorder) ofType(t notify.EventType) []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func rawSubmission(payload string) models.Submission {
	return models.Submission{Kind: models.SubmissionKindScout, Payload: json.RawMessage(payload)}
}
