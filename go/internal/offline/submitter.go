package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/astraea/go/clients"
	"github.com/mcdev12/astraea/go/clients/scouting_api_client"
	"github.com/mcdev12/astraea/go/internal/models"
	"github.com/mcdev12/astraea/go/internal/notify"
)

// Deliverer posts one submission payload to the server.
type Deliverer interface {
	Deliver(ctx context.Context, kind models.SubmissionKind, payload json.RawMessage) (*scouting_api_client.SubmitResponse, error)
}

// Outcome is what happened to a submitted report.
type Outcome int

const (
	OutcomeDelivered Outcome = iota + 1
	OutcomeQueued
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeQueued:
		return "queued"
	default:
		return "unknown"
	}
}

// ValidationError lists the required fields a report is missing.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

const DefaultSubmitTimeout = 15 * time.Second

// Submitter sends a report and, when the server cannot be reached, keeps it
// in the queue for the coordinator.
type Submitter struct {
	client    Deliverer
	queue     *Queue
	drafts    *Drafts
	publisher notify.Publisher
	validate  *validator.Validate
	timeout   time.Duration
}

// NewSubmitter creates a submitter. A zero timeout uses
// DefaultSubmitTimeout.
func NewSubmitter(client Deliverer, queue *Queue, drafts *Drafts, publisher notify.Publisher, timeout time.Duration) *Submitter {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	if timeout <= 0 {
		timeout = DefaultSubmitTimeout
	}
	return &Submitter{
		client:    client,
		queue:     queue,
		drafts:    drafts,
		publisher: publisher,
		validate:  validator.New(),
		timeout:   timeout,
	}
}

// SubmitScout validates and sends a match report.
func (s *Submitter) SubmitScout(ctx context.Context, report models.ScoutReport) (Outcome, error) {
	return s.submit(ctx, models.SubmissionKindScout, &report)
}

// SubmitPitScout validates and sends a pit report.
func (s *Submitter) SubmitPitScout(ctx context.Context, report models.PitScoutReport) (Outcome, error) {
	return s.submit(ctx, models.SubmissionKindPitScout, &report)
}

func (s *Submitter) submit(ctx context.Context, kind models.SubmissionKind, report any) (Outcome, error) {
	if err := s.check(report); err != nil {
		return 0, err
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal report: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	resp, err := s.client.Deliver(sendCtx, kind, payload)
	cancel()

	switch {
	case err == nil && !resp.Offline:
		s.clearDraft(ctx, kind)
		log.Info().Str("kind", string(kind)).Msg("submission delivered")
		return OutcomeDelivered, nil
	case err == nil:
		// A cache answered for the server; nothing reached the database.
		log.Warn().Str("kind", string(kind)).Msg("submission answered offline, keeping it locally")
	case clients.IsClientError(err):
		return 0, err
	case errors.Is(ctx.Err(), context.Canceled):
		return 0, ctx.Err()
	case !clients.IsTransient(err):
		return 0, err
	default:
		log.Warn().Err(err).Str("kind", string(kind)).Msg("submission failed, storing offline")
	}

	item, err := s.queue.Enqueue(ctx, models.Submission{Kind: kind, Payload: payload})
	if err != nil {
		return 0, err
	}
	s.clearDraft(ctx, kind)

	pending, _ := s.queue.Len(ctx)
	if err := s.publisher.Publish(ctx, notify.NewEvent(notify.EventStoredOffline, pending)); err != nil {
		log.Warn().Err(err).Msg("failed to publish stored_offline event")
	}

	log.Info().
		Str("submission_id", item.ID.String()).
		Str("kind", string(kind)).
		Int("pending", pending).
		Msg("submission queued")
	return OutcomeQueued, nil
}

func (s *Submitter) check(report any) error {
	err := s.validate.Struct(report)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate report: %w", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Namespace())
	}
	return &ValidationError{Fields: fields}
}

func (s *Submitter) clearDraft(ctx context.Context, kind models.SubmissionKind) {
	if s.drafts == nil {
		return
	}
	if err := s.drafts.ClearDraft(ctx, kind); err != nil {
		log.Warn().Err(err).Str("kind", string(kind)).Msg("failed to clear draft")
	}
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
