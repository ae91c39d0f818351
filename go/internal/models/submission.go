package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SubmissionKind selects the endpoint a submission is delivered to.
type SubmissionKind string

const (
	SubmissionKindScout    SubmissionKind = "scout"
	SubmissionKindPitScout SubmissionKind = "pit_scout"
)

// Submission is a form payload waiting for delivery to the server.
// ID is local only; the server assigns nothing until it accepts the payload.
type Submission struct {
	ID       uuid.UUID       `json:"id"`
	Kind     SubmissionKind  `json:"kind"`
	Payload  json.RawMessage `json:"payload"`
	QueuedAt time.Time       `json:"queued_at"`
}
