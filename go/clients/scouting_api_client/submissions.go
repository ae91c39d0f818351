package scouting_api_client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mcdev12/astraea/go/internal/models"
)

// SubmitResponse is the server's answer to a report submission.
type SubmitResponse struct {
	Status  string `json:"status"`
	Offline bool   `json:"offline"`
	Error   string `json:"error,omitempty"`
}

// EndpointFor returns the submission endpoint for a kind.
func EndpointFor(kind models.SubmissionKind) (string, error) {
	switch kind {
	case models.SubmissionKindScout:
		return SubmitEndpoint, nil
	case models.SubmissionKindPitScout:
		return PitScoutSubmitEndpoint, nil
	default:
		return "", fmt.Errorf("unknown submission kind %q", kind)
	}
}

// Deliver posts a payload exactly as given, in a single attempt.
func (c *ScoutingApiClient) Deliver(ctx context.Context, kind models.SubmissionKind, payload json.RawMessage) (*SubmitResponse, error) {
	endpoint, err := EndpointFor(kind)
	if err != nil {
		return nil, err
	}

	body, err := c.Post(ctx, endpoint, payload)
	if err != nil {
		return nil, err
	}

	var resp SubmitResponse
	if len(body) > 0 {
		// Older servers answer with a bare "ok"; a 2xx is enough.
		_ = json.Unmarshal(body, &resp)
	}
	return &resp, nil
}
