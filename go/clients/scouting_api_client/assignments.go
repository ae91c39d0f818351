package scouting_api_client

import (
	"context"
	"fmt"

	"github.com/mcdev12/astraea/go/internal/models"
)

// AssignmentList is a fetched set of assignments.
type AssignmentList struct {
	Assignments []models.Assignment
	Stale       bool
}

type assignmentKeyRequest struct {
	AssignmentKey string `json:"assignment_key"`
}

// GetAssignments returns every assignment for an event (admin view).
func (c *ScoutingApiClient) GetAssignments(ctx context.Context, eventKey string) (*AssignmentList, error) {
	var assignments []models.Assignment
	stale, err := c.fetchJSON(ctx, withEvent(AssignmentsEndpoint, eventKey), &assignments)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignments: %w", err)
	}
	return &AssignmentList{Assignments: assignments, Stale: stale}, nil
}

// GetMyAssignments returns the logged in scouter's assignments.
func (c *ScoutingApiClient) GetMyAssignments(ctx context.Context) (*AssignmentList, error) {
	var assignments []models.Assignment
	stale, err := c.fetchJSON(ctx, MyAssignmentsEndpoint, &assignments)
	if err != nil {
		return nil, fmt.Errorf("failed to get scouter assignments: %w", err)
	}
	return &AssignmentList{Assignments: assignments, Stale: stale}, nil
}

// GetMatchSummary returns assignment progress counts for an event.
func (c *ScoutingApiClient) GetMatchSummary(ctx context.Context, eventKey string) (*models.MatchSummary, error) {
	var summary models.MatchSummary
	if _, err := c.fetchJSON(ctx, withEvent(MatchSummaryEndpoint, eventKey), &summary); err != nil {
		return nil, fmt.Errorf("failed to get match summary: %w", err)
	}
	return &summary, nil
}

// AssignMatch assigns scouters to the teams of one match.
func (c *ScoutingApiClient) AssignMatch(ctx context.Context, req models.AssignMatchRequest) error {
	if err := c.postJSON(ctx, AssignMatchEndpoint, req, nil); err != nil {
		return fmt.Errorf("failed to assign match: %w", err)
	}
	return nil
}

// MarkHomeGame marks one of the scouter's own assignments as a home game.
func (c *ScoutingApiClient) MarkHomeGame(ctx context.Context, assignmentKey string) error {
	if err := c.postJSON(ctx, ScouterMarkHomeEndpoint, assignmentKeyRequest{AssignmentKey: assignmentKey}, nil); err != nil {
		return fmt.Errorf("failed to mark home game: %w", err)
	}
	return nil
}

// AdminMarkHomeGame marks any assignment as a home game.
func (c *ScoutingApiClient) AdminMarkHomeGame(ctx context.Context, assignmentKey string) error {
	if err := c.postJSON(ctx, AdminMarkHomeEndpoint, assignmentKeyRequest{AssignmentKey: assignmentKey}, nil); err != nil {
		return fmt.Errorf("failed to mark home game: %w", err)
	}
	return nil
}

// AdminUnmarkHomeGame clears the home game flag on an assignment.
func (c *ScoutingApiClient) AdminUnmarkHomeGame(ctx context.Context, assignmentKey string) error {
	if err := c.postJSON(ctx, AdminUnmarkHomeEndpoint, assignmentKeyRequest{AssignmentKey: assignmentKey}, nil); err != nil {
		return fmt.Errorf("failed to unmark home game: %w", err)
	}
	return nil
}
