package scouting_api_client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/mcdev12/astraea/go/internal/models"
)

// MatchList is a fetched match schedule. Stale is set when the data came
// from a cache instead of the live server.
type MatchList struct {
	Matches []models.Match
	Stale   bool
}

// GetEvents returns the events the team attends.
func (c *ScoutingApiClient) GetEvents(ctx context.Context) ([]models.Event, error) {
	var events []models.Event
	if _, err := c.fetchJSON(ctx, EventsEndpoint, &events); err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	return events, nil
}

// GetMatches returns the qualification schedule for an event.
func (c *ScoutingApiClient) GetMatches(ctx context.Context, eventKey string) (*MatchList, error) {
	var matches []models.Match
	stale, err := c.fetchJSON(ctx, withEvent(MatchesEndpoint, eventKey), &matches)
	if err != nil {
		return nil, fmt.Errorf("failed to get matches: %w", err)
	}
	return &MatchList{Matches: matches, Stale: stale}, nil
}

// GetTeams returns the team numbers attending an event.
func (c *ScoutingApiClient) GetTeams(ctx context.Context, eventKey string) ([]string, error) {
	var teams []string
	if _, err := c.fetchJSON(ctx, withEvent(TeamsEndpoint, eventKey), &teams); err != nil {
		return nil, fmt.Errorf("failed to get teams: %w", err)
	}
	return teams, nil
}

func withEvent(endpoint, eventKey string) string {
	return fmt.Sprintf("%s?event=%s", endpoint, url.QueryEscape(eventKey))
}
