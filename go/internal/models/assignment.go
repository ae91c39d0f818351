package models

import "fmt"

// Assignment pairs a scouter with a team in a match.
type Assignment struct {
	AssignmentKey string `json:"assignment_key"`
	Scouter       string `json:"scouter"`
	EventKey      string `json:"event_key"`
	MatchNumber   int    `json:"match_number"`
	TeamNumber    string `json:"team_number"`
	AssignedAt    string `json:"assigned_at,omitempty"`
	Completed     bool   `json:"completed"`
	CompletedAt   string `json:"completed_at,omitempty"`
	// IsHomeGame marks an assignment that needs no report because the
	// scouting team is playing in that match.
	IsHomeGame bool `json:"is_home_game"`
}

// AssignmentKey builds the key the server uses for an assignment.
func AssignmentKey(eventKey string, matchNumber int, teamNumber string) string {
	return fmt.Sprintf("%s_qm%d_%s", eventKey, matchNumber, teamNumber)
}

// MatchSummary is the admin view of assignment progress
type MatchSummary struct {
	TotalAssignments int `json:"total_assignments"`
	Completed        int `json:"completed"`
	HomeGames        int `json:"home_games"`
	Pending          int `json:"pending"`
}

// AssignMatchRequest assigns scouters to the teams of one match.
// Assignments maps team number to scouter username.
type AssignMatchRequest struct {
	EventKey    string            `json:"event_key" validate:"required"`
	MatchNumber int               `json:"match_number" validate:"required,gt=0"`
	Assignments map[string]string `json:"assignments"`
}
