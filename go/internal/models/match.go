package models

import "time"

// CompLevelQualification is the only comp level the scouting API returns.
const CompLevelQualification = "qm"

// Match represents a qualification match at an event
type Match struct {
	Key           string     `json:"key"`
	MatchNumber   int        `json:"match_number"`
	RedTeams      []string   `json:"red_teams"`
	BlueTeams     []string   `json:"blue_teams"`
	AllTeams      []string   `json:"all_teams"`
	PredictedTime *int64     `json:"predicted_time,omitempty"`
	ActualTime    *int64     `json:"actual_time,omitempty"`
	Time          *int64     `json:"time,omitempty"`
	Prediction    *EPA       `json:"prediction,omitempty"`
	FetchedAt     *time.Time `json:"-"`
}

// EPA holds the server supplied match prediction. The client never
// interprets these numbers, it only displays them.
type EPA struct {
	RedScore     float64 `json:"red_score"`
	BlueScore    float64 `json:"blue_score"`
	RedWinChance float64 `json:"red_win_prob"`
}

// Event is a competition the scouting team attends
type Event struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	Year      int    `json:"year,omitempty"`
	IsManual  bool   `json:"is_manual,omitempty"`
	StartDate string `json:"start_date,omitempty"`
}
