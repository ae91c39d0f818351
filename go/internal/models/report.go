package models

// ScoringPeriod holds the counters for the auto or teleop period
type ScoringPeriod struct {
	LL1           int    `json:"ll1"`
	L2            int    `json:"l2"`
	L3            int    `json:"l3"`
	L4            int    `json:"l4"`
	Processor     int    `json:"processor"`
	Barge         int    `json:"barge"`
	DroppedPieces int    `json:"dropped_pieces"`
	NoMove        bool   `json:"no_move"`
	OnlyMoved     bool   `json:"only_moved,omitempty"`
	OffenseRating string `json:"offense_rating,omitempty"`
	DefenseRating string `json:"defense_rating,omitempty"`
}

// Endgame describes what the robot did at the end of the match
type Endgame struct {
	Action          string `json:"action" validate:"required"`
	ClimbDepth      string `json:"climb_depth"`
	ClimbSuccessful bool   `json:"climb_successful"`
}

// ScoutReport is a match scouting report
type ScoutReport struct {
	Name          string        `json:"name" validate:"required"`
	Team          string        `json:"team" validate:"required"`
	Match         string        `json:"match" validate:"required"`
	AssignmentKey string        `json:"assignment_key,omitempty"`
	Auto          ScoringPeriod `json:"auto"`
	Teleop        ScoringPeriod `json:"teleop"`
	Endgame       Endgame       `json:"endgame"`
	Notes         string        `json:"notes"`
	ResponseTime  string        `json:"response_time"`
	Timestamp     string        `json:"timestamp"`
	PartialMatch  bool          `json:"partial_match"`
}

// PitScoutReport is a pit scouting report
type PitScoutReport struct {
	ScouterName   string `json:"scouter_name" validate:"required"`
	Team          string `json:"team" validate:"required"`
	Event         string `json:"event" validate:"required"`
	DrivebaseType string `json:"drivebase_type" validate:"required"`
	AvgCycleTime  string `json:"avg_cycle_time"`
	Notes         string `json:"notes"`
	ResponseTime  string `json:"response_time"`
	Timestamp     string `json:"timestamp"`
}
