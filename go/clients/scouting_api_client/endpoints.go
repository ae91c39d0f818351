package scouting_api_client

const (
	// Auth
	LoginEndpoint  = "/api/login"
	LogoutEndpoint = "/api/logout"

	// Admin endpoints
	EventsEndpoint          = "/api/admin/events"
	MatchesEndpoint         = "/api/admin/matches"
	TeamsEndpoint           = "/api/admin/teams"
	ScoutersEndpoint        = "/api/admin/scouters"
	ScouterStatsEndpoint    = "/api/admin/scouter-stats"
	AssignmentsEndpoint     = "/api/admin/assignments"
	MatchSummaryEndpoint    = "/api/admin/match-summary"
	AssignMatchEndpoint     = "/api/admin/assign-match"
	AdminMarkHomeEndpoint   = "/api/admin/mark-home-game"
	AdminUnmarkHomeEndpoint = "/api/admin/unmark-home-game"

	// Scouter endpoints
	MyAssignmentsEndpoint   = "/api/scouter/assignments"
	ScouterMarkHomeEndpoint = "/api/scouter/mark-home-game"

	// Submission endpoints
	SubmitEndpoint         = "/submit"
	PitScoutSubmitEndpoint = "/api/pit-scout/submit"

	// The server has no health route; the login page needs no session.
	ProbeEndpoint = "/login"
)
