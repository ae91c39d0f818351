package models

// ScouterRole defines what a scouter account can do.
type ScouterRole string

const (
	ScouterRoleAdmin   ScouterRole = "admin"
	ScouterRoleScouter ScouterRole = "scouter"
)

// Scouter represents a scouting account
type Scouter struct {
	Username string      `json:"username"`
	Name     string      `json:"name"`
	Role     ScouterRole `json:"role,omitempty"`
}

// ScouterStats counts assignments per scouter
type ScouterStats struct {
	Assigned  int `json:"assigned"`
	Completed int `json:"completed"`
}
