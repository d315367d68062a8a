package domain

import "time"

// Assignment binds a technician to an incident. Superseded bindings stay inactive.
type Assignment struct {
	ID           string
	IncidentID   string
	TechnicianID string
	AssignedAt   time.Time
	Active       bool
}
