package domain

import "time"

// TechnicianRole enumerates support roles.
type TechnicianRole string

const (
	TechnicianRoleSPOC       TechnicianRole = "SPOC"
	TechnicianRoleTechnician TechnicianRole = "TECHNICIAN"
)

// Technician models a support agent serving one tier.
type Technician struct {
	ID           string
	Name         string
	Email        string
	SupportLevel SupportLevel
	Role         TechnicianRole
	Active       bool
	CreatedAt    time.Time
}

// CanCoordinate reports whether the technician may assign incidents to others.
func (t *Technician) CanCoordinate() bool {
	return t != nil && t.Active && t.Role == TechnicianRoleSPOC
}
