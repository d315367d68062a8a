package domain

import "time"

// IncidentStatus enumerates lifecycle states for incidents.
type IncidentStatus string

const (
	IncidentStatusOpen       IncidentStatus = "OPEN"
	IncidentStatusAssigned   IncidentStatus = "ASSIGNED"
	IncidentStatusInProgress IncidentStatus = "IN_PROGRESS"
	IncidentStatusResolved   IncidentStatus = "RESOLVED"
	IncidentStatusClosed     IncidentStatus = "CLOSED"
)

// IncidentPriority enumerates SLA urgency, P1 being the most urgent.
type IncidentPriority string

const (
	PriorityP1 IncidentPriority = "P1"
	PriorityP2 IncidentPriority = "P2"
	PriorityP3 IncidentPriority = "P3"
	PriorityP4 IncidentPriority = "P4"
	PriorityP5 IncidentPriority = "P5"

	DefaultPriority = PriorityP3
)

// Valid reports whether p is one of P1..P5.
func (p IncidentPriority) Valid() bool {
	switch p {
	case PriorityP1, PriorityP2, PriorityP3, PriorityP4, PriorityP5:
		return true
	}
	return false
}

// SupportLevel is the escalation tier serving an incident.
type SupportLevel int

const (
	SupportLevel1 SupportLevel = 1
	SupportLevel2 SupportLevel = 2
	SupportLevel3 SupportLevel = 3

	MinSupportLevel = SupportLevel1
	MaxSupportLevel = SupportLevel3
)

// Valid reports whether l is within 1..3.
func (l SupportLevel) Valid() bool {
	return l >= MinSupportLevel && l <= MaxSupportLevel
}

// Incident is the aggregate for support requests.
type Incident struct {
	ID              string
	ExternalKey     string
	ReporterID      string
	Title           string
	Description     string
	Status          IncidentStatus
	SupportLevel    SupportLevel
	Priority        IncidentPriority
	Category        Category
	ServiceID       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	AssignedAt      *time.Time
	FirstResponseAt *time.Time
	ResolvedAt      *time.Time
	ClosedAt        *time.Time
	EscalatedAt     *time.Time
	Version         int64
}

// statusOrder ranks statuses along the only legal path.
var statusOrder = map[IncidentStatus]int{
	IncidentStatusOpen:       0,
	IncidentStatusAssigned:   1,
	IncidentStatusInProgress: 2,
	IncidentStatusResolved:   3,
	IncidentStatusClosed:     4,
}

// CanTransition reports whether next is the adjacent successor of current.
func CanTransition(current, next IncidentStatus) bool {
	from, ok := statusOrder[current]
	if !ok {
		return false
	}
	to, ok := statusOrder[next]
	if !ok {
		return false
	}
	return to == from+1
}

// IsClosed reports whether the incident reached its terminal state.
func (i *Incident) IsClosed() bool {
	return i.Status == IncidentStatusClosed
}

// IsUnresolved reports whether the incident still awaits resolution.
func (i *Incident) IsUnresolved() bool {
	switch i.Status {
	case IncidentStatusOpen, IncidentStatusAssigned, IncidentStatusInProgress:
		return true
	}
	return false
}

// EffectivePriority returns the priority, defaulting to the middle tier.
func (i *Incident) EffectivePriority() IncidentPriority {
	if i.Priority == "" {
		return DefaultPriority
	}
	return i.Priority
}

// Clone returns a copy that shares no timestamps with i.
func (i *Incident) Clone() *Incident {
	c := *i
	c.AssignedAt = cloneTime(i.AssignedAt)
	c.FirstResponseAt = cloneTime(i.FirstResponseAt)
	c.ResolvedAt = cloneTime(i.ResolvedAt)
	c.ClosedAt = cloneTime(i.ClosedAt)
	c.EscalatedAt = cloneTime(i.EscalatedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
