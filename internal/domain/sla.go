package domain

import "time"

// SLAObjective is the committed response window for a service and priority.
type SLAObjective struct {
	ServiceID            string
	Priority             IncidentPriority
	FirstResponseMinutes int
	ResolutionMinutes    int
}

// FirstResponseDeadline returns createdAt plus the first response window.
func (o SLAObjective) FirstResponseDeadline(createdAt time.Time) time.Time {
	return createdAt.Add(time.Duration(o.FirstResponseMinutes) * time.Minute)
}

// ResolutionDeadline returns createdAt plus the resolution window.
func (o SLAObjective) ResolutionDeadline(createdAt time.Time) time.Time {
	return createdAt.Add(time.Duration(o.ResolutionMinutes) * time.Minute)
}

// SLAClassification buckets an incident for compliance reporting.
type SLAClassification string

const (
	SLAMet      SLAClassification = "MET"
	SLABreached SLAClassification = "BREACHED"
	SLAOverdue  SLAClassification = "OVERDUE"
	SLADueToday SLAClassification = "DUE_TODAY"
	SLAPending  SLAClassification = "PENDING"
)

// IncidentSLA is the per-incident SLA view.
type IncidentSLA struct {
	IncidentID            string
	FirstResponseDeadline time.Time
	ResolutionDeadline    time.Time
	FirstResponseMet      bool
	ResolutionMet         bool
	MinutesRemaining      int64
	Classification        SLAClassification
}

// SLAMetrics aggregates compliance across incidents.
type SLAMetrics struct {
	ReferenceTime     time.Time
	OverdueCount      int
	DueTodayCount     int
	MetCount          int
	BreachedCount     int
	PendingCount      int
	ExcludedCount     int
	CompliancePercent float64
}
