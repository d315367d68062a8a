package dto

import (
	"time"

	"github.com/spec-kit/incident-service/internal/domain"
)

// CreateIncidentRequest payload. Category is optional; it is derived from
// the title and description when omitted.
type CreateIncidentRequest struct {
	Title       string                  `json:"title"`
	Description string                  `json:"description"`
	Priority    domain.IncidentPriority `json:"priority"`
	Category    string                  `json:"category"`
	ServiceID   string                  `json:"service_id"`
}

// AssignRequest targets a specific technician.
type AssignRequest struct {
	TechnicianID string `json:"technician_id"`
}

// EscalateRequest payload.
type EscalateRequest struct {
	Reason    string `json:"reason"`
	Automatic bool   `json:"automatic"`
}

// IncidentResponse represents an incident.
type IncidentResponse struct {
	ID              string                  `json:"id"`
	ExternalKey     string                  `json:"external_key"`
	ReporterID      string                  `json:"reporter_id"`
	Title           string                  `json:"title"`
	Description     string                  `json:"description"`
	Status          domain.IncidentStatus   `json:"status"`
	SupportLevel    domain.SupportLevel     `json:"support_level"`
	Priority        domain.IncidentPriority `json:"priority"`
	Category        domain.Category         `json:"category"`
	ServiceID       string                  `json:"service_id"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
	AssignedAt      *time.Time              `json:"assigned_at"`
	FirstResponseAt *time.Time              `json:"first_response_at"`
	ResolvedAt      *time.Time              `json:"resolved_at"`
	ClosedAt        *time.Time              `json:"closed_at"`
	EscalatedAt     *time.Time              `json:"escalated_at"`
	Version         int64                   `json:"version"`
}

// AssignmentResponse represents a technician binding.
type AssignmentResponse struct {
	ID           string    `json:"id"`
	IncidentID   string    `json:"incident_id"`
	TechnicianID string    `json:"technician_id"`
	AssignedAt   time.Time `json:"assigned_at"`
	Active       bool      `json:"active"`
}

// EscalationResponse represents an escalation record.
type EscalationResponse struct {
	ID        string                   `json:"id"`
	LevelFrom domain.SupportLevel      `json:"level_from"`
	LevelTo   domain.SupportLevel      `json:"level_to"`
	Reason    string                   `json:"reason"`
	Automatic bool                     `json:"automatic"`
	Trigger   domain.EscalationTrigger `json:"trigger"`
	CreatedAt time.Time                `json:"created_at"`
}

// IncidentSLAResponse is the per-incident SLA view.
type IncidentSLAResponse struct {
	IncidentID            string                   `json:"incident_id"`
	FirstResponseDeadline time.Time                `json:"first_response_deadline"`
	ResolutionDeadline    time.Time                `json:"resolution_deadline"`
	FirstResponseMet      bool                     `json:"first_response_met"`
	ResolutionMet         bool                     `json:"resolution_met"`
	MinutesRemaining      int64                    `json:"minutes_remaining"`
	Classification        domain.SLAClassification `json:"classification"`
}

// SLAMetricsResponse aggregates compliance.
type SLAMetricsResponse struct {
	ReferenceTime     time.Time `json:"reference_time"`
	OverdueCount      int       `json:"overdue_count"`
	DueTodayCount     int       `json:"due_today_count"`
	MetCount          int       `json:"met_count"`
	BreachedCount     int       `json:"breached_count"`
	PendingCount      int       `json:"pending_count"`
	ExcludedCount     int       `json:"excluded_count"`
	CompliancePercent float64   `json:"compliance_percent"`
}

// SweepResponse reports a manual sweep run.
type SweepResponse struct {
	Ran       bool `json:"ran"`
	Escalated int  `json:"escalated"`
}

// NewIncidentResponse maps the domain incident.
func NewIncidentResponse(incident *domain.Incident) IncidentResponse {
	return IncidentResponse{
		ID:              incident.ID,
		ExternalKey:     incident.ExternalKey,
		ReporterID:      incident.ReporterID,
		Title:           incident.Title,
		Description:     incident.Description,
		Status:          incident.Status,
		SupportLevel:    incident.SupportLevel,
		Priority:        incident.Priority,
		Category:        incident.Category,
		ServiceID:       incident.ServiceID,
		CreatedAt:       incident.CreatedAt,
		UpdatedAt:       incident.UpdatedAt,
		AssignedAt:      incident.AssignedAt,
		FirstResponseAt: incident.FirstResponseAt,
		ResolvedAt:      incident.ResolvedAt,
		ClosedAt:        incident.ClosedAt,
		EscalatedAt:     incident.EscalatedAt,
		Version:         incident.Version,
	}
}

func NewAssignmentResponse(a *domain.Assignment) AssignmentResponse {
	return AssignmentResponse{
		ID:           a.ID,
		IncidentID:   a.IncidentID,
		TechnicianID: a.TechnicianID,
		AssignedAt:   a.AssignedAt,
		Active:       a.Active,
	}
}

func NewEscalationResponses(records []domain.EscalationRecord) []EscalationResponse {
	out := make([]EscalationResponse, 0, len(records))
	for _, r := range records {
		out = append(out, EscalationResponse{
			ID:        r.ID,
			LevelFrom: r.LevelFrom,
			LevelTo:   r.LevelTo,
			Reason:    r.Reason,
			Automatic: r.Automatic,
			Trigger:   r.Trigger,
			CreatedAt: r.CreatedAt,
		})
	}
	return out
}

func NewIncidentSLAResponse(s *domain.IncidentSLA) IncidentSLAResponse {
	return IncidentSLAResponse{
		IncidentID:            s.IncidentID,
		FirstResponseDeadline: s.FirstResponseDeadline,
		ResolutionDeadline:    s.ResolutionDeadline,
		FirstResponseMet:      s.FirstResponseMet,
		ResolutionMet:         s.ResolutionMet,
		MinutesRemaining:      s.MinutesRemaining,
		Classification:        s.Classification,
	}
}

func NewSLAMetricsResponse(m *domain.SLAMetrics) SLAMetricsResponse {
	return SLAMetricsResponse{
		ReferenceTime:     m.ReferenceTime,
		OverdueCount:      m.OverdueCount,
		DueTodayCount:     m.DueTodayCount,
		MetCount:          m.MetCount,
		BreachedCount:     m.BreachedCount,
		PendingCount:      m.PendingCount,
		ExcludedCount:     m.ExcludedCount,
		CompliancePercent: m.CompliancePercent,
	}
}
