package events

import (
	"time"

	"github.com/spec-kit/incident-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventIncidentCreated       EventType = "incident_created"
	EventIncidentStatusChanged EventType = "incident_status_changed"
	EventIncidentAssigned      EventType = "incident_assigned"
	EventIncidentEscalated     EventType = "incident_escalated"
)

// Actor identifies who caused an event. A nil ID means the system did.
type Actor struct {
	Type domain.SubjectType `json:"type"`
	ID   *string            `json:"id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	IncidentID string    `json:"incident_id"`
	Actor      Actor     `json:"actor"`
	Timestamp  time.Time `json:"timestamp"`
	Payload    any       `json:"payload"`
}

// IncidentCreatedPayload payload.
type IncidentCreatedPayload struct {
	ReporterID string                  `json:"reporter_id"`
	Title      string                  `json:"title"`
	Priority   domain.IncidentPriority `json:"priority"`
	Category   domain.Category         `json:"category"`
	ServiceID  string                  `json:"service_id"`
}

// IncidentStatusChangedPayload payload.
type IncidentStatusChangedPayload struct {
	ReporterID string                `json:"reporter_id"`
	Title      string                `json:"title"`
	OldStatus  domain.IncidentStatus `json:"old_status"`
	NewStatus  domain.IncidentStatus `json:"new_status"`
}

// IncidentAssignedPayload payload.
type IncidentAssignedPayload struct {
	AssignmentID         string              `json:"assignment_id"`
	TechnicianID         string              `json:"technician_id"`
	PreviousTechnicianID *string             `json:"previous_technician_id,omitempty"`
	Title                string              `json:"title"`
	SupportLevel         domain.SupportLevel `json:"support_level"`
	Mode                 string              `json:"mode"`
}

// IncidentEscalatedPayload payload.
type IncidentEscalatedPayload struct {
	ReporterID string                   `json:"reporter_id"`
	Title      string                   `json:"title"`
	LevelFrom  domain.SupportLevel      `json:"level_from"`
	LevelTo    domain.SupportLevel      `json:"level_to"`
	Reason     string                   `json:"reason"`
	Automatic  bool                     `json:"automatic"`
	Trigger    domain.EscalationTrigger `json:"trigger"`
}
