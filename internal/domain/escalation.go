package domain

import "time"

// EscalationTrigger records what caused a level change.
type EscalationTrigger string

const (
	EscalationTriggerManual     EscalationTrigger = "MANUAL"
	EscalationTriggerAge        EscalationTrigger = "AGE"
	EscalationTriggerRecurrence EscalationTrigger = "RECURRENCE"
)

// EscalationRecord is an immutable audit trail entry for a level change.
type EscalationRecord struct {
	ID         string
	IncidentID string
	LevelFrom  SupportLevel
	LevelTo    SupportLevel
	Reason     string
	Automatic  bool
	Trigger    EscalationTrigger
	CreatedAt  time.Time
}
