package repository

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/incident-service/internal/domain"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write lost a race: stale version,
	// serialization failure or a second active assignment.
	ErrConflict = errors.New("concurrent modification")
)

// IncidentRepository encapsulates incident persistence.
type IncidentRepository interface {
	Create(ctx context.Context, incident *domain.Incident) error
	GetByID(ctx context.Context, id string) (*domain.Incident, error)
	// GetForUpdate reads the incident and locks it for the rest of the transaction.
	GetForUpdate(ctx context.Context, id string) (*domain.Incident, error)
	// ListOpen returns unresolved incidents ordered by creation time.
	ListOpen(ctx context.Context) ([]domain.Incident, error)
	ListAll(ctx context.Context) ([]domain.Incident, error)
	// Update persists the incident if its version is current and bumps the version.
	Update(ctx context.Context, incident *domain.Incident) error
	// CountByCategory counts incidents of a category created at or after since.
	// A zero since counts the whole history.
	CountByCategory(ctx context.Context, category domain.Category, since time.Time) (int, error)
}

// AssignmentRepository stores technician bindings.
type AssignmentRepository interface {
	Create(ctx context.Context, assignment *domain.Assignment) error
	GetActive(ctx context.Context, incidentID string) (*domain.Assignment, error)
	DeactivateActive(ctx context.Context, incidentID string) (int64, error)
	ListByIncident(ctx context.Context, incidentID string) ([]domain.Assignment, error)
}

// TechnicianRepository is the technician directory.
type TechnicianRepository interface {
	Create(ctx context.Context, technician *domain.Technician) error
	GetByID(ctx context.Context, id string) (*domain.Technician, error)
	// ListActiveBySupportLevel returns active technicians oldest first.
	ListActiveBySupportLevel(ctx context.Context, level domain.SupportLevel) ([]domain.Technician, error)
	ActiveAssignmentCount(ctx context.Context, technicianID string) (int, error)
}

// ObjectiveRepository looks up SLA objectives.
type ObjectiveRepository interface {
	Get(ctx context.Context, serviceID string, priority domain.IncidentPriority) (*domain.SLAObjective, error)
	Upsert(ctx context.Context, objective *domain.SLAObjective) error
}

// EscalationRepository stores the append-only escalation trail.
type EscalationRepository interface {
	Create(ctx context.Context, record *domain.EscalationRecord) error
	ListByIncident(ctx context.Context, incidentID string) ([]domain.EscalationRecord, error)
}

// Repositories bundles the repositories that take part in a transaction.
type Repositories struct {
	Incidents   IncidentRepository
	Assignments AssignmentRepository
	Technicians TechnicianRepository
	Escalations EscalationRepository
}

// TxManager runs a unit of work atomically. If fn returns an error nothing it wrote is kept.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
