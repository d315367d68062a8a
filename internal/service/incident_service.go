package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/events"
	"github.com/spec-kit/incident-service/internal/repository"
	apperrors "github.com/spec-kit/incident-service/pkg/util/errorutil"
)

// IncidentService drives the incident lifecycle.
type IncidentService struct {
	tx          repository.TxManager
	repos       repository.Repositories
	assignments *AssignmentService
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	clock       Clock
}

// IncidentDependencies bundles collaborators for the incident service.
type IncidentDependencies struct {
	Tx          repository.TxManager
	Repos       repository.Repositories
	Assignments *AssignmentService
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	Clock       Clock
}

// CreateIncidentInput describes a new incident. Empty priority defaults to
// P3 and an empty category is derived from the text.
type CreateIncidentInput struct {
	ReporterID  string
	Title       string
	Description string
	Priority    domain.IncidentPriority
	Category    domain.Category
	ServiceID   string
}

// NewIncidentService constructs the service.
func NewIncidentService(deps IncidentDependencies) *IncidentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IncidentService{
		tx:          deps.Tx,
		repos:       deps.Repos,
		assignments: deps.Assignments,
		dispatcher:  deps.Dispatcher,
		logger:      logger,
		clock:       deps.Clock,
	}
}

// CreateIncident stores a new OPEN incident and immediately tries to assign
// it. When no technician can take it the incident stays OPEN.
func (s *IncidentService) CreateIncident(ctx context.Context, input CreateIncidentInput) (*domain.Incident, error) {
	incident, err := s.newIncident(input)
	if err != nil {
		return nil, err
	}

	if err := s.repos.Incidents.Create(ctx, incident); err != nil {
		return nil, mapRepoError(err, "incident", nil)
	}
	s.logger.Info("incident created",
		zap.String("incident_id", incident.ID),
		zap.String("external_key", incident.ExternalKey),
		zap.String("category", string(incident.Category)),
		zap.String("priority", string(incident.Priority)))

	reporterID := incident.ReporterID
	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:       events.EventIncidentCreated,
		IncidentID: incident.ID,
		Actor:      events.Actor{Type: domain.SubjectTypeReporter, ID: &reporterID},
		Timestamp:  incident.CreatedAt,
		Payload: events.IncidentCreatedPayload{
			ReporterID: incident.ReporterID,
			Title:      incident.Title,
			Priority:   incident.Priority,
			Category:   incident.Category,
			ServiceID:  incident.ServiceID,
		},
	})

	if s.assignments == nil {
		return incident, nil
	}
	// Any assignment failure leaves the stored incident OPEN.
	if _, err := s.assignments.AssignAutomatically(ctx, incident.ID); err != nil {
		msg := "incident left unassigned"
		if !apperrors.HasCode(err, apperrors.CodeNoTechnician) {
			msg = "auto-assignment failed; incident left open"
		}
		s.logger.Warn(msg,
			zap.String("incident_id", incident.ID),
			zap.Int("support_level", int(incident.SupportLevel)),
			zap.Error(err))
		return incident, nil
	}
	assigned, err := s.GetIncident(ctx, incident.ID)
	if err != nil {
		s.logger.Warn("reload after assignment failed", zap.String("incident_id", incident.ID), zap.Error(err))
		return incident, nil
	}
	return assigned, nil
}

func (s *IncidentService) newIncident(input CreateIncidentInput) (*domain.Incident, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	problems := map[string]any{}
	if title == "" {
		problems["title"] = "required"
	}
	if strings.TrimSpace(input.ServiceID) == "" {
		problems["service_id"] = "required"
	}
	if strings.TrimSpace(input.ReporterID) == "" {
		problems["reporter_id"] = "required"
	}

	priority := input.Priority
	if priority == "" {
		priority = domain.DefaultPriority
	}
	if !priority.Valid() {
		problems["priority"] = "must be one of P1..P5"
	}

	category := input.Category
	if category == "" {
		category = domain.ClassifyIncident(domain.ClassificationInput{Title: title, Description: description})
	} else if parsed, ok := domain.ParseCategory(string(category)); ok {
		category = parsed
	} else {
		problems["category"] = "unknown category"
	}

	if len(problems) > 0 {
		return nil, apperrors.NewValidationError("invalid incident", problems)
	}

	now := s.clock.now()
	return &domain.Incident{
		ExternalKey:  generateIncidentKey(),
		ReporterID:   strings.TrimSpace(input.ReporterID),
		Title:        title,
		Description:  description,
		Status:       domain.IncidentStatusOpen,
		SupportLevel: domain.MinSupportLevel,
		Priority:     priority,
		Category:     category,
		ServiceID:    strings.TrimSpace(input.ServiceID),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// GetIncident loads a single incident.
func (s *IncidentService) GetIncident(ctx context.Context, incidentID string) (*domain.Incident, error) {
	incident, err := s.repos.Incidents.GetByID(ctx, incidentID)
	if err != nil {
		return nil, mapRepoError(err, "incident", map[string]any{"incident_id": incidentID})
	}
	return incident, nil
}

// StartWork moves ASSIGNED to IN_PROGRESS and records the first response.
func (s *IncidentService) StartWork(ctx context.Context, incidentID, technicianID string) (*domain.Incident, error) {
	return s.transition(ctx, incidentID, technicianID, domain.IncidentStatusInProgress, func(incident *domain.Incident) {
		if incident.FirstResponseAt == nil {
			incident.FirstResponseAt = timePtr(s.clock.now())
		}
	})
}

// Resolve moves IN_PROGRESS to RESOLVED.
func (s *IncidentService) Resolve(ctx context.Context, incidentID, technicianID string) (*domain.Incident, error) {
	return s.transition(ctx, incidentID, technicianID, domain.IncidentStatusResolved, func(incident *domain.Incident) {
		incident.ResolvedAt = timePtr(s.clock.now())
	})
}

// Close moves RESOLVED to CLOSED, the terminal state.
func (s *IncidentService) Close(ctx context.Context, incidentID, technicianID string) (*domain.Incident, error) {
	return s.transition(ctx, incidentID, technicianID, domain.IncidentStatusClosed, func(incident *domain.Incident) {
		incident.ClosedAt = timePtr(s.clock.now())
	})
}

func (s *IncidentService) transition(ctx context.Context, incidentID, actorID string, next domain.IncidentStatus, stamp func(*domain.Incident)) (*domain.Incident, error) {
	details := map[string]any{"incident_id": incidentID}
	var (
		updated  *domain.Incident
		previous domain.IncidentStatus
	)
	err := retryOnConflict(ctx, func(ctx context.Context) error {
		err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
			incident, err := repos.Incidents.GetForUpdate(ctx, incidentID)
			if err != nil {
				return err
			}
			if incident.IsClosed() {
				return closedIncidentError(incident, string(next))
			}
			if !domain.CanTransition(incident.Status, next) {
				return apperrors.NewInvalidTransition("illegal status transition", map[string]any{
					"incident_id": incident.ID,
					"from":        incident.Status,
					"to":          next,
				})
			}
			previous = incident.Status
			incident.Status = next
			stamp(incident)
			if err := repos.Incidents.Update(ctx, incident); err != nil {
				return err
			}
			updated = incident
			return nil
		})
		return mapRepoError(err, "incident", details)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("incident status changed",
		zap.String("incident_id", updated.ID),
		zap.String("from", string(previous)),
		zap.String("to", string(next)))
	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:       events.EventIncidentStatusChanged,
		IncidentID: updated.ID,
		Actor:      technicianActor(actorID),
		Timestamp:  updated.UpdatedAt,
		Payload: events.IncidentStatusChangedPayload{
			ReporterID: updated.ReporterID,
			Title:      updated.Title,
			OldStatus:  previous,
			NewStatus:  next,
		},
	})
	return updated, nil
}

// ListAssignments returns every binding the incident ever had, oldest first.
func (s *IncidentService) ListAssignments(ctx context.Context, incidentID string) ([]domain.Assignment, error) {
	if _, err := s.GetIncident(ctx, incidentID); err != nil {
		return nil, err
	}
	assignments, err := s.repos.Assignments.ListByIncident(ctx, incidentID)
	if err != nil {
		return nil, mapRepoError(err, "assignment", nil)
	}
	return assignments, nil
}

// ListEscalations returns the escalation trail of an incident.
func (s *IncidentService) ListEscalations(ctx context.Context, incidentID string) ([]domain.EscalationRecord, error) {
	if _, err := s.GetIncident(ctx, incidentID); err != nil {
		return nil, err
	}
	records, err := s.repos.Escalations.ListByIncident(ctx, incidentID)
	if err != nil {
		return nil, mapRepoError(err, "escalation", nil)
	}
	return records, nil
}

func generateIncidentKey() string {
	return "INC-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
