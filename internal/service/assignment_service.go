package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/incident-service/internal/config"
	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/events"
	"github.com/spec-kit/incident-service/internal/observability"
	"github.com/spec-kit/incident-service/internal/repository"
	apperrors "github.com/spec-kit/incident-service/pkg/util/errorutil"
)

// Assignment modes reported on events and metrics.
const (
	ModeAutomatic = "AUTOMATIC"
	ModeManual    = "MANUAL"
	ModeReassign  = "REASSIGN"
	ModeTake      = "TAKE"
)

// AssignmentPolicy caps the active workload of a technician per level. A
// missing or zero entry means unlimited.
type AssignmentPolicy struct {
	MaxActiveByLevel map[domain.SupportLevel]int
}

// AssignmentPolicyFromConfig converts runtime configuration.
func AssignmentPolicyFromConfig(cfg config.AssignmentConfig) AssignmentPolicy {
	policy := AssignmentPolicy{MaxActiveByLevel: make(map[domain.SupportLevel]int, len(cfg.MaxActiveByLevel))}
	for level, limit := range cfg.MaxActiveByLevel {
		policy.MaxActiveByLevel[domain.SupportLevel(level)] = limit
	}
	return policy
}

func (p AssignmentPolicy) quota(level domain.SupportLevel) int {
	return p.MaxActiveByLevel[level]
}

// AssignmentService binds technicians to incidents.
type AssignmentService struct {
	tx         repository.TxManager
	repos      repository.Repositories
	dispatcher events.Dispatcher
	policy     AssignmentPolicy
	logger     *zap.Logger
	metrics    *observability.Metrics
	clock      Clock
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	Tx         repository.TxManager
	Repos      repository.Repositories
	Dispatcher events.Dispatcher
	Policy     AssignmentPolicy
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Clock      Clock
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		tx:         deps.Tx,
		repos:      deps.Repos,
		dispatcher: deps.Dispatcher,
		policy:     deps.Policy,
		logger:     logger,
		metrics:    deps.Metrics,
		clock:      deps.Clock,
	}
}

// assignmentOutcome describes a committed (re)assignment.
type assignmentOutcome struct {
	incident   *domain.Incident
	assignment *domain.Assignment
	previous   *string
	mode       string
}

// AssignAutomatically places the incident with the least loaded active
// technician at its current level.
func (s *AssignmentService) AssignAutomatically(ctx context.Context, incidentID string) (*domain.Assignment, error) {
	return s.run(ctx, incidentID, "", func(ctx context.Context, repos repository.Repositories, incident *domain.Incident) (*assignmentOutcome, error) {
		return s.assignAutomaticallyTx(ctx, repos, incident)
	})
}

// AssignManually lets a SPOC pick the technician.
func (s *AssignmentService) AssignManually(ctx context.Context, incidentID, technicianID string, requestedBy *domain.Technician) (*domain.Assignment, error) {
	if !requestedBy.CanCoordinate() {
		return nil, apperrors.NewUnauthorized("only an active SPOC may assign incidents")
	}
	return s.run(ctx, incidentID, requestedBy.ID, func(ctx context.Context, repos repository.Repositories, incident *domain.Incident) (*assignmentOutcome, error) {
		tech, err := s.eligibleTechnician(ctx, repos, technicianID)
		if err != nil {
			return nil, err
		}
		return s.bindTx(ctx, repos, incident, tech, ModeManual)
	})
}

// Reassign moves the incident to another technician, superseding the current binding.
func (s *AssignmentService) Reassign(ctx context.Context, incidentID, technicianID string) (*domain.Assignment, error) {
	return s.run(ctx, incidentID, "", func(ctx context.Context, repos repository.Repositories, incident *domain.Incident) (*assignmentOutcome, error) {
		tech, err := s.eligibleTechnician(ctx, repos, technicianID)
		if err != nil {
			return nil, err
		}
		return s.bindTx(ctx, repos, incident, tech, ModeReassign)
	})
}

// TakeUnassigned lets a technician claim an incident nobody holds.
func (s *AssignmentService) TakeUnassigned(ctx context.Context, incidentID, technicianID string) (*domain.Assignment, error) {
	return s.run(ctx, incidentID, technicianID, func(ctx context.Context, repos repository.Repositories, incident *domain.Incident) (*assignmentOutcome, error) {
		active, err := repos.Assignments.GetActive(ctx, incident.ID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		if active != nil {
			return nil, apperrors.NewAlreadyAssigned(map[string]any{
				"incident_id":   incident.ID,
				"technician_id": active.TechnicianID,
			})
		}
		tech, err := s.eligibleTechnician(ctx, repos, technicianID)
		if err != nil {
			return nil, err
		}
		return s.bindTx(ctx, repos, incident, tech, ModeTake)
	})
}

type assignFunc func(ctx context.Context, repos repository.Repositories, incident *domain.Incident) (*assignmentOutcome, error)

// run executes fn in a transaction over the locked incident, retrying once on
// conflict, and publishes the assignment after commit.
func (s *AssignmentService) run(ctx context.Context, incidentID, actorID string, fn assignFunc) (*domain.Assignment, error) {
	details := map[string]any{"incident_id": incidentID}
	var outcome *assignmentOutcome
	err := retryOnConflict(ctx, func(ctx context.Context) error {
		err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
			incident, err := repos.Incidents.GetForUpdate(ctx, incidentID)
			if err != nil {
				return mapRepoError(err, "incident", details)
			}
			outcome, err = fn(ctx, repos, incident)
			return err
		})
		return mapRepoError(err, "incident", details)
	})
	if err != nil {
		return nil, err
	}

	s.announce(ctx, outcome, actorID)
	return outcome.assignment, nil
}

// announce logs, counts and publishes a committed assignment.
func (s *AssignmentService) announce(ctx context.Context, outcome *assignmentOutcome, actorID string) {
	s.logger.Info("incident assigned",
		zap.String("incident_id", outcome.incident.ID),
		zap.String("technician_id", outcome.assignment.TechnicianID),
		zap.Int("support_level", int(outcome.incident.SupportLevel)),
		zap.String("mode", outcome.mode))
	s.metrics.RecordAssignment(outcome.mode)

	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:       events.EventIncidentAssigned,
		IncidentID: outcome.incident.ID,
		Actor:      technicianActor(actorID),
		Timestamp:  outcome.assignment.AssignedAt,
		Payload: events.IncidentAssignedPayload{
			AssignmentID:         outcome.assignment.ID,
			TechnicianID:         outcome.assignment.TechnicianID,
			PreviousTechnicianID: outcome.previous,
			Title:                outcome.incident.Title,
			SupportLevel:         outcome.incident.SupportLevel,
			Mode:                 outcome.mode,
		},
	})
}

// assignAutomaticallyTx selects and binds a technician inside an open transaction.
func (s *AssignmentService) assignAutomaticallyTx(ctx context.Context, repos repository.Repositories, incident *domain.Incident) (*assignmentOutcome, error) {
	if err := checkAssignable(incident); err != nil {
		return nil, err
	}
	tech, err := s.selectTechnician(ctx, repos, incident.SupportLevel)
	if err != nil {
		return nil, err
	}
	return s.bindTx(ctx, repos, incident, tech, ModeAutomatic)
}

// selectTechnician returns the active technician at level with the fewest
// active assignments. Ties go to the earliest technician in directory order.
func (s *AssignmentService) selectTechnician(ctx context.Context, repos repository.Repositories, level domain.SupportLevel) (*domain.Technician, error) {
	candidates, err := repos.Technicians.ListActiveBySupportLevel(ctx, level)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, apperrors.NewNoTechnicianAvailable(map[string]any{"support_level": int(level)})
	}

	quota := s.policy.quota(level)
	var (
		best     *domain.Technician
		bestLoad int
	)
	for i := range candidates {
		load, err := repos.Technicians.ActiveAssignmentCount(ctx, candidates[i].ID)
		if err != nil {
			return nil, err
		}
		if quota > 0 && load >= quota {
			continue
		}
		if best == nil || load < bestLoad {
			best = &candidates[i]
			bestLoad = load
		}
	}
	if best == nil {
		return nil, apperrors.NewNoTechnicianAvailable(map[string]any{
			"support_level": int(level),
			"quota":         quota,
		})
	}
	return best, nil
}

func (s *AssignmentService) eligibleTechnician(ctx context.Context, repos repository.Repositories, technicianID string) (*domain.Technician, error) {
	tech, err := repos.Technicians.GetByID(ctx, technicianID)
	if err != nil {
		return nil, mapRepoError(err, "technician", map[string]any{"technician_id": technicianID})
	}
	if !tech.Active {
		return nil, apperrors.NewNoTechnicianAvailable(map[string]any{
			"technician_id": technicianID,
			"reason":        "inactive",
		})
	}
	return tech, nil
}

// bindTx deactivates the current binding, inserts the new one and moves an
// OPEN incident to ASSIGNED. The incident version guards the whole step.
func (s *AssignmentService) bindTx(ctx context.Context, repos repository.Repositories, incident *domain.Incident, tech *domain.Technician, mode string) (*assignmentOutcome, error) {
	if err := checkAssignable(incident); err != nil {
		return nil, err
	}
	now := s.clock.now()

	var previous *string
	current, err := repos.Assignments.GetActive(ctx, incident.ID)
	switch {
	case err == nil:
		previousID := current.TechnicianID
		previous = &previousID
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}
	if _, err := repos.Assignments.DeactivateActive(ctx, incident.ID); err != nil {
		return nil, err
	}

	assignment := &domain.Assignment{
		IncidentID:   incident.ID,
		TechnicianID: tech.ID,
		AssignedAt:   now,
		Active:       true,
	}
	if err := repos.Assignments.Create(ctx, assignment); err != nil {
		return nil, err
	}

	if incident.Status == domain.IncidentStatusOpen {
		incident.Status = domain.IncidentStatusAssigned
	}
	incident.AssignedAt = timePtr(now)
	if err := repos.Incidents.Update(ctx, incident); err != nil {
		return nil, err
	}

	return &assignmentOutcome{
		incident:   incident,
		assignment: assignment,
		previous:   previous,
		mode:       mode,
	}, nil
}

// checkAssignable rejects incidents that no longer take assignments.
func checkAssignable(incident *domain.Incident) error {
	switch incident.Status {
	case domain.IncidentStatusClosed:
		return closedIncidentError(incident, "assign")
	case domain.IncidentStatusResolved:
		return apperrors.NewInvalidTransition("incident is resolved", map[string]any{
			"incident_id": incident.ID,
			"operation":   "assign",
		})
	}
	return nil
}
