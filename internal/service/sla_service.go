package service

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/repository"
	apperrors "github.com/spec-kit/incident-service/pkg/util/errorutil"
)

// SLAService computes compliance from incidents and objectives. It never
// mutates incidents.
type SLAService struct {
	incidents  repository.IncidentRepository
	objectives repository.ObjectiveRepository
	location   *time.Location
	logger     *zap.Logger
}

// SLADependencies bundles collaborators for SLA reporting.
type SLADependencies struct {
	Incidents  repository.IncidentRepository
	Objectives repository.ObjectiveRepository
	// Location decides what "today" means for DUE_TODAY. Defaults to UTC.
	Location *time.Location
	Logger   *zap.Logger
}

// NewSLAService constructs the service.
func NewSLAService(deps SLADependencies) *SLAService {
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SLAService{
		incidents:  deps.Incidents,
		objectives: deps.Objectives,
		location:   loc,
		logger:     logger,
	}
}

// GetIncidentSla returns deadlines and status for one incident at ref.
func (s *SLAService) GetIncidentSla(ctx context.Context, incidentID string, ref time.Time) (*domain.IncidentSLA, error) {
	incident, err := s.incidents.GetByID(ctx, incidentID)
	if err != nil {
		return nil, mapRepoError(err, "incident", map[string]any{"incident_id": incidentID})
	}
	objective, err := s.objectiveFor(ctx, incident)
	if err != nil {
		return nil, err
	}
	if objective == nil {
		return nil, apperrors.NewNotFound("sla objective", map[string]any{
			"service_id": incident.ServiceID,
			"priority":   incident.EffectivePriority(),
		})
	}
	view := s.evaluate(incident, objective, ref)
	return &view, nil
}

// GetGlobalMetrics classifies every incident that has an objective.
// Compliance is met / (overdue + dueToday + met) * 100, or 0 when nothing counts.
func (s *SLAService) GetGlobalMetrics(ctx context.Context, ref time.Time) (*domain.SLAMetrics, error) {
	incidents, err := s.incidents.ListAll(ctx)
	if err != nil {
		return nil, mapRepoError(err, "incident", nil)
	}

	metrics := &domain.SLAMetrics{ReferenceTime: ref}
	cache := make(map[objectiveCacheKey]*domain.SLAObjective)
	for i := range incidents {
		incident := &incidents[i]
		key := objectiveCacheKey{serviceID: incident.ServiceID, priority: incident.EffectivePriority()}
		objective, seen := cache[key]
		if !seen {
			objective, err = s.objectiveFor(ctx, incident)
			if err != nil {
				return nil, err
			}
			cache[key] = objective
		}
		if objective == nil {
			metrics.ExcludedCount++
			continue
		}

		switch s.evaluate(incident, objective, ref).Classification {
		case domain.SLAMet:
			metrics.MetCount++
		case domain.SLABreached:
			metrics.BreachedCount++
		case domain.SLAOverdue:
			metrics.OverdueCount++
		case domain.SLADueToday:
			metrics.DueTodayCount++
		default:
			metrics.PendingCount++
		}
	}

	denominator := metrics.OverdueCount + metrics.DueTodayCount + metrics.MetCount
	if denominator > 0 {
		metrics.CompliancePercent = float64(metrics.MetCount) / float64(denominator) * 100
	}
	if metrics.ExcludedCount > 0 {
		s.logger.Debug("incidents without sla objective", zap.Int("excluded", metrics.ExcludedCount))
	}
	return metrics, nil
}

type objectiveCacheKey struct {
	serviceID string
	priority  domain.IncidentPriority
}

// objectiveFor returns nil without error when no objective is configured.
func (s *SLAService) objectiveFor(ctx context.Context, incident *domain.Incident) (*domain.SLAObjective, error) {
	objective, err := s.objectives.Get(ctx, incident.ServiceID, incident.EffectivePriority())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, mapRepoError(err, "sla objective", nil)
	}
	return objective, nil
}

func (s *SLAService) evaluate(incident *domain.Incident, objective *domain.SLAObjective, ref time.Time) domain.IncidentSLA {
	firstDeadline := objective.FirstResponseDeadline(incident.CreatedAt)
	resolutionDeadline := objective.ResolutionDeadline(incident.CreatedAt)

	view := domain.IncidentSLA{
		IncidentID:            incident.ID,
		FirstResponseDeadline: firstDeadline,
		ResolutionDeadline:    resolutionDeadline,
		FirstResponseMet:      incident.FirstResponseAt != nil && !incident.FirstResponseAt.After(firstDeadline),
	}

	if resolved := resolvedAt(incident); resolved != nil {
		view.ResolutionMet = !resolved.After(resolutionDeadline)
		if view.ResolutionMet {
			view.Classification = domain.SLAMet
		} else {
			view.Classification = domain.SLABreached
		}
		return view
	}

	view.MinutesRemaining = int64(math.Floor(resolutionDeadline.Sub(ref).Minutes()))
	switch {
	case resolutionDeadline.Before(ref):
		view.Classification = domain.SLAOverdue
	case sameDay(resolutionDeadline, ref, s.location):
		view.Classification = domain.SLADueToday
	default:
		view.Classification = domain.SLAPending
	}
	return view
}

// resolvedAt prefers the resolution stamp and falls back to closure.
func resolvedAt(incident *domain.Incident) *time.Time {
	if incident.ResolvedAt != nil {
		return incident.ResolvedAt
	}
	if incident.Status == domain.IncidentStatusClosed || incident.Status == domain.IncidentStatusResolved {
		return incident.ClosedAt
	}
	return nil
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
