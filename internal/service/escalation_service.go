package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/incident-service/internal/config"
	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/events"
	"github.com/spec-kit/incident-service/internal/observability"
	"github.com/spec-kit/incident-service/internal/repository"
	apperrors "github.com/spec-kit/incident-service/pkg/util/errorutil"
)

// EscalationPolicy holds the automatic escalation thresholds.
type EscalationPolicy struct {
	DwellByLevel             map[domain.SupportLevel]time.Duration
	AgeMode                  config.AgeMode
	RecurrenceMinOccurrences int
	// RecurrenceWindow bounds the look-back; zero counts the whole history.
	RecurrenceWindow time.Duration
}

// DefaultEscalationPolicy returns 24h/48h/72h dwell times and a three
// occurrence, thirty day recurrence rule.
func DefaultEscalationPolicy() EscalationPolicy {
	return EscalationPolicy{
		DwellByLevel: map[domain.SupportLevel]time.Duration{
			domain.SupportLevel1: 24 * time.Hour,
			domain.SupportLevel2: 48 * time.Hour,
			domain.SupportLevel3: 72 * time.Hour,
		},
		AgeMode:                  config.AgeSinceCreation,
		RecurrenceMinOccurrences: 3,
		RecurrenceWindow:         30 * 24 * time.Hour,
	}
}

// EscalationPolicyFromConfig converts runtime configuration.
func EscalationPolicyFromConfig(cfg config.EscalationConfig) EscalationPolicy {
	policy := EscalationPolicy{
		DwellByLevel:             make(map[domain.SupportLevel]time.Duration, len(cfg.DwellByLevel)),
		AgeMode:                  cfg.AgeMode,
		RecurrenceMinOccurrences: cfg.RecurrenceMinOccurs,
		RecurrenceWindow:         cfg.RecurrenceWindow(),
	}
	for level, dwell := range cfg.DwellByLevel {
		policy.DwellByLevel[domain.SupportLevel(level)] = dwell
	}
	return policy
}

// SweepOptions bound a sweep run.
type SweepOptions struct {
	Concurrency        int
	PerIncidentTimeout time.Duration
}

// EscalationService moves incidents up the support tiers.
type EscalationService struct {
	tx          repository.TxManager
	repos       repository.Repositories
	assignments *AssignmentService
	dispatcher  events.Dispatcher
	policy      EscalationPolicy
	sweep       SweepOptions
	logger      *zap.Logger
	metrics     *observability.Metrics
	clock       Clock
}

// EscalationDependencies bundles collaborators.
type EscalationDependencies struct {
	Tx          repository.TxManager
	Repos       repository.Repositories
	Assignments *AssignmentService
	Dispatcher  events.Dispatcher
	Policy      EscalationPolicy
	Sweep       SweepOptions
	Logger      *zap.Logger
	Metrics     *observability.Metrics
	Clock       Clock
}

// NewEscalationService builds the service.
func NewEscalationService(deps EscalationDependencies) *EscalationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sweep := deps.Sweep
	if sweep.Concurrency <= 0 {
		sweep.Concurrency = 1
	}
	return &EscalationService{
		tx:          deps.Tx,
		repos:       deps.Repos,
		assignments: deps.Assignments,
		dispatcher:  deps.Dispatcher,
		policy:      deps.Policy,
		sweep:       sweep,
		logger:      logger,
		metrics:     deps.Metrics,
		clock:       deps.Clock,
	}
}

// Escalate raises the incident one level and reassigns it at the new level.
// Both happen atomically: without a technician at the new level nothing changes.
// The record's trigger is always MANUAL; automatic only flags callers such as
// external monitors. AGE and RECURRENCE records come from the sweep alone.
func (s *EscalationService) Escalate(ctx context.Context, incidentID, reason string, automatic bool) (*domain.Incident, error) {
	return s.escalate(ctx, incidentID, reason, automatic, domain.EscalationTriggerManual, 0)
}

// errLevelMoved signals that another writer escalated the incident between
// the sweep's evaluation and its transaction.
var errLevelMoved = errors.New("support level changed since evaluation")

type escalationOutcome struct {
	incident   *domain.Incident
	record     *domain.EscalationRecord
	assignment *assignmentOutcome
}

// escalate runs one escalation. A non-zero expected level makes the call a
// no-op (errLevelMoved) when the incident is no longer at that level.
func (s *EscalationService) escalate(ctx context.Context, incidentID, reason string, automatic bool, trigger domain.EscalationTrigger, expected domain.SupportLevel) (*domain.Incident, error) {
	details := map[string]any{"incident_id": incidentID}
	var outcome *escalationOutcome
	err := retryOnConflict(ctx, func(ctx context.Context) error {
		err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
			incident, err := repos.Incidents.GetForUpdate(ctx, incidentID)
			if err != nil {
				return err
			}
			if expected != 0 && incident.SupportLevel != expected {
				return errLevelMoved
			}
			outcome, err = s.escalateTx(ctx, repos, incident, reason, automatic, trigger)
			return err
		})
		return mapRepoError(err, "incident", details)
	})
	if err != nil {
		return nil, err
	}

	s.announce(ctx, outcome)
	return outcome.incident, nil
}

func (s *EscalationService) escalateTx(ctx context.Context, repos repository.Repositories, incident *domain.Incident, reason string, automatic bool, trigger domain.EscalationTrigger) (*escalationOutcome, error) {
	if incident.IsClosed() {
		return nil, closedIncidentError(incident, "escalate")
	}
	if !incident.IsUnresolved() {
		return nil, apperrors.NewInvalidTransition("incident is resolved", map[string]any{
			"incident_id": incident.ID,
			"operation":   "escalate",
		})
	}
	if incident.SupportLevel >= domain.MaxSupportLevel {
		return nil, apperrors.NewMaxLevelReached(map[string]any{
			"incident_id":   incident.ID,
			"support_level": int(incident.SupportLevel),
		})
	}

	now := s.clock.now()
	from := incident.SupportLevel
	incident.SupportLevel = from + 1
	incident.EscalatedAt = timePtr(now)
	if err := repos.Incidents.Update(ctx, incident); err != nil {
		return nil, err
	}

	record := &domain.EscalationRecord{
		IncidentID: incident.ID,
		LevelFrom:  from,
		LevelTo:    incident.SupportLevel,
		Reason:     reason,
		Automatic:  automatic,
		Trigger:    trigger,
		CreatedAt:  now,
	}
	if err := repos.Escalations.Create(ctx, record); err != nil {
		return nil, err
	}

	assigned, err := s.assignments.assignAutomaticallyTx(ctx, repos, incident)
	if err != nil {
		return nil, err
	}
	return &escalationOutcome{incident: incident, record: record, assignment: assigned}, nil
}

func (s *EscalationService) announce(ctx context.Context, outcome *escalationOutcome) {
	incident, record := outcome.incident, outcome.record
	s.logger.Info("incident escalated",
		zap.String("incident_id", incident.ID),
		zap.Int("level_from", int(record.LevelFrom)),
		zap.Int("level_to", int(record.LevelTo)),
		zap.String("trigger", string(record.Trigger)),
		zap.Bool("automatic", record.Automatic))
	s.metrics.RecordEscalation(string(record.Trigger))

	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:       events.EventIncidentEscalated,
		IncidentID: incident.ID,
		Actor:      systemActor(),
		Timestamp:  record.CreatedAt,
		Payload: events.IncidentEscalatedPayload{
			ReporterID: incident.ReporterID,
			Title:      incident.Title,
			LevelFrom:  record.LevelFrom,
			LevelTo:    record.LevelTo,
			Reason:     record.Reason,
			Automatic:  record.Automatic,
			Trigger:    record.Trigger,
		},
	})
	s.assignments.announce(ctx, outcome.assignment, "")
}

// ShouldEscalateByAge reports whether the incident outstayed the dwell time of its level.
func (s *EscalationService) ShouldEscalateByAge(ctx context.Context, incidentID string) (bool, error) {
	incident, err := s.load(ctx, incidentID)
	if err != nil {
		return false, err
	}
	return s.dueByAge(incident, s.clock.now()), nil
}

// ShouldEscalateByRecurrence reports whether enough incidents of the same
// category were raised inside the recurrence window.
func (s *EscalationService) ShouldEscalateByRecurrence(ctx context.Context, incidentID string) (bool, error) {
	incident, err := s.load(ctx, incidentID)
	if err != nil {
		return false, err
	}
	return s.dueByRecurrence(ctx, incident, s.clock.now())
}

func (s *EscalationService) load(ctx context.Context, incidentID string) (*domain.Incident, error) {
	incident, err := s.repos.Incidents.GetByID(ctx, incidentID)
	if err != nil {
		return nil, mapRepoError(err, "incident", map[string]any{"incident_id": incidentID})
	}
	return incident, nil
}

func (s *EscalationService) dueByAge(incident *domain.Incident, now time.Time) bool {
	if !incident.IsUnresolved() || incident.SupportLevel >= domain.MaxSupportLevel {
		return false
	}
	dwell, ok := s.policy.DwellByLevel[incident.SupportLevel]
	if !ok || dwell <= 0 {
		return false
	}
	since := incident.CreatedAt
	if s.policy.AgeMode == config.AgeSinceLastEscalation && incident.EscalatedAt != nil {
		since = *incident.EscalatedAt
	}
	return now.Sub(since) > dwell
}

func (s *EscalationService) dueByRecurrence(ctx context.Context, incident *domain.Incident, now time.Time) (bool, error) {
	if !incident.IsUnresolved() || incident.SupportLevel >= domain.MaxSupportLevel {
		return false, nil
	}
	if s.policy.RecurrenceMinOccurrences <= 0 || incident.Category == "" {
		return false, nil
	}

	records, err := s.repos.Escalations.ListByIncident(ctx, incident.ID)
	if err != nil {
		return false, mapRepoError(err, "escalation", nil)
	}
	for _, rec := range records {
		if rec.Trigger == domain.EscalationTriggerRecurrence {
			return false, nil
		}
	}

	var since time.Time
	if s.policy.RecurrenceWindow > 0 {
		since = now.Add(-s.policy.RecurrenceWindow)
	}
	count, err := s.repos.Incidents.CountByCategory(ctx, incident.Category, since)
	if err != nil {
		return false, mapRepoError(err, "incident", nil)
	}
	return count >= s.policy.RecurrenceMinOccurrences, nil
}

// RunAutomaticSweep evaluates every unresolved incident and escalates the
// ones that are due. Failures are logged per incident and never abort the
// sweep. It returns the number of escalations performed.
func (s *EscalationService) RunAutomaticSweep(ctx context.Context) (int, error) {
	started := s.clock.now()
	incidents, err := s.repos.Incidents.ListOpen(ctx)
	if err != nil {
		s.metrics.RecordSweep("error", 0)
		return 0, mapRepoError(err, "incident", nil)
	}

	var (
		escalated atomic.Int64
		failures  atomic.Int64
		g         errgroup.Group
	)
	g.SetLimit(s.sweep.Concurrency)

	for _, incident := range incidents {
		if ctx.Err() != nil {
			break
		}
		incidentID := incident.ID
		g.Go(func() error {
			n, err := s.sweepIncident(ctx, incidentID)
			escalated.Add(int64(n))
			if err != nil {
				failures.Add(1)
				s.logger.Warn("sweep skipped incident",
					zap.String("incident_id", incidentID),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	total := int(escalated.Load())
	failed := int(failures.Load())
	outcome := "ok"
	if ctx.Err() != nil {
		outcome = "cancelled"
	}
	s.metrics.RecordSweep(outcome, failed)
	s.logger.Info("escalation sweep finished",
		zap.Int("evaluated", len(incidents)),
		zap.Int("escalated", total),
		zap.Int("failures", failed),
		zap.Duration("elapsed", s.clock.now().Sub(started)))
	return total, ctx.Err()
}

// sweepIncident applies the age trigger, then re-reads the incident and
// applies the recurrence trigger. Each escalation commits on its own.
func (s *EscalationService) sweepIncident(ctx context.Context, incidentID string) (int, error) {
	if s.sweep.PerIncidentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.sweep.PerIncidentTimeout)
		defer cancel()
	}

	escalated := 0
	incident, err := s.load(ctx, incidentID)
	if err != nil {
		return escalated, err
	}

	now := s.clock.now()
	if s.dueByAge(incident, now) {
		dwell := s.policy.DwellByLevel[incident.SupportLevel]
		reason := fmt.Sprintf("level %d dwell time of %s exceeded", incident.SupportLevel, dwell)
		incident, err = s.escalate(ctx, incidentID, reason, true, domain.EscalationTriggerAge, incident.SupportLevel)
		switch {
		case errors.Is(err, errLevelMoved):
			return escalated, nil
		case err != nil:
			return escalated, err
		}
		escalated++
	}

	due, err := s.dueByRecurrence(ctx, incident, now)
	if err != nil {
		return escalated, err
	}
	if due {
		reason := fmt.Sprintf("recurring %s incidents reached %d", incident.Category, s.policy.RecurrenceMinOccurrences)
		_, err := s.escalate(ctx, incidentID, reason, true, domain.EscalationTriggerRecurrence, incident.SupportLevel)
		switch {
		case errors.Is(err, errLevelMoved):
			return escalated, nil
		case err != nil:
			return escalated, err
		}
		escalated++
	}
	return escalated, nil
}
