// Package memory provides an in-process implementation of the repository
// interfaces. It backs the service when no database is configured and is
// the fixture store for service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/repository"
)

type objectiveKey struct {
	serviceID string
	priority  domain.IncidentPriority
}

// Store keeps every aggregate behind a single mutex. Transactions hold the
// mutex for their whole duration and restore a snapshot on failure.
type Store struct {
	mu          sync.Mutex
	incidents   map[string]*domain.Incident
	assignments []domain.Assignment
	technicians map[string]*domain.Technician
	escalations []domain.EscalationRecord
	objectives  map[objectiveKey]domain.SLAObjective

	// Now stamps UpdatedAt on writes.
	Now func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		incidents:   make(map[string]*domain.Incident),
		technicians: make(map[string]*domain.Technician),
		objectives:  make(map[objectiveKey]domain.SLAObjective),
		Now:         time.Now,
	}
}

type snapshot struct {
	incidents   map[string]*domain.Incident
	assignments []domain.Assignment
	technicians map[string]*domain.Technician
	escalations []domain.EscalationRecord
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		incidents:   make(map[string]*domain.Incident, len(s.incidents)),
		assignments: append([]domain.Assignment(nil), s.assignments...),
		technicians: make(map[string]*domain.Technician, len(s.technicians)),
		escalations: append([]domain.EscalationRecord(nil), s.escalations...),
	}
	for id, inc := range s.incidents {
		snap.incidents[id] = inc.Clone()
	}
	for id, tech := range s.technicians {
		t := *tech
		snap.technicians[id] = &t
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.incidents = snap.incidents
	s.assignments = snap.assignments
	s.technicians = snap.technicians
	s.escalations = snap.escalations
}

// Repositories returns repositories that lock the store per call.
func (s *Store) Repositories() repository.Repositories {
	return s.repositories(false)
}

func (s *Store) repositories(held bool) repository.Repositories {
	return repository.Repositories{
		Incidents:   &incidentRepo{s: s, held: held},
		Assignments: &assignmentRepo{s: s, held: held},
		Technicians: &technicianRepo{s: s, held: held},
		Escalations: &escalationRepo{s: s, held: held},
	}
}

// Objectives returns the SLA objective repository.
func (s *Store) Objectives() repository.ObjectiveRepository {
	return &objectiveRepo{s: s}
}

// WithinTx implements repository.TxManager.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(ctx, s.repositories(true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// lock acquires the store mutex unless the caller already owns it.
func (s *Store) lock(held bool) func() {
	if held {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type incidentRepo struct {
	s    *Store
	held bool
}

func (r *incidentRepo) Create(_ context.Context, incident *domain.Incident) error {
	defer r.s.lock(r.held)()
	if incident.ID == "" {
		incident.ID = uuid.NewString()
	}
	if _, exists := r.s.incidents[incident.ID]; exists {
		return repository.ErrConflict
	}
	incident.UpdatedAt = incident.CreatedAt
	incident.Version = 1
	r.s.incidents[incident.ID] = incident.Clone()
	return nil
}

func (r *incidentRepo) GetByID(_ context.Context, id string) (*domain.Incident, error) {
	defer r.s.lock(r.held)()
	inc, ok := r.s.incidents[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return inc.Clone(), nil
}

func (r *incidentRepo) GetForUpdate(ctx context.Context, id string) (*domain.Incident, error) {
	return r.GetByID(ctx, id)
}

func (r *incidentRepo) ListOpen(ctx context.Context) ([]domain.Incident, error) {
	return r.list(func(inc *domain.Incident) bool { return inc.IsUnresolved() }), nil
}

func (r *incidentRepo) ListAll(ctx context.Context) ([]domain.Incident, error) {
	return r.list(func(*domain.Incident) bool { return true }), nil
}

func (r *incidentRepo) list(keep func(*domain.Incident) bool) []domain.Incident {
	defer r.s.lock(r.held)()
	result := make([]domain.Incident, 0, len(r.s.incidents))
	for _, inc := range r.s.incidents {
		if keep(inc) {
			result = append(result, *inc.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

func (r *incidentRepo) Update(_ context.Context, incident *domain.Incident) error {
	defer r.s.lock(r.held)()
	stored, ok := r.s.incidents[incident.ID]
	if !ok || stored.Version != incident.Version {
		return repository.ErrConflict
	}
	incident.Version++
	incident.UpdatedAt = r.s.Now()
	updated := incident.Clone()
	updated.CreatedAt = stored.CreatedAt
	updated.ExternalKey = stored.ExternalKey
	updated.ReporterID = stored.ReporterID
	r.s.incidents[incident.ID] = updated
	return nil
}

func (r *incidentRepo) CountByCategory(_ context.Context, category domain.Category, since time.Time) (int, error) {
	defer r.s.lock(r.held)()
	count := 0
	for _, inc := range r.s.incidents {
		if inc.Category != category {
			continue
		}
		if !since.IsZero() && inc.CreatedAt.Before(since) {
			continue
		}
		count++
	}
	return count, nil
}

type assignmentRepo struct {
	s    *Store
	held bool
}

func (r *assignmentRepo) Create(_ context.Context, assignment *domain.Assignment) error {
	defer r.s.lock(r.held)()
	if assignment.Active {
		for _, a := range r.s.assignments {
			if a.Active && a.IncidentID == assignment.IncidentID {
				return repository.ErrConflict
			}
		}
	}
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	r.s.assignments = append(r.s.assignments, *assignment)
	return nil
}

func (r *assignmentRepo) GetActive(_ context.Context, incidentID string) (*domain.Assignment, error) {
	defer r.s.lock(r.held)()
	for _, a := range r.s.assignments {
		if a.Active && a.IncidentID == incidentID {
			found := a
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *assignmentRepo) DeactivateActive(_ context.Context, incidentID string) (int64, error) {
	defer r.s.lock(r.held)()
	var n int64
	for i := range r.s.assignments {
		if r.s.assignments[i].Active && r.s.assignments[i].IncidentID == incidentID {
			r.s.assignments[i].Active = false
			n++
		}
	}
	return n, nil
}

func (r *assignmentRepo) ListByIncident(_ context.Context, incidentID string) ([]domain.Assignment, error) {
	defer r.s.lock(r.held)()
	var result []domain.Assignment
	for _, a := range r.s.assignments {
		if a.IncidentID == incidentID {
			result = append(result, a)
		}
	}
	return result, nil
}

type technicianRepo struct {
	s    *Store
	held bool
}

func (r *technicianRepo) Create(_ context.Context, technician *domain.Technician) error {
	defer r.s.lock(r.held)()
	if technician.ID == "" {
		technician.ID = uuid.NewString()
	}
	if _, exists := r.s.technicians[technician.ID]; exists {
		return repository.ErrConflict
	}
	t := *technician
	r.s.technicians[t.ID] = &t
	return nil
}

func (r *technicianRepo) GetByID(_ context.Context, id string) (*domain.Technician, error) {
	defer r.s.lock(r.held)()
	t, ok := r.s.technicians[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	found := *t
	return &found, nil
}

func (r *technicianRepo) ListActiveBySupportLevel(_ context.Context, level domain.SupportLevel) ([]domain.Technician, error) {
	defer r.s.lock(r.held)()
	var result []domain.Technician
	for _, t := range r.s.technicians {
		if t.Active && t.SupportLevel == level {
			result = append(result, *t)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *technicianRepo) ActiveAssignmentCount(_ context.Context, technicianID string) (int, error) {
	defer r.s.lock(r.held)()
	count := 0
	for _, a := range r.s.assignments {
		if a.Active && a.TechnicianID == technicianID {
			count++
		}
	}
	return count, nil
}

type escalationRepo struct {
	s    *Store
	held bool
}

func (r *escalationRepo) Create(_ context.Context, record *domain.EscalationRecord) error {
	defer r.s.lock(r.held)()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	r.s.escalations = append(r.s.escalations, *record)
	return nil
}

func (r *escalationRepo) ListByIncident(_ context.Context, incidentID string) ([]domain.EscalationRecord, error) {
	defer r.s.lock(r.held)()
	var result []domain.EscalationRecord
	for _, rec := range r.s.escalations {
		if rec.IncidentID == incidentID {
			result = append(result, rec)
		}
	}
	return result, nil
}

type objectiveRepo struct {
	s *Store
}

func (r *objectiveRepo) Get(_ context.Context, serviceID string, priority domain.IncidentPriority) (*domain.SLAObjective, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.objectives[objectiveKey{serviceID: serviceID, priority: priority}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &o, nil
}

func (r *objectiveRepo) Upsert(_ context.Context, objective *domain.SLAObjective) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.objectives[objectiveKey{serviceID: objective.ServiceID, priority: objective.Priority}] = *objective
	return nil
}
