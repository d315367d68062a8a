package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/repository"
)

var base = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newIncident(createdAt time.Time, category domain.Category) *domain.Incident {
	return &domain.Incident{
		Title:        "printer offline",
		Status:       domain.IncidentStatusOpen,
		SupportLevel: domain.SupportLevel1,
		Priority:     domain.PriorityP3,
		Category:     category,
		ServiceID:    "svc-print",
		CreatedAt:    createdAt,
	}
}

func TestIncidentUpdate_VersionCheck(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repos := store.Repositories()

	inc := newIncident(base, domain.CategoryHardware)
	require.NoError(t, repos.Incidents.Create(ctx, inc))
	require.NotEmpty(t, inc.ID)
	assert.EqualValues(t, 1, inc.Version)

	first, err := repos.Incidents.GetByID(ctx, inc.ID)
	require.NoError(t, err)
	second, err := repos.Incidents.GetByID(ctx, inc.ID)
	require.NoError(t, err)

	first.Status = domain.IncidentStatusAssigned
	require.NoError(t, repos.Incidents.Update(ctx, first))
	assert.EqualValues(t, 2, first.Version)

	second.Status = domain.IncidentStatusAssigned
	assert.ErrorIs(t, repos.Incidents.Update(ctx, second), repository.ErrConflict)
}

func TestIncidentGet_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repos := store.Repositories()

	inc := newIncident(base, domain.CategoryNetwork)
	require.NoError(t, repos.Incidents.Create(ctx, inc))

	got, err := repos.Incidents.GetByID(ctx, inc.ID)
	require.NoError(t, err)
	got.Title = "mutated"

	again, err := repos.Incidents.GetByID(ctx, inc.ID)
	require.NoError(t, err)
	assert.Equal(t, "printer offline", again.Title)

	_, err = repos.Incidents.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	inc := newIncident(base, domain.CategoryNetwork)
	require.NoError(t, store.Repositories().Incidents.Create(ctx, inc))

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		loaded, err := repos.Incidents.GetForUpdate(ctx, inc.ID)
		if err != nil {
			return err
		}
		loaded.SupportLevel = domain.SupportLevel2
		if err := repos.Incidents.Update(ctx, loaded); err != nil {
			return err
		}
		if err := repos.Escalations.Create(ctx, &domain.EscalationRecord{IncidentID: inc.ID, LevelFrom: 1, LevelTo: 2}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.Repositories().Incidents.GetByID(ctx, inc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SupportLevel1, got.SupportLevel)
	assert.EqualValues(t, 1, got.Version)

	records, err := store.Repositories().Escalations.ListByIncident(ctx, inc.ID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestWithinTx_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := NewStore().WithinTx(ctx, func(context.Context, repository.Repositories) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestAssignments_SingleActivePerIncident(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()

	require.NoError(t, repos.Assignments.Create(ctx, &domain.Assignment{IncidentID: "i1", TechnicianID: "t1", AssignedAt: base, Active: true}))
	err := repos.Assignments.Create(ctx, &domain.Assignment{IncidentID: "i1", TechnicianID: "t2", AssignedAt: base, Active: true})
	assert.ErrorIs(t, err, repository.ErrConflict)

	n, err := repos.Assignments.DeactivateActive(ctx, "i1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	require.NoError(t, repos.Assignments.Create(ctx, &domain.Assignment{IncidentID: "i1", TechnicianID: "t2", AssignedAt: base.Add(time.Minute), Active: true}))

	active, err := repos.Assignments.GetActive(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, "t2", active.TechnicianID)

	history, err := repos.Assignments.ListByIncident(ctx, "i1")
	require.NoError(t, err)
	assert.Len(t, history, 2)

	count, err := repos.Technicians.ActiveAssignmentCount(ctx, "t1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestTechnicians_ListedOldestFirst(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()

	for i, name := range []string{"carol", "alice", "bob"} {
		require.NoError(t, repos.Technicians.Create(ctx, &domain.Technician{
			Name:         name,
			SupportLevel: domain.SupportLevel1,
			Role:         domain.TechnicianRoleTechnician,
			Active:       name != "bob",
			CreatedAt:    base.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, repos.Technicians.Create(ctx, &domain.Technician{Name: "dave", SupportLevel: domain.SupportLevel2, Active: true, CreatedAt: base}))

	techs, err := repos.Technicians.ListActiveBySupportLevel(ctx, domain.SupportLevel1)
	require.NoError(t, err)
	require.Len(t, techs, 2)
	assert.Equal(t, "carol", techs[0].Name)
	assert.Equal(t, "alice", techs[1].Name)
}

func TestIncidents_CountAndListOpen(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()

	old := newIncident(base.Add(-40*24*time.Hour), domain.CategoryNetwork)
	recent := newIncident(base.Add(-time.Hour), domain.CategoryNetwork)
	other := newIncident(base, domain.CategoryAccess)
	for _, inc := range []*domain.Incident{recent, old, other} {
		require.NoError(t, repos.Incidents.Create(ctx, inc))
	}

	count, err := repos.Incidents.CountByCategory(ctx, domain.CategoryNetwork, base.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = repos.Incidents.CountByCategory(ctx, domain.CategoryNetwork, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	other.Status = domain.IncidentStatusResolved
	require.NoError(t, repos.Incidents.Update(ctx, other))

	open, err := repos.Incidents.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, old.ID, open[0].ID)
	assert.Equal(t, recent.ID, open[1].ID)
}

func TestObjectives(t *testing.T) {
	ctx := context.Background()
	objectives := NewStore().Objectives()

	_, err := objectives.Get(ctx, "svc", domain.PriorityP1)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, objectives.Upsert(ctx, &domain.SLAObjective{ServiceID: "svc", Priority: domain.PriorityP1, FirstResponseMinutes: 15, ResolutionMinutes: 60}))
	got, err := objectives.Get(ctx, "svc", domain.PriorityP1)
	require.NoError(t, err)
	assert.Equal(t, 60, got.ResolutionMinutes)
}
