package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/incident-service/internal/domain"
)

type stubObjectives struct {
	objective *domain.SLAObjective
	err       error
	gets      int
	upserts   int
}

func (s *stubObjectives) Get(_ context.Context, _ string, _ domain.IncidentPriority) (*domain.SLAObjective, error) {
	s.gets++
	if s.err != nil {
		return nil, s.err
	}
	o := *s.objective
	return &o, nil
}

func (s *stubObjectives) Upsert(_ context.Context, o *domain.SLAObjective) error {
	s.upserts++
	s.objective = o
	return nil
}

func TestCachedObjectiveRepository_MissFillsCache(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	objective := &domain.SLAObjective{ServiceID: "svc-mail", Priority: domain.PriorityP2, FirstResponseMinutes: 30, ResolutionMinutes: 240}
	backing := &stubObjectives{objective: objective}
	repo := NewCachedObjectiveRepository(backing, client, time.Minute, nil)

	payload, err := json.Marshal(toCachedObjective(objective))
	require.NoError(t, err)

	key := "sla:objective:svc-mail:P2"
	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, payload, time.Minute).SetVal("OK")

	got, err := repo.Get(ctx, "svc-mail", domain.PriorityP2)
	require.NoError(t, err)
	assert.Equal(t, objective, got)
	assert.Equal(t, 1, backing.gets)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedObjectiveRepository_HitSkipsBackingStore(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	backing := &stubObjectives{err: errors.New("must not be called")}
	repo := NewCachedObjectiveRepository(backing, client, time.Minute, nil)

	payload, err := json.Marshal(cachedObjective{ServiceID: "svc-mail", Priority: "P1", FirstResponseMinutes: 15, ResolutionMinutes: 60})
	require.NoError(t, err)
	mock.ExpectGet("sla:objective:svc-mail:P1").SetVal(string(payload))

	got, err := repo.Get(ctx, "svc-mail", domain.PriorityP1)
	require.NoError(t, err)
	assert.Equal(t, 15, got.FirstResponseMinutes)
	assert.Equal(t, 60, got.ResolutionMinutes)
	assert.Equal(t, domain.PriorityP1, got.Priority)
	assert.Zero(t, backing.gets)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedObjectiveRepository_RedisDownFallsBack(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	objective := &domain.SLAObjective{ServiceID: "svc", Priority: domain.PriorityP3, FirstResponseMinutes: 60, ResolutionMinutes: 480}
	backing := &stubObjectives{objective: objective}
	repo := NewCachedObjectiveRepository(backing, client, time.Minute, nil)

	payload, err := json.Marshal(toCachedObjective(objective))
	require.NoError(t, err)
	mock.ExpectGet("sla:objective:svc:P3").SetErr(errors.New("connection refused"))
	mock.ExpectSet("sla:objective:svc:P3", payload, time.Minute).SetErr(errors.New("connection refused"))

	got, err := repo.Get(ctx, "svc", domain.PriorityP3)
	require.NoError(t, err)
	assert.Equal(t, objective, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedObjectiveRepository_NotFoundPropagates(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := NewCachedObjectiveRepository(&stubObjectives{err: ErrNotFound}, client, time.Minute, nil)

	mock.ExpectGet("sla:objective:none:P4").RedisNil()

	_, err := repo.Get(context.Background(), "none", domain.PriorityP4)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedObjectiveRepository_UpsertInvalidates(t *testing.T) {
	client, mock := redismock.NewClientMock()
	backing := &stubObjectives{}
	repo := NewCachedObjectiveRepository(backing, client, time.Minute, nil)

	mock.ExpectDel("sla:objective:svc:P5").SetVal(1)

	err := repo.Upsert(context.Background(), &domain.SLAObjective{ServiceID: "svc", Priority: domain.PriorityP5, FirstResponseMinutes: 120, ResolutionMinutes: 2880})
	require.NoError(t, err)
	assert.Equal(t, 1, backing.upserts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTranslateError(t *testing.T) {
	assert.Nil(t, translateError(nil))
	assert.ErrorIs(t, translateError(pgxNoRows()), ErrNotFound)
	assert.ErrorIs(t, translateError(pgError("40001")), ErrConflict)
	assert.ErrorIs(t, translateError(pgError("23505")), ErrConflict)
	assert.ErrorIs(t, translateError(pgError("22P02")), ErrNotFound)

	other := pgError("23502")
	assert.Equal(t, other, translateError(other))
}
