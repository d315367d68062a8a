package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/incident-service/internal/domain"
)

type objectiveRepository struct {
	db querier
}

// NewObjectiveRepository returns the Postgres backed SLA objective store.
func NewObjectiveRepository(pool *pgxpool.Pool) ObjectiveRepository {
	return &objectiveRepository{db: pool}
}

func (r *objectiveRepository) Get(ctx context.Context, serviceID string, priority domain.IncidentPriority) (*domain.SLAObjective, error) {
	const query = `
        SELECT service_id, priority, first_response_minutes, resolution_minutes
        FROM sla_objectives WHERE service_id=$1 AND priority=$2`
	var o domain.SLAObjective
	if err := r.db.QueryRow(ctx, query, serviceID, priority).Scan(
		&o.ServiceID, &o.Priority, &o.FirstResponseMinutes, &o.ResolutionMinutes,
	); err != nil {
		return nil, translateError(err)
	}
	return &o, nil
}

func (r *objectiveRepository) Upsert(ctx context.Context, objective *domain.SLAObjective) error {
	const query = `
        INSERT INTO sla_objectives (service_id, priority, first_response_minutes, resolution_minutes)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (service_id, priority)
        DO UPDATE SET first_response_minutes=EXCLUDED.first_response_minutes,
                      resolution_minutes=EXCLUDED.resolution_minutes`
	_, err := r.db.Exec(ctx, query,
		objective.ServiceID,
		objective.Priority,
		objective.FirstResponseMinutes,
		objective.ResolutionMinutes,
	)
	return translateError(err)
}
