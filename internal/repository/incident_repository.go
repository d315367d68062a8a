package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/incident-service/internal/domain"
)

const incidentColumns = `id, external_key, reporter_id, title, description, status, support_level, priority,
               category, service_id, created_at, updated_at, assigned_at, first_response_at,
               resolved_at, closed_at, escalated_at, version`

type incidentRepository struct {
	db querier
}

// NewIncidentRepository instantiates repository.
func NewIncidentRepository(db querier) IncidentRepository {
	return &incidentRepository{db: db}
}

func (r *incidentRepository) Create(ctx context.Context, incident *domain.Incident) error {
	const query = `
        INSERT INTO incidents (external_key, reporter_id, title, description, status, support_level, priority,
                               category, service_id, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)
        RETURNING id, updated_at, version`
	err := r.db.QueryRow(ctx, query,
		incident.ExternalKey,
		incident.ReporterID,
		incident.Title,
		incident.Description,
		incident.Status,
		incident.SupportLevel,
		incident.Priority,
		incident.Category,
		incident.ServiceID,
		incident.CreatedAt,
	).Scan(&incident.ID, &incident.UpdatedAt, &incident.Version)
	return translateError(err)
}

func (r *incidentRepository) GetByID(ctx context.Context, id string) (*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *incidentRepository) GetForUpdate(ctx context.Context, id string) (*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id=$1 FOR UPDATE`
	return r.fetchSingle(ctx, query, id)
}

func (r *incidentRepository) fetchSingle(ctx context.Context, query string, id string) (*domain.Incident, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	incident, err := scanIncident(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translateError(err)
	}
	return incident, nil
}

func (r *incidentRepository) ListOpen(ctx context.Context) ([]domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents
        WHERE status IN ('OPEN','ASSIGNED','IN_PROGRESS')
        ORDER BY created_at ASC, id ASC`
	return r.list(ctx, query)
}

func (r *incidentRepository) ListAll(ctx context.Context) ([]domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents ORDER BY created_at ASC, id ASC`
	return r.list(ctx, query)
}

func (r *incidentRepository) list(ctx context.Context, query string, args ...any) ([]domain.Incident, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	var result []domain.Incident
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *incident)
	}
	return result, rows.Err()
}

func (r *incidentRepository) Update(ctx context.Context, incident *domain.Incident) error {
	const query = `
        UPDATE incidents SET title=$1, description=$2, status=$3, support_level=$4, priority=$5, category=$6,
            service_id=$7, assigned_at=$8, first_response_at=$9, resolved_at=$10, closed_at=$11, escalated_at=$12,
            updated_at=NOW(), version=version+1
        WHERE id=$13 AND version=$14
        RETURNING updated_at, version`
	err := r.db.QueryRow(ctx, query,
		incident.Title,
		incident.Description,
		incident.Status,
		incident.SupportLevel,
		incident.Priority,
		incident.Category,
		incident.ServiceID,
		incident.AssignedAt,
		incident.FirstResponseAt,
		incident.ResolvedAt,
		incident.ClosedAt,
		incident.EscalatedAt,
		incident.ID,
		incident.Version,
	).Scan(&incident.UpdatedAt, &incident.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the row is gone or another writer bumped the version first.
		return ErrConflict
	}
	return translateError(err)
}

func (r *incidentRepository) CountByCategory(ctx context.Context, category domain.Category, since time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM incidents WHERE category=$1 AND ($2::timestamptz IS NULL OR created_at >= $2)`
	var sinceArg *time.Time
	if !since.IsZero() {
		sinceArg = &since
	}
	var count int
	if err := r.db.QueryRow(ctx, query, category, sinceArg).Scan(&count); err != nil {
		return 0, translateError(err)
	}
	return count, nil
}

func scanIncident(row pgx.Row) (*domain.Incident, error) {
	var incident domain.Incident
	if err := row.Scan(
		&incident.ID,
		&incident.ExternalKey,
		&incident.ReporterID,
		&incident.Title,
		&incident.Description,
		&incident.Status,
		&incident.SupportLevel,
		&incident.Priority,
		&incident.Category,
		&incident.ServiceID,
		&incident.CreatedAt,
		&incident.UpdatedAt,
		&incident.AssignedAt,
		&incident.FirstResponseAt,
		&incident.ResolvedAt,
		&incident.ClosedAt,
		&incident.EscalatedAt,
		&incident.Version,
	); err != nil {
		return nil, err
	}
	return &incident, nil
}
