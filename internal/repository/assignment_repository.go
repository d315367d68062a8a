package repository

import (
	"context"

	"github.com/spec-kit/incident-service/internal/domain"
)

type assignmentRepository struct {
	db querier
}

// NewAssignmentRepository builds repository.
func NewAssignmentRepository(db querier) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) Create(ctx context.Context, assignment *domain.Assignment) error {
	const query = `
        INSERT INTO assignments (incident_id, technician_id, assigned_at, active)
        VALUES ($1,$2,$3,$4)
        RETURNING id`
	err := r.db.QueryRow(ctx, query,
		assignment.IncidentID,
		assignment.TechnicianID,
		assignment.AssignedAt,
		assignment.Active,
	).Scan(&assignment.ID)
	return translateError(err)
}

func (r *assignmentRepository) GetActive(ctx context.Context, incidentID string) (*domain.Assignment, error) {
	const query = `
        SELECT id, incident_id, technician_id, assigned_at, active
        FROM assignments WHERE incident_id=$1 AND active`
	if !validID(incidentID) {
		return nil, ErrNotFound
	}
	var a domain.Assignment
	if err := r.db.QueryRow(ctx, query, incidentID).Scan(
		&a.ID, &a.IncidentID, &a.TechnicianID, &a.AssignedAt, &a.Active,
	); err != nil {
		return nil, translateError(err)
	}
	return &a, nil
}

func (r *assignmentRepository) DeactivateActive(ctx context.Context, incidentID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `UPDATE assignments SET active=false WHERE incident_id=$1 AND active`, incidentID)
	if err != nil {
		return 0, translateError(err)
	}
	return tag.RowsAffected(), nil
}

func (r *assignmentRepository) ListByIncident(ctx context.Context, incidentID string) ([]domain.Assignment, error) {
	const query = `
        SELECT id, incident_id, technician_id, assigned_at, active
        FROM assignments WHERE incident_id=$1
        ORDER BY assigned_at ASC, id ASC`
	if !validID(incidentID) {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, query, incidentID)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	var result []domain.Assignment
	for rows.Next() {
		var a domain.Assignment
		if err := rows.Scan(&a.ID, &a.IncidentID, &a.TechnicianID, &a.AssignedAt, &a.Active); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}
