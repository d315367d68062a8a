package repository

import (
	"context"

	"github.com/spec-kit/incident-service/internal/domain"
)

type technicianRepository struct {
	db querier
}

// NewTechnicianRepository creates a technician directory backed by Postgres.
func NewTechnicianRepository(db querier) TechnicianRepository {
	return &technicianRepository{db: db}
}

func (r *technicianRepository) Create(ctx context.Context, technician *domain.Technician) error {
	const query = `
        INSERT INTO technicians (name, email, support_level, role, active, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id`
	err := r.db.QueryRow(ctx, query,
		technician.Name,
		technician.Email,
		technician.SupportLevel,
		technician.Role,
		technician.Active,
		technician.CreatedAt,
	).Scan(&technician.ID)
	return translateError(err)
}

func (r *technicianRepository) GetByID(ctx context.Context, id string) (*domain.Technician, error) {
	const query = `
        SELECT id, name, email, support_level, role, active, created_at
        FROM technicians WHERE id=$1`
	if !validID(id) {
		return nil, ErrNotFound
	}
	var t domain.Technician
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.Name, &t.Email, &t.SupportLevel, &t.Role, &t.Active, &t.CreatedAt,
	); err != nil {
		return nil, translateError(err)
	}
	return &t, nil
}

func (r *technicianRepository) ListActiveBySupportLevel(ctx context.Context, level domain.SupportLevel) ([]domain.Technician, error) {
	const query = `
        SELECT id, name, email, support_level, role, active, created_at
        FROM technicians WHERE support_level=$1 AND active
        ORDER BY created_at ASC, id ASC`
	rows, err := r.db.Query(ctx, query, level)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	var result []domain.Technician
	for rows.Next() {
		var t domain.Technician
		if err := rows.Scan(&t.ID, &t.Name, &t.Email, &t.SupportLevel, &t.Role, &t.Active, &t.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (r *technicianRepository) ActiveAssignmentCount(ctx context.Context, technicianID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM assignments WHERE technician_id=$1 AND active`, technicianID).Scan(&count)
	if err != nil {
		return 0, translateError(err)
	}
	return count, nil
}
