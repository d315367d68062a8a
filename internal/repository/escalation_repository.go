package repository

import (
	"context"

	"github.com/spec-kit/incident-service/internal/domain"
)

type escalationRepository struct {
	db querier
}

// NewEscalationRepository builds the escalation trail repository.
func NewEscalationRepository(db querier) EscalationRepository {
	return &escalationRepository{db: db}
}

func (r *escalationRepository) Create(ctx context.Context, record *domain.EscalationRecord) error {
	const query = `
        INSERT INTO escalation_records (incident_id, level_from, level_to, reason, automatic, trigger, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id`
	err := r.db.QueryRow(ctx, query,
		record.IncidentID,
		record.LevelFrom,
		record.LevelTo,
		record.Reason,
		record.Automatic,
		record.Trigger,
		record.CreatedAt,
	).Scan(&record.ID)
	return translateError(err)
}

func (r *escalationRepository) ListByIncident(ctx context.Context, incidentID string) ([]domain.EscalationRecord, error) {
	const query = `
        SELECT id, incident_id, level_from, level_to, reason, automatic, trigger, created_at
        FROM escalation_records WHERE incident_id=$1
        ORDER BY created_at ASC, id ASC`
	if !validID(incidentID) {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, query, incidentID)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	var records []domain.EscalationRecord
	for rows.Next() {
		var rec domain.EscalationRecord
		if err := rows.Scan(
			&rec.ID, &rec.IncidentID, &rec.LevelFrom, &rec.LevelTo,
			&rec.Reason, &rec.Automatic, &rec.Trigger, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
