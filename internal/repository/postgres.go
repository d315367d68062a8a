package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"

	pgInvalidTextRepresentation = "22P02"
)

// validID reports whether id can be bound to a uuid column. Anything else
// cannot name a stored row.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewRepositories builds pool-backed repositories for non-transactional use.
func NewRepositories(pool *pgxpool.Pool) Repositories {
	return repositoriesOn(pool)
}

func repositoriesOn(db querier) Repositories {
	return Repositories{
		Incidents:   &incidentRepository{db: db},
		Assignments: &assignmentRepository{db: db},
		Technicians: &technicianRepository{db: db},
		Escalations: &escalationRepository{db: db},
	}
}

type pgTxManager struct {
	pool *pgxpool.Pool
}

// NewTxManager returns a TxManager running serializable Postgres transactions.
func NewTxManager(pool *pgxpool.Pool) TxManager {
	return &pgTxManager{pool: pool}
}

func (m *pgTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return translateError(err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, repositoriesOn(tx)); err != nil {
		return translateError(err)
	}
	return translateError(tx.Commit(ctx))
}

// translateError maps driver errors onto repository sentinels.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgUniqueViolation:
			return errors.Join(ErrConflict, err)
		case pgInvalidTextRepresentation:
			return ErrNotFound
		}
	}
	return err
}
