package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"careledger/internal/audit/models"
	registrymodels "careledger/internal/registry/models"
	id "careledger/pkg/domain"
	txcontext "careledger/pkg/platform/tx"
)

// PostgresStore persists the audit trail in PostgreSQL. The table carries no
// UPDATE or DELETE path; immutability is also enforced by a trigger in the
// schema.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed audit store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const actionColumns = `
	id, target_kind, target_id, registry_code,
	action, from_status, to_status, reason,
	actor_id, occurred_at
`

// Append adds a record inside the caller's transaction.
func (s *PostgresStore) Append(ctx context.Context, rec *models.RegistryAction) error {
	query := `
		INSERT INTO registry_actions (` + actionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(rec.ID),
		string(rec.TargetKind),
		rec.TargetID,
		string(rec.RegistryCode),
		string(rec.Action),
		rec.FromStatus,
		rec.ToStatus,
		rec.Reason,
		rec.ActorID,
		rec.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("append registry action: %w", err)
	}
	return nil
}

// ListByTarget returns all records for one registrant, newest first.
func (s *PostgresStore) ListByTarget(ctx context.Context, kind id.RegistrantKind, targetID uuid.UUID) ([]*models.RegistryAction, error) {
	query := `
		SELECT ` + actionColumns + `
		FROM registry_actions
		WHERE target_kind = $1 AND target_id = $2
		ORDER BY occurred_at DESC, id DESC
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, string(kind), targetID)
	if err != nil {
		return nil, fmt.Errorf("list registry actions: %w", err)
	}
	defer rows.Close()
	return collectActions(rows)
}

// ListRecent returns the most recent records across all registrants.
func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]*models.RegistryAction, error) {
	query := `
		SELECT ` + actionColumns + `
		FROM registry_actions
		ORDER BY occurred_at DESC, id DESC
		LIMIT $1
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent registry actions: %w", err)
	}
	defer rows.Close()
	return collectActions(rows)
}

func collectActions(rows *sql.Rows) ([]*models.RegistryAction, error) {
	var out []*models.RegistryAction
	for rows.Next() {
		var (
			rec      models.RegistryAction
			actionID uuid.UUID
			kind     string
			code     string
			action   string
		)
		if err := rows.Scan(
			&actionID,
			&kind,
			&rec.TargetID,
			&code,
			&action,
			&rec.FromStatus,
			&rec.ToStatus,
			&rec.Reason,
			&rec.ActorID,
			&rec.OccurredAt,
		); err != nil {
			return nil, fmt.Errorf("scan registry action: %w", err)
		}
		rec.ID = id.ActionID(actionID)
		rec.TargetKind = id.RegistrantKind(kind)
		rec.RegistryCode = id.RegistryCode(code)
		rec.Action = registrymodels.ActionType(action)
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registry actions: %w", err)
	}
	return out, nil
}
