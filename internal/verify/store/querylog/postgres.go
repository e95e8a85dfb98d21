package querylog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"careledger/internal/verify/models"
)

// PostgresStore persists verification query logs in PostgreSQL. Writes run
// outside the verification read path's latency budget concerns; the table is
// append-only.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed query log.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Append adds a log record.
func (s *PostgresStore) Append(ctx context.Context, q *models.VerificationQuery) error {
	query := `
		INSERT INTO verification_queries (
			id, query_type, query_value, outcome,
			matched_kind, matched_id,
			client_ip, user_agent_raw, browser, os, bot,
			occurred_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	var matchedKind *string
	if q.MatchedKind != nil {
		k := string(*q.MatchedKind)
		matchedKind = &k
	}
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(q.ID),
		string(q.QueryType),
		q.QueryValue,
		string(q.Outcome),
		matchedKind,
		q.MatchedID,
		q.ClientIP,
		q.UserAgentRaw,
		q.Browser,
		q.OS,
		q.Bot,
		q.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("append verification query: %w", err)
	}
	return nil
}

// CountByOutcomeSince returns query counts per outcome after the cutoff.
// Feeds the admin usage view.
func (s *PostgresStore) CountByOutcomeSince(ctx context.Context, since time.Time) (map[models.QueryOutcome]int64, error) {
	query := `
		SELECT outcome, COUNT(*)
		FROM verification_queries
		WHERE occurred_at >= $1
		GROUP BY outcome
	`
	rows, err := s.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("count verification queries: %w", err)
	}
	defer rows.Close()

	out := make(map[models.QueryOutcome]int64)
	for rows.Next() {
		var (
			outcome string
			count   int64
		)
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, fmt.Errorf("scan verification query count: %w", err)
		}
		out[models.QueryOutcome(outcome)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verification query counts: %w", err)
	}
	return out, nil
}
