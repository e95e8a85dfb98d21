package caregiver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"careledger/internal/registry/models"
	id "careledger/pkg/domain"
	"careledger/pkg/platform/sentinel"
	txcontext "careledger/pkg/platform/tx"
)

// PostgresStore persists caregiver memberships in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed caregiver store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// execer returns the context transaction when inside a unit of work,
// otherwise the pool. Transition writes always run inside a transaction.
func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const caregiverColumns = `
	id, registry_code, profile_id, full_name, category, specialization, affiliation,
	status, active, cpd_compliant, founding_member, recap_paid,
	joined_at, expires_at, status_reason, status_changed_at,
	version, created_at, updated_at
`

// Create inserts a new membership. Fails with ErrAlreadyUsed if the registry
// code or ID is taken.
func (s *PostgresStore) Create(ctx context.Context, m *models.CaregiverMembership) error {
	query := `
		INSERT INTO caregiver_memberships (` + caregiverColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(m.ID),
		string(m.RegistryCode),
		uuid.UUID(m.ProfileID),
		m.FullName,
		string(m.Category),
		m.Specialization,
		m.Affiliation,
		string(m.Status),
		m.Active,
		m.CPDCompliant,
		m.FoundingMember,
		m.RecapPaid,
		m.JoinedAt,
		m.ExpiresAt,
		m.StatusReason,
		m.StatusChangedAt,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("registry code must be unique: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create caregiver membership: %w", err)
	}
	return nil
}

// FindByID retrieves a membership by internal ID.
func (s *PostgresStore) FindByID(ctx context.Context, caregiverID id.CaregiverID) (*models.CaregiverMembership, error) {
	query := `SELECT ` + caregiverColumns + ` FROM caregiver_memberships WHERE id = $1`
	m, err := scanCaregiver(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(caregiverID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find caregiver by id: %w", err)
	}
	return m, nil
}

// FindByCode retrieves a membership by public registry code.
func (s *PostgresStore) FindByCode(ctx context.Context, code id.RegistryCode) (*models.CaregiverMembership, error) {
	query := `SELECT ` + caregiverColumns + ` FROM caregiver_memberships WHERE registry_code = $1`
	m, err := scanCaregiver(s.execer(ctx).QueryRowContext(ctx, query, string(code)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find caregiver by code: %w", err)
	}
	return m, nil
}

// SearchByName returns memberships whose full name contains the query,
// case-insensitively.
func (s *PostgresStore) SearchByName(ctx context.Context, query string) ([]*models.CaregiverMembership, error) {
	stmt := `
		SELECT ` + caregiverColumns + `
		FROM caregiver_memberships
		WHERE full_name ILIKE '%' || $1 || '%'
		ORDER BY full_name
	`
	rows, err := s.execer(ctx).QueryContext(ctx, stmt, query)
	if err != nil {
		return nil, fmt.Errorf("search caregivers by name: %w", err)
	}
	defer rows.Close()

	var out []*models.CaregiverMembership
	for rows.Next() {
		m, err := scanCaregiver(rows)
		if err != nil {
			return nil, fmt.Errorf("scan caregiver: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate caregivers: %w", err)
	}
	return out, nil
}

// UpdateVersioned persists a mutated membership if the row version still
// matches expectedVersion. A zero-row update against an existing row means a
// concurrent transition won the race.
func (s *PostgresStore) UpdateVersioned(ctx context.Context, m *models.CaregiverMembership, expectedVersion int) error {
	query := `
		UPDATE caregiver_memberships
		SET status = $3, active = $4, cpd_compliant = $5,
		    status_reason = $6, status_changed_at = $7,
		    expires_at = $8, recap_paid = $9,
		    version = version + 1, updated_at = $10
		WHERE id = $1 AND version = $2
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(m.ID),
		expectedVersion,
		string(m.Status),
		m.Active,
		m.CPDCompliant,
		m.StatusReason,
		m.StatusChangedAt,
		m.ExpiresAt,
		m.RecapPaid,
		m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update caregiver membership: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update caregiver membership rows: %w", err)
	}
	if rows == 0 {
		if _, err := s.FindByID(ctx, m.ID); errors.Is(err, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrStaleVersion
	}
	m.Version = expectedVersion + 1
	return nil
}

type caregiverRow interface {
	Scan(dest ...any) error
}

func scanCaregiver(row caregiverRow) (*models.CaregiverMembership, error) {
	var (
		m            models.CaregiverMembership
		caregiverID  uuid.UUID
		profileID    uuid.UUID
		code         string
		category     string
		status       string
	)
	if err := row.Scan(
		&caregiverID,
		&code,
		&profileID,
		&m.FullName,
		&category,
		&m.Specialization,
		&m.Affiliation,
		&status,
		&m.Active,
		&m.CPDCompliant,
		&m.FoundingMember,
		&m.RecapPaid,
		&m.JoinedAt,
		&m.ExpiresAt,
		&m.StatusReason,
		&m.StatusChangedAt,
		&m.Version,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	m.ID = id.CaregiverID(caregiverID)
	m.ProfileID = id.ProfileID(profileID)
	m.RegistryCode = id.RegistryCode(code)
	m.Category = models.MembershipCategory(category)
	m.Status = models.CaregiverStatus(status)
	return &m, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
