package facility

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

// PostgresStore persists facility registrations in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed facility store.
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

const facilityColumns = `
	id, registry_code, legal_name, registration_number, facility_type,
	address_line, city, region, capacity, owner_id,
	status, compliance_score, last_inspection_at, next_inspection_at,
	status_reason, status_changed_at,
	version, created_at, updated_at
`

// Create inserts a new registration. Fails with ErrAlreadyUsed if the registry
// code or registration number is taken.
func (s *PostgresStore) Create(ctx context.Context, f *models.FacilityRegistration) error {
	query := `
		INSERT INTO facility_registrations (` + facilityColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(f.ID),
		string(f.RegistryCode),
		f.LegalName,
		f.RegistrationNumber,
		f.FacilityType,
		f.AddressLine,
		f.City,
		f.Region,
		f.Capacity,
		uuid.UUID(f.OwnerID),
		string(f.Status),
		f.ComplianceScore,
		f.LastInspectionAt,
		f.NextInspectionAt,
		f.StatusReason,
		f.StatusChangedAt,
		f.Version,
		f.CreatedAt,
		f.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("registry code and registration number must be unique: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create facility registration: %w", err)
	}
	return nil
}

// FindByID retrieves a registration by internal ID.
func (s *PostgresStore) FindByID(ctx context.Context, facilityID id.FacilityID) (*models.FacilityRegistration, error) {
	query := `SELECT ` + facilityColumns + ` FROM facility_registrations WHERE id = $1`
	f, err := scanFacility(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(facilityID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find facility by id: %w", err)
	}
	return f, nil
}

// FindByCode retrieves a registration by public registry code.
func (s *PostgresStore) FindByCode(ctx context.Context, code id.RegistryCode) (*models.FacilityRegistration, error) {
	query := `SELECT ` + facilityColumns + ` FROM facility_registrations WHERE registry_code = $1`
	f, err := scanFacility(s.execer(ctx).QueryRowContext(ctx, query, string(code)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find facility by code: %w", err)
	}
	return f, nil
}

// FindByRegistrationNumber retrieves a registration by its legal registration number.
func (s *PostgresStore) FindByRegistrationNumber(ctx context.Context, number string) (*models.FacilityRegistration, error) {
	query := `SELECT ` + facilityColumns + ` FROM facility_registrations WHERE registration_number = $1`
	f, err := scanFacility(s.execer(ctx).QueryRowContext(ctx, query, number))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find facility by registration number: %w", err)
	}
	return f, nil
}

// SearchByName returns registrations whose legal name contains the query,
// case-insensitively.
func (s *PostgresStore) SearchByName(ctx context.Context, query string) ([]*models.FacilityRegistration, error) {
	stmt := `
		SELECT ` + facilityColumns + `
		FROM facility_registrations
		WHERE legal_name ILIKE '%' || $1 || '%'
		ORDER BY legal_name
	`
	rows, err := s.execer(ctx).QueryContext(ctx, stmt, query)
	if err != nil {
		return nil, fmt.Errorf("search facilities by name: %w", err)
	}
	defer rows.Close()

	var out []*models.FacilityRegistration
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, fmt.Errorf("scan facility: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate facilities: %w", err)
	}
	return out, nil
}

// UpdateVersioned persists a mutated registration if the row version still
// matches expectedVersion.
func (s *PostgresStore) UpdateVersioned(ctx context.Context, f *models.FacilityRegistration, expectedVersion int) error {
	query := `
		UPDATE facility_registrations
		SET status = $3, compliance_score = $4,
		    last_inspection_at = $5, next_inspection_at = $6,
		    status_reason = $7, status_changed_at = $8,
		    version = version + 1, updated_at = $9
		WHERE id = $1 AND version = $2
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(f.ID),
		expectedVersion,
		string(f.Status),
		f.ComplianceScore,
		f.LastInspectionAt,
		f.NextInspectionAt,
		f.StatusReason,
		f.StatusChangedAt,
		f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update facility registration: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update facility registration rows: %w", err)
	}
	if rows == 0 {
		if _, err := s.FindByID(ctx, f.ID); errors.Is(err, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrStaleVersion
	}
	f.Version = expectedVersion + 1
	return nil
}

type facilityRow interface {
	Scan(dest ...any) error
}

func scanFacility(row facilityRow) (*models.FacilityRegistration, error) {
	var (
		f          models.FacilityRegistration
		facilityID uuid.UUID
		ownerID    uuid.UUID
		code       string
		status     string
	)
	if err := row.Scan(
		&facilityID,
		&code,
		&f.LegalName,
		&f.RegistrationNumber,
		&f.FacilityType,
		&f.AddressLine,
		&f.City,
		&f.Region,
		&f.Capacity,
		&ownerID,
		&status,
		&f.ComplianceScore,
		&f.LastInspectionAt,
		&f.NextInspectionAt,
		&f.StatusReason,
		&f.StatusChangedAt,
		&f.Version,
		&f.CreatedAt,
		&f.UpdatedAt,
	); err != nil {
		return nil, err
	}
	f.ID = id.FacilityID(facilityID)
	f.OwnerID = id.ProfileID(ownerID)
	f.RegistryCode = id.RegistryCode(code)
	f.Status = models.FacilityStatus(status)
	return &f, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
