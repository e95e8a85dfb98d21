// Package service implements registry administration: onboarding registrants
// and applying status transitions with an atomic audit trail.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	auditmodels "careledger/internal/audit/models"
	"careledger/internal/notices/outbox"
	"careledger/internal/registry/metrics"
	"careledger/internal/registry/models"
	id "careledger/pkg/domain"
	dErrors "careledger/pkg/domain-errors"
	"careledger/pkg/platform/sentinel"
	"careledger/pkg/requestcontext"
)

// CaregiverStore is the persistence contract for caregiver memberships.
type CaregiverStore interface {
	Create(ctx context.Context, m *models.CaregiverMembership) error
	FindByID(ctx context.Context, caregiverID id.CaregiverID) (*models.CaregiverMembership, error)
	FindByCode(ctx context.Context, code id.RegistryCode) (*models.CaregiverMembership, error)
	SearchByName(ctx context.Context, query string) ([]*models.CaregiverMembership, error)
	UpdateVersioned(ctx context.Context, m *models.CaregiverMembership, expectedVersion int) error
}

// FacilityStore is the persistence contract for facility registrations.
type FacilityStore interface {
	Create(ctx context.Context, f *models.FacilityRegistration) error
	FindByID(ctx context.Context, facilityID id.FacilityID) (*models.FacilityRegistration, error)
	FindByCode(ctx context.Context, code id.RegistryCode) (*models.FacilityRegistration, error)
	FindByRegistrationNumber(ctx context.Context, number string) (*models.FacilityRegistration, error)
	SearchByName(ctx context.Context, query string) ([]*models.FacilityRegistration, error)
	UpdateVersioned(ctx context.Context, f *models.FacilityRegistration, expectedVersion int) error
}

// AuditStore is the persistence contract for the append-only action trail.
type AuditStore interface {
	Append(ctx context.Context, rec *auditmodels.RegistryAction) error
	ListByTarget(ctx context.Context, kind id.RegistrantKind, targetID uuid.UUID) ([]*auditmodels.RegistryAction, error)
	ListRecent(ctx context.Context, limit int) ([]*auditmodels.RegistryAction, error)
}

// NoticeOutbox accepts registry notices for asynchronous publishing.
type NoticeOutbox interface {
	Append(ctx context.Context, entry *outbox.Entry) error
}

// VerificationCache invalidates cached public verification results after a
// status change so the gateway never serves a stale status.
type VerificationCache interface {
	Invalidate(ctx context.Context, code id.RegistryCode) error
}

// Service orchestrates registry administration. Every transition runs in a
// single transaction: the status change, the audit record and any outbox
// notice commit together or not at all.
type Service struct {
	caregivers CaregiverStore
	facilities FacilityStore
	audit      AuditStore
	outbox     NoticeOutbox
	tx         TxRunner

	cache   VerificationCache
	metrics *metrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithVerificationCache wires cache invalidation on status changes.
func WithVerificationCache(cache VerificationCache) Option {
	return func(s *Service) { s.cache = cache }
}

// WithMetrics wires Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger wires structured logging.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// New creates the registry administration service.
func New(caregivers CaregiverStore, facilities FacilityStore, audit AuditStore, noticeOutbox NoticeOutbox, tx TxRunner, opts ...Option) *Service {
	s := &Service{
		caregivers: caregivers,
		facilities: facilities,
		audit:      audit,
		outbox:     noticeOutbox,
		tx:         tx,
		logger:     slog.Default(),
		tracer:     otel.Tracer("careledger/registry"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterCaregiverInput carries the onboarding fields for an individual
// registrant. Callers are trusted services; identity vetting happened upstream.
type RegisterCaregiverInput struct {
	ProfileID      id.ProfileID
	FullName       string
	Category       models.MembershipCategory
	Specialization string
	Affiliation    string
	ExpiresAt      time.Time
}

// RegisterCaregiver creates a membership in its initial under_review state
// with a freshly allocated registry code.
func (s *Service) RegisterCaregiver(ctx context.Context, input RegisterCaregiverInput) (*models.CaregiverMembership, error) {
	ctx, span := s.tracer.Start(ctx, "registry.RegisterCaregiver")
	defer span.End()

	now := requestcontext.Now(ctx)

	// Code allocation can collide with an existing row; the unique constraint
	// catches it and we retry with a fresh code.
	const maxAttempts = 3
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := id.NewRegistryCode(id.KindCaregiver)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "allocate registry code")
		}
		m, err := models.NewCaregiverMembership(
			id.CaregiverID(uuid.New()), code, input.ProfileID,
			input.FullName, input.Category, input.ExpiresAt, now,
		)
		if err != nil {
			return nil, err
		}
		m.Specialization = input.Specialization
		m.Affiliation = input.Affiliation

		if err := s.caregivers.Create(ctx, m); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				lastErr = err
				continue
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create caregiver membership")
		}

		if s.metrics != nil {
			s.metrics.RecordRegistration(string(id.KindCaregiver))
		}
		s.logger.InfoContext(ctx, "caregiver registered",
			"caregiver_id", m.ID, "registry_code", m.RegistryCode)
		return m, nil
	}
	return nil, dErrors.Wrap(lastErr, dErrors.CodeConflict, "could not allocate a unique registry code")
}

// RegisterFacilityInput carries the onboarding fields for an institutional
// registrant.
type RegisterFacilityInput struct {
	OwnerID            id.ProfileID
	LegalName          string
	RegistrationNumber string
	FacilityType       string
	AddressLine        string
	City               string
	Region             string
	Capacity           int
}

// RegisterFacility creates a registration in its initial pending state.
func (s *Service) RegisterFacility(ctx context.Context, input RegisterFacilityInput) (*models.FacilityRegistration, error) {
	ctx, span := s.tracer.Start(ctx, "registry.RegisterFacility")
	defer span.End()

	now := requestcontext.Now(ctx)

	const maxAttempts = 3
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := id.NewRegistryCode(id.KindFacility)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "allocate registry code")
		}
		f, err := models.NewFacilityRegistration(
			id.FacilityID(uuid.New()), code,
			input.LegalName, input.RegistrationNumber, input.FacilityType,
			input.Capacity, input.OwnerID, now,
		)
		if err != nil {
			return nil, err
		}
		f.AddressLine = input.AddressLine
		f.City = input.City
		f.Region = input.Region

		if err := s.facilities.Create(ctx, f); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				// Could be a code collision (retryable) or a duplicate
				// registration number (not). Distinguish by lookup.
				if _, lookupErr := s.facilities.FindByRegistrationNumber(ctx, input.RegistrationNumber); lookupErr == nil {
					return nil, dErrors.New(dErrors.CodeConflict, "registration number already registered")
				}
				lastErr = err
				continue
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create facility registration")
		}

		if s.metrics != nil {
			s.metrics.RecordRegistration(string(id.KindFacility))
		}
		s.logger.InfoContext(ctx, "facility registered",
			"facility_id", f.ID, "registry_code", f.RegistryCode)
		return f, nil
	}
	return nil, dErrors.Wrap(lastErr, dErrors.CodeConflict, "could not allocate a unique registry code")
}

// TransitionCaregiver applies an administrative action to a caregiver
// membership and appends the audit record atomically.
func (s *Service) TransitionCaregiver(ctx context.Context, caregiverID id.CaregiverID, action models.ActionType, reason string) (*models.CaregiverMembership, error) {
	ctx, span := s.tracer.Start(ctx, "registry.TransitionCaregiver")
	defer span.End()

	actorID, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	var updated *models.CaregiverMembership
	txErr := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		m, err := s.caregivers.FindByID(ctx, caregiverID)
		if err != nil {
			return translateStoreErr(err, "caregiver")
		}
		fromStatus := string(m.Status)

		if err := m.Apply(action, reason, now); err != nil {
			return err
		}
		if err := s.caregivers.UpdateVersioned(ctx, m, m.Version); err != nil {
			return translateStoreErr(err, "caregiver")
		}

		rec, err := auditmodels.NewRegistryAction(
			id.KindCaregiver, uuid.UUID(m.ID), m.RegistryCode,
			action, fromStatus, string(m.Status), reason, actorID, now,
		)
		if err != nil {
			return err
		}
		if err := s.audit.Append(ctx, rec); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "append audit record")
		}
		if err := s.enqueueNotice(ctx, rec); err != nil {
			return err
		}

		updated = m
		return nil
	})

	s.recordTransition(id.KindCaregiver, action, txErr)
	if txErr != nil {
		return nil, txErr
	}

	s.afterTransition(ctx, updated.RegistryCode, string(action), string(updated.Status), actorID)
	return updated, nil
}

// TransitionFacility applies an administrative action to a facility
// registration and appends the audit record atomically.
func (s *Service) TransitionFacility(ctx context.Context, facilityID id.FacilityID, action models.ActionType, reason string) (*models.FacilityRegistration, error) {
	ctx, span := s.tracer.Start(ctx, "registry.TransitionFacility")
	defer span.End()

	actorID, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	var updated *models.FacilityRegistration
	txErr := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		f, err := s.facilities.FindByID(ctx, facilityID)
		if err != nil {
			return translateStoreErr(err, "facility")
		}
		fromStatus := string(f.Status)

		if err := f.Apply(action, reason, now); err != nil {
			return err
		}
		if err := s.facilities.UpdateVersioned(ctx, f, f.Version); err != nil {
			return translateStoreErr(err, "facility")
		}

		rec, err := auditmodels.NewRegistryAction(
			id.KindFacility, uuid.UUID(f.ID), f.RegistryCode,
			action, fromStatus, string(f.Status), reason, actorID, now,
		)
		if err != nil {
			return err
		}
		if err := s.audit.Append(ctx, rec); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "append audit record")
		}
		if err := s.enqueueNotice(ctx, rec); err != nil {
			return err
		}

		updated = f
		return nil
	})

	s.recordTransition(id.KindFacility, action, txErr)
	if txErr != nil {
		return nil, txErr
	}

	s.afterTransition(ctx, updated.RegistryCode, string(action), string(updated.Status), actorID)
	return updated, nil
}

// GetCaregiver returns a membership snapshot.
func (s *Service) GetCaregiver(ctx context.Context, caregiverID id.CaregiverID) (*models.CaregiverMembership, error) {
	m, err := s.caregivers.FindByID(ctx, caregiverID)
	if err != nil {
		return nil, translateStoreErr(err, "caregiver")
	}
	return m, nil
}

// GetFacility returns a registration snapshot.
func (s *Service) GetFacility(ctx context.Context, facilityID id.FacilityID) (*models.FacilityRegistration, error) {
	f, err := s.facilities.FindByID(ctx, facilityID)
	if err != nil {
		return nil, translateStoreErr(err, "facility")
	}
	return f, nil
}

// ListCaregiverActions returns the audit trail for one caregiver, newest first.
func (s *Service) ListCaregiverActions(ctx context.Context, caregiverID id.CaregiverID) ([]*auditmodels.RegistryAction, error) {
	if _, err := s.caregivers.FindByID(ctx, caregiverID); err != nil {
		return nil, translateStoreErr(err, "caregiver")
	}
	return s.audit.ListByTarget(ctx, id.KindCaregiver, uuid.UUID(caregiverID))
}

// ListFacilityActions returns the audit trail for one facility, newest first.
func (s *Service) ListFacilityActions(ctx context.Context, facilityID id.FacilityID) ([]*auditmodels.RegistryAction, error) {
	if _, err := s.facilities.FindByID(ctx, facilityID); err != nil {
		return nil, translateStoreErr(err, "facility")
	}
	return s.audit.ListByTarget(ctx, id.KindFacility, uuid.UUID(facilityID))
}

// ListRecentActions returns the most recent audit records across the registry.
func (s *Service) ListRecentActions(ctx context.Context, limit int) ([]*auditmodels.RegistryAction, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.audit.ListRecent(ctx, limit)
}

func (s *Service) enqueueNotice(ctx context.Context, rec *auditmodels.RegistryAction) error {
	if !rec.NotifiesPublic() || s.outbox == nil {
		return nil
	}
	entry, err := outbox.NewEntryFromAction(rec)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "build registry notice")
	}
	if err := s.outbox.Append(ctx, entry); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "enqueue registry notice")
	}
	return nil
}

// afterTransition runs post-commit side effects. Cache invalidation failures
// are logged, not returned: the ledger already committed and TTL expiry
// bounds any staleness.
func (s *Service) afterTransition(ctx context.Context, code id.RegistryCode, action, newStatus, actorID string) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, code); err != nil {
			s.logger.WarnContext(ctx, "verification cache invalidation failed",
				"registry_code", code, "error", err)
		}
	}
	s.logger.InfoContext(ctx, "registry status changed",
		"registry_code", code,
		"action", action,
		"new_status", newStatus,
		"actor_id", actorID,
	)
}

func (s *Service) recordTransition(kind id.RegistrantKind, action models.ActionType, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
		var dErr *dErrors.Error
		if errors.As(err, &dErr) {
			outcome = string(dErr.Code)
		}
	}
	s.metrics.RecordTransition(string(kind), string(action), outcome)
}

func requireActor(ctx context.Context) (string, error) {
	actorID := requestcontext.ActorID(ctx)
	if actorID == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "administrative action requires an authenticated actor")
	}
	return actorID, nil
}

func translateStoreErr(err error, subject string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, subject+" not found")
	case errors.Is(err, sentinel.ErrStaleVersion):
		return dErrors.New(dErrors.CodeConflict, subject+" was modified concurrently, retry the action")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeConflict, subject+" already exists")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "registry store failure")
}
