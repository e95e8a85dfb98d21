// Package service implements the public verification gateway. It answers
// "is this registrant in good standing" with the minimum disclosure needed
// and logs every query internally.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	registrymodels "careledger/internal/registry/models"
	"careledger/internal/verify/metrics"
	"careledger/internal/verify/models"
	id "careledger/pkg/domain"
	dErrors "careledger/pkg/domain-errors"
	"careledger/pkg/platform/sentinel"
	"careledger/pkg/requestcontext"
)

// CaregiverReader is the read-only lookup surface the gateway needs.
type CaregiverReader interface {
	FindByCode(ctx context.Context, code id.RegistryCode) (*registrymodels.CaregiverMembership, error)
	SearchByName(ctx context.Context, query string) ([]*registrymodels.CaregiverMembership, error)
}

// FacilityReader is the read-only lookup surface for facilities.
type FacilityReader interface {
	FindByCode(ctx context.Context, code id.RegistryCode) (*registrymodels.FacilityRegistration, error)
	FindByRegistrationNumber(ctx context.Context, number string) (*registrymodels.FacilityRegistration, error)
	SearchByName(ctx context.Context, query string) ([]*registrymodels.FacilityRegistration, error)
}

// QueryLog records every public lookup and aggregates it for abuse monitoring.
type QueryLog interface {
	Append(ctx context.Context, q *models.VerificationQuery) error
	CountByOutcomeSince(ctx context.Context, since time.Time) (map[models.QueryOutcome]int64, error)
}

// ResultCache caches code-keyed results together with the matched registrant
// identity, so cache hits log the same match detail as store hits.
type ResultCache interface {
	Get(ctx context.Context, code id.RegistryCode) (*models.CachedVerification, bool)
	Set(ctx context.Context, code id.RegistryCode, cached *models.CachedVerification)
}

// Service answers public verification queries. Lookups never return errors to
// the caller: any internal failure degrades to a not-found response, and the
// failure is visible only in logs and the query log's error outcome.
type Service struct {
	caregivers CaregiverReader
	facilities FacilityReader
	queryLog   QueryLog

	cache   ResultCache
	metrics *metrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer

	readAttempts int
	readBackoff  time.Duration
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithCache wires the Redis result cache.
func WithCache(cache ResultCache) Option {
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

// WithReadRetry tunes the bounded retry on store reads.
func WithReadRetry(attempts int, backoff time.Duration) Option {
	return func(s *Service) {
		s.readAttempts = attempts
		s.readBackoff = backoff
	}
}

// New creates the verification gateway service.
func New(caregivers CaregiverReader, facilities FacilityReader, queryLog QueryLog, opts ...Option) *Service {
	s := &Service{
		caregivers:   caregivers,
		facilities:   facilities,
		queryLog:     queryLog,
		logger:       slog.Default(),
		tracer:       otel.Tracer("careledger/verify"),
		readAttempts: 3,
		readBackoff:  50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// VerifyByRegistryID resolves a registry code lookup.
func (s *Service) VerifyByRegistryID(ctx context.Context, raw string) *models.VerificationResult {
	return s.verifyCode(ctx, models.QueryByRegistryID, raw)
}

// VerifyByCertificate resolves a certificate number lookup. Certificates
// carry the registry code; facility certificates may instead carry the legal
// registration number, so that is the fallback.
func (s *Service) VerifyByCertificate(ctx context.Context, raw string) *models.VerificationResult {
	return s.verifyCode(ctx, models.QueryByCertificate, raw)
}

func (s *Service) verifyCode(ctx context.Context, queryType models.QueryType, raw string) *models.VerificationResult {
	ctx, span := s.tracer.Start(ctx, "verify.ByCode")
	defer span.End()
	start := time.Now()

	q := s.newQuery(ctx, queryType, raw)
	defer func() { s.finish(ctx, q, start) }()

	code, err := id.ParseRegistryCode(raw)
	if err != nil {
		if queryType == models.QueryByCertificate {
			return s.lookupFacilityByRegistrationNumber(ctx, q, raw)
		}
		return models.NotFound()
	}

	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, code); ok {
			if s.metrics != nil {
				s.metrics.RecordCacheHit()
			}
			q.RecordMatch(cached.MatchedKind, cached.MatchedID)
			return cached.Result
		}
		if s.metrics != nil {
			s.metrics.RecordCacheMiss()
		}
	}

	var result *models.VerificationResult
	switch code.Kind() {
	case id.KindFacility:
		f, err := retryRead(ctx, s, func(ctx context.Context) (*registrymodels.FacilityRegistration, error) {
			return s.facilities.FindByCode(ctx, code)
		})
		if err != nil {
			return s.degrade(ctx, q, err)
		}
		q.RecordMatch(id.KindFacility, uuid.UUID(f.ID))
		result = facilityResult(f)
	default:
		m, err := retryRead(ctx, s, func(ctx context.Context) (*registrymodels.CaregiverMembership, error) {
			return s.caregivers.FindByCode(ctx, code)
		})
		if err != nil {
			return s.degrade(ctx, q, err)
		}
		q.RecordMatch(id.KindCaregiver, uuid.UUID(m.ID))
		result = caregiverResult(m)
	}

	if s.cache != nil {
		s.cache.Set(ctx, code, &models.CachedVerification{
			Result:      result,
			MatchedKind: *q.MatchedKind,
			MatchedID:   *q.MatchedID,
		})
	}
	return result
}

func (s *Service) lookupFacilityByRegistrationNumber(ctx context.Context, q *models.VerificationQuery, number string) *models.VerificationResult {
	f, err := retryRead(ctx, s, func(ctx context.Context) (*registrymodels.FacilityRegistration, error) {
		return s.facilities.FindByRegistrationNumber(ctx, number)
	})
	if err != nil {
		return s.degrade(ctx, q, err)
	}
	q.RecordMatch(id.KindFacility, uuid.UUID(f.ID))
	return facilityResult(f)
}

// VerifyByName resolves a name lookup across both registrant kinds. The match
// must be unique: zero or multiple matches both present as not found, though
// the query log distinguishes them.
func (s *Service) VerifyByName(ctx context.Context, name string) *models.VerificationResult {
	ctx, span := s.tracer.Start(ctx, "verify.ByName")
	defer span.End()
	start := time.Now()

	q := s.newQuery(ctx, models.QueryByName, name)
	defer func() { s.finish(ctx, q, start) }()

	if name == "" {
		return models.NotFound()
	}

	caregivers, err := retryRead(ctx, s, func(ctx context.Context) ([]*registrymodels.CaregiverMembership, error) {
		return s.caregivers.SearchByName(ctx, name)
	})
	if err != nil {
		return s.degrade(ctx, q, err)
	}
	facilities, err := retryRead(ctx, s, func(ctx context.Context) ([]*registrymodels.FacilityRegistration, error) {
		return s.facilities.SearchByName(ctx, name)
	})
	if err != nil {
		return s.degrade(ctx, q, err)
	}

	total := len(caregivers) + len(facilities)
	switch {
	case total == 0:
		return models.NotFound()
	case total > 1:
		// Multiple registrants share the name. Disclosing any of them would
		// let a caller verify the wrong person, so the public answer is the
		// same as not found.
		q.RecordOutcome(models.OutcomeAmbiguous)
		s.logger.WarnContext(ctx, "ambiguous verification match",
			"matches", total,
			"error", dErrors.New(dErrors.CodeAmbiguousMatch, "name matches more than one registrant"),
		)
		return models.NotFound()
	}

	if len(caregivers) == 1 {
		m := caregivers[0]
		q.RecordMatch(id.KindCaregiver, uuid.UUID(m.ID))
		return caregiverResult(m)
	}
	f := facilities[0]
	q.RecordMatch(id.KindFacility, uuid.UUID(f.ID))
	return facilityResult(f)
}

// QueryStats aggregates logged lookups per outcome since the cutoff. Backs
// the administrative abuse-monitoring view.
func (s *Service) QueryStats(ctx context.Context, since time.Time) (map[models.QueryOutcome]int64, error) {
	counts, err := s.queryLog.CountByOutcomeSince(ctx, since)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "count verification queries")
	}
	return counts, nil
}

// retryRead runs a store read, retrying transient failures a bounded number
// of times with backoff. Not-found is a result, never retried. Writes go
// through the administration path and are never retried here.
func retryRead[T any](ctx context.Context, s *Service, fn func(context.Context) (T, error)) (T, error) {
	var (
		out T
		err error
	)
	for attempt := 0; attempt < s.readAttempts; attempt++ {
		out, err = fn(ctx)
		if err == nil || isNotFound(err) {
			return out, err
		}
		if attempt == s.readAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return out, err
		case <-time.After(s.readBackoff << attempt):
		}
	}
	return out, err
}

func (s *Service) newQuery(ctx context.Context, queryType models.QueryType, value string) *models.VerificationQuery {
	return models.NewVerificationQuery(
		queryType, value,
		requestcontext.ClientIP(ctx),
		requestcontext.UserAgent(ctx),
		requestcontext.Now(ctx),
	)
}

// degrade converts an internal failure into the uniform negative response.
// NotFound from the store is the ordinary no-match case, not a failure.
func (s *Service) degrade(ctx context.Context, q *models.VerificationQuery, err error) *models.VerificationResult {
	if isNotFound(err) {
		return models.NotFound()
	}
	q.RecordOutcome(models.OutcomeError)
	s.logger.ErrorContext(ctx, "verification lookup failed",
		"query_type", q.QueryType, "error", err)
	return models.NotFound()
}

// finish writes the query log record and metrics. Every public lookup ends
// here exactly once; a log write failure never blocks the response.
func (s *Service) finish(ctx context.Context, q *models.VerificationQuery, start time.Time) {
	if err := s.queryLog.Append(ctx, q); err != nil {
		s.logger.ErrorContext(ctx, "verification query log append failed", "error", err)
	}
	if s.metrics != nil {
		s.metrics.RecordQuery(string(q.QueryType), string(q.Outcome))
		s.metrics.ObserveQueryDuration(time.Since(start).Seconds())
	}
}

func caregiverResult(m *registrymodels.CaregiverMembership) *models.VerificationResult {
	validUntil := m.ExpiresAt
	return &models.VerificationResult{
		Found:          true,
		RegistryCode:   string(m.RegistryCode),
		FullName:       m.FullName,
		Kind:           string(id.KindCaregiver),
		Category:       string(m.Category),
		CurrentStatus:  string(m.Status),
		ValidUntil:     &validUntil,
		Specialization: m.Specialization,
		Affiliation:    m.Affiliation,
	}
}

func facilityResult(f *registrymodels.FacilityRegistration) *models.VerificationResult {
	return &models.VerificationResult{
		Found:         true,
		RegistryCode:  string(f.RegistryCode),
		FullName:      f.LegalName,
		Kind:          string(id.KindFacility),
		Category:      f.FacilityType,
		CurrentStatus: string(f.Status),
		Affiliation:   f.City,
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, sentinel.ErrNotFound)
}
