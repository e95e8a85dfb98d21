package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	registrymodels "careledger/internal/registry/models"
	caregiverstore "careledger/internal/registry/store/caregiver"
	facilitystore "careledger/internal/registry/store/facility"
	"careledger/internal/verify/models"
	"careledger/internal/verify/store/querylog"
	id "careledger/pkg/domain"
	"careledger/pkg/requestcontext"
)

type fixture struct {
	svc        *Service
	caregivers *caregiverstore.MemoryStore
	facilities *facilitystore.MemoryStore
	queryLog   *querylog.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		caregivers: caregiverstore.NewMemory(),
		facilities: facilitystore.NewMemory(),
		queryLog:   querylog.NewMemory(),
	}
	f.svc = New(f.caregivers, f.facilities, f.queryLog)
	return f
}

func (f *fixture) seedCaregiver(t *testing.T, name, code string, status registrymodels.CaregiverStatus) *registrymodels.CaregiverMembership {
	t.Helper()
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	m, err := registrymodels.NewCaregiverMembership(
		id.CaregiverID(uuid.New()),
		id.RegistryCode(code),
		id.ProfileID(uuid.New()),
		name,
		registrymodels.CategoryFull,
		now.AddDate(1, 0, 0),
		now,
	)
	require.NoError(t, err)
	m.Status = status
	m.Active = status == registrymodels.CaregiverCompliant
	m.Specialization = "geriatric care"
	m.Affiliation = "Sunrise Care Home"
	require.NoError(t, f.caregivers.Create(context.Background(), m))
	return m
}

func clientCtx() context.Context {
	ctx := requestcontext.WithClientMetadata(context.Background(),
		"203.0.113.9",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
	)
	return requestcontext.WithTime(ctx, time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC))
}

func TestVerifyByRegistryID(t *testing.T) {
	f := newFixture(t)
	f.seedCaregiver(t, "John Adebayo", "NIC-MEM-5502", registrymodels.CaregiverCompliant)

	t.Run("match exposes only public fields", func(t *testing.T) {
		result := f.svc.VerifyByRegistryID(clientCtx(), "NIC-MEM-5502")

		assert.True(t, result.Found)
		assert.Equal(t, "NIC-MEM-5502", result.RegistryCode)
		assert.Equal(t, "John Adebayo", result.FullName)
		assert.Equal(t, "caregiver", result.Kind)
		assert.Equal(t, "full", result.Category)
		assert.Equal(t, "compliant", result.CurrentStatus)
		assert.Equal(t, "geriatric care", result.Specialization)
		require.NotNil(t, result.ValidUntil)
	})

	t.Run("lookup is normalized", func(t *testing.T) {
		result := f.svc.VerifyByRegistryID(clientCtx(), "  nic-mem-5502 ")
		assert.True(t, result.Found)
	})

	t.Run("unknown code and malformed code answer identically", func(t *testing.T) {
		unknown := f.svc.VerifyByRegistryID(clientCtx(), "NIC-MEM-9999")
		malformed := f.svc.VerifyByRegistryID(clientCtx(), "not-a-code")
		assert.Equal(t, unknown, malformed)
		assert.False(t, unknown.Found)
	})

	t.Run("every lookup is logged", func(t *testing.T) {
		logs := f.queryLog.All()
		require.Len(t, logs, 4)
		assert.Equal(t, models.OutcomeMatch, logs[0].Outcome)
		assert.Equal(t, "203.0.113.9", logs[0].ClientIP)
		assert.Equal(t, "chrome", logs[0].Browser)
		assert.Equal(t, models.OutcomeNoMatch, logs[2].Outcome)
	})
}

func TestVerifySuspendedStillReportsStatus(t *testing.T) {
	f := newFixture(t)
	m := f.seedCaregiver(t, "Amina Bello", "NIC-MEM-0042", registrymodels.CaregiverSuspended)
	reason := "pending investigation"
	m.StatusReason = &reason
	require.NoError(t, f.caregivers.UpdateVersioned(context.Background(), m, m.Version))

	result := f.svc.VerifyByRegistryID(clientCtx(), "NIC-MEM-0042")

	assert.True(t, result.Found)
	assert.Equal(t, "suspended", result.CurrentStatus)
}

func TestVerifyByName(t *testing.T) {
	f := newFixture(t)
	f.seedCaregiver(t, "John Adebayo", "NIC-MEM-5502", registrymodels.CaregiverCompliant)
	f.seedCaregiver(t, "John Adebayo", "NIC-MEM-7731", registrymodels.CaregiverCompliant)
	f.seedCaregiver(t, "Amina Bello", "NIC-MEM-0042", registrymodels.CaregiverCompliant)

	t.Run("ambiguous name presents as not found", func(t *testing.T) {
		result := f.svc.VerifyByName(clientCtx(), "John Adebayo")

		assert.False(t, result.Found)
		assert.Empty(t, result.RegistryCode)

		logs := f.queryLog.All()
		require.Len(t, logs, 1)
		assert.Equal(t, models.OutcomeAmbiguous, logs[0].Outcome)
		assert.Nil(t, logs[0].MatchedID)
	})

	t.Run("unique name matches", func(t *testing.T) {
		result := f.svc.VerifyByName(clientCtx(), "Amina Bello")
		assert.True(t, result.Found)
		assert.Equal(t, "NIC-MEM-0042", result.RegistryCode)
	})

	t.Run("empty name", func(t *testing.T) {
		result := f.svc.VerifyByName(clientCtx(), "")
		assert.False(t, result.Found)
	})
}

func TestVerifyByNameSpansKinds(t *testing.T) {
	f := newFixture(t)
	f.seedCaregiver(t, "Sunrise Adeyemi", "NIC-MEM-0100", registrymodels.CaregiverCompliant)

	now := time.Now()
	fac, err := registrymodels.NewFacilityRegistration(
		id.FacilityID(uuid.New()), "NIC-FAC-0200",
		"Sunrise Care Home", "RC-555001", "residential",
		30, id.ProfileID(uuid.New()), now,
	)
	require.NoError(t, err)
	require.NoError(t, f.facilities.Create(context.Background(), fac))

	// "Sunrise" matches one caregiver and one facility; the match is not unique.
	result := f.svc.VerifyByName(clientCtx(), "Sunrise")
	assert.False(t, result.Found)

	logs := f.queryLog.All()
	require.Len(t, logs, 1)
	assert.Equal(t, models.OutcomeAmbiguous, logs[0].Outcome)
}

func TestVerifyFacility(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	fac, err := registrymodels.NewFacilityRegistration(
		id.FacilityID(uuid.New()), "NIC-FAC-0417",
		"Sunrise Care Home", "RC-555001", "residential",
		30, id.ProfileID(uuid.New()), now,
	)
	require.NoError(t, err)
	fac.City = "Lagos"
	require.NoError(t, f.facilities.Create(context.Background(), fac))

	t.Run("by registry code", func(t *testing.T) {
		result := f.svc.VerifyByRegistryID(clientCtx(), "NIC-FAC-0417")
		assert.True(t, result.Found)
		assert.Equal(t, "facility", result.Kind)
		assert.Equal(t, "pending", result.CurrentStatus)
	})

	t.Run("certificate falls back to registration number", func(t *testing.T) {
		result := f.svc.VerifyByCertificate(clientCtx(), "RC-555001")
		assert.True(t, result.Found)
		assert.Equal(t, "NIC-FAC-0417", result.RegistryCode)
	})

	t.Run("certificate with registry code works too", func(t *testing.T) {
		result := f.svc.VerifyByCertificate(clientCtx(), "NIC-FAC-0417")
		assert.True(t, result.Found)
	})
}

type fakeCache struct {
	store map[id.RegistryCode]*models.CachedVerification
	hits  int
	sets  int
}

func newFakeCache() *fakeCache {
	return &fakeCache{store: make(map[id.RegistryCode]*models.CachedVerification)}
}

func (c *fakeCache) Get(ctx context.Context, code id.RegistryCode) (*models.CachedVerification, bool) {
	r, ok := c.store[code]
	if ok {
		c.hits++
	}
	return r, ok
}

func (c *fakeCache) Set(ctx context.Context, code id.RegistryCode, cached *models.CachedVerification) {
	c.sets++
	c.store[code] = cached
}

func TestVerifyCaching(t *testing.T) {
	f := newFixture(t)
	cache := newFakeCache()
	f.svc = New(f.caregivers, f.facilities, f.queryLog, WithCache(cache))
	m := f.seedCaregiver(t, "John Adebayo", "NIC-MEM-5502", registrymodels.CaregiverCompliant)

	first := f.svc.VerifyByRegistryID(clientCtx(), "NIC-MEM-5502")
	second := f.svc.VerifyByRegistryID(clientCtx(), "NIC-MEM-5502")

	assert.Equal(t, first, second)
	assert.Equal(t, 1, cache.sets)
	assert.Equal(t, 1, cache.hits)

	t.Run("cache hit logs the matched record", func(t *testing.T) {
		logs := f.queryLog.All()
		require.Len(t, logs, 2)
		assert.Equal(t, models.OutcomeMatch, logs[1].Outcome)
		require.NotNil(t, logs[1].MatchedID)
		assert.Equal(t, uuid.UUID(m.ID), *logs[1].MatchedID)
		require.NotNil(t, logs[1].MatchedKind)
		assert.Equal(t, id.KindCaregiver, *logs[1].MatchedKind)
	})

	t.Run("name lookups bypass the cache", func(t *testing.T) {
		_ = f.svc.VerifyByName(clientCtx(), "John Adebayo")
		assert.Equal(t, 1, cache.sets)
	})

	t.Run("cached lookups are still logged", func(t *testing.T) {
		assert.Len(t, f.queryLog.All(), 3)
	})
}

// flakyCaregivers fails FindByCode a set number of times before delegating.
type flakyCaregivers struct {
	*caregiverstore.MemoryStore
	mu       sync.Mutex
	failures int
	calls    int
}

func (s *flakyCaregivers) FindByCode(ctx context.Context, code id.RegistryCode) (*registrymodels.CaregiverMembership, error) {
	s.mu.Lock()
	s.calls++
	fail := s.failures > 0
	if fail {
		s.failures--
	}
	s.mu.Unlock()

	if fail {
		return nil, errors.New("connection reset by peer")
	}
	return s.MemoryStore.FindByCode(ctx, code)
}

func TestVerifyRetriesTransientReadFailures(t *testing.T) {
	f := newFixture(t)
	f.seedCaregiver(t, "John Adebayo", "NIC-MEM-5502", registrymodels.CaregiverCompliant)

	t.Run("one transient failure still resolves", func(t *testing.T) {
		flaky := &flakyCaregivers{MemoryStore: f.caregivers, failures: 1}
		svc := New(flaky, f.facilities, f.queryLog, WithReadRetry(3, time.Millisecond))

		result := svc.VerifyByRegistryID(clientCtx(), "NIC-MEM-5502")

		assert.True(t, result.Found)
		assert.Equal(t, 2, flaky.calls)
	})

	t.Run("persistent failure degrades after bounded attempts", func(t *testing.T) {
		flaky := &flakyCaregivers{MemoryStore: f.caregivers, failures: 10}
		svc := New(flaky, f.facilities, f.queryLog, WithReadRetry(3, time.Millisecond))

		result := svc.VerifyByRegistryID(clientCtx(), "NIC-MEM-5502")

		assert.False(t, result.Found)
		assert.Equal(t, 3, flaky.calls)

		logs := f.queryLog.All()
		assert.Equal(t, models.OutcomeError, logs[len(logs)-1].Outcome)
	})

	t.Run("not found is a result, not retried", func(t *testing.T) {
		flaky := &flakyCaregivers{MemoryStore: f.caregivers}
		svc := New(flaky, f.facilities, f.queryLog, WithReadRetry(3, time.Millisecond))

		result := svc.VerifyByRegistryID(clientCtx(), "NIC-MEM-9999")

		assert.False(t, result.Found)
		assert.Equal(t, 1, flaky.calls)
	})
}

func TestAmbiguousMatchLogsDistinctly(t *testing.T) {
	f := newFixture(t)
	f.seedCaregiver(t, "John Adebayo", "NIC-MEM-5502", registrymodels.CaregiverCompliant)
	f.seedCaregiver(t, "John Adebayo", "NIC-MEM-7731", registrymodels.CaregiverCompliant)

	var buf bytes.Buffer
	svc := New(f.caregivers, f.facilities, f.queryLog,
		WithLogger(slog.New(slog.NewJSONHandler(&buf, nil))))

	result := svc.VerifyByName(clientCtx(), "John Adebayo")

	assert.False(t, result.Found)
	assert.Contains(t, buf.String(), "ambiguous_match")
}

func TestQueryStats(t *testing.T) {
	f := newFixture(t)
	f.seedCaregiver(t, "John Adebayo", "NIC-MEM-5502", registrymodels.CaregiverCompliant)

	_ = f.svc.VerifyByRegistryID(clientCtx(), "NIC-MEM-5502")
	_ = f.svc.VerifyByRegistryID(clientCtx(), "NIC-MEM-9999")

	counts, err := f.svc.QueryStats(clientCtx(), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[models.OutcomeMatch])
	assert.Equal(t, int64(1), counts[models.OutcomeNoMatch])
}
