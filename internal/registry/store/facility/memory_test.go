package facility

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careledger/internal/registry/models"
	id "careledger/pkg/domain"
	"careledger/pkg/platform/sentinel"
)

func newFacility(t *testing.T, code id.RegistryCode, legalName, regNumber string) *models.FacilityRegistration {
	t.Helper()
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	f, err := models.NewFacilityRegistration(
		id.FacilityID(uuid.New()), code, legalName, regNumber,
		"residential", 30, id.ProfileID(uuid.New()), now,
	)
	require.NoError(t, err)
	return f
}

func TestMemoryStoreCreateAndFind(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	f := newFacility(t, "NIC-FAC-4401", "Sunrise Care Home", "RC-555001")
	require.NoError(t, store.Create(ctx, f))

	got, err := store.FindByCode(ctx, "NIC-FAC-4401")
	require.NoError(t, err)
	assert.Equal(t, f.ID, got.ID)
	assert.Equal(t, models.FacilityPending, got.Status)

	got, err = store.FindByRegistrationNumber(ctx, "RC-555001")
	require.NoError(t, err)
	assert.Equal(t, f.ID, got.ID)

	_, err = store.FindByCode(ctx, "NIC-FAC-0000")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestMemoryStoreRejectsDuplicates(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newFacility(t, "NIC-FAC-4401", "Sunrise Care Home", "RC-555001")))

	dupCode := newFacility(t, "NIC-FAC-4401", "Other Home", "RC-555002")
	assert.ErrorIs(t, store.Create(ctx, dupCode), sentinel.ErrAlreadyUsed)

	dupNumber := newFacility(t, "NIC-FAC-4402", "Other Home", "RC-555001")
	assert.ErrorIs(t, store.Create(ctx, dupNumber), sentinel.ErrAlreadyUsed)
}

func TestMemoryStoreSearchByName(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newFacility(t, "NIC-FAC-4401", "Sunrise Care Home", "RC-555001")))
	require.NoError(t, store.Create(ctx, newFacility(t, "NIC-FAC-4402", "Sunrise Annex", "RC-555002")))
	require.NoError(t, store.Create(ctx, newFacility(t, "NIC-FAC-4403", "Hillview Clinic", "RC-555003")))

	got, err := store.SearchByName(ctx, "sunrise")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Sunrise Annex", got[0].LegalName)
	assert.Equal(t, "Sunrise Care Home", got[1].LegalName)

	got, err = store.SearchByName(ctx, "no such place")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryStoreUpdateVersioned(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	f := newFacility(t, "NIC-FAC-4401", "Sunrise Care Home", "RC-555001")
	require.NoError(t, store.Create(ctx, f))

	first, err := store.FindByID(ctx, f.ID)
	require.NoError(t, err)
	second, err := store.FindByID(ctx, f.ID)
	require.NoError(t, err)

	first.Status = models.FacilityActive
	require.NoError(t, store.UpdateVersioned(ctx, first, first.Version))
	assert.Equal(t, 2, first.Version)

	second.Status = models.FacilitySuspended
	assert.ErrorIs(t, store.UpdateVersioned(ctx, second, second.Version), sentinel.ErrStaleVersion)

	got, err := store.FindByID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FacilityActive, got.Status)
	assert.Equal(t, 2, got.Version)
}
