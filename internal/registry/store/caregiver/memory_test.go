package caregiver

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

func seedMembership(t *testing.T, name, code string) *models.CaregiverMembership {
	t.Helper()
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	m, err := models.NewCaregiverMembership(
		id.CaregiverID(uuid.New()),
		id.RegistryCode(code),
		id.ProfileID(uuid.New()),
		name,
		models.CategoryFull,
		now.AddDate(1, 0, 0),
		now,
	)
	require.NoError(t, err)
	return m
}

func TestMemoryStoreCreateAndFind(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	m := seedMembership(t, "John Adebayo", "NIC-MEM-5502")

	require.NoError(t, store.Create(ctx, m))

	t.Run("find by id", func(t *testing.T) {
		got, err := store.FindByID(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, m.RegistryCode, got.RegistryCode)
	})

	t.Run("find by code", func(t *testing.T) {
		got, err := store.FindByCode(ctx, m.RegistryCode)
		require.NoError(t, err)
		assert.Equal(t, m.ID, got.ID)
	})

	t.Run("duplicate code rejected", func(t *testing.T) {
		dup := seedMembership(t, "Someone Else", "NIC-MEM-5502")
		assert.ErrorIs(t, store.Create(ctx, dup), sentinel.ErrAlreadyUsed)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := store.FindByID(ctx, id.CaregiverID(uuid.New()))
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestMemoryStoreSearchByName(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	require.NoError(t, store.Create(ctx, seedMembership(t, "John Adebayo", "NIC-MEM-0001")))
	require.NoError(t, store.Create(ctx, seedMembership(t, "John Adebayo", "NIC-MEM-0002")))
	require.NoError(t, store.Create(ctx, seedMembership(t, "Amina Bello", "NIC-MEM-0003")))

	t.Run("substring match is case-insensitive", func(t *testing.T) {
		got, err := store.SearchByName(ctx, "adebayo")
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("unique match", func(t *testing.T) {
		got, err := store.SearchByName(ctx, "Amina")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Amina Bello", got[0].FullName)
	})

	t.Run("no match returns empty", func(t *testing.T) {
		got, err := store.SearchByName(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestMemoryStoreUpdateVersioned(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("version bumps on success", func(t *testing.T) {
		store := NewMemory()
		m := seedMembership(t, "John Adebayo", "NIC-MEM-1001")
		require.NoError(t, store.Create(ctx, m))

		require.NoError(t, m.Apply(models.ActionApprove, "", now))
		require.NoError(t, store.UpdateVersioned(ctx, m, 1))
		assert.Equal(t, 2, m.Version)

		got, err := store.FindByID(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, models.CaregiverCompliant, got.Status)
		assert.Equal(t, 2, got.Version)
	})

	t.Run("stale version rejected", func(t *testing.T) {
		store := NewMemory()
		m := seedMembership(t, "John Adebayo", "NIC-MEM-1002")
		require.NoError(t, store.Create(ctx, m))

		first, err := store.FindByID(ctx, m.ID)
		require.NoError(t, err)
		second, err := store.FindByID(ctx, m.ID)
		require.NoError(t, err)

		require.NoError(t, first.Apply(models.ActionApprove, "", now))
		require.NoError(t, store.UpdateVersioned(ctx, first, first.Version))

		require.NoError(t, second.Apply(models.ActionRevoke, "fraud", now))
		assert.ErrorIs(t, store.UpdateVersioned(ctx, second, 1), sentinel.ErrStaleVersion)
	})

	t.Run("unknown id", func(t *testing.T) {
		store := NewMemory()
		m := seedMembership(t, "Ghost", "NIC-MEM-1003")
		assert.ErrorIs(t, store.UpdateVersioned(ctx, m, 1), sentinel.ErrNotFound)
	})
}
