//go:build integration

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
	"careledger/pkg/testutil/containers"
)

func TestPostgresStore_Integration(t *testing.T) {
	pg := containers.GetManager().GetPostgres(t)
	ctx := context.Background()
	store := NewPostgres(pg.DB)

	newMembership := func(t *testing.T, name, code string) *models.CaregiverMembership {
		t.Helper()
		now := time.Now().UTC().Truncate(time.Microsecond)
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

	t.Run("create and find round trip", func(t *testing.T) {
		require.NoError(t, pg.TruncateAll(ctx))
		m := newMembership(t, "John Adebayo", "NIC-MEM-5502")
		require.NoError(t, store.Create(ctx, m))

		byID, err := store.FindByID(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, m.FullName, byID.FullName)
		assert.Equal(t, models.CaregiverUnderReview, byID.Status)
		assert.Equal(t, 1, byID.Version)

		byCode, err := store.FindByCode(ctx, m.RegistryCode)
		require.NoError(t, err)
		assert.Equal(t, m.ID, byCode.ID)
	})

	t.Run("duplicate registry code rejected", func(t *testing.T) {
		require.NoError(t, pg.TruncateAll(ctx))
		require.NoError(t, store.Create(ctx, newMembership(t, "A", "NIC-MEM-0001")))
		err := store.Create(ctx, newMembership(t, "B", "NIC-MEM-0001"))
		assert.ErrorIs(t, err, sentinel.ErrAlreadyUsed)
	})

	t.Run("search by name is case-insensitive substring", func(t *testing.T) {
		require.NoError(t, pg.TruncateAll(ctx))
		require.NoError(t, store.Create(ctx, newMembership(t, "John Adebayo", "NIC-MEM-0001")))
		require.NoError(t, store.Create(ctx, newMembership(t, "John Adebayo", "NIC-MEM-0002")))
		require.NoError(t, store.Create(ctx, newMembership(t, "Amina Bello", "NIC-MEM-0003")))

		matches, err := store.SearchByName(ctx, "adebayo")
		require.NoError(t, err)
		assert.Len(t, matches, 2)
	})

	t.Run("version check rejects lost race", func(t *testing.T) {
		require.NoError(t, pg.TruncateAll(ctx))
		m := newMembership(t, "John Adebayo", "NIC-MEM-0100")
		require.NoError(t, store.Create(ctx, m))

		first, err := store.FindByID(ctx, m.ID)
		require.NoError(t, err)
		second, err := store.FindByID(ctx, m.ID)
		require.NoError(t, err)

		now := time.Now().UTC()
		require.NoError(t, first.Apply(models.ActionApprove, "", now))
		require.NoError(t, store.UpdateVersioned(ctx, first, 1))
		assert.Equal(t, 2, first.Version)

		require.NoError(t, second.Apply(models.ActionRevoke, "fraud", now))
		err = store.UpdateVersioned(ctx, second, 1)
		assert.ErrorIs(t, err, sentinel.ErrStaleVersion)

		// The winner's write is intact.
		current, err := store.FindByID(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, models.CaregiverCompliant, current.Status)
		assert.Equal(t, 2, current.Version)
	})

	t.Run("update of unknown row reports not found", func(t *testing.T) {
		require.NoError(t, pg.TruncateAll(ctx))
		m := newMembership(t, "Ghost", "NIC-MEM-0200")
		err := store.UpdateVersioned(ctx, m, 1)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}
