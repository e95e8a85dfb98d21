package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	registrymodels "careledger/internal/registry/models"
	id "careledger/pkg/domain"
	dErrors "careledger/pkg/domain-errors"
)

func TestNewRegistryAction(t *testing.T) {
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	targetID := uuid.New()

	rec, err := NewRegistryAction(
		id.KindCaregiver, targetID, "NIC-MEM-5502",
		registrymodels.ActionSuspend, "compliant", "suspended",
		"pending investigation", "admin-01", now,
	)
	require.NoError(t, err)
	assert.Equal(t, targetID, rec.TargetID)
	assert.Equal(t, "compliant", rec.FromStatus)
	assert.Equal(t, "suspended", rec.ToStatus)
	require.NotNil(t, rec.Reason)
	assert.Equal(t, "pending investigation", *rec.Reason)

	t.Run("empty reason is stored as nil", func(t *testing.T) {
		rec, err := NewRegistryAction(
			id.KindCaregiver, targetID, "NIC-MEM-5502",
			registrymodels.ActionApprove, "under_review", "compliant",
			"", "admin-01", now,
		)
		require.NoError(t, err)
		assert.Nil(t, rec.Reason)
	})

	t.Run("actor is required", func(t *testing.T) {
		_, err := NewRegistryAction(
			id.KindCaregiver, targetID, "NIC-MEM-5502",
			registrymodels.ActionApprove, "under_review", "compliant",
			"", "", now,
		)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestNotifiesPublic(t *testing.T) {
	now := time.Now().UTC()
	build := func(action registrymodels.ActionType, from, to string) *RegistryAction {
		rec, err := NewRegistryAction(
			id.KindCaregiver, uuid.New(), "NIC-MEM-5502",
			action, from, to, "because", "admin-01", now,
		)
		require.NoError(t, err)
		return rec
	}

	assert.True(t, build(registrymodels.ActionSuspend, "compliant", "suspended").NotifiesPublic())
	assert.True(t, build(registrymodels.ActionRevoke, "suspended", "revoked").NotifiesPublic())
	assert.False(t, build(registrymodels.ActionApprove, "under_review", "compliant").NotifiesPublic())
	assert.False(t, build(registrymodels.ActionReinstate, "suspended", "compliant").NotifiesPublic())
}
