package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "careledger/pkg/domain"
	dErrors "careledger/pkg/domain-errors"
)

func newMembership(t *testing.T, status CaregiverStatus) *CaregiverMembership {
	t.Helper()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m, err := NewCaregiverMembership(
		id.CaregiverID(uuid.New()),
		id.RegistryCode("NIC-MEM-5502"),
		id.ProfileID(uuid.New()),
		"John Adebayo",
		CategoryFull,
		now.AddDate(1, 0, 0),
		now,
	)
	require.NoError(t, err)
	m.Status = status
	m.Active = status == CaregiverCompliant
	return m
}

func TestCaregiverTransitionTable(t *testing.T) {
	cases := []struct {
		name    string
		from    CaregiverStatus
		action  ActionType
		want    CaregiverStatus
		allowed bool
	}{
		{"approve from under_review", CaregiverUnderReview, ActionApprove, CaregiverCompliant, true},
		{"revoke from under_review", CaregiverUnderReview, ActionRevoke, CaregiverRevoked, true},
		{"reinstate from under_review", CaregiverUnderReview, ActionReinstate, CaregiverCompliant, true},
		{"suspend from under_review rejected", CaregiverUnderReview, ActionSuspend, "", false},
		{"suspend from compliant", CaregiverCompliant, ActionSuspend, CaregiverSuspended, true},
		{"revoke from compliant", CaregiverCompliant, ActionRevoke, CaregiverRevoked, true},
		{"approve from compliant rejected", CaregiverCompliant, ActionApprove, "", false},
		{"reinstate from compliant rejected", CaregiverCompliant, ActionReinstate, "", false},
		{"reinstate from suspended", CaregiverSuspended, ActionReinstate, CaregiverCompliant, true},
		{"revoke from suspended", CaregiverSuspended, ActionRevoke, CaregiverRevoked, true},
		{"suspend from suspended rejected", CaregiverSuspended, ActionSuspend, "", false},
		{"revoked is terminal for reinstate", CaregiverRevoked, ActionReinstate, "", false},
		{"revoked is terminal for suspend", CaregiverRevoked, ActionSuspend, "", false},
		{"revoked is terminal for approve", CaregiverRevoked, ActionApprove, "", false},
		{"revoked is terminal for revoke", CaregiverRevoked, ActionRevoke, "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, ok := NextCaregiverStatus(tc.from, tc.action)
			assert.Equal(t, tc.allowed, ok)
			if tc.allowed {
				assert.Equal(t, tc.want, next)
			}
		})
	}
}

func TestFacilityTransitionTable(t *testing.T) {
	cases := []struct {
		from    FacilityStatus
		action  ActionType
		want    FacilityStatus
		allowed bool
	}{
		{FacilityPending, ActionApprove, FacilityActive, true},
		{FacilityPending, ActionRevoke, FacilityRevoked, true},
		{FacilityActive, ActionSuspend, FacilitySuspended, true},
		{FacilityActive, ActionRevoke, FacilityRevoked, true},
		{FacilitySuspended, ActionReinstate, FacilityActive, true},
		{FacilitySuspended, ActionRevoke, FacilityRevoked, true},
		{FacilityRevoked, ActionReinstate, "", false},
		{FacilityRevoked, ActionApprove, "", false},
	}

	for _, tc := range cases {
		next, ok := NextFacilityStatus(tc.from, tc.action)
		assert.Equal(t, tc.allowed, ok, "%s + %s", tc.from, tc.action)
		if tc.allowed {
			assert.Equal(t, tc.want, next)
		}
	}
}

func TestApplySetsDenormalizedFields(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	t.Run("suspend records reason and clears active", func(t *testing.T) {
		m := newMembership(t, CaregiverCompliant)
		require.NoError(t, m.Apply(ActionSuspend, "pending investigation", now))

		assert.Equal(t, CaregiverSuspended, m.Status)
		assert.False(t, m.Active)
		require.NotNil(t, m.StatusReason)
		assert.Equal(t, "pending investigation", *m.StatusReason)
		require.NotNil(t, m.StatusChangedAt)
		assert.Equal(t, now, *m.StatusChangedAt)
	})

	t.Run("reinstate clears reason and restores active", func(t *testing.T) {
		m := newMembership(t, CaregiverSuspended)
		reason := "prior suspension"
		m.StatusReason = &reason

		require.NoError(t, m.Apply(ActionReinstate, "", now))

		assert.Equal(t, CaregiverCompliant, m.Status)
		assert.True(t, m.Active)
		assert.Nil(t, m.StatusReason)
	})

	t.Run("approve activates membership", func(t *testing.T) {
		m := newMembership(t, CaregiverUnderReview)
		require.NoError(t, m.Apply(ActionApprove, "", now))
		assert.Equal(t, CaregiverCompliant, m.Status)
		assert.True(t, m.Active)
	})
}

func TestApplyReasonPolicy(t *testing.T) {
	now := time.Now()

	t.Run("suspend without reason fails before any mutation", func(t *testing.T) {
		m := newMembership(t, CaregiverCompliant)
		err := m.Apply(ActionSuspend, "", now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeMissingReason))
		assert.Equal(t, CaregiverCompliant, m.Status)
		assert.Nil(t, m.StatusReason)
	})

	t.Run("revoke without reason fails", func(t *testing.T) {
		m := newMembership(t, CaregiverCompliant)
		err := m.Apply(ActionRevoke, "", now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeMissingReason))
	})

	t.Run("invalid transition reported with code", func(t *testing.T) {
		m := newMembership(t, CaregiverRevoked)
		err := m.Apply(ActionReinstate, "", now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
		assert.Equal(t, CaregiverRevoked, m.Status)
	})
}

func TestNewCaregiverMembershipInvariants(t *testing.T) {
	now := time.Now()

	t.Run("rejects empty name", func(t *testing.T) {
		_, err := NewCaregiverMembership(id.CaregiverID(uuid.New()), "NIC-MEM-0001", id.ProfileID(uuid.New()), "", CategoryFull, now, now)
		require.Error(t, err)
	})

	t.Run("rejects facility code", func(t *testing.T) {
		_, err := NewCaregiverMembership(id.CaregiverID(uuid.New()), "NIC-FAC-0001", id.ProfileID(uuid.New()), "Jane", CategoryFull, now, now)
		require.Error(t, err)
	})

	t.Run("starts under review and inactive", func(t *testing.T) {
		m, err := NewCaregiverMembership(id.CaregiverID(uuid.New()), "NIC-MEM-0001", id.ProfileID(uuid.New()), "Jane", CategoryAssociate, now.AddDate(1, 0, 0), now)
		require.NoError(t, err)
		assert.Equal(t, CaregiverUnderReview, m.Status)
		assert.False(t, m.Active)
		assert.Equal(t, 1, m.Version)
	})
}

func TestParseActionType(t *testing.T) {
	for _, valid := range []string{"approve", "suspend", "revoke", "reinstate"} {
		_, err := ParseActionType(valid)
		assert.NoError(t, err, valid)
	}
	_, err := ParseActionType("delete")
	assert.Error(t, err)
}
