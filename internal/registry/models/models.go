package models

import (
	"time"

	id "careledger/pkg/domain"
	dErrors "careledger/pkg/domain-errors"
)

// CaregiverStatus is the closed set of lifecycle states for caregiver memberships.
type CaregiverStatus string

const (
	CaregiverUnderReview CaregiverStatus = "under_review"
	CaregiverCompliant   CaregiverStatus = "compliant"
	CaregiverSuspended   CaregiverStatus = "suspended"
	CaregiverRevoked     CaregiverStatus = "revoked"
)

// FacilityStatus is the closed set of lifecycle states for facility registrations.
type FacilityStatus string

const (
	FacilityPending   FacilityStatus = "pending"
	FacilityActive    FacilityStatus = "active"
	FacilitySuspended FacilityStatus = "suspended"
	FacilityRevoked   FacilityStatus = "revoked"
)

// ActionType enumerates the administrative actions that change registrant status.
type ActionType string

const (
	ActionApprove   ActionType = "approve"
	ActionSuspend   ActionType = "suspend"
	ActionRevoke    ActionType = "revoke"
	ActionReinstate ActionType = "reinstate"
)

// RequiresReason reports whether the action must carry a non-empty reason.
// Suspensions and revocations are user-impacting and must be justified.
func (a ActionType) RequiresReason() bool {
	return a == ActionSuspend || a == ActionRevoke
}

// ParseActionType validates an action name at trust boundaries.
func ParseActionType(s string) (ActionType, error) {
	switch ActionType(s) {
	case ActionApprove, ActionSuspend, ActionRevoke, ActionReinstate:
		return ActionType(s), nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "unknown action type")
}

// The transition tables are the single authority on which transitions are
// legal. Every status change goes through NextCaregiverStatus or
// NextFacilityStatus; no call site re-implements these rules.
//
// Revoked has no outgoing entries: it is terminal.
var caregiverTransitions = map[CaregiverStatus]map[ActionType]CaregiverStatus{
	CaregiverUnderReview: {
		ActionApprove:   CaregiverCompliant,
		ActionReinstate: CaregiverCompliant,
		ActionRevoke:    CaregiverRevoked,
	},
	CaregiverCompliant: {
		ActionSuspend: CaregiverSuspended,
		ActionRevoke:  CaregiverRevoked,
	},
	CaregiverSuspended: {
		ActionReinstate: CaregiverCompliant,
		ActionRevoke:    CaregiverRevoked,
	},
}

var facilityTransitions = map[FacilityStatus]map[ActionType]FacilityStatus{
	FacilityPending: {
		ActionApprove:   FacilityActive,
		ActionReinstate: FacilityActive,
		ActionRevoke:    FacilityRevoked,
	},
	FacilityActive: {
		ActionSuspend: FacilitySuspended,
		ActionRevoke:  FacilityRevoked,
	},
	FacilitySuspended: {
		ActionReinstate: FacilityActive,
		ActionRevoke:    FacilityRevoked,
	},
}

// NextCaregiverStatus resolves the target state for (current, action).
// Returns false when the transition is not in the table.
func NextCaregiverStatus(current CaregiverStatus, action ActionType) (CaregiverStatus, bool) {
	next, ok := caregiverTransitions[current][action]
	return next, ok
}

// NextFacilityStatus resolves the target state for (current, action).
func NextFacilityStatus(current FacilityStatus, action ActionType) (FacilityStatus, bool) {
	next, ok := facilityTransitions[current][action]
	return next, ok
}

// MembershipCategory enumerates caregiver membership tiers.
type MembershipCategory string

const (
	CategoryStudent       MembershipCategory = "student"
	CategoryAssociate     MembershipCategory = "associate"
	CategoryFull          MembershipCategory = "full"
	CategoryTrainer       MembershipCategory = "trainer"
	CategoryInstitutional MembershipCategory = "institutional"
)

// ParseMembershipCategory validates a category name at trust boundaries.
func ParseMembershipCategory(s string) (MembershipCategory, error) {
	switch MembershipCategory(s) {
	case CategoryStudent, CategoryAssociate, CategoryFull, CategoryTrainer, CategoryInstitutional:
		return MembershipCategory(s), nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "unknown membership category")
}

// CaregiverMembership is an individual registrant. Status is the canonical
// compliance state; Active and the reason fields are denormalized from it and
// must only change together with it.
type CaregiverMembership struct {
	ID           id.CaregiverID  `json:"id"`
	RegistryCode id.RegistryCode `json:"registry_code"`
	ProfileID    id.ProfileID    `json:"profile_id"`

	FullName       string             `json:"full_name"`
	Category       MembershipCategory `json:"category"`
	Specialization string             `json:"specialization,omitempty"`
	Affiliation    string             `json:"affiliation,omitempty"`

	Status       CaregiverStatus `json:"status"`
	Active       bool            `json:"active"`
	CPDCompliant bool            `json:"cpd_compliant"`

	FoundingMember bool `json:"founding_member"`
	RecapPaid      bool `json:"recap_paid"`

	JoinedAt  time.Time `json:"joined_at"`
	ExpiresAt time.Time `json:"expires_at"`

	StatusReason    *string    `json:"status_reason,omitempty"`
	StatusChangedAt *time.Time `json:"status_changed_at,omitempty"`

	// Version implements optimistic concurrency: stores reject writes whose
	// version no longer matches the row.
	Version   int       `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCaregiverMembership creates a membership in its initial under_review state.
func NewCaregiverMembership(caregiverID id.CaregiverID, code id.RegistryCode, profileID id.ProfileID, fullName string, category MembershipCategory, expiresAt time.Time, now time.Time) (*CaregiverMembership, error) {
	if fullName == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "caregiver name cannot be empty")
	}
	if code.Kind() != id.KindCaregiver {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "registry code is not a caregiver code")
	}
	return &CaregiverMembership{
		ID:           caregiverID,
		RegistryCode: code,
		ProfileID:    profileID,
		FullName:     fullName,
		Category:     category,
		Status:       CaregiverUnderReview,
		Active:       false,
		JoinedAt:     now,
		ExpiresAt:    expiresAt,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Apply validates the action against the transition table and mutates the
// membership in place. The caller persists the result together with the audit
// record inside one transaction.
func (m *CaregiverMembership) Apply(action ActionType, reason string, now time.Time) error {
	if err := validateReason(action, reason); err != nil {
		return err
	}
	next, ok := NextCaregiverStatus(m.Status, action)
	if !ok {
		return dErrors.New(dErrors.CodeInvalidTransition,
			"cannot "+string(action)+" a caregiver in state "+string(m.Status))
	}
	m.Status = next
	m.Active = next == CaregiverCompliant
	applyReasonFields(&m.StatusReason, &m.StatusChangedAt, action, reason, now)
	m.UpdatedAt = now
	return nil
}

// FacilityRegistration is an institutional registrant.
type FacilityRegistration struct {
	ID           id.FacilityID   `json:"id"`
	RegistryCode id.RegistryCode `json:"registry_code"`

	LegalName          string       `json:"legal_name"`
	RegistrationNumber string       `json:"registration_number"`
	FacilityType       string       `json:"facility_type"`
	AddressLine        string       `json:"address_line"`
	City               string       `json:"city"`
	Region             string       `json:"region"`
	Capacity           int          `json:"capacity"`
	OwnerID            id.ProfileID `json:"owner_id"`

	Status          FacilityStatus `json:"status"`
	ComplianceScore int            `json:"compliance_score"`

	LastInspectionAt *time.Time `json:"last_inspection_at,omitempty"`
	NextInspectionAt *time.Time `json:"next_inspection_at,omitempty"`

	StatusReason    *string    `json:"status_reason,omitempty"`
	StatusChangedAt *time.Time `json:"status_changed_at,omitempty"`

	Version   int       `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewFacilityRegistration creates a registration in its initial pending state.
func NewFacilityRegistration(facilityID id.FacilityID, code id.RegistryCode, legalName, registrationNumber, facilityType string, capacity int, ownerID id.ProfileID, now time.Time) (*FacilityRegistration, error) {
	if legalName == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "facility legal name cannot be empty")
	}
	if registrationNumber == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "facility registration number cannot be empty")
	}
	if code.Kind() != id.KindFacility {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "registry code is not a facility code")
	}
	return &FacilityRegistration{
		ID:                 facilityID,
		RegistryCode:       code,
		LegalName:          legalName,
		RegistrationNumber: registrationNumber,
		FacilityType:       facilityType,
		Capacity:           capacity,
		OwnerID:            ownerID,
		Status:             FacilityPending,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// Apply validates the action against the transition table and mutates the
// registration in place.
func (f *FacilityRegistration) Apply(action ActionType, reason string, now time.Time) error {
	if err := validateReason(action, reason); err != nil {
		return err
	}
	next, ok := NextFacilityStatus(f.Status, action)
	if !ok {
		return dErrors.New(dErrors.CodeInvalidTransition,
			"cannot "+string(action)+" a facility in state "+string(f.Status))
	}
	f.Status = next
	applyReasonFields(&f.StatusReason, &f.StatusChangedAt, action, reason, now)
	f.UpdatedAt = now
	return nil
}

func validateReason(action ActionType, reason string) error {
	if action.RequiresReason() && reason == "" {
		return dErrors.New(dErrors.CodeMissingReason, string(action)+" requires a reason")
	}
	return nil
}

func applyReasonFields(reasonField **string, changedAtField **time.Time, action ActionType, reason string, now time.Time) {
	changed := now
	*changedAtField = &changed
	if action.RequiresReason() {
		r := reason
		*reasonField = &r
		return
	}
	// Approvals and reinstatements clear any prior suspension reason.
	*reasonField = nil
}
