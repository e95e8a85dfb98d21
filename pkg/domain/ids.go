// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "careledger/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing a CaregiverID where a FacilityID is expected.
type (
	CaregiverID uuid.UUID
	FacilityID  uuid.UUID
	ActionID    uuid.UUID
	QueryLogID  uuid.UUID
	ProfileID   uuid.UUID
)

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseCaregiverID(s string) (CaregiverID, error) {
	id, err := parseUUID(s, "caregiver ID")
	return CaregiverID(id), err
}

func ParseFacilityID(s string) (FacilityID, error) {
	id, err := parseUUID(s, "facility ID")
	return FacilityID(id), err
}

func ParseActionID(s string) (ActionID, error) {
	id, err := parseUUID(s, "action ID")
	return ActionID(id), err
}

func ParseProfileID(s string) (ProfileID, error) {
	id, err := parseUUID(s, "profile ID")
	return ProfileID(id), err
}

func parseUUID(s, label string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	return id, nil
}

// String methods - for logging and debugging.

func (id CaregiverID) String() string { return uuid.UUID(id).String() }
func (id FacilityID) String() string  { return uuid.UUID(id).String() }
func (id ActionID) String() string    { return uuid.UUID(id).String() }
func (id QueryLogID) String() string  { return uuid.UUID(id).String() }
func (id ProfileID) String() string   { return uuid.UUID(id).String() }

// IsNil reports whether the ID is the zero UUID.

func (id CaregiverID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id FacilityID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id ActionID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ProfileID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
