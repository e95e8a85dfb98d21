package handler

import (
	"strings"
	"time"

	"careledger/internal/registry/models"
	"careledger/internal/registry/service"
	id "careledger/pkg/domain"
	dErrors "careledger/pkg/domain-errors"
)

// transitionRequest carries the optional justification for a status action.
type transitionRequest struct {
	Reason string `json:"reason"`
}

func (r *transitionRequest) Normalize() {
	r.Reason = strings.TrimSpace(r.Reason)
}

// registerCaregiverRequest is the onboarding payload for an individual
// registrant.
type registerCaregiverRequest struct {
	ProfileID      string    `json:"profile_id"`
	FullName       string    `json:"full_name"`
	Category       string    `json:"category"`
	Specialization string    `json:"specialization"`
	Affiliation    string    `json:"affiliation"`
	ExpiresAt      time.Time `json:"expires_at"`
}

func (r *registerCaregiverRequest) Normalize() {
	r.FullName = strings.TrimSpace(r.FullName)
	r.Category = strings.ToLower(strings.TrimSpace(r.Category))
	r.Specialization = strings.TrimSpace(r.Specialization)
	r.Affiliation = strings.TrimSpace(r.Affiliation)
}

func (r *registerCaregiverRequest) Validate() error {
	if r.FullName == "" {
		return dErrors.New(dErrors.CodeValidation, "full_name is required")
	}
	if _, err := id.ParseProfileID(r.ProfileID); err != nil {
		return err
	}
	if _, err := models.ParseMembershipCategory(r.Category); err != nil {
		return err
	}
	if r.ExpiresAt.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "expires_at is required")
	}
	return nil
}

func (r *registerCaregiverRequest) toInput() (service.RegisterCaregiverInput, error) {
	profileID, err := id.ParseProfileID(r.ProfileID)
	if err != nil {
		return service.RegisterCaregiverInput{}, err
	}
	category, err := models.ParseMembershipCategory(r.Category)
	if err != nil {
		return service.RegisterCaregiverInput{}, err
	}
	return service.RegisterCaregiverInput{
		ProfileID:      profileID,
		FullName:       r.FullName,
		Category:       category,
		Specialization: r.Specialization,
		Affiliation:    r.Affiliation,
		ExpiresAt:      r.ExpiresAt,
	}, nil
}

// registerFacilityRequest is the onboarding payload for an institutional
// registrant.
type registerFacilityRequest struct {
	OwnerID            string `json:"owner_id"`
	LegalName          string `json:"legal_name"`
	RegistrationNumber string `json:"registration_number"`
	FacilityType       string `json:"facility_type"`
	AddressLine        string `json:"address_line"`
	City               string `json:"city"`
	Region             string `json:"region"`
	Capacity           int    `json:"capacity"`
}

func (r *registerFacilityRequest) Normalize() {
	r.LegalName = strings.TrimSpace(r.LegalName)
	r.RegistrationNumber = strings.ToUpper(strings.TrimSpace(r.RegistrationNumber))
	r.FacilityType = strings.ToLower(strings.TrimSpace(r.FacilityType))
	r.City = strings.TrimSpace(r.City)
	r.Region = strings.TrimSpace(r.Region)
}

func (r *registerFacilityRequest) Validate() error {
	if r.LegalName == "" {
		return dErrors.New(dErrors.CodeValidation, "legal_name is required")
	}
	if r.RegistrationNumber == "" {
		return dErrors.New(dErrors.CodeValidation, "registration_number is required")
	}
	if _, err := id.ParseProfileID(r.OwnerID); err != nil {
		return err
	}
	if r.Capacity < 0 {
		return dErrors.New(dErrors.CodeValidation, "capacity cannot be negative")
	}
	return nil
}

func (r *registerFacilityRequest) toInput() (service.RegisterFacilityInput, error) {
	ownerID, err := id.ParseProfileID(r.OwnerID)
	if err != nil {
		return service.RegisterFacilityInput{}, err
	}
	return service.RegisterFacilityInput{
		OwnerID:            ownerID,
		LegalName:          r.LegalName,
		RegistrationNumber: r.RegistrationNumber,
		FacilityType:       r.FacilityType,
		AddressLine:        r.AddressLine,
		City:               r.City,
		Region:             r.Region,
		Capacity:           r.Capacity,
	}, nil
}
