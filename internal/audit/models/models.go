// Package models defines the append-only audit trail records for registry
// status transitions.
package models

import (
	"time"

	"github.com/google/uuid"

	registrymodels "careledger/internal/registry/models"
	id "careledger/pkg/domain"
	dErrors "careledger/pkg/domain-errors"
)

// RegistryAction is one immutable audit record. It is written in the same
// transaction as the status change it describes; neither exists without the
// other. Records are never updated or deleted.
type RegistryAction struct {
	ID id.ActionID `json:"id"`

	TargetKind   id.RegistrantKind `json:"target_kind"`
	TargetID     uuid.UUID         `json:"target_id"`
	RegistryCode id.RegistryCode   `json:"registry_code"`

	Action     registrymodels.ActionType `json:"action"`
	FromStatus string                    `json:"from_status"`
	ToStatus   string                    `json:"to_status"`
	Reason     *string                   `json:"reason,omitempty"`

	ActorID    string    `json:"actor_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewRegistryAction builds an audit record for an already-validated transition.
func NewRegistryAction(kind id.RegistrantKind, targetID uuid.UUID, code id.RegistryCode, action registrymodels.ActionType, fromStatus, toStatus, reason, actorID string, now time.Time) (*RegistryAction, error) {
	if actorID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "audit record requires an actor")
	}
	rec := &RegistryAction{
		ID:           id.ActionID(uuid.New()),
		TargetKind:   kind,
		TargetID:     targetID,
		RegistryCode: code,
		Action:       action,
		FromStatus:   fromStatus,
		ToStatus:     toStatus,
		ActorID:      actorID,
		OccurredAt:   now,
	}
	if reason != "" {
		rec.Reason = &reason
	}
	return rec, nil
}

// NotifiesPublic reports whether this action produces an outbound registry
// notice. Only actions that remove a registrant from good standing are
// broadcast.
func (a *RegistryAction) NotifiesPublic() bool {
	return a.Action == registrymodels.ActionSuspend || a.Action == registrymodels.ActionRevoke
}
