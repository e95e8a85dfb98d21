// Package outbox implements the transactional outbox for registry notices.
// Entries are written in the same transaction as the status change and
// drained to Kafka by a background worker, so a notice is published if and
// only if the transition committed.
package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	auditmodels "careledger/internal/audit/models"
)

// Entry is a pending registry notice in the outbox table.
type Entry struct {
	ID           uuid.UUID
	RegistryCode string
	TargetKind   string
	NoticeType   string // e.g. "registrant_suspended", "registrant_revoked"
	Payload      []byte // JSON-encoded Notice
	CreatedAt    time.Time
	ProcessedAt  *time.Time // NULL = pending, non-NULL = published
}

// IsPending reports whether the entry has not been published yet.
func (e *Entry) IsPending() bool {
	return e.ProcessedAt == nil
}

// Notice is the wire payload consumed by downstream systems that mirror the
// public registry.
type Notice struct {
	NoticeType   string    `json:"notice_type"`
	RegistryCode string    `json:"registry_code"`
	TargetKind   string    `json:"target_kind"`
	Action       string    `json:"action"`
	NewStatus    string    `json:"new_status"`
	Reason       string    `json:"reason,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// NewEntryFromAction converts a notifying audit record into an outbox entry.
func NewEntryFromAction(rec *auditmodels.RegistryAction) (*Entry, error) {
	noticeType := "registrant_" + rec.ToStatus
	notice := Notice{
		NoticeType:   noticeType,
		RegistryCode: string(rec.RegistryCode),
		TargetKind:   string(rec.TargetKind),
		Action:       string(rec.Action),
		NewStatus:    rec.ToStatus,
		OccurredAt:   rec.OccurredAt,
	}
	if rec.Reason != nil {
		notice.Reason = *rec.Reason
	}
	payload, err := json.Marshal(notice)
	if err != nil {
		return nil, fmt.Errorf("marshal registry notice: %w", err)
	}
	return &Entry{
		ID:           uuid.New(),
		RegistryCode: string(rec.RegistryCode),
		TargetKind:   string(rec.TargetKind),
		NoticeType:   noticeType,
		Payload:      payload,
		CreatedAt:    rec.OccurredAt,
	}, nil
}
