package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"careledger/internal/audit/models"
	id "careledger/pkg/domain"
)

// MemoryStore keeps audit records in memory for unit tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records []*models.RegistryAction
}

// NewMemory constructs an empty in-memory audit store.
func NewMemory() *MemoryStore {
	return &MemoryStore{}
}

// Append adds a record. The trail is append-only; there is no update or delete.
func (s *MemoryStore) Append(ctx context.Context, rec *models.RegistryAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *rec
	s.records = append(s.records, &clone)
	return nil
}

// ListByTarget returns all records for one registrant, newest first.
func (s *MemoryStore) ListByTarget(ctx context.Context, kind id.RegistrantKind, targetID uuid.UUID) ([]*models.RegistryAction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.RegistryAction
	for _, rec := range s.records {
		if rec.TargetKind == kind && rec.TargetID == targetID {
			clone := *rec
			out = append(out, &clone)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// ListRecent returns the most recent records across all registrants.
func (s *MemoryStore) ListRecent(ctx context.Context, limit int) ([]*models.RegistryAction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.RegistryAction, 0, len(s.records))
	for _, rec := range s.records {
		clone := *rec
		out = append(out, &clone)
	}
	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortNewestFirst(recs []*models.RegistryAction) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].OccurredAt.After(recs[j].OccurredAt)
	})
}
