package querylog

import (
	"context"
	"sync"
	"time"

	"careledger/internal/verify/models"
)

// MemoryStore keeps verification query logs in memory for unit tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records []*models.VerificationQuery
}

// NewMemory constructs an empty in-memory query log.
func NewMemory() *MemoryStore {
	return &MemoryStore{}
}

// Append adds a log record. The log is append-only.
func (s *MemoryStore) Append(ctx context.Context, q *models.VerificationQuery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *q
	s.records = append(s.records, &clone)
	return nil
}

// CountByOutcomeSince returns query counts per outcome after the cutoff.
func (s *MemoryStore) CountByOutcomeSince(ctx context.Context, since time.Time) (map[models.QueryOutcome]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[models.QueryOutcome]int64)
	for _, q := range s.records {
		if q.OccurredAt.Before(since) {
			continue
		}
		out[q.Outcome]++
	}
	return out, nil
}

// All returns every record in insertion order. Test helper.
func (s *MemoryStore) All() []*models.VerificationQuery {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.VerificationQuery, 0, len(s.records))
	for _, q := range s.records {
		clone := *q
		out = append(out, &clone)
	}
	return out
}
