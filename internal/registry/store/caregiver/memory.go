package caregiver

import (
	"context"
	"sort"
	"strings"
	"sync"

	"careledger/internal/registry/models"
	id "careledger/pkg/domain"
	"careledger/pkg/platform/sentinel"
)

// MemoryStore keeps caregiver memberships in memory. It mirrors the postgres
// store's semantics (including version checks) so service unit tests exercise
// the same behavior as production.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[id.CaregiverID]*models.CaregiverMembership
	byCode  map[id.RegistryCode]id.CaregiverID
}

// NewMemory constructs an empty in-memory caregiver store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[id.CaregiverID]*models.CaregiverMembership),
		byCode: make(map[id.RegistryCode]id.CaregiverID),
	}
}

// Create inserts a new membership. Fails if the registry code is taken.
func (s *MemoryStore) Create(ctx context.Context, m *models.CaregiverMembership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[m.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	if _, exists := s.byCode[m.RegistryCode]; exists {
		return sentinel.ErrAlreadyUsed
	}
	clone := *m
	s.byID[m.ID] = &clone
	s.byCode[m.RegistryCode] = m.ID
	return nil
}

// FindByID retrieves a membership by internal ID.
func (s *MemoryStore) FindByID(ctx context.Context, caregiverID id.CaregiverID) (*models.CaregiverMembership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.byID[caregiverID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *m
	return &clone, nil
}

// FindByCode retrieves a membership by public registry code.
func (s *MemoryStore) FindByCode(ctx context.Context, code id.RegistryCode) (*models.CaregiverMembership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	caregiverID, ok := s.byCode[code]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *s.byID[caregiverID]
	return &clone, nil
}

// SearchByName returns memberships whose full name contains the query,
// case-insensitively, ordered by name for deterministic results.
func (s *MemoryStore) SearchByName(ctx context.Context, query string) ([]*models.CaregiverMembership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(query)
	var out []*models.CaregiverMembership
	for _, m := range s.byID {
		if strings.Contains(strings.ToLower(m.FullName), needle) {
			clone := *m
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

// UpdateVersioned persists a mutated membership if its stored version still
// matches expectedVersion, then bumps the version. Returns ErrStaleVersion on
// a lost race and ErrNotFound for unknown IDs.
func (s *MemoryStore) UpdateVersioned(ctx context.Context, m *models.CaregiverMembership, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.byID[m.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return sentinel.ErrStaleVersion
	}
	clone := *m
	clone.Version = expectedVersion + 1
	s.byID[m.ID] = &clone
	m.Version = clone.Version
	return nil
}
