package facility

import (
	"context"
	"sort"
	"strings"
	"sync"

	"careledger/internal/registry/models"
	id "careledger/pkg/domain"
	"careledger/pkg/platform/sentinel"
)

// MemoryStore keeps facility registrations in memory with the same semantics
// as the postgres store.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[id.FacilityID]*models.FacilityRegistration
	byCode map[id.RegistryCode]id.FacilityID
}

// NewMemory constructs an empty in-memory facility store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[id.FacilityID]*models.FacilityRegistration),
		byCode: make(map[id.RegistryCode]id.FacilityID),
	}
}

// Create inserts a new registration. Fails if the registry code or
// registration number is taken.
func (s *MemoryStore) Create(ctx context.Context, f *models.FacilityRegistration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[f.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	if _, exists := s.byCode[f.RegistryCode]; exists {
		return sentinel.ErrAlreadyUsed
	}
	for _, existing := range s.byID {
		if existing.RegistrationNumber == f.RegistrationNumber {
			return sentinel.ErrAlreadyUsed
		}
	}
	clone := *f
	s.byID[f.ID] = &clone
	s.byCode[f.RegistryCode] = f.ID
	return nil
}

// FindByID retrieves a registration by internal ID.
func (s *MemoryStore) FindByID(ctx context.Context, facilityID id.FacilityID) (*models.FacilityRegistration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.byID[facilityID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *f
	return &clone, nil
}

// FindByCode retrieves a registration by public registry code.
func (s *MemoryStore) FindByCode(ctx context.Context, code id.RegistryCode) (*models.FacilityRegistration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	facilityID, ok := s.byCode[code]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *s.byID[facilityID]
	return &clone, nil
}

// FindByRegistrationNumber retrieves a registration by its legal registration number.
func (s *MemoryStore) FindByRegistrationNumber(ctx context.Context, number string) (*models.FacilityRegistration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, f := range s.byID {
		if f.RegistrationNumber == number {
			clone := *f
			return &clone, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// SearchByName returns registrations whose legal name contains the query,
// case-insensitively, ordered by name.
func (s *MemoryStore) SearchByName(ctx context.Context, query string) ([]*models.FacilityRegistration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(query)
	var out []*models.FacilityRegistration
	for _, f := range s.byID {
		if strings.Contains(strings.ToLower(f.LegalName), needle) {
			clone := *f
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LegalName < out[j].LegalName })
	return out, nil
}

// UpdateVersioned persists a mutated registration if the stored version still
// matches expectedVersion.
func (s *MemoryStore) UpdateVersioned(ctx context.Context, f *models.FacilityRegistration, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.byID[f.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return sentinel.ErrStaleVersion
	}
	clone := *f
	clone.Version = expectedVersion + 1
	s.byID[f.ID] = &clone
	f.Version = clone.Version
	return nil
}
