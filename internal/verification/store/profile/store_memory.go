// Package profile provides storage for company profiles.
//
// Error contract (shared by all implementations):
//   - sentinel.ErrNotFound  unknown company ID
//   - sentinel.ErrConflict  duplicate company ID on create
package profile

import (
	"context"
	"sync"

	"warden/internal/verification/models"
	id "warden/pkg/domain"
	"warden/pkg/platform/sentinel"
)

// InMemoryStore keeps profiles in process memory.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[id.CompanyID]*models.CompanyProfile
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		profiles: make(map[id.CompanyID]*models.CompanyProfile),
	}
}

func (s *InMemoryStore) Create(_ context.Context, profile *models.CompanyProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.profiles[profile.CompanyID]; exists {
		return sentinel.ErrConflict
	}
	s.profiles[profile.CompanyID] = clone(profile)
	return nil
}

func (s *InMemoryStore) FindByCompany(_ context.Context, companyID id.CompanyID) (*models.CompanyProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.profiles[companyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(profile), nil
}

func (s *InMemoryStore) Execute(_ context.Context, companyID id.CompanyID,
	validate func(*models.CompanyProfile) error,
	mutate func(*models.CompanyProfile),
) (*models.CompanyProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.profiles[companyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	working := clone(stored)
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	s.profiles[companyID] = working
	return clone(working), nil
}

func clone(profile *models.CompanyProfile) *models.CompanyProfile {
	copied := *profile
	if profile.DomainLastChecked != nil {
		checked := *profile.DomainLastChecked
		copied.DomainLastChecked = &checked
	}
	return &copied
}
