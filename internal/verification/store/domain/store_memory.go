// Package domain provides storage for company domain records.
//
// Error contract (shared by all implementations):
//   - sentinel.ErrNotFound  unknown domain ID
//   - sentinel.ErrConflict  duplicate ID or duplicate (company, hostname)
package domain

import (
	"context"
	"sort"
	"sync"
	"time"

	"warden/internal/verification/models"
	id "warden/pkg/domain"
	"warden/pkg/platform/sentinel"
)

// InMemoryStore keeps domain records in process memory. Used in tests and
// when no database is configured.
type InMemoryStore struct {
	mu      sync.RWMutex
	domains map[id.DomainID]*models.CompanyDomain
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		domains: make(map[id.DomainID]*models.CompanyDomain),
	}
}

func (s *InMemoryStore) Create(_ context.Context, domain *models.CompanyDomain) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.domains[domain.ID]; exists {
		return sentinel.ErrConflict
	}
	for _, existing := range s.domains {
		if existing.CompanyID == domain.CompanyID && existing.Domain == domain.Domain {
			return sentinel.ErrConflict
		}
	}
	s.domains[domain.ID] = clone(domain)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, domainID id.DomainID) (*models.CompanyDomain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	domain, ok := s.domains[domainID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(domain), nil
}

func (s *InMemoryStore) ListByCompany(_ context.Context, companyID id.CompanyID) ([]*models.CompanyDomain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.CompanyDomain
	for _, domain := range s.domains {
		if domain.CompanyID == companyID {
			out = append(out, clone(domain))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) Delete(_ context.Context, domainID id.DomainID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.domains[domainID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.domains, domainID)
	return nil
}

func (s *InMemoryStore) SetPrimary(_ context.Context, companyID id.CompanyID, domainID id.DomainID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.domains[domainID]
	if !ok || target.CompanyID != companyID {
		return sentinel.ErrNotFound
	}
	for _, domain := range s.domains {
		if domain.CompanyID == companyID && domain.IsPrimary && domain.ID != domainID {
			domain.ApplyDemoted(now)
		}
	}
	target.ApplyPrimary(now)
	return nil
}

func (s *InMemoryStore) Execute(_ context.Context, domainID id.DomainID,
	validate func(*models.CompanyDomain) error,
	mutate func(*models.CompanyDomain),
) (*models.CompanyDomain, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.domains[domainID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	working := clone(stored)
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	s.domains[domainID] = working
	return clone(working), nil
}

func clone(domain *models.CompanyDomain) *models.CompanyDomain {
	copied := *domain
	if domain.VerificationDate != nil {
		verifiedAt := *domain.VerificationDate
		copied.VerificationDate = &verifiedAt
	}
	if domain.LastChecked != nil {
		checked := *domain.LastChecked
		copied.LastChecked = &checked
	}
	return &copied
}
