// Package policy provides storage for organization security policies.
//
// Error contract (shared by all implementations):
//   - sentinel.ErrNotFound  no stored policy for the organization
package policy

import (
	"context"
	"sync"

	"warden/internal/sessionpolicy/models"
	id "warden/pkg/domain"
	"warden/pkg/platform/sentinel"
)

// InMemoryStore keeps policies in process memory.
type InMemoryStore struct {
	mu       sync.RWMutex
	policies map[id.OrgID]*models.SecurityPolicy
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		policies: make(map[id.OrgID]*models.SecurityPolicy),
	}
}

func (s *InMemoryStore) FindByOrg(_ context.Context, orgID id.OrgID) (*models.SecurityPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	policy, ok := s.policies[orgID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(policy), nil
}

// Upsert stores the policy, replacing any prior version for the org.
func (s *InMemoryStore) Upsert(_ context.Context, policy *models.SecurityPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.policies[policy.OrgID] = clone(policy)
	return nil
}

func clone(policy *models.SecurityPolicy) *models.SecurityPolicy {
	copied := *policy
	copied.AllowedIPRanges = append([]string(nil), policy.AllowedIPRanges...)
	copied.SensitiveActions = append([]string(nil), policy.SensitiveActions...)
	return &copied
}
