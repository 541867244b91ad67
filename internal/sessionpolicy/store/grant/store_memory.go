// Package grant provides single-use storage for reauthentication grants.
//
// Error contract (shared by all implementations):
//   - sentinel.ErrNotFound     unknown grant ID
//   - sentinel.ErrAlreadyUsed  grant was consumed before
//   - sentinel.ErrExpired      grant outlived its TTL
package grant

import (
	"context"
	"sync"
	"time"

	id "warden/pkg/domain"
	"warden/pkg/platform/sentinel"
)

// Grant is a short-lived step-up authorization scoped to one action.
type Grant struct {
	ID        string    `json:"id"`
	UserID    id.UserID `json:"user_id"`
	Action    string    `json:"action"`
	ExpiresAt time.Time `json:"expires_at"`
}

// InMemoryStore keeps grants in process memory, remembering consumed IDs so
// replay is distinguishable from an unknown grant.
type InMemoryStore struct {
	mu       sync.Mutex
	grants   map[string]Grant
	consumed map[string]struct{}
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		grants:   make(map[string]Grant),
		consumed: make(map[string]struct{}),
	}
}

func (s *InMemoryStore) Save(_ context.Context, grant Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[grant.ID] = grant
	return nil
}

// Consume returns the grant and removes it so it cannot be used twice.
func (s *InMemoryStore) Consume(_ context.Context, grantID string, now time.Time) (*Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, used := s.consumed[grantID]; used {
		return nil, sentinel.ErrAlreadyUsed
	}
	grant, ok := s.grants[grantID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	delete(s.grants, grantID)
	s.consumed[grantID] = struct{}{}
	if now.After(grant.ExpiresAt) {
		return nil, sentinel.ErrExpired
	}
	return &grant, nil
}
