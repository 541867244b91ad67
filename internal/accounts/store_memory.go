package accounts

import (
	"context"
	"fmt"
	"sync"
	"time"

	id "warden/pkg/domain"
	"warden/pkg/platform/sentinel"
)

// Error Contract:
// All store methods follow this pattern:
// - Return ErrNotFound when the requested entity does not exist
// - Return nil for successful operations
// - Return wrapped errors with context for infrastructure failures

// InMemoryStore keeps accounts in memory for tests/dev.
type InMemoryStore struct {
	mu       sync.RWMutex
	accounts map[id.UserID]*Account
}

// NewMemory constructs an empty in-memory account store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{accounts: make(map[id.UserID]*Account)}
}

func (s *InMemoryStore) Create(_ context.Context, account *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[account.ID]; exists {
		return fmt.Errorf("account already exists: %w", sentinel.ErrConflict)
	}
	for _, existing := range s.accounts {
		if existing.Email == account.Email {
			return fmt.Errorf("email already registered: %w", sentinel.ErrConflict)
		}
	}
	copied := *account
	s.accounts[account.ID] = &copied
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, userID id.UserID) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if account, ok := s.accounts[userID]; ok {
		copied := *account
		return &copied, nil
	}
	return nil, fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
}

// ListWithLogin returns every non-anonymized account that has logged in at
// least once. This is the retention scan's candidate set.
func (s *InMemoryStore) ListWithLogin(_ context.Context) ([]*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*Account
	for _, account := range s.accounts {
		if account.LastLoginAt == nil || account.Anonymized {
			continue
		}
		copied := *account
		matched = append(matched, &copied)
	}
	return matched, nil
}

func (s *InMemoryStore) RecordLogin(_ context.Context, userID id.UserID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[userID]
	if !ok {
		return fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
	}
	account.ApplyLogin(at)
	return nil
}

// Anonymize scrubs the account's PII. Idempotent: repeat calls succeed.
func (s *InMemoryStore) Anonymize(ctx context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[userID]
	if !ok {
		return fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
	}
	account.ApplyAnonymization(time.Now())
	return nil
}
