// Package record provides storage for retention records.
//
// Error contract (shared by all implementations):
//   - sentinel.ErrNotFound  unknown user ID
//   - sentinel.ErrConflict  duplicate user ID on create
package record

import (
	"context"
	"sync"
	"time"

	"warden/internal/retention/models"
	id "warden/pkg/domain"
	"warden/pkg/platform/sentinel"
)

// InMemoryStore keeps retention records in process memory.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.UserID]*models.Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[id.UserID]*models.Record),
	}
}

func (s *InMemoryStore) Create(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.UserID]; exists {
		return sentinel.ErrConflict
	}
	s.records[record.UserID] = clone(record)
	return nil
}

func (s *InMemoryStore) FindByUser(_ context.Context, userID id.UserID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(record), nil
}

func (s *InMemoryStore) Update(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[record.UserID]; !ok {
		return sentinel.ErrNotFound
	}
	s.records[record.UserID] = clone(record)
	return nil
}

func (s *InMemoryStore) ListByStatus(_ context.Context, status models.Status) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Record
	for _, record := range s.records {
		if record.Status == status {
			out = append(out, clone(record))
		}
	}
	return out, nil
}

func clone(record *models.Record) *models.Record {
	copied := *record
	copied.LastActivityAt = cloneTime(record.LastActivityAt)
	copied.Notifications.WarningSentAt = cloneTime(record.Notifications.WarningSentAt)
	copied.Notifications.ApproachingInactiveSentAt = cloneTime(record.Notifications.ApproachingInactiveSentAt)
	copied.Notifications.InactiveSentAt = cloneTime(record.Notifications.InactiveSentAt)
	return &copied
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	copied := *t
	return &copied
}
