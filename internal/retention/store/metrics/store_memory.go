// Package metrics provides storage for daily retention metrics rows.
package metrics

import (
	"context"
	"sync"
	"time"

	"warden/internal/retention/models"
)

// InMemoryStore keeps daily metrics in process memory.
type InMemoryStore struct {
	mu   sync.RWMutex
	days map[time.Time]*models.DailyMetrics
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		days: make(map[time.Time]*models.DailyMetrics),
	}
}

// Upsert replaces the row for the metrics' day.
func (s *InMemoryStore) Upsert(_ context.Context, metrics *models.DailyMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *metrics
	s.days[metrics.Day] = &copied
	return nil
}

// FindByDay returns the row for the given day, or nil when absent.
func (s *InMemoryStore) FindByDay(_ context.Context, day time.Time) (*models.DailyMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metrics, ok := s.days[day]
	if !ok {
		return nil, nil
	}
	copied := *metrics
	return &copied, nil
}
