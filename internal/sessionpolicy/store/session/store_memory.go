// Package session provides storage for active sessions.
//
// Error contract (shared by all implementations):
//   - sentinel.ErrNotFound  unknown session ID
//   - sentinel.ErrConflict  duplicate session ID on create
package session

import (
	"context"
	"sort"
	"sync"

	"warden/internal/sessionpolicy/models"
	id "warden/pkg/domain"
	"warden/pkg/platform/sentinel"
)

// InMemoryStore keeps sessions in process memory.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]*models.Session
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[id.SessionID]*models.Session),
	}
}

func (s *InMemoryStore) Create(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return sentinel.ErrConflict
	}
	copied := *session
	s.sessions[session.ID] = &copied
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, sessionID id.SessionID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *session
	return &copied, nil
}

// ListByUser returns the user's sessions ordered oldest first.
func (s *InMemoryStore) ListByUser(_ context.Context, orgID id.OrgID, userID id.UserID) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Session
	for _, session := range s.sessions {
		if session.OrgID == orgID && session.UserID == userID {
			copied := *session
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) Update(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; !ok {
		return sentinel.ErrNotFound
	}
	copied := *session
	s.sessions[session.ID] = &copied
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, sessionID id.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

// DeleteByUser removes every session for the user except the given one,
// returning the number removed. A nil except ID spares nothing.
func (s *InMemoryStore) DeleteByUser(_ context.Context, orgID id.OrgID, userID id.UserID, except id.SessionID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for sessionID, session := range s.sessions {
		if session.OrgID != orgID || session.UserID != userID {
			continue
		}
		if !except.IsNil() && sessionID == except {
			continue
		}
		delete(s.sessions, sessionID)
		removed++
	}
	return removed, nil
}
