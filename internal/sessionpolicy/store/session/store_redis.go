package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"warden/internal/sessionpolicy/models"
	id "warden/pkg/domain"
	"warden/pkg/platform/sentinel"
)

// maxSessionTTL caps how long an abandoned session key can linger in Redis.
// Policy timeouts are evaluated against the session's age, so this is a
// storage bound, not the expiry itself.
const maxSessionTTL = 7 * 24 * time.Hour

// RedisStore keeps sessions in Redis: one JSON value per session plus a
// per-user set for enumeration.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func sessionKey(sessionID id.SessionID) string {
	return "warden:session:" + sessionID.String()
}

func userSetKey(orgID id.OrgID, userID id.UserID) string {
	return "warden:user_sessions:" + orgID.String() + ":" + userID.String()
}

func (s *RedisStore) Create(ctx context.Context, session *models.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ok, err := s.client.SetNX(ctx, sessionKey(session.ID), payload, maxSessionTTL).Result()
	if err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	if !ok {
		return sentinel.ErrConflict
	}
	if err := s.client.SAdd(ctx, userSetKey(session.OrgID, session.UserID), session.ID.String()).Err(); err != nil {
		return fmt.Errorf("index session: %w", err)
	}
	return nil
}

func (s *RedisStore) FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	payload, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var session models.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

func (s *RedisStore) ListByUser(ctx context.Context, orgID id.OrgID, userID id.UserID) ([]*models.Session, error) {
	members, err := s.client.SMembers(ctx, userSetKey(orgID, userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list session index: %w", err)
	}

	var sessions []*models.Session
	for _, member := range members {
		sessionID, err := id.ParseSessionID(member)
		if err != nil {
			continue
		}
		session, err := s.FindByID(ctx, sessionID)
		if errors.Is(err, sentinel.ErrNotFound) {
			// Session key expired; prune the stale index entry.
			s.client.SRem(ctx, userSetKey(orgID, userID), member)
			continue
		}
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions, nil
}

func (s *RedisStore) Update(ctx context.Context, session *models.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ok, err := s.client.SetXX(ctx, sessionKey(session.ID), payload, redis.KeepTTL).Result()
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if !ok {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID id.SessionID) error {
	session, err := s.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := s.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return s.client.SRem(ctx, userSetKey(session.OrgID, session.UserID), sessionID.String()).Err()
}

func (s *RedisStore) DeleteByUser(ctx context.Context, orgID id.OrgID, userID id.UserID, except id.SessionID) (int, error) {
	sessions, err := s.ListByUser(ctx, orgID, userID)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, session := range sessions {
		if !except.IsNil() && session.ID == except {
			continue
		}
		if err := s.Delete(ctx, session.ID); err != nil {
			// Expired between list and delete; nothing was removed.
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return removed, err
		}
		removed++
	}
	return removed, nil
}
