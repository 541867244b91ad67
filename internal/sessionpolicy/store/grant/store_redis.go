package grant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"warden/pkg/platform/sentinel"
)

// consumedMarkerTTL is how long a consumed grant ID is remembered so replay
// maps to ErrAlreadyUsed instead of ErrNotFound.
const consumedMarkerTTL = time.Hour

// RedisStore keeps grants in Redis with their TTL enforced by key expiry.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func grantKey(grantID string) string {
	return "warden:reauth_grant:" + grantID
}

func consumedKey(grantID string) string {
	return "warden:reauth_grant_used:" + grantID
}

func (s *RedisStore) Save(ctx context.Context, grant Grant) error {
	payload, err := json.Marshal(grant)
	if err != nil {
		return fmt.Errorf("marshal grant: %w", err)
	}
	ttl := time.Until(grant.ExpiresAt)
	if ttl <= 0 {
		return sentinel.ErrExpired
	}
	if err := s.client.Set(ctx, grantKey(grant.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("store grant: %w", err)
	}
	return nil
}

// Consume atomically fetches and deletes the grant. Expiry in Redis shows up
// as absence, so an expired grant reports ErrNotFound here; token-level
// expiry checks still apply upstream.
func (s *RedisStore) Consume(ctx context.Context, grantID string, now time.Time) (*Grant, error) {
	payload, err := s.client.GetDel(ctx, grantKey(grantID)).Bytes()
	if errors.Is(err, redis.Nil) {
		used, markErr := s.client.Exists(ctx, consumedKey(grantID)).Result()
		if markErr == nil && used > 0 {
			return nil, sentinel.ErrAlreadyUsed
		}
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("consume grant: %w", err)
	}

	var grant Grant
	if err := json.Unmarshal(payload, &grant); err != nil {
		return nil, fmt.Errorf("unmarshal grant: %w", err)
	}
	if err := s.client.Set(ctx, consumedKey(grantID), "1", consumedMarkerTTL).Err(); err != nil {
		return nil, fmt.Errorf("mark grant consumed: %w", err)
	}
	if now.After(grant.ExpiresAt) {
		return nil, sentinel.ErrExpired
	}
	return &grant, nil
}
