//go:build integration

package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/sessionpolicy/models"
	id "warden/pkg/domain"
	"warden/pkg/platform/sentinel"
	"warden/pkg/testutil"
	"warden/pkg/testutil/containers"
)

func newRedisSession(t *testing.T, userID id.UserID, orgID id.OrgID, createdAt time.Time) *models.Session {
	t.Helper()
	session, err := models.NewSession(id.NewSessionID(), userID, orgID, "10.0.0.1", "", createdAt)
	require.NoError(t, err)
	return session
}

func TestRedisSessionStore(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	store := NewRedis(rc.Client)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	testutil.Given(t, "a stored session", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		userID, orgID := id.NewUserID(), id.NewOrgID()
		session := newRedisSession(t, userID, orgID, now)
		require.NoError(t, store.Create(ctx, session))

		testutil.Then(t, "it round-trips by ID", func(t *testing.T) {
			found, err := store.FindByID(ctx, session.ID)
			require.NoError(t, err)
			assert.Equal(t, session.ID, found.ID)
			assert.Equal(t, session.UserID, found.UserID)
			assert.Equal(t, "10.0.0.1", found.ClientIP)
		})

		testutil.Then(t, "creating the same ID again conflicts", func(t *testing.T) {
			assert.ErrorIs(t, store.Create(ctx, session), sentinel.ErrConflict)
		})

		testutil.Then(t, "updates persist through last-seen refresh", func(t *testing.T) {
			session.Touch(now.Add(5 * time.Minute))
			require.NoError(t, store.Update(ctx, session))
			found, err := store.FindByID(ctx, session.ID)
			require.NoError(t, err)
			assert.True(t, found.LastSeenAt.After(found.CreatedAt))
		})
	})

	testutil.Given(t, "several sessions for one user", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		userID, orgID := id.NewUserID(), id.NewOrgID()
		var created []*models.Session
		for i := 0; i < 3; i++ {
			session := newRedisSession(t, userID, orgID, now.Add(time.Duration(i)*time.Minute))
			require.NoError(t, store.Create(ctx, session))
			created = append(created, session)
		}

		testutil.Then(t, "listing returns them oldest first", func(t *testing.T) {
			sessions, err := store.ListByUser(ctx, orgID, userID)
			require.NoError(t, err)
			require.Len(t, sessions, 3)
			assert.Equal(t, created[0].ID, sessions[0].ID)
			assert.Equal(t, created[2].ID, sessions[2].ID)
		})

		testutil.When(t, "deleting all but one session", func(t *testing.T) {
			removed, err := store.DeleteByUser(ctx, orgID, userID, created[2].ID)
			require.NoError(t, err)
			assert.Equal(t, 2, removed)

			sessions, err := store.ListByUser(ctx, orgID, userID)
			require.NoError(t, err)
			require.Len(t, sessions, 1)
			assert.Equal(t, created[2].ID, sessions[0].ID)
		})
	})

	testutil.Given(t, "a session whose key expired in redis", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		userID, orgID := id.NewUserID(), id.NewOrgID()
		live := newRedisSession(t, userID, orgID, now)
		vanished := newRedisSession(t, userID, orgID, now.Add(time.Minute))
		require.NoError(t, store.Create(ctx, live))
		require.NoError(t, store.Create(ctx, vanished))

		// Drop the key directly, as TTL expiry would, leaving the index entry.
		require.NoError(t, rc.Client.Del(ctx, sessionKey(vanished.ID)).Err())

		testutil.Then(t, "deleting it reports absence", func(t *testing.T) {
			assert.ErrorIs(t, store.Delete(ctx, vanished.ID), sentinel.ErrNotFound)
		})

		testutil.Then(t, "the terminated count covers only removed sessions", func(t *testing.T) {
			removed, err := store.DeleteByUser(ctx, orgID, userID, id.SessionID{})
			require.NoError(t, err)
			assert.Equal(t, 1, removed)
		})
	})

	testutil.Given(t, "no session", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))

		testutil.Then(t, "lookups and updates report absence", func(t *testing.T) {
			_, err := store.FindByID(ctx, id.NewSessionID())
			assert.ErrorIs(t, err, sentinel.ErrNotFound)

			ghost := newRedisSession(t, id.NewUserID(), id.NewOrgID(), now)
			assert.ErrorIs(t, store.Update(ctx, ghost), sentinel.ErrNotFound)
		})
	})
}
