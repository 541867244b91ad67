package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/sessionpolicy/models"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/requestcontext"
)

type stubEnforcer struct {
	session    *models.Session
	sessionErr error
	ipErr      error
	evaluated  bool
}

func (s *stubEnforcer) EvaluateSession(_ context.Context, _ id.SessionID) (*models.Session, error) {
	s.evaluated = true
	return s.session, s.sessionErr
}

func (s *stubEnforcer) EvaluateIPRestriction(_ context.Context, _ id.OrgID, _ string) error {
	return s.ipErr
}

func testTime() time.Time {
	return time.Date(2026, 6, 2, 8, 0, 0, 0, time.UTC)
}

func TestEnforce(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	newRequest := func(sessionID id.SessionID) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/resource", nil)
		ctx := req.Context()
		if !sessionID.IsNil() {
			ctx = requestcontext.WithSessionID(ctx, sessionID)
		}
		return req.WithContext(ctx)
	}

	t.Run("requests without a session pass through", func(t *testing.T) {
		enforcer := &stubEnforcer{}
		rr := httptest.NewRecorder()
		Enforce(enforcer)(next).ServeHTTP(rr, newRequest(id.SessionID{}))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.False(t, enforcer.evaluated)
	})

	t.Run("valid session and allowed IP pass through", func(t *testing.T) {
		session, err := models.NewSession(id.NewSessionID(), id.NewUserID(), id.NewOrgID(), "10.0.0.1", "", testTime())
		require.NoError(t, err)
		enforcer := &stubEnforcer{session: session}
		rr := httptest.NewRecorder()
		Enforce(enforcer)(next).ServeHTTP(rr, newRequest(session.ID))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.True(t, enforcer.evaluated)
	})

	t.Run("expired session is rejected", func(t *testing.T) {
		enforcer := &stubEnforcer{sessionErr: dErrors.New(dErrors.CodeSessionExpired, "session expired")}
		rr := httptest.NewRecorder()
		Enforce(enforcer)(next).ServeHTTP(rr, newRequest(id.NewSessionID()))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), "session_expired")
	})

	t.Run("disallowed IP is rejected", func(t *testing.T) {
		session, err := models.NewSession(id.NewSessionID(), id.NewUserID(), id.NewOrgID(), "203.0.113.9", "", testTime())
		require.NoError(t, err)
		enforcer := &stubEnforcer{
			session: session,
			ipErr:   dErrors.New(dErrors.CodeForbidden, "unauthorized IP address"),
		}
		rr := httptest.NewRecorder()
		Enforce(enforcer)(next).ServeHTTP(rr, newRequest(session.ID))
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}
