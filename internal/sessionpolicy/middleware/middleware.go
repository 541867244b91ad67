// Package middleware enforces session policy on every authenticated request.
// Timeout and IP restriction are continuously evaluated properties, so they
// are checked at the boundary rather than only at login.
package middleware

import (
	"context"
	"net/http"

	"warden/internal/sessionpolicy/models"
	id "warden/pkg/domain"
	"warden/pkg/platform/httputil"
	"warden/pkg/requestcontext"
)

// Enforcer is the slice of the session policy service the middleware needs.
type Enforcer interface {
	EvaluateSession(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	EvaluateIPRestriction(ctx context.Context, orgID id.OrgID, clientIP string) error
}

// Enforce validates the request's session age and client IP against the
// organization policy. Requests without a session pass through untouched;
// unauthenticated endpoints guard themselves.
func Enforce(enforcer Enforcer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sessionID := requestcontext.SessionID(ctx)
			if sessionID.IsNil() {
				next.ServeHTTP(w, r)
				return
			}

			session, err := enforcer.EvaluateSession(ctx, sessionID)
			if err != nil {
				httputil.WriteError(w, err)
				return
			}
			if err := enforcer.EvaluateIPRestriction(ctx, session.OrgID, requestcontext.ClientIP(ctx)); err != nil {
				httputil.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
