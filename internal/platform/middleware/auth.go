package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	id "warden/pkg/domain"
	"warden/pkg/requestcontext"
)

// TokenValidator validates bearer tokens presented on API requests.
type TokenValidator interface {
	ValidateToken(raw string) (*Claims, error)
}

// Claims carries the identity extracted from a validated access token. OrgID
// and CompanyID are optional; SessionID links the token to an active session
// for policy evaluation.
type Claims struct {
	UserID    string
	OrgID     string
	CompanyID string
	SessionID string
}

// RequireAuth rejects requests without a valid bearer token and populates the
// request context with the caller's identity.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			const bearerPrefix = "Bearer "
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx))
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(raw)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx))
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			userID, err := id.ParseUserID(claims.UserID)
			if err != nil {
				writeUnauthorized(w, "Invalid or expired token")
				return
			}
			ctx = requestcontext.WithUserID(ctx, userID)
			if claims.OrgID != "" {
				if orgID, err := id.ParseOrgID(claims.OrgID); err == nil {
					ctx = requestcontext.WithOrgID(ctx, orgID)
				}
			}
			if claims.CompanyID != "" {
				if companyID, err := id.ParseCompanyID(claims.CompanyID); err == nil {
					ctx = requestcontext.WithCompanyID(ctx, companyID)
				}
			}
			if claims.SessionID != "" {
				if sessionID, err := id.ParseSessionID(claims.SessionID); err == nil {
					ctx = requestcontext.WithSessionID(ctx, sessionID)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
