// Package handler exposes the session policy HTTP surface.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"warden/internal/sessionpolicy/models"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/httputil"
	"warden/pkg/requestcontext"
)

// Service is the slice of the session policy service the handler needs.
type Service interface {
	PolicyFor(ctx context.Context, orgID id.OrgID) (*models.SecurityPolicy, error)
	UpdatePolicy(ctx context.Context, policy *models.SecurityPolicy) (*models.SecurityPolicy, error)
	RegisterSession(ctx context.Context, userID id.UserID, orgID id.OrgID) (*models.Session, error)
	ListSessions(ctx context.Context, orgID id.OrgID, userID id.UserID) ([]*models.Session, error)
	TerminateUserSessions(ctx context.Context, orgID id.OrgID, targetUserID id.UserID) (int, error)
	RequireReauthentication(ctx context.Context, orgID id.OrgID, action string) (bool, error)
	Reauthenticate(ctx context.Context, userID id.UserID, action, password string) (string, error)
	VerifyReauthGrant(ctx context.Context, userID id.UserID, action, rawToken string) error
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/orgs/{orgID}", func(r chi.Router) {
		r.Get("/security-policy", h.getPolicy)
		r.Put("/security-policy", h.updatePolicy)
		r.Route("/users/{userID}/sessions", func(r chi.Router) {
			r.Get("/", h.listSessions)
			r.Post("/", h.registerSession)
			r.Delete("/", h.terminateSessions)
		})
	})
	r.Route("/reauth", func(r chi.Router) {
		r.Post("/", h.reauthenticate)
		r.Post("/verify", h.verifyGrant)
	})
}

func orgIDParam(w http.ResponseWriter, r *http.Request) (id.OrgID, bool) {
	orgID, err := id.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid organization ID"))
		return id.OrgID{}, false
	}
	return orgID, true
}

func userIDParam(w http.ResponseWriter, r *http.Request) (id.UserID, bool) {
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user ID"))
		return id.UserID{}, false
	}
	return userID, true
}

func (h *Handler) getPolicy(w http.ResponseWriter, r *http.Request) {
	orgID, ok := orgIDParam(w, r)
	if !ok {
		return
	}
	policy, err := h.service.PolicyFor(r.Context(), orgID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, policy)
}

func (h *Handler) updatePolicy(w http.ResponseWriter, r *http.Request) {
	orgID, ok := orgIDParam(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[updatePolicyRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	policy, err := h.service.UpdatePolicy(ctx, req.toPolicy(orgID))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, policy)
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	orgID, ok := orgIDParam(w, r)
	if !ok {
		return
	}
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	sessions, err := h.service.ListSessions(r.Context(), orgID, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (h *Handler) registerSession(w http.ResponseWriter, r *http.Request) {
	orgID, ok := orgIDParam(w, r)
	if !ok {
		return
	}
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	session, err := h.service.RegisterSession(r.Context(), userID, orgID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, session)
}

func (h *Handler) terminateSessions(w http.ResponseWriter, r *http.Request) {
	orgID, ok := orgIDParam(w, r)
	if !ok {
		return
	}
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	terminated, err := h.service.TerminateUserSessions(r.Context(), orgID, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"terminated": terminated})
}

func (h *Handler) reauthenticate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[reauthenticateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	grantToken, err := h.service.Reauthenticate(ctx, userID, req.Action, req.Password)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"grant": grantToken})
}

func (h *Handler) verifyGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[verifyGrantRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := h.service.VerifyReauthGrant(ctx, userID, req.Action, req.Grant); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
