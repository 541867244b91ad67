// Package handler exposes the retention lifecycle HTTP surface: manual batch
// triggers for operators plus per-user record access.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"warden/internal/retention/models"
	"warden/internal/retention/service"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/httputil"
)

// Service is the slice of the retention service the handler needs.
type Service interface {
	IdentifyInactiveAccounts(ctx context.Context) (*service.ScanResult, error)
	ProcessAnonymization(ctx context.Context) (*service.AnonymizationResult, error)
	ReactivateAccount(ctx context.Context, userID id.UserID) (*models.Record, error)
	RecordLogin(ctx context.Context, userID id.UserID) error
	GetRecord(ctx context.Context, userID id.UserID) (*models.Record, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/retention", func(r chi.Router) {
		r.Post("/scan", h.runScan)
		r.Post("/anonymize", h.runAnonymization)
	})
	r.Route("/users/{userID}/retention", func(r chi.Router) {
		r.Get("/", h.getRecord)
		r.Post("/reactivate", h.reactivate)
		r.Post("/login-observed", h.loginObserved)
	})
}

func userIDParam(w http.ResponseWriter, r *http.Request) (id.UserID, bool) {
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user ID"))
		return id.UserID{}, false
	}
	return userID, true
}

func (h *Handler) runScan(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.IdentifyInactiveAccounts(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) runAnonymization(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ProcessAnonymization(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) getRecord(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	record, err := h.service.GetRecord(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

func (h *Handler) reactivate(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	record, err := h.service.ReactivateAccount(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

func (h *Handler) loginObserved(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	if err := h.service.RecordLogin(r.Context(), userID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
