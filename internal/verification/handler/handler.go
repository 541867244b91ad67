// Package handler exposes the domain verification HTTP surface.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"warden/internal/verification/models"
	"warden/internal/verification/service"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/httputil"
	"warden/pkg/requestcontext"
)

// Service is the slice of the verification service the handler needs.
type Service interface {
	AddDomain(ctx context.Context, actor id.CompanyID, hostname string, isPrimary bool) (*models.CompanyDomain, error)
	ListDomains(ctx context.Context, actor id.CompanyID) ([]*models.CompanyDomain, error)
	RemoveDomain(ctx context.Context, actor id.CompanyID, domainID id.DomainID) error
	SetPrimaryDomain(ctx context.Context, actor id.CompanyID, domainID id.DomainID) error
	InitiateDomainVerification(ctx context.Context, actor id.CompanyID, domainID id.DomainID) (*service.InitiateResult, error)
	CheckDomainVerification(ctx context.Context, actor id.CompanyID, domainID id.DomainID) (*service.CheckResult, error)
	InitiateProfileDomainVerification(ctx context.Context, actor, companyID id.CompanyID) (*service.InitiateResult, error)
	CheckProfileDomainVerification(ctx context.Context, actor, companyID id.CompanyID) (*service.CheckResult, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/companies/{companyID}", func(r chi.Router) {
		r.Route("/domains", func(r chi.Router) {
			r.Get("/", h.listDomains)
			r.Post("/", h.addDomain)
			r.Route("/{domainID}", func(r chi.Router) {
				r.Delete("/", h.removeDomain)
				r.Put("/primary", h.setPrimary)
				r.Post("/verification", h.initiateVerification)
				r.Post("/verification/check", h.checkVerification)
			})
		})
		r.Route("/profile", func(r chi.Router) {
			r.Post("/verification", h.initiateProfileVerification)
			r.Post("/verification/check", h.checkProfileVerification)
		})
	})
}

// actorCompany resolves the path company and checks it against the
// authenticated principal. Mismatches are forbidden before the service layer
// is even consulted.
func (h *Handler) actorCompany(w http.ResponseWriter, r *http.Request) (id.CompanyID, bool) {
	pathID, err := id.ParseCompanyID(chi.URLParam(r, "companyID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid company ID"))
		return id.CompanyID{}, false
	}
	actor := requestcontext.CompanyID(r.Context())
	if actor.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.CompanyID{}, false
	}
	if actor != pathID {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "access denied"))
		return id.CompanyID{}, false
	}
	return actor, true
}

func domainIDParam(w http.ResponseWriter, r *http.Request) (id.DomainID, bool) {
	domainID, err := id.ParseDomainID(chi.URLParam(r, "domainID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid domain ID"))
		return id.DomainID{}, false
	}
	return domainID, true
}

func (h *Handler) listDomains(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorCompany(w, r)
	if !ok {
		return
	}
	domains, err := h.service.ListDomains(r.Context(), actor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"domains": domains})
}

func (h *Handler) addDomain(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorCompany(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[addDomainRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	domain, err := h.service.AddDomain(ctx, actor, req.Domain, req.IsPrimary)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, domain)
}

func (h *Handler) removeDomain(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorCompany(w, r)
	if !ok {
		return
	}
	domainID, ok := domainIDParam(w, r)
	if !ok {
		return
	}
	if err := h.service.RemoveDomain(r.Context(), actor, domainID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setPrimary(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorCompany(w, r)
	if !ok {
		return
	}
	domainID, ok := domainIDParam(w, r)
	if !ok {
		return
	}
	if err := h.service.SetPrimaryDomain(r.Context(), actor, domainID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) initiateVerification(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorCompany(w, r)
	if !ok {
		return
	}
	domainID, ok := domainIDParam(w, r)
	if !ok {
		return
	}
	result, err := h.service.InitiateDomainVerification(r.Context(), actor, domainID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) checkVerification(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorCompany(w, r)
	if !ok {
		return
	}
	domainID, ok := domainIDParam(w, r)
	if !ok {
		return
	}
	result, err := h.service.CheckDomainVerification(r.Context(), actor, domainID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) initiateProfileVerification(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorCompany(w, r)
	if !ok {
		return
	}
	result, err := h.service.InitiateProfileDomainVerification(r.Context(), actor, actor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) checkProfileVerification(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorCompany(w, r)
	if !ok {
		return
	}
	result, err := h.service.CheckProfileDomainVerification(r.Context(), actor, actor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
