package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/verification/models"
	"warden/internal/verification/service"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/requestcontext"
)

type stubService struct {
	addDomain        func(ctx context.Context, actor id.CompanyID, hostname string, isPrimary bool) (*models.CompanyDomain, error)
	listDomains      func(ctx context.Context, actor id.CompanyID) ([]*models.CompanyDomain, error)
	removeDomain     func(ctx context.Context, actor id.CompanyID, domainID id.DomainID) error
	setPrimaryDomain func(ctx context.Context, actor id.CompanyID, domainID id.DomainID) error
	initiate         func(ctx context.Context, actor id.CompanyID, domainID id.DomainID) (*service.InitiateResult, error)
	check            func(ctx context.Context, actor id.CompanyID, domainID id.DomainID) (*service.CheckResult, error)
	initiateProfile  func(ctx context.Context, actor, companyID id.CompanyID) (*service.InitiateResult, error)
	checkProfile     func(ctx context.Context, actor, companyID id.CompanyID) (*service.CheckResult, error)
}

func (s *stubService) AddDomain(ctx context.Context, actor id.CompanyID, hostname string, isPrimary bool) (*models.CompanyDomain, error) {
	return s.addDomain(ctx, actor, hostname, isPrimary)
}

func (s *stubService) ListDomains(ctx context.Context, actor id.CompanyID) ([]*models.CompanyDomain, error) {
	return s.listDomains(ctx, actor)
}

func (s *stubService) RemoveDomain(ctx context.Context, actor id.CompanyID, domainID id.DomainID) error {
	return s.removeDomain(ctx, actor, domainID)
}

func (s *stubService) SetPrimaryDomain(ctx context.Context, actor id.CompanyID, domainID id.DomainID) error {
	return s.setPrimaryDomain(ctx, actor, domainID)
}

func (s *stubService) InitiateDomainVerification(ctx context.Context, actor id.CompanyID, domainID id.DomainID) (*service.InitiateResult, error) {
	return s.initiate(ctx, actor, domainID)
}

func (s *stubService) CheckDomainVerification(ctx context.Context, actor id.CompanyID, domainID id.DomainID) (*service.CheckResult, error) {
	return s.check(ctx, actor, domainID)
}

func (s *stubService) InitiateProfileDomainVerification(ctx context.Context, actor, companyID id.CompanyID) (*service.InitiateResult, error) {
	return s.initiateProfile(ctx, actor, companyID)
}

func (s *stubService) CheckProfileDomainVerification(ctx context.Context, actor, companyID id.CompanyID) (*service.CheckResult, error) {
	return s.checkProfile(ctx, actor, companyID)
}

func newTestRouter(stub *stubService, actor id.CompanyID) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := requestcontext.WithCompanyID(req.Context(), actor)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	New(stub, slog.Default()).RegisterRoutes(r)
	return r
}

func TestCheckVerificationEndpoint(t *testing.T) {
	company := id.NewCompanyID()
	domainID := id.NewDomainID()

	stub := &stubService{
		check: func(_ context.Context, actor id.CompanyID, gotDomain id.DomainID) (*service.CheckResult, error) {
			assert.Equal(t, company, actor)
			assert.Equal(t, domainID, gotDomain)
			return &service.CheckResult{Verified: true, Message: "Domain successfully verified."}, nil
		},
	}
	router := newTestRouter(stub, company)

	url := fmt.Sprintf("/companies/%s/domains/%s/verification/check", company, domainID)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, url, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body service.CheckResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Verified)
	assert.Equal(t, "Domain successfully verified.", body.Message)
}

func TestCheckVerificationWrongCompanyForbidden(t *testing.T) {
	stub := &stubService{}
	router := newTestRouter(stub, id.NewCompanyID())

	url := fmt.Sprintf("/companies/%s/domains/%s/verification/check", id.NewCompanyID(), id.NewDomainID())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, url, nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCheckVerificationUnauthenticated(t *testing.T) {
	r := chi.NewRouter()
	New(&stubService{}, slog.Default()).RegisterRoutes(r)

	url := fmt.Sprintf("/companies/%s/domains/%s/verification/check", id.NewCompanyID(), id.NewDomainID())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, url, nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAddDomainValidation(t *testing.T) {
	company := id.NewCompanyID()
	router := newTestRouter(&stubService{}, company)

	url := fmt.Sprintf("/companies/%s/domains/", company)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, url, strings.NewReader(`{"domain": ""}`))
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(dErrors.CodeBadRequest), body["error"])
}

func TestAddDomainSuccess(t *testing.T) {
	company := id.NewCompanyID()
	stub := &stubService{
		addDomain: func(_ context.Context, actor id.CompanyID, hostname string, isPrimary bool) (*models.CompanyDomain, error) {
			assert.Equal(t, "example.com", hostname)
			assert.True(t, isPrimary)
			return &models.CompanyDomain{ID: id.NewDomainID(), CompanyID: actor, Domain: hostname, IsPrimary: true}, nil
		},
	}
	router := newTestRouter(stub, company)

	url := fmt.Sprintf("/companies/%s/domains/", company)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, url, strings.NewReader(`{"domain": "example.com", "is_primary": true}`))
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestRemoveDomainNotFound(t *testing.T) {
	company := id.NewCompanyID()
	stub := &stubService{
		removeDomain: func(context.Context, id.CompanyID, id.DomainID) error {
			return dErrors.New(dErrors.CodeNotFound, "domain not found")
		},
	}
	router := newTestRouter(stub, company)

	url := fmt.Sprintf("/companies/%s/domains/%s/", company, id.NewDomainID())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, url, nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
