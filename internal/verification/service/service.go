// Package service implements the domain verification engine: TXT challenge
// issuance, DNS checking, and status transitions for company domains and the
// profile-level implicit domain.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"warden/internal/notification"
	"warden/internal/verification/dns"
	vmetrics "warden/internal/verification/metrics"
	"warden/internal/verification/models"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/audit"
	"warden/pkg/platform/sentinel"
	"warden/pkg/requestcontext"
)

// DomainStore persists company domain records.
type DomainStore interface {
	Create(ctx context.Context, domain *models.CompanyDomain) error
	FindByID(ctx context.Context, domainID id.DomainID) (*models.CompanyDomain, error)
	ListByCompany(ctx context.Context, companyID id.CompanyID) ([]*models.CompanyDomain, error)
	Delete(ctx context.Context, domainID id.DomainID) error
	// SetPrimary atomically demotes the current primary and promotes the
	// given domain within the company.
	SetPrimary(ctx context.Context, companyID id.CompanyID, domainID id.DomainID, now time.Time) error
	// Execute validates then mutates a record atomically under the store's
	// lock (mutex or FOR UPDATE).
	Execute(ctx context.Context, domainID id.DomainID,
		validate func(*models.CompanyDomain) error,
		mutate func(*models.CompanyDomain)) (*models.CompanyDomain, error)
}

// ProfileStore persists company profiles.
type ProfileStore interface {
	FindByCompany(ctx context.Context, companyID id.CompanyID) (*models.CompanyProfile, error)
	Execute(ctx context.Context, companyID id.CompanyID,
		validate func(*models.CompanyProfile) error,
		mutate func(*models.CompanyProfile)) (*models.CompanyProfile, error)
}

// Notifier delivers user-facing messages. Best-effort: failures are logged,
// never propagated into verification outcomes.
type Notifier interface {
	Send(ctx context.Context, msg notification.Message) error
}

// InitiateResult is returned when a verification challenge is issued.
type InitiateResult struct {
	Domain string `json:"domain"`
	Token  string `json:"token"`
}

// CheckResult reports a verification check outcome. DNS failures surface here
// as non-verified results with a message, not as errors.
type CheckResult struct {
	Verified bool   `json:"verified"`
	Message  string `json:"message"`
}

// User-facing check messages. The DNS failure taxonomy is part of the
// product contract; route handlers render these verbatim.
const (
	msgVerified     = "Domain successfully verified."
	msgTokenMissing = "Verification token not found in TXT records."
	msgNoRecords    = "No TXT records found for the domain"
	msgTimeout      = "DNS lookup timed out, try again later"
	msgLookupFailed = "error occurred during DNS lookup"
)

// Service orchestrates token issuance, DNS lookup, and status transitions.
type Service struct {
	domains  DomainStore
	profiles ProfileStore
	resolver dns.Resolver
	notifier Notifier
	logger   *slog.Logger
	metrics  *vmetrics.Metrics
	audit    *audit.Publisher
	tracer   trace.Tracer
}

type serviceConfig struct {
	notifier Notifier
	logger   *slog.Logger
	metrics  *vmetrics.Metrics
	audit    *audit.Publisher
}

// Option configures optional service collaborators.
type Option func(*serviceConfig)

func WithNotifier(notifier Notifier) Option {
	return func(cfg *serviceConfig) { cfg.notifier = notifier }
}

func WithLogger(logger *slog.Logger) Option {
	return func(cfg *serviceConfig) { cfg.logger = logger }
}

func WithMetrics(metrics *vmetrics.Metrics) Option {
	return func(cfg *serviceConfig) { cfg.metrics = metrics }
}

func WithAuditPublisher(publisher *audit.Publisher) Option {
	return func(cfg *serviceConfig) { cfg.audit = publisher }
}

func NewService(domains DomainStore, profiles ProfileStore, resolver dns.Resolver, opts ...Option) *Service {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		domains:  domains,
		profiles: profiles,
		resolver: resolver,
		notifier: cfg.notifier,
		logger:   logger,
		metrics:  cfg.metrics,
		audit:    cfg.audit,
		tracer:   otel.Tracer("warden/verification"),
	}
}

// AddDomain registers a hostname for a company. The first domain for a
// company always becomes primary.
func (s *Service) AddDomain(ctx context.Context, actor id.CompanyID, hostname string, isPrimary bool) (*models.CompanyDomain, error) {
	if actor.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "company ID required")
	}
	now := requestcontext.Now(ctx)

	existing, err := s.domains.ListByCompany(ctx, actor)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list domains")
	}
	if len(existing) == 0 {
		isPrimary = true
	}

	domain, err := models.NewCompanyDomain(id.NewDomainID(), actor, hostname, isPrimary && len(existing) == 0, now)
	if err != nil {
		return nil, err
	}
	if err := s.domains.Create(ctx, domain); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "domain already registered for this company")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create domain")
	}
	if isPrimary && len(existing) > 0 {
		if err := s.domains.SetPrimary(ctx, actor, domain.ID, now); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to set primary domain")
		}
		domain.IsPrimary = true
	}

	s.emitAudit(ctx, audit.EventDomainAdded, actor, domain.Domain, "")
	return domain, nil
}

// ListDomains returns all domains registered for the company.
func (s *Service) ListDomains(ctx context.Context, actor id.CompanyID) ([]*models.CompanyDomain, error) {
	if actor.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "company ID required")
	}
	domains, err := s.domains.ListByCompany(ctx, actor)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list domains")
	}
	return domains, nil
}

// RemoveDomain deletes a domain record. When the removed domain was primary
// and others remain, the oldest remaining domain is promoted so the
// one-primary invariant holds.
func (s *Service) RemoveDomain(ctx context.Context, actor id.CompanyID, domainID id.DomainID) error {
	domain, err := s.ownedDomain(ctx, actor, domainID)
	if err != nil {
		return err
	}
	if err := s.domains.Delete(ctx, domainID); err != nil {
		return s.translateDomainErr(err)
	}

	if domain.IsPrimary {
		remaining, err := s.domains.ListByCompany(ctx, actor)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list remaining domains")
		}
		if len(remaining) > 0 {
			oldest := remaining[0]
			for _, candidate := range remaining[1:] {
				if candidate.CreatedAt.Before(oldest.CreatedAt) {
					oldest = candidate
				}
			}
			if err := s.domains.SetPrimary(ctx, actor, oldest.ID, requestcontext.Now(ctx)); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to promote replacement primary")
			}
		}
	}

	s.emitAudit(ctx, audit.EventDomainRemoved, actor, domain.Domain, "")
	return nil
}

// SetPrimaryDomain promotes a domain to primary, demoting the current one.
func (s *Service) SetPrimaryDomain(ctx context.Context, actor id.CompanyID, domainID id.DomainID) error {
	domain, err := s.ownedDomain(ctx, actor, domainID)
	if err != nil {
		return err
	}
	if err := s.domains.SetPrimary(ctx, actor, domainID, requestcontext.Now(ctx)); err != nil {
		return s.translateDomainErr(err)
	}
	s.emitAudit(ctx, audit.EventDomainPrimaryChanged, actor, domain.Domain, "")
	return nil
}

// InitiateDomainVerification issues a fresh TXT challenge for a domain.
// Any previous token is replaced and prior verified state cleared, so the
// returned token is the only valid challenge from this point on.
func (s *Service) InitiateDomainVerification(ctx context.Context, actor id.CompanyID, domainID id.DomainID) (*InitiateResult, error) {
	ctx, span := s.tracer.Start(ctx, "verification.InitiateDomainVerification")
	defer span.End()

	now := requestcontext.Now(ctx)
	token := NewVerificationToken()

	domain, err := s.domains.Execute(ctx, domainID,
		func(d *models.CompanyDomain) error {
			return s.requireOwnership(ctx, actor, d.CompanyID)
		},
		func(d *models.CompanyDomain) {
			d.ApplyTokenIssued(token, now)
		},
	)
	if err != nil {
		return nil, s.translateDomainErr(err)
	}

	if s.metrics != nil {
		s.metrics.IncrementInitiated()
	}
	s.emitAudit(ctx, audit.EventDomainVerificationStarted, actor, domain.Domain, "")

	return &InitiateResult{Domain: domain.Domain, Token: token}, nil
}

// CheckDomainVerification resolves the domain's TXT records and compares them
// against the stored token. The token is not consumed: the check can be
// retried arbitrarily until DNS propagates.
func (s *Service) CheckDomainVerification(ctx context.Context, actor id.CompanyID, domainID id.DomainID) (*CheckResult, error) {
	ctx, span := s.tracer.Start(ctx, "verification.CheckDomainVerification")
	defer span.End()

	domain, err := s.domains.FindByID(ctx, domainID)
	if err != nil {
		return nil, s.translateDomainErr(err)
	}
	if err := s.requireOwnership(ctx, actor, domain.CompanyID); err != nil {
		return nil, err
	}
	if err := domain.CanCheck(); err != nil {
		return nil, err
	}

	token := domain.VerificationToken
	result := s.resolveAndMatch(ctx, domain.Domain, token)
	now := requestcontext.Now(ctx)

	// Persist under lock. A concurrent re-initiate wins: if the token changed
	// while we were resolving, the stale positive is discarded.
	stale := false
	_, updateErr := s.domains.Execute(ctx, domainID,
		func(d *models.CompanyDomain) error { return nil },
		func(d *models.CompanyDomain) {
			if d.VerificationToken != token {
				stale = true
				d.ApplyCheckResult(false, now)
				return
			}
			d.ApplyCheckResult(result.Verified, now)
		},
	)
	if updateErr != nil {
		// The DNS decision stands; the stored record is stale until the next
		// check. Log the divergence rather than discarding the outcome.
		s.logger.ErrorContext(ctx, "failed to persist verification check result",
			"domain", domain.Domain,
			"verified", result.Verified,
			"error", updateErr,
		)
		return nil, dErrors.Wrap(updateErr, dErrors.CodeInternal, "failed to persist verification result")
	}
	if stale {
		result = &CheckResult{Verified: false, Message: msgTokenMissing}
	}

	if result.Verified {
		s.emitAudit(ctx, audit.EventDomainVerified, actor, domain.Domain, "verified")
		s.notifyDomainVerified(ctx, actor, domain.Domain)
	} else {
		s.emitAudit(ctx, audit.EventDomainVerificationFailed, actor, domain.Domain, result.Message)
	}
	return result, nil
}

// resolveAndMatch performs the bounded TXT lookup and exact-match comparison.
// Failures are folded into the result per the lookup failure taxonomy.
func (s *Service) resolveAndMatch(ctx context.Context, hostname, token string) *CheckResult {
	start := time.Now()
	records, err := s.resolver.LookupTXT(ctx, hostname)
	elapsed := time.Since(start).Seconds()

	result := &CheckResult{}
	switch {
	case errors.Is(err, dns.ErrNoRecords):
		result.Message = msgNoRecords
	case errors.Is(err, dns.ErrTimeout):
		result.Message = msgTimeout
	case err != nil:
		s.logger.WarnContext(ctx, "DNS lookup failed", "hostname", hostname, "error", err)
		result.Message = msgLookupFailed
	default:
		for _, parts := range records {
			candidate := ""
			for _, part := range parts {
				candidate += part
			}
			if candidate == token {
				result.Verified = true
				break
			}
		}
		if result.Verified {
			result.Message = msgVerified
		} else {
			result.Message = msgTokenMissing
		}
	}

	if s.metrics != nil {
		s.metrics.ObserveCheck(result.Verified, elapsed)
	}
	return result
}

func (s *Service) ownedDomain(ctx context.Context, actor id.CompanyID, domainID id.DomainID) (*models.CompanyDomain, error) {
	domain, err := s.domains.FindByID(ctx, domainID)
	if err != nil {
		return nil, s.translateDomainErr(err)
	}
	if err := s.requireOwnership(ctx, actor, domain.CompanyID); err != nil {
		return nil, err
	}
	return domain, nil
}

// requireOwnership denies access without revealing whether the record exists
// for another company.
func (s *Service) requireOwnership(ctx context.Context, actor, owner id.CompanyID) error {
	if actor.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "company ID required")
	}
	if actor != owner {
		s.logger.WarnContext(ctx, "domain ownership mismatch",
			"actor", actor.String(),
		)
		return dErrors.New(dErrors.CodeForbidden, "access denied")
	}
	return nil
}

func (s *Service) translateDomainErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *dErrors.Error
	if errors.As(err, &coded) {
		return err
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "domain not found")
	}
	if errors.Is(err, sentinel.ErrConflict) {
		return dErrors.New(dErrors.CodeConflict, "conflicting domain update")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "domain store failure")
}

func (s *Service) notifyDomainVerified(ctx context.Context, companyID id.CompanyID, hostname string) {
	if s.notifier == nil {
		return
	}
	profile, err := s.profiles.FindByCompany(ctx, companyID)
	if err != nil || profile.ContactEmail == "" {
		return
	}
	msg := notification.DomainVerified(profile.ContactEmail, hostname)
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "failed to send domain verified notification",
			"company_id", companyID.String(),
			"error", err,
		)
	}
}

func (s *Service) emitAudit(ctx context.Context, action audit.AuditEvent, actor id.CompanyID, subject, decision string) {
	if s.audit == nil {
		return
	}
	event := audit.Event{
		Action:    string(action),
		Subject:   subject,
		Decision:  decision,
		ActorID:   actor.String(),
		RequestID: requestcontext.RequestID(ctx),
		Timestamp: requestcontext.Now(ctx),
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event", "action", action, "error", err)
	}
}
