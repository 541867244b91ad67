// Package service implements the session policy enforcer: timeout and IP
// evaluation, session-count capping, step-up reauthentication, and
// administrative termination.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	smetrics "warden/internal/sessionpolicy/metrics"
	"warden/internal/sessionpolicy/models"
	"warden/internal/sessionpolicy/store/grant"
	"warden/internal/sessionpolicy/token"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/audit"
	"warden/pkg/platform/sentinel"
	"warden/pkg/requestcontext"
)

// PolicyStore persists organization security policies.
type PolicyStore interface {
	FindByOrg(ctx context.Context, orgID id.OrgID) (*models.SecurityPolicy, error)
	Upsert(ctx context.Context, policy *models.SecurityPolicy) error
}

// SessionStore persists active sessions.
type SessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	ListByUser(ctx context.Context, orgID id.OrgID, userID id.UserID) ([]*models.Session, error)
	Update(ctx context.Context, session *models.Session) error
	Delete(ctx context.Context, sessionID id.SessionID) error
	DeleteByUser(ctx context.Context, orgID id.OrgID, userID id.UserID, except id.SessionID) (int, error)
}

// GrantStore persists single-use reauthentication grants.
type GrantStore interface {
	Save(ctx context.Context, g grant.Grant) error
	Consume(ctx context.Context, grantID string, now time.Time) (*grant.Grant, error)
}

// CredentialVerifier checks re-entered passwords for step-up authentication.
type CredentialVerifier interface {
	VerifyPassword(ctx context.Context, userID id.UserID, password string) error
}

// Service enforces per-organization session policy.
type Service struct {
	policies PolicyStore
	sessions SessionStore
	grants   GrantStore
	verifier CredentialVerifier
	issuer   *token.Issuer
	logger   *slog.Logger
	metrics  *smetrics.Metrics
	audit    *audit.Publisher
	tracer   trace.Tracer
}

type serviceConfig struct {
	logger  *slog.Logger
	metrics *smetrics.Metrics
	audit   *audit.Publisher
}

// Option configures optional service collaborators.
type Option func(*serviceConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(cfg *serviceConfig) { cfg.logger = logger }
}

func WithMetrics(metrics *smetrics.Metrics) Option {
	return func(cfg *serviceConfig) { cfg.metrics = metrics }
}

func WithAuditPublisher(publisher *audit.Publisher) Option {
	return func(cfg *serviceConfig) { cfg.audit = publisher }
}

func NewService(policies PolicyStore, sessions SessionStore, grants GrantStore, verifier CredentialVerifier, issuer *token.Issuer, opts ...Option) *Service {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		policies: policies,
		sessions: sessions,
		grants:   grants,
		verifier: verifier,
		issuer:   issuer,
		logger:   logger,
		metrics:  cfg.metrics,
		audit:    cfg.audit,
		tracer:   otel.Tracer("warden/sessionpolicy"),
	}
}

// PolicyFor loads the organization's policy, falling back to the default when
// none is stored.
func (s *Service) PolicyFor(ctx context.Context, orgID id.OrgID) (*models.SecurityPolicy, error) {
	policy, err := s.policies.FindByOrg(ctx, orgID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.DefaultPolicy(orgID), nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load security policy")
	}
	return policy, nil
}

// UpdatePolicy validates and stores the organization's policy.
func (s *Service) UpdatePolicy(ctx context.Context, policy *models.SecurityPolicy) (*models.SecurityPolicy, error) {
	if policy.OrgID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "organization ID required")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	existing, err := s.policies.FindByOrg(ctx, policy.OrgID)
	switch {
	case err == nil:
		policy.CreatedAt = existing.CreatedAt
	case errors.Is(err, sentinel.ErrNotFound):
		policy.CreatedAt = now
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load security policy")
	}
	policy.UpdatedAt = now

	if err := s.policies.Upsert(ctx, policy); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store security policy")
	}
	s.emitAudit(ctx, audit.EventPolicyUpdated, id.UserID{}, policy.OrgID.String(), "", "")
	return policy, nil
}

// RegisterSession creates a session under the organization's cap, evicting
// the oldest active session when the user is at the limit.
func (s *Service) RegisterSession(ctx context.Context, userID id.UserID, orgID id.OrgID) (*models.Session, error) {
	ctx, span := s.tracer.Start(ctx, "sessionpolicy.RegisterSession")
	defer span.End()

	now := requestcontext.Now(ctx)
	policy, err := s.PolicyFor(ctx, orgID)
	if err != nil {
		return nil, err
	}

	session, err := models.NewSession(id.NewSessionID(), userID, orgID,
		requestcontext.ClientIP(ctx), requestcontext.UserAgent(ctx), now)
	if err != nil {
		return nil, err
	}

	existing, err := s.sessions.ListByUser(ctx, orgID, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list sessions")
	}
	// Oldest-first eviction: the list is ordered by creation time, so evict
	// from the front until the new session fits.
	for over := len(existing) - policy.MaxSessionsPerUser + 1; over > 0; over-- {
		evicted := existing[0]
		existing = existing[1:]
		if err := s.sessions.Delete(ctx, evicted.ID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to evict session")
		}
		if s.metrics != nil {
			s.metrics.SessionsEvicted.Inc()
		}
		s.emitAudit(ctx, audit.EventSessionEvicted, userID, evicted.ID.String(), "evicted", "session cap reached")
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create session")
	}
	if s.metrics != nil {
		s.metrics.SessionsCreated.Inc()
	}
	s.emitAudit(ctx, audit.EventSessionCreated, userID, session.ID.String(), "", "")
	return session, nil
}

// EvaluateSession rejects sessions older than the policy timeout. Valid
// sessions get their last-seen stamp refreshed.
func (s *Service) EvaluateSession(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	ctx, span := s.tracer.Start(ctx, "sessionpolicy.EvaluateSession")
	defer span.End()

	now := requestcontext.Now(ctx)
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "session not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
	}

	policy, err := s.PolicyFor(ctx, session.OrgID)
	if err != nil {
		return nil, err
	}
	if session.Expired(now, policy.SessionTimeout()) {
		if err := s.sessions.Delete(ctx, sessionID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "failed to remove expired session", "session_id", sessionID.String(), "error", err)
		}
		if s.metrics != nil {
			s.metrics.SessionsExpired.Inc()
		}
		s.emitAudit(ctx, audit.EventSessionExpired, session.UserID, sessionID.String(), "expired", "")
		return nil, dErrors.New(dErrors.CodeSessionExpired, "session expired")
	}

	session.Touch(now)
	if err := s.sessions.Update(ctx, session); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.WarnContext(ctx, "failed to touch session", "session_id", sessionID.String(), "error", err)
	}
	return session, nil
}

// EvaluateIPRestriction enforces the organization's CIDR allow-list against
// the client address. A policy with restrictions enabled and no ranges fails
// closed: every address is denied.
func (s *Service) EvaluateIPRestriction(ctx context.Context, orgID id.OrgID, clientIP string) error {
	ctx, span := s.tracer.Start(ctx, "sessionpolicy.EvaluateIPRestriction")
	defer span.End()

	policy, err := s.PolicyFor(ctx, orgID)
	if err != nil {
		return err
	}
	if !policy.EnforceIPRestrictions {
		return nil
	}

	allowed, err := policy.AllowsIP(clientIP)
	if err != nil {
		return err
	}
	if !allowed {
		if s.metrics != nil {
			s.metrics.IPDenied.Inc()
		}
		s.emitAudit(ctx, audit.EventIPRejected, requestcontext.UserID(ctx), clientIP, "denied", "address outside allowed ranges")
		return dErrors.New(dErrors.CodeForbidden, "unauthorized IP address")
	}
	if s.metrics != nil {
		s.metrics.IPAllowed.Inc()
	}
	s.emitAudit(ctx, audit.EventIPVerified, requestcontext.UserID(ctx), clientIP, "allowed", "")
	return nil
}

// RequireReauthentication reports whether the action needs step-up
// authentication under the organization's policy.
func (s *Service) RequireReauthentication(ctx context.Context, orgID id.OrgID, action string) (bool, error) {
	policy, err := s.PolicyFor(ctx, orgID)
	if err != nil {
		return false, err
	}
	return policy.IsSensitive(action), nil
}

// Reauthenticate verifies the user's re-entered password and, on success,
// issues a short-lived single-use grant scoped to the action.
func (s *Service) Reauthenticate(ctx context.Context, userID id.UserID, action, password string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "sessionpolicy.Reauthenticate")
	defer span.End()

	now := requestcontext.Now(ctx)
	if err := s.verifier.VerifyPassword(ctx, userID, password); err != nil {
		if s.metrics != nil {
			s.metrics.ReauthFailed.Inc()
		}
		s.emitAudit(ctx, audit.EventReauthFailed, userID, action, "denied", "credential check failed")
		return "", err
	}

	signed, grantID, expiresAt, err := s.issuer.Issue(userID, action, now)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue reauthentication grant")
	}
	if err := s.grants.Save(ctx, grant.Grant{
		ID:        grantID,
		UserID:    userID,
		Action:    action,
		ExpiresAt: expiresAt,
	}); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to store reauthentication grant")
	}

	if s.metrics != nil {
		s.metrics.ReauthGranted.Inc()
	}
	s.emitAudit(ctx, audit.EventReauthGranted, userID, action, "granted", "")
	return signed, nil
}

// VerifyReauthGrant checks a presented grant token against the action and
// consumes it. A grant verifies exactly once.
func (s *Service) VerifyReauthGrant(ctx context.Context, userID id.UserID, action, rawToken string) error {
	ctx, span := s.tracer.Start(ctx, "sessionpolicy.VerifyReauthGrant")
	defer span.End()

	now := requestcontext.Now(ctx)
	claims, err := s.issuer.Parse(rawToken, now)
	if err != nil {
		if errors.Is(err, sentinel.ErrExpired) {
			return dErrors.New(dErrors.CodeUnauthorized, "reauthentication grant expired")
		}
		return dErrors.New(dErrors.CodeUnauthorized, "invalid reauthentication grant")
	}
	if claims.Subject != userID.String() || claims.Action != action {
		return dErrors.New(dErrors.CodeForbidden, "grant does not cover this action")
	}

	consumed, err := s.grants.Consume(ctx, claims.ID, now)
	switch {
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeUnauthorized, "reauthentication grant already used")
	case errors.Is(err, sentinel.ErrExpired):
		return dErrors.New(dErrors.CodeUnauthorized, "reauthentication grant expired")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeUnauthorized, "unknown reauthentication grant")
	case err != nil:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to consume reauthentication grant")
	}
	if consumed.UserID != userID || consumed.Action != action {
		return dErrors.New(dErrors.CodeForbidden, "grant does not cover this action")
	}
	return nil
}

// TerminateUserSessions invalidates all of a user's sessions within the
// organization, sparing the acting admin's own current session when the
// target is the admin. Returns the number of sessions terminated.
func (s *Service) TerminateUserSessions(ctx context.Context, orgID id.OrgID, targetUserID id.UserID) (int, error) {
	ctx, span := s.tracer.Start(ctx, "sessionpolicy.TerminateUserSessions")
	defer span.End()

	var spare id.SessionID
	if requestcontext.UserID(ctx) == targetUserID {
		spare = requestcontext.SessionID(ctx)
	}

	terminated, err := s.sessions.DeleteByUser(ctx, orgID, targetUserID, spare)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to terminate sessions")
	}
	if s.metrics != nil {
		s.metrics.SessionsTerminated.Add(float64(terminated))
	}
	s.emitAudit(ctx, audit.EventSessionsTerminated, targetUserID, "", "terminated", "administrative action")
	return terminated, nil
}

// ListSessions returns the user's sessions ordered oldest first.
func (s *Service) ListSessions(ctx context.Context, orgID id.OrgID, userID id.UserID) ([]*models.Session, error) {
	sessions, err := s.sessions.ListByUser(ctx, orgID, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list sessions")
	}
	return sessions, nil
}

func (s *Service) emitAudit(ctx context.Context, action audit.AuditEvent, userID id.UserID, subject, decision, reason string) {
	if s.audit == nil {
		return
	}
	event := audit.Event{
		Action:    string(action),
		UserID:    userID,
		Subject:   subject,
		Decision:  decision,
		Reason:    reason,
		ActorID:   requestcontext.UserID(ctx).String(),
		RequestID: requestcontext.RequestID(ctx),
		Timestamp: requestcontext.Now(ctx),
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event", "action", action, "error", err)
	}
}
