package service

import (
	"context"
	"errors"

	"warden/internal/notification"
	"warden/internal/verification/models"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/audit"
	"warden/pkg/platform/sentinel"
	"warden/pkg/requestcontext"
)

// InitiateProfileDomainVerification derives the implicit domain from the
// company's website URL and issues a TXT challenge against it.
func (s *Service) InitiateProfileDomainVerification(ctx context.Context, actor, companyID id.CompanyID) (*InitiateResult, error) {
	ctx, span := s.tracer.Start(ctx, "verification.InitiateProfileDomainVerification")
	defer span.End()

	if err := s.requireOwnership(ctx, actor, companyID); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	token := NewVerificationToken()
	var domainName string

	profile, err := s.profiles.Execute(ctx, companyID,
		func(p *models.CompanyProfile) error {
			derived, err := p.DeriveDomainName()
			if err != nil {
				return err
			}
			domainName = derived
			return nil
		},
		func(p *models.CompanyProfile) {
			p.ApplyTokenIssued(domainName, token, now)
		},
	)
	if err != nil {
		return nil, s.translateProfileErr(err)
	}

	if s.metrics != nil {
		s.metrics.IncrementInitiated()
	}
	s.emitAudit(ctx, audit.EventProfileVerificationStarted, actor, profile.DomainName, "")

	return &InitiateResult{Domain: profile.DomainName, Token: token}, nil
}

// CheckProfileDomainVerification resolves the profile's derived domain and
// compares its TXT records against the stored token. Re-checkable until DNS
// propagates, same as the explicit domain check.
func (s *Service) CheckProfileDomainVerification(ctx context.Context, actor, companyID id.CompanyID) (*CheckResult, error) {
	ctx, span := s.tracer.Start(ctx, "verification.CheckProfileDomainVerification")
	defer span.End()

	if err := s.requireOwnership(ctx, actor, companyID); err != nil {
		return nil, err
	}

	profile, err := s.profiles.FindByCompany(ctx, companyID)
	if err != nil {
		return nil, s.translateProfileErr(err)
	}
	if err := profile.CanCheck(); err != nil {
		return nil, err
	}

	token := profile.DomainVerificationToken
	hostname := profile.DomainName
	result := s.resolveAndMatch(ctx, hostname, token)
	now := requestcontext.Now(ctx)

	stale := false
	_, updateErr := s.profiles.Execute(ctx, companyID,
		func(p *models.CompanyProfile) error { return nil },
		func(p *models.CompanyProfile) {
			if p.DomainVerificationToken != token {
				stale = true
				p.ApplyCheckResult(false, now)
				return
			}
			p.ApplyCheckResult(result.Verified, now)
		},
	)
	if updateErr != nil {
		s.logger.ErrorContext(ctx, "failed to persist profile verification check result",
			"domain", hostname,
			"verified", result.Verified,
			"error", updateErr,
		)
		return nil, dErrors.Wrap(updateErr, dErrors.CodeInternal, "failed to persist verification result")
	}
	if stale {
		result = &CheckResult{Verified: false, Message: msgTokenMissing}
	}

	if result.Verified {
		s.emitAudit(ctx, audit.EventProfileDomainVerified, actor, hostname, "verified")
		if s.notifier != nil && profile.ContactEmail != "" {
			msg := notification.DomainVerified(profile.ContactEmail, hostname)
			if err := s.notifier.Send(ctx, msg); err != nil {
				s.logger.ErrorContext(ctx, "failed to send domain verified notification",
					"company_id", companyID.String(),
					"error", err,
				)
			}
		}
	} else {
		s.emitAudit(ctx, audit.EventDomainVerificationFailed, actor, hostname, result.Message)
	}
	return result, nil
}

func (s *Service) translateProfileErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *dErrors.Error
	if errors.As(err, &coded) {
		return err
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "company profile not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "profile store failure")
}
