package models

import (
	"net/url"
	"strings"
	"time"

	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
)

// CompanyProfile carries the profile-level domain verification state. The
// profile has a single implicit domain derived from its website URL.
//
// Invariant: DomainName is derived deterministically from Website at
// verification-initiation time; changing Website does not retroactively
// update DomainName until initiation is re-run.
type CompanyProfile struct {
	CompanyID               id.CompanyID `json:"company_id"`
	Website                 string       `json:"website"`
	ContactEmail            string       `json:"contact_email"`
	DomainName              string       `json:"domain_name"`
	DomainVerificationToken string       `json:"-"`
	DomainVerified          bool         `json:"domain_verified"`
	DomainLastChecked       *time.Time   `json:"domain_last_checked,omitempty"`
	CreatedAt               time.Time    `json:"created_at"`
	UpdatedAt               time.Time    `json:"updated_at"`
}

// DeriveDomainName extracts the hostname from the profile's website URL,
// stripping the scheme and a leading "www." and lowercasing the result.
func (p *CompanyProfile) DeriveDomainName() (string, error) {
	raw := strings.TrimSpace(p.Website)
	if raw == "" {
		return "", dErrors.New(dErrors.CodePreconditionFailed, "company profile has no website configured")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Hostname() == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "company website is not a valid URL")
	}
	return NormalizeHostname(parsed.Hostname()), nil
}

// ApplyTokenIssued installs a fresh token against the derived domain name,
// clearing any prior verified state.
func (p *CompanyProfile) ApplyTokenIssued(domainName, token string, now time.Time) {
	p.DomainName = domainName
	p.DomainVerificationToken = token
	p.DomainVerified = false
	p.UpdatedAt = now
}

// CanCheck reports whether a verification check is allowed.
func (p *CompanyProfile) CanCheck() error {
	if p.DomainVerificationToken == "" || p.DomainName == "" {
		return dErrors.New(dErrors.CodePreconditionFailed, "verification not initiated")
	}
	return nil
}

// ApplyCheckResult records the outcome of a DNS check.
func (p *CompanyProfile) ApplyCheckResult(verified bool, now time.Time) {
	checked := now
	p.DomainLastChecked = &checked
	p.DomainVerified = verified
	p.UpdatedAt = now
}
