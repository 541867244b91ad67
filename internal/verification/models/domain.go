package models

import (
	"strings"
	"time"

	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
)

// CompanyDomain is a hostname a company claims ownership of, proven via a DNS
// TXT challenge.
//
// Invariants:
//   - Domain is a non-empty lowercase hostname (DNS names are case-insensitive)
//   - At most one domain per company is primary
//   - VerificationToken is set only between initiation and either successful
//     verification or token replacement
//   - IsVerified transitions false→true only after a successful TXT match
type CompanyDomain struct {
	ID                id.DomainID  `json:"id"`
	CompanyID         id.CompanyID `json:"company_id"`
	Domain            string       `json:"domain"`
	IsPrimary         bool         `json:"is_primary"`
	IsVerified        bool         `json:"is_verified"`
	VerificationToken string       `json:"-"`
	VerificationDate  *time.Time   `json:"verification_date,omitempty"`
	LastChecked       *time.Time   `json:"last_checked,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// NormalizeHostname lowercases a hostname and strips a leading "www." so the
// stored form matches what DNS resolution expects.
func NormalizeHostname(hostname string) string {
	hostname = strings.ToLower(strings.TrimSpace(hostname))
	hostname = strings.TrimSuffix(hostname, ".")
	return strings.TrimPrefix(hostname, "www.")
}

// NewCompanyDomain constructs a domain record in the unverified state.
func NewCompanyDomain(domainID id.DomainID, companyID id.CompanyID, hostname string, isPrimary bool, now time.Time) (*CompanyDomain, error) {
	normalized := NormalizeHostname(hostname)
	if normalized == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "domain hostname cannot be empty")
	}
	if !strings.Contains(normalized, ".") {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "domain hostname must contain a dot")
	}
	return &CompanyDomain{
		ID:        domainID,
		CompanyID: companyID,
		Domain:    normalized,
		IsPrimary: isPrimary,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ApplyTokenIssued installs a fresh verification token. Any prior verified
// state is cleared: the new challenge supersedes the old proof.
func (d *CompanyDomain) ApplyTokenIssued(token string, now time.Time) {
	d.VerificationToken = token
	d.IsVerified = false
	d.VerificationDate = nil
	d.UpdatedAt = now
}

// CanCheck reports whether a verification check is allowed: a token must have
// been issued first.
func (d *CompanyDomain) CanCheck() error {
	if d.VerificationToken == "" {
		return dErrors.New(dErrors.CodePreconditionFailed, "verification not initiated")
	}
	return nil
}

// ApplyCheckResult records the outcome of a DNS check. LastChecked is always
// updated; the verified flag and date follow the match result.
func (d *CompanyDomain) ApplyCheckResult(verified bool, now time.Time) {
	checked := now
	d.LastChecked = &checked
	d.IsVerified = verified
	if verified {
		verifiedAt := now
		d.VerificationDate = &verifiedAt
	} else {
		d.VerificationDate = nil
	}
	d.UpdatedAt = now
}

// ApplyPrimary marks this domain as the company's primary.
func (d *CompanyDomain) ApplyPrimary(now time.Time) {
	d.IsPrimary = true
	d.UpdatedAt = now
}

// ApplyDemoted clears the primary flag.
func (d *CompanyDomain) ApplyDemoted(now time.Time) {
	d.IsPrimary = false
	d.UpdatedAt = now
}
