// Package models defines organization security policies and sessions.
package models

import (
	"net/netip"
	"time"

	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
)

// SecurityPolicy is the per-organization session and access policy.
//
// Invariants:
//   - SessionTimeoutMins and MaxSessionsPerUser are positive
//   - AllowedIPRanges holds valid CIDR prefixes
//   - EnforceIPRestrictions with an empty range list is rejected on writes;
//     a stored policy in that shape still fails closed at enforcement time
type SecurityPolicy struct {
	OrgID                     id.OrgID  `json:"org_id"`
	SessionTimeoutMins        int       `json:"session_timeout_mins"`
	MaxSessionsPerUser        int       `json:"max_sessions_per_user"`
	EnforceIPRestrictions     bool      `json:"enforce_ip_restrictions"`
	AllowedIPRanges           []string  `json:"allowed_ip_ranges"`
	RequireReauthForSensitive bool      `json:"require_reauth_for_sensitive"`
	SensitiveActions          []string  `json:"sensitive_actions"`
	CreatedAt                 time.Time `json:"created_at"`
	UpdatedAt                 time.Time `json:"updated_at"`
}

// DefaultPolicy is applied to organizations without a stored policy.
func DefaultPolicy(orgID id.OrgID) *SecurityPolicy {
	return &SecurityPolicy{
		OrgID:              orgID,
		SessionTimeoutMins: 480,
		MaxSessionsPerUser: 5,
	}
}

// Validate checks the policy's invariants. Writes must reject the deny-all
// shape explicitly instead of storing it silently.
func (p *SecurityPolicy) Validate() error {
	if p.SessionTimeoutMins <= 0 {
		return dErrors.New(dErrors.CodeBadRequest, "session timeout must be positive")
	}
	if p.MaxSessionsPerUser <= 0 {
		return dErrors.New(dErrors.CodeBadRequest, "max sessions per user must be positive")
	}
	if p.EnforceIPRestrictions && len(p.AllowedIPRanges) == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "IP restrictions enabled with no allowed ranges would deny all access")
	}
	for _, cidr := range p.AllowedIPRanges {
		if _, err := netip.ParsePrefix(cidr); err != nil {
			return dErrors.Newf(dErrors.CodeBadRequest, "invalid CIDR range %q", cidr)
		}
	}
	return nil
}

// SessionTimeout returns the timeout as a duration.
func (p *SecurityPolicy) SessionTimeout() time.Duration {
	return time.Duration(p.SessionTimeoutMins) * time.Minute
}

// AllowsIP reports whether the address matches any allowed range. When
// restrictions are off, every address is allowed. When restrictions are on
// with no ranges (a stored degenerate policy), it fails closed.
func (p *SecurityPolicy) AllowsIP(addr string) (bool, error) {
	if !p.EnforceIPRestrictions {
		return true, nil
	}
	parsed, err := netip.ParseAddr(addr)
	if err != nil {
		return false, dErrors.Newf(dErrors.CodeBadRequest, "invalid client address %q", addr)
	}
	for _, cidr := range p.AllowedIPRanges {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			continue
		}
		if prefix.Contains(parsed.Unmap()) {
			return true, nil
		}
	}
	return false, nil
}

// IsSensitive reports whether the action requires step-up authentication
// under this policy.
func (p *SecurityPolicy) IsSensitive(action string) bool {
	if !p.RequireReauthForSensitive {
		return false
	}
	for _, sensitive := range p.SensitiveActions {
		if sensitive == action {
			return true
		}
	}
	return false
}
