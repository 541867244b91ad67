package handler

import (
	"strings"

	"warden/internal/sessionpolicy/models"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
)

type updatePolicyRequest struct {
	SessionTimeoutMins        int      `json:"session_timeout_mins"`
	MaxSessionsPerUser        int      `json:"max_sessions_per_user"`
	EnforceIPRestrictions     bool     `json:"enforce_ip_restrictions"`
	AllowedIPRanges           []string `json:"allowed_ip_ranges"`
	RequireReauthForSensitive bool     `json:"require_reauth_for_sensitive"`
	SensitiveActions          []string `json:"sensitive_actions"`
}

func (r updatePolicyRequest) Validate() error {
	policy := r.toPolicy(id.OrgID{})
	// Full invariants are re-checked by the service with the org attached;
	// this early pass rejects malformed bodies before routing params parse.
	if policy.SessionTimeoutMins <= 0 {
		return dErrors.New(dErrors.CodeBadRequest, "session timeout must be positive")
	}
	if policy.MaxSessionsPerUser <= 0 {
		return dErrors.New(dErrors.CodeBadRequest, "max sessions per user must be positive")
	}
	return nil
}

func (r updatePolicyRequest) toPolicy(orgID id.OrgID) *models.SecurityPolicy {
	return &models.SecurityPolicy{
		OrgID:                     orgID,
		SessionTimeoutMins:        r.SessionTimeoutMins,
		MaxSessionsPerUser:        r.MaxSessionsPerUser,
		EnforceIPRestrictions:     r.EnforceIPRestrictions,
		AllowedIPRanges:           r.AllowedIPRanges,
		RequireReauthForSensitive: r.RequireReauthForSensitive,
		SensitiveActions:          r.SensitiveActions,
	}
}

type reauthenticateRequest struct {
	Action   string `json:"action"`
	Password string `json:"password"`
}

func (r reauthenticateRequest) Validate() error {
	if strings.TrimSpace(r.Action) == "" {
		return dErrors.New(dErrors.CodeBadRequest, "action is required")
	}
	if r.Password == "" {
		return dErrors.New(dErrors.CodeBadRequest, "password is required")
	}
	return nil
}

type verifyGrantRequest struct {
	Action string `json:"action"`
	Grant  string `json:"grant"`
}

func (r verifyGrantRequest) Validate() error {
	if strings.TrimSpace(r.Action) == "" {
		return dErrors.New(dErrors.CodeBadRequest, "action is required")
	}
	if r.Grant == "" {
		return dErrors.New(dErrors.CodeBadRequest, "grant is required")
	}
	return nil
}
