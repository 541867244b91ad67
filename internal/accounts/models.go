// Package accounts holds the account directory consumed by the retention
// lifecycle (scan + anonymization) and session policy (credential checks).
package accounts

import (
	"time"

	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
)

// Type distinguishes retention treatment for an account.
type Type string

const (
	TypePersonal Type = "PERSONAL"
	TypeBusiness Type = "BUSINESS"
)

// Account is a directory entry for a user.
//
// Invariants:
//   - Email is non-empty and unique across the directory
//   - Anonymized accounts retain their row but carry scrubbed PII
type Account struct {
	ID             id.UserID
	OrgID          id.OrgID
	Email          string
	Name           string
	PasswordHash   string
	Type           Type
	Anonymized     bool
	LastLoginAt    *time.Time
	LastActivityAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewAccount constructs a directory entry, validating required fields.
func NewAccount(userID id.UserID, orgID id.OrgID, email string, accountType Type, now time.Time) (*Account, error) {
	if email == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "account email cannot be empty")
	}
	if accountType != TypePersonal && accountType != TypeBusiness {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown account type")
	}
	return &Account{
		ID:        userID,
		OrgID:     orgID,
		Email:     email,
		Type:      accountType,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ApplyLogin records a fresh login, also bumping activity.
func (a *Account) ApplyLogin(at time.Time) {
	login := at
	a.LastLoginAt = &login
	a.LastActivityAt = &login
	a.UpdatedAt = at
}

// ApplyAnonymization scrubs PII in place. Idempotent: scrubbing an already
// anonymized account yields the same result.
func (a *Account) ApplyAnonymization(now time.Time) {
	a.Email = "anonymized+" + a.ID.String() + "@invalid.local"
	a.Name = ""
	a.PasswordHash = ""
	a.Anonymized = true
	a.UpdatedAt = now
}
