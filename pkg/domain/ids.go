// Package domain defines typed identifiers shared across features.
//
// IDs are distinct types over uuid.UUID so the compiler rejects cross-type
// assignment (a UserID can never be passed where a CompanyID is expected).
// Parse helpers enforce the trust-boundary invariant that IDs are valid,
// non-nil UUIDs.
package domain

import (
	"github.com/google/uuid"

	dErrors "warden/pkg/domain-errors"
)

type (
	// UserID identifies an account.
	UserID uuid.UUID
	// OrgID identifies an organization.
	OrgID uuid.UUID
	// CompanyID identifies a company profile.
	CompanyID uuid.UUID
	// DomainID identifies a company domain record.
	DomainID uuid.UUID
	// SessionID identifies an active session.
	SessionID uuid.UUID
)

func (id UserID) String() string    { return uuid.UUID(id).String() }
func (id OrgID) String() string     { return uuid.UUID(id).String() }
func (id CompanyID) String() string { return uuid.UUID(id).String() }
func (id DomainID) String() string  { return uuid.UUID(id).String() }
func (id SessionID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id OrgID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id CompanyID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id DomainID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// NewUserID generates a fresh random UserID.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewOrgID generates a fresh random OrgID.
func NewOrgID() OrgID { return OrgID(uuid.New()) }

// NewCompanyID generates a fresh random CompanyID.
func NewCompanyID() CompanyID { return CompanyID(uuid.New()) }

// NewDomainID generates a fresh random DomainID.
func NewDomainID() DomainID { return DomainID(uuid.New()) }

// NewSessionID generates a fresh random SessionID.
func NewSessionID() SessionID { return SessionID(uuid.New()) }

func parseUUID(raw, kind string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is required", kind)
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is not a valid UUID", kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be the nil UUID", kind)
	}
	return parsed, nil
}

// ParseUserID parses and validates a user ID from its string form.
func ParseUserID(raw string) (UserID, error) {
	parsed, err := parseUUID(raw, "user ID")
	return UserID(parsed), err
}

// ParseOrgID parses and validates an organization ID from its string form.
func ParseOrgID(raw string) (OrgID, error) {
	parsed, err := parseUUID(raw, "organization ID")
	return OrgID(parsed), err
}

// ParseCompanyID parses and validates a company ID from its string form.
func ParseCompanyID(raw string) (CompanyID, error) {
	parsed, err := parseUUID(raw, "company ID")
	return CompanyID(parsed), err
}

// ParseDomainID parses and validates a domain record ID from its string form.
func ParseDomainID(raw string) (DomainID, error) {
	parsed, err := parseUUID(raw, "domain ID")
	return DomainID(parsed), err
}

// ParseSessionID parses and validates a session ID from its string form.
func ParseSessionID(raw string) (SessionID, error) {
	parsed, err := parseUUID(raw, "session ID")
	return SessionID(parsed), err
}
