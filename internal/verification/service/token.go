package service

import "github.com/google/uuid"

// TokenPrefix namespaces verification tokens so a TXT record's purpose is
// self-describing. Consumers compare the full token verbatim; no other
// structure is parsed from it.
const TokenPrefix = "user-management-verification="

// NewVerificationToken issues a fresh opaque challenge token.
func NewVerificationToken() string {
	return TokenPrefix + uuid.NewString()
}
