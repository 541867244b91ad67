package accounts

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/sentinel"
)

// Directory is the subset of the store the verifier needs.
type Directory interface {
	FindByID(ctx context.Context, userID id.UserID) (*Account, error)
}

// Verifier checks re-entered passwords against stored bcrypt hashes. Used by
// the session policy enforcer for step-up authentication.
type Verifier struct {
	directory Directory
}

func NewVerifier(directory Directory) *Verifier {
	return &Verifier{directory: directory}
}

// VerifyPassword compares the presented password against the account's hash.
// Fails closed: missing accounts and anonymized accounts are reported as
// authentication failures, not as absence.
func (v *Verifier) VerifyPassword(ctx context.Context, userID id.UserID, password string) error {
	account, err := v.directory.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	if account.Anonymized || account.PasswordHash == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	return nil
}

// HashPassword produces a bcrypt hash for storage at registration time.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
