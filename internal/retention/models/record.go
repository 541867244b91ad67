// Package models defines the retention lifecycle state machine.
package models

import (
	"time"

	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
)

// Status is a retention lifecycle state. Transitions move strictly forward
// except for reactivation, which returns any non-terminal state to ACTIVE.
type Status string

const (
	StatusActive      Status = "ACTIVE"
	StatusWarning     Status = "WARNING"
	StatusInactive    Status = "INACTIVE"
	StatusGracePeriod Status = "GRACE_PERIOD"
	StatusAnonymizing Status = "ANONYMIZING"
	// StatusAnonymized is terminal. No transition leaves it.
	StatusAnonymized Status = "ANONYMIZED"
)

// Type selects which retention period applies to the account.
type Type string

const (
	TypePersonal Type = "PERSONAL"
	TypeBusiness Type = "BUSINESS"
)

// Periods holds the configured retention windows. Retention periods are
// expressed in calendar months; thresholds and grace are day counts relative
// to the computed dates, so period changes only affect newly recomputed
// records.
type Periods struct {
	PersonalMonths  int
	BusinessMonths  int
	GraceDays       int
	WarningDays     int
	FinalNoticeDays int
}

// DefaultPeriods mirrors the standard policy: 24 months personal, 36 months
// business, 30 day grace, warnings at 30 and 15 days out.
func DefaultPeriods() Periods {
	return Periods{
		PersonalMonths:  24,
		BusinessMonths:  36,
		GraceDays:       30,
		WarningDays:     30,
		FinalNoticeDays: 15,
	}
}

func (p Periods) months(t Type) int {
	if t == TypeBusiness {
		return p.BusinessMonths
	}
	return p.PersonalMonths
}

// Notifications tracks when each lifecycle notification was sent, guarding
// each one to at most once per entry into its state.
type Notifications struct {
	WarningSentAt             *time.Time `json:"warning_sent_at,omitempty"`
	ApproachingInactiveSentAt *time.Time `json:"approaching_inactive_sent_at,omitempty"`
	InactiveSentAt            *time.Time `json:"inactive_sent_at,omitempty"`
}

// Record is the per-account retention state.
//
// Invariants:
//   - BecomeInactiveAt = LastLoginAt + retention period for Type
//   - AnonymizeAt = BecomeInactiveAt + grace window
//   - a login before AnonymizeAt resets the record to ACTIVE with both dates
//     recomputed from the new login
//
// Records are never deleted by this subsystem; anonymization scrubs the
// account elsewhere and flips Status to the terminal state here.
type Record struct {
	UserID           id.UserID     `json:"user_id"`
	Status           Status        `json:"status"`
	Type             Type          `json:"retention_type"`
	LastLoginAt      time.Time     `json:"last_login_at"`
	LastActivityAt   *time.Time    `json:"last_activity_at,omitempty"`
	BecomeInactiveAt time.Time     `json:"become_inactive_at"`
	AnonymizeAt      time.Time     `json:"anonymize_at"`
	Notifications    Notifications `json:"notifications"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// NewRecord creates a retention record in the ACTIVE state with dates
// computed from the given login.
func NewRecord(userID id.UserID, accountType Type, lastLogin, now time.Time, periods Periods) (*Record, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "retention record requires a user ID")
	}
	if accountType != TypePersonal && accountType != TypeBusiness {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "unknown retention type %q", accountType)
	}
	record := &Record{
		UserID:    userID,
		Status:    StatusActive,
		Type:      accountType,
		CreatedAt: now,
		UpdatedAt: now,
	}
	record.recompute(lastLogin, now, periods)
	return record, nil
}

// recompute resets the record to ACTIVE with dates derived from the login.
// Notification stamps are cleared so the next entry into each state notifies
// again.
func (r *Record) recompute(lastLogin, now time.Time, periods Periods) {
	r.Status = StatusActive
	r.LastLoginAt = lastLogin
	r.BecomeInactiveAt = lastLogin.AddDate(0, periods.months(r.Type), 0)
	r.AnonymizeAt = r.BecomeInactiveAt.AddDate(0, 0, periods.GraceDays)
	r.Notifications = Notifications{}
	r.UpdatedAt = now
}

// CanReactivate reports whether the record may be reset to ACTIVE.
func (r *Record) CanReactivate() error {
	if r.Status == StatusAnonymized {
		return dErrors.New(dErrors.CodeInvalidState, "account is already anonymized")
	}
	return nil
}

// ApplyReactivation resets the record to ACTIVE from the new login.
func (r *Record) ApplyReactivation(lastLogin, now time.Time, periods Periods) error {
	if err := r.CanReactivate(); err != nil {
		return err
	}
	r.recompute(lastLogin, now, periods)
	return nil
}

// ApplyAnonymized flips the record to the terminal state.
func (r *Record) ApplyAnonymized(now time.Time) {
	r.Status = StatusAnonymized
	r.UpdatedAt = now
}
