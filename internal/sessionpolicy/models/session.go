package models

import (
	"time"

	"github.com/mssola/useragent"

	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
)

// Session is an active authenticated session. Expiry is age-based against
// the organization policy at evaluation time, not a stored deadline, so
// policy changes apply to existing sessions immediately.
type Session struct {
	ID          id.SessionID `json:"id"`
	UserID      id.UserID    `json:"user_id"`
	OrgID       id.OrgID     `json:"org_id"`
	ClientIP    string       `json:"client_ip"`
	UserAgent   string       `json:"-"`
	DeviceLabel string       `json:"device_label"`
	CreatedAt   time.Time    `json:"created_at"`
	LastSeenAt  time.Time    `json:"last_seen_at"`
}

// NewSession constructs a session stamped with client metadata.
func NewSession(sessionID id.SessionID, userID id.UserID, orgID id.OrgID, clientIP, userAgentRaw string, now time.Time) (*Session, error) {
	if sessionID.IsNil() || userID.IsNil() || orgID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "session requires session, user, and org IDs")
	}
	return &Session{
		ID:          sessionID,
		UserID:      userID,
		OrgID:       orgID,
		ClientIP:    clientIP,
		UserAgent:   userAgentRaw,
		DeviceLabel: DeviceLabel(userAgentRaw),
		CreatedAt:   now,
		LastSeenAt:  now,
	}, nil
}

// Age returns how long the session has existed.
func (s *Session) Age(now time.Time) time.Duration {
	return now.Sub(s.CreatedAt)
}

// Expired reports whether the session exceeds the policy timeout.
func (s *Session) Expired(now time.Time, timeout time.Duration) bool {
	return s.Age(now) > timeout
}

// Touch bumps the last-seen stamp.
func (s *Session) Touch(now time.Time) {
	s.LastSeenAt = now
}

// DeviceLabel renders a short human-readable device description from a raw
// User-Agent header.
func DeviceLabel(rawUserAgent string) string {
	if rawUserAgent == "" {
		return "Unknown device"
	}
	ua := useragent.New(rawUserAgent)
	browser, _ := ua.Browser()
	os := ua.OSInfo().Name
	switch {
	case browser != "" && os != "":
		return browser + " on " + os
	case browser != "":
		return browser
	case os != "":
		return os
	}
	return "Unknown device"
}
