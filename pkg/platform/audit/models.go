package audit

import (
	"time"

	id "warden/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance.
	// These require tamper-proof storage and long retention.
	// Examples: account anonymization, retention state changes.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring and forensics.
	// These feed into SIEM systems and alerting pipelines.
	// Examples: IP denials, reauthentication failures, session termination.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and operational visibility.
	// These can be sampled or aggregated with shorter retention.
	// Examples: verification checks, session creation, retention scans.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	UserID    id.UserID
	Subject   string
	Action    string
	Decision  string
	Reason    string
	RequestID string
	// ActorID tracks who performed the action when different from UserID.
	// Used for admin operations where an admin acts on a user's behalf.
	ActorID string
}

// AuditEvent names a recognized audit action.
type AuditEvent string

const (
	// Domain verification events
	EventDomainAdded                AuditEvent = "domain_added"
	EventDomainRemoved              AuditEvent = "domain_removed"
	EventDomainPrimaryChanged       AuditEvent = "domain_primary_changed"
	EventDomainVerificationStarted  AuditEvent = "domain_verification_started"
	EventDomainVerified             AuditEvent = "domain_verified"
	EventDomainVerificationFailed   AuditEvent = "domain_verification_failed"
	EventProfileVerificationStarted AuditEvent = "profile_verification_started"
	EventProfileDomainVerified      AuditEvent = "profile_domain_verified"

	// Retention lifecycle events
	EventRetentionWarningSent     AuditEvent = "retention_warning_sent"
	EventRetentionFinalNoticeSent AuditEvent = "retention_final_notice_sent"
	EventAccountMarkedInactive    AuditEvent = "account_marked_inactive"
	EventAccountMarkedForScrub    AuditEvent = "account_marked_for_anonymization"
	EventAccountAnonymized        AuditEvent = "account_anonymized"
	EventAccountReactivated       AuditEvent = "account_reactivated"

	// Session policy events
	EventSessionCreated     AuditEvent = "session_created"
	EventSessionEvicted     AuditEvent = "session_evicted"
	EventSessionExpired     AuditEvent = "session_expired"
	EventSessionsTerminated AuditEvent = "sessions_terminated"
	EventIPRejected         AuditEvent = "ip_rejected"
	EventIPVerified         AuditEvent = "ip_verified"
	EventReauthGranted      AuditEvent = "reauth_granted"
	EventReauthFailed       AuditEvent = "reauth_failed"
	EventPolicyUpdated      AuditEvent = "security_policy_updated"
)

// eventCategories maps each audit event to its category.
// Compliance: legal/regulatory significance, long retention required.
// Security: security monitoring, SIEM integration, alerting.
// Operations: debugging, operational visibility, can be sampled.
var eventCategories = map[AuditEvent]EventCategory{
	EventAccountAnonymized:     CategoryCompliance,
	EventAccountMarkedForScrub: CategoryCompliance,
	EventAccountMarkedInactive: CategoryCompliance,
	EventAccountReactivated:    CategoryCompliance,

	EventSessionsTerminated: CategorySecurity,
	EventSessionExpired:     CategorySecurity,
	EventSessionEvicted:     CategorySecurity,
	EventIPRejected:         CategorySecurity,
	EventReauthFailed:       CategorySecurity,
	EventPolicyUpdated:      CategorySecurity,
	EventDomainRemoved:      CategorySecurity,

	EventDomainAdded:                CategoryOperations,
	EventDomainPrimaryChanged:       CategoryOperations,
	EventDomainVerificationStarted:  CategoryOperations,
	EventDomainVerified:             CategoryOperations,
	EventDomainVerificationFailed:   CategoryOperations,
	EventProfileVerificationStarted: CategoryOperations,
	EventProfileDomainVerified:      CategoryOperations,
	EventRetentionWarningSent:       CategoryOperations,
	EventRetentionFinalNoticeSent:   CategoryOperations,
	EventSessionCreated:             CategoryOperations,
	EventIPVerified:                 CategoryOperations,
	EventReauthGranted:              CategoryOperations,
}

// Category returns the category for the event, defaulting to operations for
// unrecognized actions so nothing is silently dropped.
func (e AuditEvent) Category() EventCategory {
	if category, ok := eventCategories[e]; ok {
		return category
	}
	return CategoryOperations
}
