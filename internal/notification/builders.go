package notification

import (
	"fmt"
	"time"

	"warden/pkg/email"
)

// DomainVerified announces a successful domain verification to the company
// contact.
func DomainVerified(to, hostname string) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Domain %s verified", hostname),
		HTMLBody: fmt.Sprintf(
			"<p>Ownership of <strong>%s</strong> has been verified. "+
				"You can now remove the verification TXT record from your DNS configuration.</p>",
			hostname),
	}
}

// RetentionWarning is sent when an account enters the pre-inactivity warning
// window. deadline is the date the account will be marked inactive.
func RetentionWarning(to, name string, deadline time.Time) Message {
	display := email.DisplayName(name, to)
	return Message{
		To:      to,
		Subject: "Your account will become inactive soon",
		HTMLBody: fmt.Sprintf(
			"<p>Hi %s,</p><p>You have not signed in for a while. "+
				"Your account will be marked inactive on <strong>%s</strong> unless you sign in before then.</p>",
			display, deadline.Format("January 2, 2006")),
	}
}

// RetentionFinalNotice is the last warning before anonymization is scheduled.
func RetentionFinalNotice(to, name string, deadline time.Time) Message {
	display := email.DisplayName(name, to)
	return Message{
		To:      to,
		Subject: "Final notice: your account data will be removed",
		HTMLBody: fmt.Sprintf(
			"<p>Hi %s,</p><p>Your account has been inactive for an extended period. "+
				"On <strong>%s</strong> your personal data will be scheduled for permanent removal. "+
				"Sign in before then to keep your account.</p>",
			display, deadline.Format("January 2, 2006")),
	}
}

// AccountMarkedInactive informs the user their account was deactivated and a
// grace period has started.
func AccountMarkedInactive(to, name string, graceEnds time.Time) Message {
	display := email.DisplayName(name, to)
	return Message{
		To:      to,
		Subject: "Your account has been marked inactive",
		HTMLBody: fmt.Sprintf(
			"<p>Hi %s,</p><p>Your account is now inactive. "+
				"You can reactivate it by signing in before <strong>%s</strong>. "+
				"After that date your personal data will be permanently anonymized.</p>",
			display, graceEnds.Format("January 2, 2006")),
	}
}
