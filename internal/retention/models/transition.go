package models

import "time"

// Effect is a side effect requested by a transition. The caller persists the
// mutated record and then performs the effects; the record itself only
// captures state and notification stamps.
type Effect string

const (
	EffectNotifyWarning          Effect = "notify_warning"
	EffectNotifyFinalNotice      Effect = "notify_final_notice"
	EffectNotifyInactive         Effect = "notify_inactive"
	EffectReactivated            Effect = "reactivated"
	EffectMarkedInactive         Effect = "marked_inactive"
	EffectMarkedForAnonymization Effect = "marked_for_anonymization"
)

// Evaluation is the outcome of one scan pass over a record.
type Evaluation struct {
	Changed bool
	Effects []Effect
}

// Has reports whether the evaluation produced the given effect.
func (e Evaluation) Has(effect Effect) bool {
	for _, produced := range e.Effects {
		if produced == effect {
			return true
		}
	}
	return false
}

// Evaluate advances the record's lifecycle for one scan pass at the given
// time, mutating the record in place and returning the side effects the
// caller must perform.
//
// Check order: reactivation first, then warning, final notice, inactive, and
// anonymization. The anonymize-date check is independent of the inactive-date
// check, so a record far past both dates reaches ANONYMIZING in a single
// pass. The terminal state is never left.
func Evaluate(record *Record, observedLogin, now time.Time, periods Periods) Evaluation {
	var eval Evaluation
	if record.Status == StatusAnonymized {
		return eval
	}

	if observedLogin.After(record.LastLoginAt) {
		record.recompute(observedLogin, now, periods)
		eval.Changed = true
		eval.Effects = append(eval.Effects, EffectReactivated)
	}

	untilInactive := record.BecomeInactiveAt.Sub(now)

	if record.Status == StatusActive && untilInactive <= daysToDuration(periods.WarningDays) && now.Before(record.BecomeInactiveAt) {
		record.Status = StatusWarning
		record.UpdatedAt = now
		eval.Changed = true
		if record.Notifications.WarningSentAt == nil {
			stamp := now
			record.Notifications.WarningSentAt = &stamp
			eval.Effects = append(eval.Effects, EffectNotifyWarning)
		}
	}

	if record.Status == StatusWarning && untilInactive <= daysToDuration(periods.FinalNoticeDays) && now.Before(record.BecomeInactiveAt) {
		if record.Notifications.ApproachingInactiveSentAt == nil {
			stamp := now
			record.Notifications.ApproachingInactiveSentAt = &stamp
			record.UpdatedAt = now
			eval.Changed = true
			eval.Effects = append(eval.Effects, EffectNotifyFinalNotice)
		}
	}

	if !now.Before(record.BecomeInactiveAt) && !statusAtLeastInactive(record.Status) {
		record.Status = StatusInactive
		record.UpdatedAt = now
		eval.Changed = true
		eval.Effects = append(eval.Effects, EffectMarkedInactive)
		if record.Notifications.InactiveSentAt == nil {
			stamp := now
			record.Notifications.InactiveSentAt = &stamp
			eval.Effects = append(eval.Effects, EffectNotifyInactive)
		}
	}

	if !now.Before(record.AnonymizeAt) && record.Status != StatusAnonymizing {
		record.Status = StatusAnonymizing
		record.UpdatedAt = now
		eval.Changed = true
		eval.Effects = append(eval.Effects, EffectMarkedForAnonymization)
	}

	return eval
}

// statusAtLeastInactive reports whether the record already passed the
// inactive boundary, so the INACTIVE entry must not repeat.
func statusAtLeastInactive(status Status) bool {
	switch status {
	case StatusInactive, StatusGracePeriod, StatusAnonymizing, StatusAnonymized:
		return true
	}
	return false
}

func daysToDuration(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}
