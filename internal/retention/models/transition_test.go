package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
)

func newTestRecord(t *testing.T, lastLogin, now time.Time) *Record {
	t.Helper()
	record, err := NewRecord(id.NewUserID(), TypePersonal, lastLogin, now, DefaultPeriods())
	require.NoError(t, err)
	return record
}

func TestNewRecordComputesDates(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	lastLogin := time.Date(2025, 12, 1, 8, 0, 0, 0, time.UTC)

	t.Run("personal period", func(t *testing.T) {
		record := newTestRecord(t, lastLogin, now)
		assert.Equal(t, StatusActive, record.Status)
		assert.Equal(t, lastLogin.AddDate(0, 24, 0), record.BecomeInactiveAt)
		assert.Equal(t, record.BecomeInactiveAt.AddDate(0, 0, 30), record.AnonymizeAt)
	})

	t.Run("business period", func(t *testing.T) {
		record, err := NewRecord(id.NewUserID(), TypeBusiness, lastLogin, now, DefaultPeriods())
		require.NoError(t, err)
		assert.Equal(t, lastLogin.AddDate(0, 36, 0), record.BecomeInactiveAt)
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		_, err := NewRecord(id.NewUserID(), Type("TRIAL"), lastLogin, now, DefaultPeriods())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestEvaluateNoChangeWellBeforeWindow(t *testing.T) {
	lastLogin := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	record := newTestRecord(t, lastLogin, lastLogin)

	eval := Evaluate(record, lastLogin, lastLogin.AddDate(0, 1, 0), DefaultPeriods())
	assert.False(t, eval.Changed)
	assert.Empty(t, eval.Effects)
	assert.Equal(t, StatusActive, record.Status)
}

func TestEvaluateWarningWindow(t *testing.T) {
	lastLogin := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	record := newTestRecord(t, lastLogin, lastLogin)
	// 20 days before become_inactive_at: inside the 30-day warning window,
	// outside the 15-day final notice window.
	now := record.BecomeInactiveAt.AddDate(0, 0, -20)

	eval := Evaluate(record, lastLogin, now, DefaultPeriods())
	assert.True(t, eval.Changed)
	assert.Equal(t, StatusWarning, record.Status)
	assert.True(t, eval.Has(EffectNotifyWarning))
	assert.False(t, eval.Has(EffectNotifyFinalNotice))
	require.NotNil(t, record.Notifications.WarningSentAt)

	// Second pass in the same window must not re-notify.
	again := Evaluate(record, lastLogin, now.AddDate(0, 0, 1), DefaultPeriods())
	assert.False(t, again.Has(EffectNotifyWarning))
}

func TestEvaluateFinalNoticeWindow(t *testing.T) {
	lastLogin := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	record := newTestRecord(t, lastLogin, lastLogin)
	now := record.BecomeInactiveAt.AddDate(0, 0, -10)

	eval := Evaluate(record, lastLogin, now, DefaultPeriods())
	assert.Equal(t, StatusWarning, record.Status, "final notice does not change status")
	assert.True(t, eval.Has(EffectNotifyWarning), "warning fires on the same pass when both windows are open")
	assert.True(t, eval.Has(EffectNotifyFinalNotice))

	again := Evaluate(record, lastLogin, now.AddDate(0, 0, 1), DefaultPeriods())
	assert.False(t, again.Has(EffectNotifyFinalNotice))
}

func TestEvaluateInactive(t *testing.T) {
	lastLogin := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	record := newTestRecord(t, lastLogin, lastLogin)
	now := record.BecomeInactiveAt.AddDate(0, 0, 1)

	eval := Evaluate(record, lastLogin, now, DefaultPeriods())
	assert.Equal(t, StatusInactive, record.Status)
	assert.True(t, eval.Has(EffectMarkedInactive))
	assert.True(t, eval.Has(EffectNotifyInactive))
	assert.False(t, eval.Has(EffectMarkedForAnonymization), "still inside grace")

	again := Evaluate(record, lastLogin, now.AddDate(0, 0, 1), DefaultPeriods())
	assert.False(t, again.Has(EffectMarkedInactive))
	assert.False(t, again.Has(EffectNotifyInactive))
}

func TestEvaluatePastAnonymizeDateInOnePass(t *testing.T) {
	lastLogin := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	record := newTestRecord(t, lastLogin, lastLogin)
	now := record.AnonymizeAt.AddDate(0, 0, 5)

	eval := Evaluate(record, lastLogin, now, DefaultPeriods())
	assert.Equal(t, StatusAnonymizing, record.Status,
		"a record past both dates reaches ANONYMIZING in a single pass")
	assert.True(t, eval.Has(EffectMarkedInactive))
	assert.True(t, eval.Has(EffectMarkedForAnonymization))
}

func TestEvaluateReactivationOnNewLogin(t *testing.T) {
	lastLogin := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	record := newTestRecord(t, lastLogin, lastLogin)

	// Drive into WARNING first.
	warningTime := record.BecomeInactiveAt.AddDate(0, 0, -20)
	Evaluate(record, lastLogin, warningTime, DefaultPeriods())
	require.Equal(t, StatusWarning, record.Status)

	freshLogin := warningTime.AddDate(0, 0, 1)
	now := freshLogin.Add(time.Hour)
	eval := Evaluate(record, freshLogin, now, DefaultPeriods())

	assert.True(t, eval.Has(EffectReactivated))
	assert.Equal(t, StatusActive, record.Status)
	assert.Equal(t, freshLogin, record.LastLoginAt)
	assert.Equal(t, freshLogin.AddDate(0, 24, 0), record.BecomeInactiveAt)
	assert.Nil(t, record.Notifications.WarningSentAt, "reactivation clears notification stamps")
}

func TestEvaluateTerminalStateIsInert(t *testing.T) {
	lastLogin := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	record := newTestRecord(t, lastLogin, lastLogin)
	record.Status = StatusAnonymized

	eval := Evaluate(record, lastLogin.AddDate(1, 0, 0), time.Now(), DefaultPeriods())
	assert.False(t, eval.Changed)
	assert.Empty(t, eval.Effects)
	assert.Equal(t, StatusAnonymized, record.Status)
}

func TestApplyReactivation(t *testing.T) {
	lastLogin := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	record := newTestRecord(t, lastLogin, lastLogin)

	t.Run("resets non-terminal record", func(t *testing.T) {
		record.Status = StatusAnonymizing
		now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, record.ApplyReactivation(now, now, DefaultPeriods()))
		assert.Equal(t, StatusActive, record.Status)
		assert.Equal(t, now.AddDate(0, 24, 0), record.BecomeInactiveAt)
	})

	t.Run("rejects terminal record", func(t *testing.T) {
		record.Status = StatusAnonymized
		err := record.ApplyReactivation(time.Now(), time.Now(), DefaultPeriods())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}
