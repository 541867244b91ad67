package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"warden/internal/accounts"
	"warden/internal/notification"
	"warden/internal/retention/models"
	metricstore "warden/internal/retention/store/metrics"
	recordstore "warden/internal/retention/store/record"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/audit"
	auditmem "warden/pkg/platform/audit/store/memory"
	"warden/pkg/requestcontext"
)

// failingAnonymizer fails for the configured user IDs and delegates the rest.
type failingAnonymizer struct {
	inner   *accounts.InMemoryStore
	failFor map[id.UserID]bool
}

func (f *failingAnonymizer) Anonymize(ctx context.Context, userID id.UserID) error {
	if f.failFor[userID] {
		return errors.New("scrub backend unavailable")
	}
	return f.inner.Anonymize(ctx, userID)
}

type RetentionServiceSuite struct {
	suite.Suite
	ctx       context.Context
	now       time.Time
	directory *accounts.InMemoryStore
	records   *recordstore.InMemoryStore
	daily     *metricstore.InMemoryStore
	notifier  *notification.Recorder
	events    *auditmem.Store
	service   *Service
}

func TestRetentionServiceSuite(t *testing.T) {
	suite.Run(t, new(RetentionServiceSuite))
}

func (s *RetentionServiceSuite) SetupTest() {
	s.now = time.Date(2026, 6, 1, 3, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.directory = accounts.NewMemory()
	s.records = recordstore.NewInMemoryStore()
	s.daily = metricstore.NewInMemoryStore()
	s.notifier = notification.NewRecorder()
	s.events = auditmem.New()
	s.service = NewService(s.records, s.daily, s.directory, s.directory,
		WithNotifier(s.notifier),
		WithAuditPublisher(audit.NewPublisher(s.events)),
	)
}

// seedAccount creates an account whose last login was monthsAgo months before
// the suite clock.
func (s *RetentionServiceSuite) seedAccount(email string, accountType accounts.Type, monthsAgo int) *accounts.Account {
	account, err := accounts.NewAccount(id.NewUserID(), id.NewOrgID(), email, accountType, s.now.AddDate(0, -monthsAgo, 0))
	s.Require().NoError(err)
	account.ApplyLogin(s.now.AddDate(0, -monthsAgo, 0))
	s.Require().NoError(s.directory.Create(s.ctx, account))
	return account
}

func (s *RetentionServiceSuite) TestScanCreatesRecordsOnFirstSight() {
	s.seedAccount("fresh@example.com", accounts.TypePersonal, 1)

	result, err := s.service.IdentifyInactiveAccounts(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, result.Checked)
	s.Zero(result.Warned)
	s.Zero(result.Errors)

	day, err := s.daily.FindByDay(s.ctx, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(err)
	s.Require().NotNil(day)
	s.Equal(1, day.ActivePersonal)
}

func (s *RetentionServiceSuite) TestScanWarnsApproachingAccounts() {
	// 24-month personal period: a login 23.5 months ago is inside the
	// 30-day warning window.
	account, err := accounts.NewAccount(id.NewUserID(), id.NewOrgID(), "drifting@example.com", accounts.TypePersonal, s.now)
	s.Require().NoError(err)
	account.ApplyLogin(s.now.AddDate(0, -24, 20))
	s.Require().NoError(s.directory.Create(s.ctx, account))

	// First scan creates the record in ACTIVE.
	_, err = s.service.IdentifyInactiveAccounts(s.ctx)
	s.Require().NoError(err)

	// Second scan advances it into WARNING and notifies.
	result, err := s.service.IdentifyInactiveAccounts(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, result.Warned)

	sent := s.notifier.Sent()
	s.Require().Len(sent, 1)
	s.Equal("drifting@example.com", sent[0].To)
	s.Contains(sent[0].Subject, "inactive soon")

	// Third scan must not re-notify.
	result, err = s.service.IdentifyInactiveAccounts(s.ctx)
	s.Require().NoError(err)
	s.Zero(result.Warned)
	s.Len(s.notifier.Sent(), 1)
}

func (s *RetentionServiceSuite) TestScanMarksLongInactiveForAnonymization() {
	account := s.seedAccount("gone@example.com", accounts.TypePersonal, 30)

	_, err := s.service.IdentifyInactiveAccounts(s.ctx)
	s.Require().NoError(err)
	result, err := s.service.IdentifyInactiveAccounts(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, result.MarkedInactive)
	s.Equal(1, result.MarkedForAnonymization)

	record, err := s.records.FindByUser(s.ctx, account.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusAnonymizing, record.Status)
}

func (s *RetentionServiceSuite) TestScanPerAccountFailuresAreCounted() {
	s.seedAccount("ok@example.com", accounts.TypePersonal, 1)

	// An account with a login in the directory listing but a corrupt type
	// fails record creation; the batch must continue.
	broken, err := accounts.NewAccount(id.NewUserID(), id.NewOrgID(), "broken@example.com", accounts.TypeBusiness, s.now)
	s.Require().NoError(err)
	broken.ApplyLogin(s.now.AddDate(0, -1, 0))
	broken.Type = accounts.Type("TRIAL")
	s.Require().NoError(s.directory.Create(s.ctx, broken))

	result, err := s.service.IdentifyInactiveAccounts(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, result.Checked)
	s.Equal(1, result.Errors)
}

func (s *RetentionServiceSuite) TestProcessAnonymization() {
	healthy := s.seedAccount("healthy@example.com", accounts.TypePersonal, 30)
	stuck := s.seedAccount("stuck@example.com", accounts.TypePersonal, 30)

	// Two scans drive both accounts into ANONYMIZING.
	_, err := s.service.IdentifyInactiveAccounts(s.ctx)
	s.Require().NoError(err)
	_, err = s.service.IdentifyInactiveAccounts(s.ctx)
	s.Require().NoError(err)

	anonymizer := &failingAnonymizer{
		inner:   s.directory,
		failFor: map[id.UserID]bool{stuck.ID: true},
	}
	svc := NewService(s.records, s.daily, s.directory, anonymizer,
		WithAuditPublisher(audit.NewPublisher(s.events)),
	)

	result, err := svc.ProcessAnonymization(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, result.Processed)
	s.Equal(1, result.Failed)

	healthyRecord, err := s.records.FindByUser(s.ctx, healthy.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusAnonymized, healthyRecord.Status)

	stuckRecord, err := s.records.FindByUser(s.ctx, stuck.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusAnonymizing, stuckRecord.Status, "failed account stays queued for retry")

	scrubbed, err := s.directory.FindByID(s.ctx, healthy.ID)
	s.Require().NoError(err)
	s.True(scrubbed.Anonymized)
	s.Contains(scrubbed.Email, "anonymized+")

	// Retry after the backend recovers picks up the stuck account.
	anonymizer.failFor = nil
	result, err = svc.ProcessAnonymization(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, result.Processed)
	s.Zero(result.Failed)
}

func (s *RetentionServiceSuite) TestReactivateAccount() {
	account := s.seedAccount("back@example.com", accounts.TypePersonal, 30)
	_, err := s.service.IdentifyInactiveAccounts(s.ctx)
	s.Require().NoError(err)
	_, err = s.service.IdentifyInactiveAccounts(s.ctx)
	s.Require().NoError(err)

	record, err := s.service.ReactivateAccount(s.ctx, account.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusActive, record.Status)
	s.Equal(s.now.AddDate(0, 24, 0), record.BecomeInactiveAt)

	s.Run("terminal record cannot be reactivated", func() {
		record.ApplyAnonymized(s.now)
		s.Require().NoError(s.records.Update(s.ctx, record))
		_, err := s.service.ReactivateAccount(s.ctx, account.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("unknown user is not found", func() {
		_, err := s.service.ReactivateAccount(s.ctx, id.NewUserID())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *RetentionServiceSuite) TestRecordLoginResetsLifecycle() {
	account := s.seedAccount("returning@example.com", accounts.TypePersonal, 23)
	_, err := s.service.IdentifyInactiveAccounts(s.ctx)
	s.Require().NoError(err)

	s.Require().NoError(s.service.RecordLogin(s.ctx, account.ID))

	record, err := s.records.FindByUser(s.ctx, account.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusActive, record.Status)
	s.Equal(s.now, record.LastLoginAt)

	refreshed, err := s.directory.FindByID(s.ctx, account.ID)
	s.Require().NoError(err)
	s.Require().NotNil(refreshed.LastLoginAt)
	s.Equal(s.now, *refreshed.LastLoginAt)
}

func (s *RetentionServiceSuite) TestScanEmitsComplianceAuditTrail() {
	s.seedAccount("gone@example.com", accounts.TypePersonal, 30)
	_, err := s.service.IdentifyInactiveAccounts(s.ctx)
	s.Require().NoError(err)
	_, err = s.service.IdentifyInactiveAccounts(s.ctx)
	s.Require().NoError(err)

	actions := make([]string, 0)
	for _, event := range s.events.All() {
		actions = append(actions, event.Action)
	}
	s.Contains(actions, string(audit.EventAccountMarkedInactive))
	s.Contains(actions, string(audit.EventAccountMarkedForScrub))
}
