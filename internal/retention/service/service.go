// Package service implements the retention lifecycle engine: the periodic
// inactivity scan, the anonymization pass, and login-driven reactivation.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"warden/internal/accounts"
	"warden/internal/notification"
	rmetrics "warden/internal/retention/metrics"
	"warden/internal/retention/models"
	"warden/internal/retention/store/lock"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/audit"
	"warden/pkg/platform/sentinel"
	"warden/pkg/requestcontext"
)

// RecordStore persists retention records.
type RecordStore interface {
	Create(ctx context.Context, record *models.Record) error
	FindByUser(ctx context.Context, userID id.UserID) (*models.Record, error)
	Update(ctx context.Context, record *models.Record) error
	ListByStatus(ctx context.Context, status models.Status) ([]*models.Record, error)
}

// MetricsStore persists the per-day aggregate row each scan upserts.
type MetricsStore interface {
	Upsert(ctx context.Context, metrics *models.DailyMetrics) error
}

// Directory is the slice of the account store the engine reads and touches.
type Directory interface {
	ListWithLogin(ctx context.Context) ([]*accounts.Account, error)
	FindByID(ctx context.Context, userID id.UserID) (*accounts.Account, error)
	RecordLogin(ctx context.Context, userID id.UserID, at time.Time) error
}

// Anonymizer performs the destructive scrub of an account's personal data.
// Must be idempotent: a retried call after a partial failure is safe.
type Anonymizer interface {
	Anonymize(ctx context.Context, userID id.UserID) error
}

// Notifier delivers lifecycle notifications. Failures are logged and counted,
// never fatal to a batch.
type Notifier interface {
	Send(ctx context.Context, msg notification.Message) error
}

// ScanResult carries the counters from one identify-inactive-accounts run.
type ScanResult struct {
	Checked                int `json:"checked"`
	Warned                 int `json:"warned"`
	MarkedInactive         int `json:"marked_inactive"`
	MarkedForAnonymization int `json:"marked_for_anonymization"`
	Errors                 int `json:"errors"`
}

// AnonymizationResult carries the counters from one anonymization pass.
type AnonymizationResult struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// Service drives the retention lifecycle.
type Service struct {
	records      RecordStore
	dailyMetrics MetricsStore
	directory    Directory
	anonymizer   Anonymizer
	notifier     Notifier
	locker       lock.Locker
	periods      models.Periods
	logger       *slog.Logger
	metrics      *rmetrics.Metrics
	audit        *audit.Publisher
	tracer       trace.Tracer
}

type serviceConfig struct {
	notifier Notifier
	locker   lock.Locker
	periods  models.Periods
	logger   *slog.Logger
	metrics  *rmetrics.Metrics
	audit    *audit.Publisher
}

// Option configures optional service collaborators.
type Option func(*serviceConfig)

func WithNotifier(notifier Notifier) Option {
	return func(cfg *serviceConfig) { cfg.notifier = notifier }
}

func WithLocker(locker lock.Locker) Option {
	return func(cfg *serviceConfig) { cfg.locker = locker }
}

func WithPeriods(periods models.Periods) Option {
	return func(cfg *serviceConfig) { cfg.periods = periods }
}

func WithLogger(logger *slog.Logger) Option {
	return func(cfg *serviceConfig) { cfg.logger = logger }
}

func WithMetrics(metrics *rmetrics.Metrics) Option {
	return func(cfg *serviceConfig) { cfg.metrics = metrics }
}

func WithAuditPublisher(publisher *audit.Publisher) Option {
	return func(cfg *serviceConfig) { cfg.audit = publisher }
}

func NewService(records RecordStore, dailyMetrics MetricsStore, directory Directory, anonymizer Anonymizer, opts ...Option) *Service {
	cfg := &serviceConfig{
		locker:  lock.NewInMemoryLocker(),
		periods: models.DefaultPeriods(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		records:      records,
		dailyMetrics: dailyMetrics,
		directory:    directory,
		anonymizer:   anonymizer,
		notifier:     cfg.notifier,
		locker:       cfg.locker,
		periods:      cfg.periods,
		logger:       logger,
		metrics:      cfg.metrics,
		audit:        cfg.audit,
		tracer:       otel.Tracer("warden/retention"),
	}
}

// IdentifyInactiveAccounts scans every account with a recorded login,
// creating missing retention records and advancing existing ones through the
// lifecycle. Per-account failures are counted, never fatal. The run concludes
// by upserting the day's aggregate metrics row.
func (s *Service) IdentifyInactiveAccounts(ctx context.Context) (*ScanResult, error) {
	ctx, span := s.tracer.Start(ctx, "retention.IdentifyInactiveAccounts")
	defer span.End()

	acquired, release, err := s.locker.Acquire(ctx, lock.KeyRetentionScan)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire scan lock")
	}
	if !acquired {
		return nil, dErrors.New(dErrors.CodeConflict, "retention scan already running")
	}
	defer release()

	started := time.Now()
	now := requestcontext.Now(ctx)

	all, err := s.directory.ListWithLogin(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list accounts")
	}

	result := &ScanResult{}
	daily := models.NewDailyMetrics(now)

	for _, account := range all {
		record, err := s.scanAccount(ctx, account, now, result)
		if err != nil {
			result.Errors++
			s.logger.ErrorContext(ctx, "retention scan failed for account",
				"user_id", account.ID.String(),
				"error", err,
			)
			continue
		}
		result.Checked++
		daily.Count(record.Status, record.Type)
	}

	daily.ScanDuration = time.Since(started)
	if err := s.dailyMetrics.Upsert(ctx, daily); err != nil {
		// The scan itself succeeded. Report the counters and log the
		// aggregate write failure; the next run overwrites the row anyway.
		s.logger.ErrorContext(ctx, "failed to upsert retention metrics", "error", err)
	}
	if s.metrics != nil {
		s.metrics.ObserveScan(daily.ScanDuration, result.Checked, result.Warned,
			result.MarkedInactive, result.MarkedForAnonymization, result.Errors)
	}

	s.logger.InfoContext(ctx, "retention scan completed",
		"checked", result.Checked,
		"warned", result.Warned,
		"marked_inactive", result.MarkedInactive,
		"marked_for_anonymization", result.MarkedForAnonymization,
		"errors", result.Errors,
		"duration", daily.ScanDuration,
	)
	return result, nil
}

// scanAccount evaluates a single account, persisting any state change and
// dispatching the transition's side effects.
func (s *Service) scanAccount(ctx context.Context, account *accounts.Account, now time.Time, result *ScanResult) (*models.Record, error) {
	if account.LastLoginAt == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "account has no recorded login")
	}

	record, err := s.records.FindByUser(ctx, account.ID)
	if errors.Is(err, sentinel.ErrNotFound) {
		record, err = models.NewRecord(account.ID, models.Type(account.Type), *account.LastLoginAt, now, s.periods)
		if err != nil {
			return nil, err
		}
		if err := s.records.Create(ctx, record); err != nil {
			return nil, err
		}
		return record, nil
	}
	if err != nil {
		return nil, err
	}

	eval := models.Evaluate(record, *account.LastLoginAt, now, s.periods)
	if eval.Changed {
		if err := s.records.Update(ctx, record); err != nil {
			return nil, err
		}
	}
	s.applyEffects(ctx, account, record, eval, result)
	return record, nil
}

// applyEffects dispatches notifications and audit events for a completed
// transition. The record is already persisted; notification failures are
// logged, not unwound.
func (s *Service) applyEffects(ctx context.Context, account *accounts.Account, record *models.Record, eval models.Evaluation, result *ScanResult) {
	for _, effect := range eval.Effects {
		switch effect {
		case models.EffectNotifyWarning:
			result.Warned++
			s.send(ctx, account, notification.RetentionWarning(account.Email, account.Name, record.BecomeInactiveAt))
			s.emitAudit(ctx, audit.EventRetentionWarningSent, account.ID, "")
		case models.EffectNotifyFinalNotice:
			s.send(ctx, account, notification.RetentionFinalNotice(account.Email, account.Name, record.BecomeInactiveAt))
			s.emitAudit(ctx, audit.EventRetentionFinalNoticeSent, account.ID, "")
		case models.EffectMarkedInactive:
			result.MarkedInactive++
			s.emitAudit(ctx, audit.EventAccountMarkedInactive, account.ID, "")
		case models.EffectNotifyInactive:
			s.send(ctx, account, notification.AccountMarkedInactive(account.Email, account.Name, record.AnonymizeAt))
		case models.EffectMarkedForAnonymization:
			result.MarkedForAnonymization++
			s.emitAudit(ctx, audit.EventAccountMarkedForScrub, account.ID, "")
		case models.EffectReactivated:
			s.emitAudit(ctx, audit.EventAccountReactivated, account.ID, "login observed")
		}
	}
}

// ProcessAnonymization scrubs every account in the ANONYMIZING state,
// flipping each to the terminal state on success. A failed account stays
// ANONYMIZING and is retried on the next pass.
func (s *Service) ProcessAnonymization(ctx context.Context) (*AnonymizationResult, error) {
	ctx, span := s.tracer.Start(ctx, "retention.ProcessAnonymization")
	defer span.End()

	acquired, release, err := s.locker.Acquire(ctx, lock.KeyAnonymization)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire anonymization lock")
	}
	if !acquired {
		return nil, dErrors.New(dErrors.CodeConflict, "anonymization pass already running")
	}
	defer release()

	now := requestcontext.Now(ctx)
	pending, err := s.records.ListByStatus(ctx, models.StatusAnonymizing)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list anonymizing records")
	}

	result := &AnonymizationResult{}
	for _, record := range pending {
		if err := s.anonymizeOne(ctx, record, now); err != nil {
			result.Failed++
			s.logger.ErrorContext(ctx, "anonymization failed for account",
				"user_id", record.UserID.String(),
				"error", err,
			)
			continue
		}
		result.Processed++
	}

	if s.metrics != nil {
		s.metrics.ObserveAnonymization(result.Processed, result.Failed)
	}
	s.logger.InfoContext(ctx, "anonymization pass completed",
		"processed", result.Processed,
		"failed", result.Failed,
	)
	return result, nil
}

func (s *Service) anonymizeOne(ctx context.Context, record *models.Record, now time.Time) error {
	if err := s.anonymizer.Anonymize(ctx, record.UserID); err != nil {
		return err
	}
	record.ApplyAnonymized(now)
	if err := s.records.Update(ctx, record); err != nil {
		// The scrub succeeded but the flip did not; the record stays
		// ANONYMIZING and the idempotent scrub repeats next pass.
		return err
	}
	s.emitAudit(ctx, audit.EventAccountAnonymized, record.UserID, "")
	return nil
}

// ReactivateAccount resets a record to ACTIVE, recomputing its dates from the
// current time. Terminal records cannot be reactivated.
func (s *Service) ReactivateAccount(ctx context.Context, userID id.UserID) (*models.Record, error) {
	ctx, span := s.tracer.Start(ctx, "retention.ReactivateAccount")
	defer span.End()

	now := requestcontext.Now(ctx)
	record, err := s.records.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "retention record not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load retention record")
	}

	if err := record.ApplyReactivation(now, now, s.periods); err != nil {
		return nil, err
	}
	if err := s.records.Update(ctx, record); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update retention record")
	}
	s.emitAudit(ctx, audit.EventAccountReactivated, userID, "explicit reactivation")
	return record, nil
}

// RecordLogin stamps a fresh login on the account and, when a retention
// record exists, resets it to ACTIVE immediately rather than waiting for the
// next scan.
func (s *Service) RecordLogin(ctx context.Context, userID id.UserID) error {
	now := requestcontext.Now(ctx)
	if err := s.directory.RecordLogin(ctx, userID, now); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record login")
	}

	record, err := s.records.FindByUser(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load retention record")
	}
	if record.Status == models.StatusAnonymized {
		return nil
	}
	if err := record.ApplyReactivation(now, now, s.periods); err != nil {
		return err
	}
	if err := s.records.Update(ctx, record); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update retention record")
	}
	return nil
}

// GetRecord returns the retention record for a user.
func (s *Service) GetRecord(ctx context.Context, userID id.UserID) (*models.Record, error) {
	record, err := s.records.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "retention record not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load retention record")
	}
	return record, nil
}

func (s *Service) send(ctx context.Context, account *accounts.Account, msg notification.Message) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "failed to send retention notification",
			"user_id", account.ID.String(),
			"subject", msg.Subject,
			"error", err,
		)
	}
}

func (s *Service) emitAudit(ctx context.Context, action audit.AuditEvent, userID id.UserID, reason string) {
	if s.audit == nil {
		return
	}
	event := audit.Event{
		Action:    string(action),
		UserID:    userID,
		Reason:    reason,
		RequestID: requestcontext.RequestID(ctx),
		Timestamp: requestcontext.Now(ctx),
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event", "action", action, "error", err)
	}
}
