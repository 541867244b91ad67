// Package scheduler runs the two retention batch jobs on cron schedules.
package scheduler

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"warden/internal/retention/service"
	dErrors "warden/pkg/domain-errors"
)

// Scheduler owns the cron runner for the scan and anonymization jobs. The
// two jobs are scheduled independently so the destructive pass can be staged
// after the decide pass.
type Scheduler struct {
	cron    *cron.Cron
	service *service.Service
	logger  *slog.Logger
}

func New(svc *service.Service, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		service: svc,
		logger:  logger,
	}
}

// Register installs both jobs. scanSpec and scrubSpec are standard five-field
// cron expressions.
func (s *Scheduler) Register(scanSpec, scrubSpec string) error {
	if _, err := s.cron.AddFunc(scanSpec, s.runScan); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid retention scan schedule")
	}
	if _, err := s.cron.AddFunc(scrubSpec, s.runAnonymization); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid anonymization schedule")
	}
	return nil
}

// Start begins executing scheduled jobs in the cron runner's goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and returns a context that completes when running
// jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runScan() {
	ctx := context.Background()
	result, err := s.service.IdentifyInactiveAccounts(ctx)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			s.logger.Warn("retention scan skipped, another run holds the lock")
			return
		}
		s.logger.Error("retention scan failed", "error", err)
		return
	}
	s.logger.Info("scheduled retention scan finished",
		"checked", result.Checked,
		"errors", result.Errors,
	)
}

func (s *Scheduler) runAnonymization() {
	ctx := context.Background()
	result, err := s.service.ProcessAnonymization(ctx)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			s.logger.Warn("anonymization pass skipped, another run holds the lock")
			return
		}
		s.logger.Error("anonymization pass failed", "error", err)
		return
	}
	s.logger.Info("scheduled anonymization pass finished",
		"processed", result.Processed,
		"failed", result.Failed,
	)
}
