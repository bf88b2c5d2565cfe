package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"

	"tokenshop-backend/internal/jobs"
	"tokenshop-backend/internal/logger"
)

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron *cron.Cron
	jobs *jobs.JobRunner
}

// NewScheduler creates a new scheduler with the provided job runner. Grant
// disbursement moves money and is never scheduled; operators run it through
// the cronjob binary.
func NewScheduler(jobRunner *jobs.JobRunner, mirrorEnabled bool) (*Scheduler, error) {
	// Create cron with UTC timezone and seconds precision
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	s := &Scheduler{
		cron: c,
		jobs: jobRunner,
	}

	if err := s.registerJobs(mirrorEnabled); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) registerJobs(mirrorEnabled bool) error {
	cfg := s.jobs.Config().Scheduler

	if _, err := s.cron.AddFunc(cfg.PlanGrants, s.jobs.PlanGrants); err != nil {
		logger.Error("Failed to register PlanGrants job", "error", err)
		return err
	}

	if mirrorEnabled {
		if _, err := s.cron.AddFunc(cfg.RetryOrderMirror, s.jobs.RetryOrderMirror); err != nil {
			logger.Error("Failed to register RetryOrderMirror job", "error", err)
			return err
		}
	}

	logger.Info("Cron jobs registered", "count", len(s.cron.Entries()))
	return nil
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	logger.Info("Starting cron scheduler...")
	s.cron.Start()
}

// Stop gracefully stops the cron scheduler, waiting for running jobs
func (s *Scheduler) Stop() {
	logger.Info("Stopping cron scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Cron scheduler stopped")
}

func (s *Scheduler) EntryCount() int {
	return len(s.cron.Entries())
}
