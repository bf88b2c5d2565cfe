package jobs

import (
	"context"
	"fmt"
	"time"

	"tokenshop-backend/internal/clock"
	"tokenshop-backend/internal/config"
	"tokenshop-backend/internal/logger"
	"tokenshop-backend/internal/service"
)

// mirrorRetryBatch bounds how many orders one retry run re-mirrors.
const mirrorRetryBatch = 100

// JobRunner coordinates all scheduled and operator-triggered jobs
type JobRunner struct {
	services *Services
	config   *config.Config
	clock    clock.Clock
}

// Services holds all service dependencies needed by jobs
type Services struct {
	Grant  service.GrantService
	Mirror service.MirrorService
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(services *Services, cfg *config.Config, clk clock.Clock) *JobRunner {
	return &JobRunner{
		services: services,
		config:   cfg,
		clock:    clk,
	}
}

func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
			err = fmt.Errorf("job %s panicked: %v", jobName, r)
		}
	}()

	start := time.Now()
	logger.Info("Starting job", "job", jobName)
	if err := jobFunc(context.Background()); err != nil {
		logger.Error("Job failed", "job", jobName, "error", err)
		return err
	}
	logger.Info("Job completed", "job", jobName, "duration", time.Since(start).String())
	return nil
}

// PlanGrants is the cron entry point for RunPlanGrants.
func (jr *JobRunner) PlanGrants() {
	_ = jr.runWithRecovery("PlanGrants", func(ctx context.Context) error {
		_, err := jr.RunPlanGrants(ctx)
		return err
	})
}

// RetryOrderMirror is the cron entry point for RunRetryOrderMirror.
func (jr *JobRunner) RetryOrderMirror() {
	_ = jr.runWithRecovery("RetryOrderMirror", func(ctx context.Context) error {
		_, err := jr.RunRetryOrderMirror(ctx)
		return err
	})
}

// RunJob runs a job by name with panic recovery. Used by the cronjob binary.
func (jr *JobRunner) RunJob(name string) error {
	switch name {
	case "plan-grants":
		return jr.runWithRecovery("PlanGrants", func(ctx context.Context) error {
			_, err := jr.RunPlanGrants(ctx)
			return err
		})
	case "disburse-grants":
		return jr.runWithRecovery("DisburseGrants", func(ctx context.Context) error {
			summary, err := jr.RunDisburseGrants(ctx)
			if err != nil {
				return err
			}
			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d grants failed", summary.Failed, summary.Total)
			}
			return nil
		})
	case "retry-order-mirror":
		return jr.runWithRecovery("RetryOrderMirror", func(ctx context.Context) error {
			_, err := jr.RunRetryOrderMirror(ctx)
			return err
		})
	default:
		return fmt.Errorf("unknown job: %s", name)
	}
}

// RunRetryOrderMirror re-mirrors orders that have no record-store id yet.
func (jr *JobRunner) RunRetryOrderMirror(ctx context.Context) (int, error) {
	n, err := jr.services.Mirror.RetryUnmirrored(ctx, mirrorRetryBatch)
	if err != nil {
		return n, err
	}
	logger.Info("Order mirror retry finished", "mirrored", n)
	return n, nil
}
