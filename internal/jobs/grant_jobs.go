package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tokenshop-backend/internal/domain"
	"tokenshop-backend/internal/logger"
	"tokenshop-backend/internal/service"
)

const fileTimestamp = "20060102-150405"

type planFile struct {
	GeneratedAt time.Time              `json:"generated_at"`
	Requests    []domain.GrantRequest  `json:"requests"`
	Plan        *domain.AllocationPlan `json:"plan"`
}

type resultsFile struct {
	GeneratedAt time.Time                   `json:"generated_at"`
	Summary     *domain.DisbursementSummary `json:"summary"`
}

// RunPlanGrants builds a plan from the live pending orders and writes it to
// grant-requests-<timestamp>.json for review. Nothing is disbursed.
func (jr *JobRunner) RunPlanGrants(ctx context.Context) (string, error) {
	plan, err := jr.plan(ctx)
	if err != nil {
		return "", err
	}

	now := jr.clock.Now()
	path := jr.outputPath(now, "")
	if err := writeJSONFile(path, planFile{GeneratedAt: now, Requests: requests(plan), Plan: plan}); err != nil {
		return "", err
	}

	logger.Info("Grant plan written", "path", path, "allocations", len(plan.Allocations))
	return path, nil
}

// RunDisburseGrants replans from the live pending orders, disburses the plan
// and writes the plan and its results next to each other.
func (jr *JobRunner) RunDisburseGrants(ctx context.Context) (*domain.DisbursementSummary, error) {
	plan, err := jr.plan(ctx)
	if err != nil {
		return nil, err
	}

	now := jr.clock.Now()
	planPath := jr.outputPath(now, "")
	if err := writeJSONFile(planPath, planFile{GeneratedAt: now, Requests: requests(plan), Plan: plan}); err != nil {
		return nil, err
	}

	summary := jr.services.Grant.RunDisbursementBatch(ctx, plan)

	resultsPath := jr.outputPath(now, "-results")
	if err := writeJSONFile(resultsPath, resultsFile{GeneratedAt: jr.clock.Now(), Summary: summary}); err != nil {
		// Grants are already issued; report the write failure without failing the run.
		logger.Error("Failed to write disbursement results", "path", resultsPath, "error", err)
	}

	logger.Info("Grants disbursed",
		"plan", planPath,
		"results", resultsPath,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
	)
	return summary, nil
}

func (jr *JobRunner) plan(ctx context.Context) (*domain.AllocationPlan, error) {
	return jr.services.Grant.PlanGrants(ctx, service.PlanOptions{ApprovedOnly: jr.config.Grants.ApprovedOnly})
}

func (jr *JobRunner) outputPath(t time.Time, suffix string) string {
	name := fmt.Sprintf("grant-requests-%s%s.json", t.UTC().Format(fileTimestamp), suffix)
	return filepath.Join(jr.config.Grants.OutputDir, name)
}

func requests(plan *domain.AllocationPlan) []domain.GrantRequest {
	out := make([]domain.GrantRequest, 0, len(plan.Allocations))
	for _, a := range plan.Allocations {
		out = append(out, a.Request)
	}
	return out
}

func writeJSONFile(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
