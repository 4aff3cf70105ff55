package engine

import (
	"context"

	"github.com/henrykironde/conveyor/internal/expr"
	"github.com/henrykironde/conveyor/internal/workflow"
)

// runInstance executes one job instance: evaluates each step's
// condition against the instance's live status, interpolates scripts
// and environments, and persists the step trail.
func (e *Engine) runInstance(ctx context.Context, runID string, inst *JobInstance) InstanceResult {
	log := e.logger.With("run_id", runID, "instance", inst.Key)
	log.Info("instance started", "runs_on", inst.RunsOn)

	jobRowID := e.persistInstanceStart(ctx, runID, inst)

	evalCtx := &expr.Context{
		Matrix: inst.Combination.Values,
		Runner: map[string]string{"os": expr.RunnerOSFromLabel(inst.RunsOn)},
		Env:    inst.Env,
		Job:    workflow.StatusSuccess,
	}

	result := InstanceResult{
		JobID:  inst.JobID,
		Key:    inst.Key,
		Status: workflow.StatusSuccess,
		Steps:  make([]StepResult, 0, len(inst.Steps)),
	}

	for i := range inst.Steps {
		step := &inst.Steps[i]
		sr := e.runStep(ctx, log, inst, step, evalCtx)
		result.Steps = append(result.Steps, sr)

		switch sr.Status {
		case workflow.StatusFailure:
			if step.ContinueOnError {
				log.Warn("step failed (continue-on-error)",
					"step", step.DisplayName(), "exit_code", sr.ExitCode)
			} else {
				result.Status = workflow.StatusFailure
				evalCtx.Job = workflow.StatusFailure
			}
		case workflow.StatusCancelled:
			result.Status = workflow.StatusCancelled
			evalCtx.Job = workflow.StatusCancelled
		}

		e.persistStep(ctx, jobRowID, i, sr)
	}

	e.persistInstanceFinish(ctx, jobRowID, result.Status)
	log.Info("instance finished", "status", result.Status)
	return result
}

// runStep executes one step. Steps gated off by their condition come
// back skipped; uses steps are delegated actions recorded as success
// without local execution.
func (e *Engine) runStep(ctx context.Context, log logger, inst *JobInstance, step *workflow.Step, evalCtx *expr.Context) StepResult {
	sr := StepResult{Name: step.DisplayName()}

	// After cancellation only steps whose condition still holds against
	// a cancelled job status (always(), cancelled()) may execute; the
	// rest are recorded as cancelled so the trace explains why they
	// never ran.
	cancelled := ctx.Err() != nil
	if cancelled {
		evalCtx.Job = workflow.StatusCancelled
	}

	run, err := expr.Evaluate(step.If, evalCtx)
	if err != nil {
		// Parse errors are caught at validation; an eval error here
		// still fails the step rather than guessing.
		log.Error("condition evaluation failed", "step", sr.Name, "error", err)
		sr.Status = workflow.StatusFailure
		sr.Output = err.Error()
		return sr
	}
	if !run {
		if cancelled {
			sr.Status = workflow.StatusCancelled
			return sr
		}
		log.Debug("step skipped", "step", sr.Name, "condition", step.If)
		sr.Status = workflow.StatusSkipped
		return sr
	}
	if cancelled {
		// Cleanup steps run detached from the fail-fast cancel so they
		// are not killed by the very cancellation they react to.
		ctx = context.WithoutCancel(ctx)
	}

	if step.Uses != "" {
		// External actions are out of scope for local execution. They
		// are recorded as delegated successes so the rest of the job
		// proceeds as it would on the hosted runner.
		log.Info("step delegated to external action", "step", sr.Name, "uses", step.Uses)
		sr.Status = workflow.StatusSuccess
		return sr
	}

	script, err := expr.Interpolate(step.Run, evalCtx)
	if err != nil {
		sr.Status = workflow.StatusFailure
		sr.Output = err.Error()
		return sr
	}
	stepEnv, err := resolveStepEnv(inst.Env, step.Env, evalCtx)
	if err != nil {
		sr.Status = workflow.StatusFailure
		sr.Output = err.Error()
		return sr
	}
	dir, err := expr.Interpolate(step.WorkingDirectory, evalCtx)
	if err != nil {
		sr.Status = workflow.StatusFailure
		sr.Output = err.Error()
		return sr
	}

	log.Info("step running", "step", sr.Name)
	res, err := e.runner.Run(ctx, CommandSpec{
		Script: script,
		Shell:  step.Shell,
		Dir:    dir,
		Env:    stepEnv,
	})
	sr.Output = string(res.Output)

	if err != nil {
		if ctx.Err() != nil {
			sr.Status = workflow.StatusCancelled
			return sr
		}
		log.Error("step could not run", "step", sr.Name, "error", err)
		sr.Status = workflow.StatusFailure
		sr.ExitCode = -1
		if sr.Output == "" {
			sr.Output = err.Error()
		}
		return sr
	}

	sr.ExitCode = res.ExitCode
	if res.ExitCode != 0 {
		sr.Status = workflow.StatusFailure
	} else {
		sr.Status = workflow.StatusSuccess
	}
	return sr
}

// resolveStepEnv merges the step environment over the job environment
// and interpolates every value.
func resolveStepEnv(jobEnv, stepEnv map[string]string, evalCtx *expr.Context) (map[string]string, error) {
	if jobEnv == nil && stepEnv == nil {
		return nil, nil
	}
	merged := make(map[string]string, len(jobEnv)+len(stepEnv))
	for k, v := range jobEnv {
		merged[k] = v
	}
	for k, v := range stepEnv {
		merged[k] = v
	}
	return expr.InterpolateMap(merged, evalCtx)
}

// logger is the subset of slog.Logger used by step execution.
type logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}
