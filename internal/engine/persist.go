package engine

import (
	"context"

	"github.com/henrykironde/conveyor/internal/workflow"
)

// Persistence is best-effort during execution: a history write failure
// is logged and the run continues, because the live result still
// reaches the caller. Only the initial run row is load-bearing.

func (e *Engine) persistInstanceStart(ctx context.Context, runID string, inst *JobInstance) int64 {
	if e.store == nil {
		return 0
	}

	rowID, err := e.store.WriteJob(ctx, workflow.JobRecord{
		RunID:       runID,
		JobID:       inst.JobID,
		InstanceKey: inst.Key,
		MatrixJSON:  matrixJSON(inst),
		Status:      workflow.StatusRunning,
		Seq:         e.clock.Next(),
	})
	if err != nil {
		e.logger.Error("record job start", "instance", inst.Key, "error", err)
		return 0
	}
	return rowID
}

func (e *Engine) persistInstanceFinish(ctx context.Context, jobRowID int64, status workflow.Status) {
	if e.store == nil || jobRowID == 0 {
		return
	}
	if err := e.store.FinishJob(ctx, jobRowID, status); err != nil {
		e.logger.Error("record job status", "job_row", jobRowID, "error", err)
	}
}

func (e *Engine) persistStep(ctx context.Context, jobRowID int64, index int, sr StepResult) {
	if e.store == nil || jobRowID == 0 {
		return
	}
	err := e.store.WriteStep(ctx, workflow.StepRecord{
		JobRowID: jobRowID,
		Index:    index,
		Name:     sr.Name,
		Status:   sr.Status,
		ExitCode: sr.ExitCode,
		Output:   sr.Output,
		Seq:      e.clock.Next(),
	})
	if err != nil {
		e.logger.Error("record step", "job_row", jobRowID, "index", index, "error", err)
	}
}

func (e *Engine) persistSkippedInstance(ctx context.Context, runID string, inst *JobInstance) {
	if e.store == nil {
		return
	}
	rowID := e.persistInstanceStart(ctx, runID, inst)
	e.persistInstanceFinish(ctx, rowID, workflow.StatusSkipped)
}

// matrixJSON renders the instance's combination canonically for the
// jobs table. Empty combinations store as "{}".
func matrixJSON(inst *JobInstance) string {
	if len(inst.Combination.Values) == 0 {
		return "{}"
	}
	data, err := workflow.MarshalCanonical(inst.Combination.Values)
	if err != nil {
		return "{}"
	}
	return string(data)
}
