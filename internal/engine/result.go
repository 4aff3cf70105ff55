package engine

import "github.com/henrykironde/conveyor/internal/workflow"

// StepResult is the outcome of one step within a job instance.
type StepResult struct {
	Name     string          `json:"name"`
	Status   workflow.Status `json:"status"`
	ExitCode int             `json:"exit_code"`
	Output   string          `json:"output,omitempty"`
}

// InstanceResult is the outcome of one job instance.
type InstanceResult struct {
	JobID  string          `json:"job_id"`
	Key    string          `json:"instance_key"`
	Status workflow.Status `json:"status"`
	Steps  []StepResult    `json:"steps"`
}

// RunResult is the outcome of one workflow run. Instances appear in job
// declaration order, then matrix expansion order within each job.
type RunResult struct {
	RunID  string           `json:"run_id"`
	Status workflow.Status  `json:"status"`
	Jobs   []InstanceResult `json:"jobs"`
}

// Failed reports whether the run ended in failure or cancellation.
func (r *RunResult) Failed() bool {
	return r.Status == workflow.StatusFailure || r.Status == workflow.StatusCancelled
}

// combineStatus folds instance statuses into an aggregate: failure wins
// over cancelled, cancelled over everything else. Skipped instances do
// not drag a run down.
func combineStatus(agg, next workflow.Status) workflow.Status {
	switch {
	case agg == workflow.StatusFailure || next == workflow.StatusFailure:
		return workflow.StatusFailure
	case agg == workflow.StatusCancelled || next == workflow.StatusCancelled:
		return workflow.StatusCancelled
	default:
		return agg
	}
}
