package workflow

import "time"

// Status is the lifecycle state of a run, job instance, or step.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSuccess   Status = "success"
	StatusFailure   Status = "failure"
	StatusSkipped   Status = "skipped"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailure, StatusSkipped, StatusCancelled:
		return true
	}
	return false
}

// RunRecord is one workflow execution as persisted in the history store.
type RunRecord struct {
	ID           string    `json:"id"`
	WorkflowName string    `json:"workflow_name"`
	Fingerprint  string    `json:"fingerprint"`
	Event        string    `json:"event"`
	Ref          string    `json:"ref"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// JobRecord is one job instance within a run. A matrix job produces one
// record per combination; InstanceKey carries the combination values,
// e.g. "conda_test (macos-latest, 3.9)".
type JobRecord struct {
	ID          int64  `json:"-"`
	RunID       string `json:"run_id"`
	JobID       string `json:"job_id"`
	InstanceKey string `json:"instance_key"`
	MatrixJSON  string `json:"matrix,omitempty"`
	Status      Status `json:"status"`
	Seq         int64  `json:"seq"`
}

// StepRecord is one step execution within a job instance.
type StepRecord struct {
	JobRowID int64  `json:"-"`
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Status   Status `json:"status"`
	ExitCode int    `json:"exit_code"`
	Output   string `json:"output,omitempty"`
	Seq      int64  `json:"seq"`
}
