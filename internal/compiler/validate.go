package compiler

import (
	"fmt"
	"strings"

	"github.com/henrykironde/conveyor/internal/expr"
	"github.com/henrykironde/conveyor/internal/workflow"
)

// Validation error codes (E100-E199)
const (
	ErrSchema          = "E100" // document violates dialect schema
	ErrNoJobs          = "E101" // workflow declares no jobs
	ErrDuplicateJobID  = "E102" // job ID declared more than once
	ErrUnknownNeeds    = "E103" // needs references an unknown job
	ErrNeedsCycle      = "E104" // needs graph contains a cycle
	ErrJobNoSteps      = "E105" // job declares no steps
	ErrStepNoAction    = "E106" // step has neither run nor uses
	ErrStepBothActions = "E107" // step has both run and uses
	ErrDuplicateStepID = "E108" // step ID declared more than once in a job
	ErrMatrixAxisEmpty = "E109" // matrix axis has no values
	ErrBadCondition    = "E110" // if expression does not parse
	ErrNoTriggers      = "E111" // workflow has no trigger events
	ErrJobNoRunner     = "E112" // job has no runs-on label
)

// ValidationError represents a semantic validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a parsed workflow against the dialect's semantic
// rules. Returns all errors found (does not fail-fast), including the
// needs-graph cycle analysis.
func Validate(wf *workflow.Workflow) []ValidationError {
	var errs []ValidationError

	if wf.On.Push == nil && wf.On.PullRequest == nil {
		errs = append(errs, ValidationError{
			Field:   "on",
			Message: "workflow declares no trigger events",
			Code:    ErrNoTriggers,
		})
	}

	if len(wf.Jobs) == 0 {
		errs = append(errs, ValidationError{
			Field:   "jobs",
			Message: "workflow declares no jobs",
			Code:    ErrNoJobs,
		})
		return errs
	}

	jobIDs := make(map[string]bool, len(wf.Jobs))
	for i := range wf.Jobs {
		job := &wf.Jobs[i]
		if jobIDs[job.ID] {
			errs = append(errs, ValidationError{
				Field:   "jobs." + job.ID,
				Message: fmt.Sprintf("duplicate job ID %q", job.ID),
				Code:    ErrDuplicateJobID,
				Line:    job.Line,
			})
		}
		jobIDs[job.ID] = true
	}

	for i := range wf.Jobs {
		errs = append(errs, validateJob(&wf.Jobs[i], jobIDs)...)
	}

	errs = append(errs, AnalyzeNeeds(wf)...)

	return errs
}

func validateJob(job *workflow.Job, jobIDs map[string]bool) []ValidationError {
	var errs []ValidationError
	field := "jobs." + job.ID

	if strings.TrimSpace(job.RunsOn) == "" {
		errs = append(errs, ValidationError{
			Field:   field + ".runs-on",
			Message: "job must declare a runner label",
			Code:    ErrJobNoRunner,
			Line:    job.Line,
		})
	}

	for _, dep := range job.Needs {
		if !jobIDs[dep] {
			errs = append(errs, ValidationError{
				Field:   field + ".needs",
				Message: fmt.Sprintf("needs references unknown job %q", dep),
				Code:    ErrUnknownNeeds,
				Line:    job.Line,
			})
		}
	}

	if len(job.Steps) == 0 {
		errs = append(errs, ValidationError{
			Field:   field + ".steps",
			Message: "job declares no steps",
			Code:    ErrJobNoSteps,
			Line:    job.Line,
		})
	}

	if job.Strategy != nil && job.Strategy.Matrix != nil {
		for _, axis := range job.Strategy.Matrix.Axes {
			if len(axis.Values) == 0 {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.strategy.matrix.%s", field, axis.Name),
					Message: "matrix axis has no values",
					Code:    ErrMatrixAxisEmpty,
					Line:    job.Line,
				})
			}
		}
	}

	stepIDs := make(map[string]bool)
	for i := range job.Steps {
		step := &job.Steps[i]
		stepField := fmt.Sprintf("%s.steps[%d]", field, i)

		hasRun := strings.TrimSpace(step.Run) != ""
		hasUses := strings.TrimSpace(step.Uses) != ""
		switch {
		case !hasRun && !hasUses:
			errs = append(errs, ValidationError{
				Field:   stepField,
				Message: "step must declare either run or uses",
				Code:    ErrStepNoAction,
				Line:    step.Line,
			})
		case hasRun && hasUses:
			errs = append(errs, ValidationError{
				Field:   stepField,
				Message: "step cannot declare both run and uses",
				Code:    ErrStepBothActions,
				Line:    step.Line,
			})
		}

		if step.ID != "" {
			if stepIDs[step.ID] {
				errs = append(errs, ValidationError{
					Field:   stepField + ".id",
					Message: fmt.Sprintf("duplicate step ID %q", step.ID),
					Code:    ErrDuplicateStepID,
					Line:    step.Line,
				})
			}
			stepIDs[step.ID] = true
		}

		if strings.TrimSpace(step.If) != "" {
			if _, err := expr.Parse(step.If); err != nil {
				errs = append(errs, ValidationError{
					Field:   stepField + ".if",
					Message: fmt.Sprintf("invalid condition: %v", err),
					Code:    ErrBadCondition,
					Line:    step.Line,
				})
			}
		}
	}

	return errs
}
