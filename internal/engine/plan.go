package engine

import (
	"fmt"

	"github.com/henrykironde/conveyor/internal/compiler"
	"github.com/henrykironde/conveyor/internal/expr"
	"github.com/henrykironde/conveyor/internal/workflow"
)

// JobInstance is one concrete, schedulable unit: a job paired with one
// matrix combination and a resolved runner label.
type JobInstance struct {
	JobID       string
	JobName     string
	Key         string
	RunsOn      string
	Needs       []string
	Combination compiler.Combination
	Env         map[string]string
	Steps       []workflow.Step
	FailFast    bool
}

// RunPlan is the expanded form of a workflow: every job instance that
// would execute, grouped by job in declaration order.
type RunPlan struct {
	Workflow    *workflow.Workflow
	Fingerprint string

	// Order holds job IDs in declaration order.
	Order []string

	// Instances maps job ID to its expanded instances.
	Instances map[string][]*JobInstance
}

// TotalInstances returns the number of job instances across all jobs.
func (p *RunPlan) TotalInstances() int {
	n := 0
	for _, instances := range p.Instances {
		n += len(instances)
	}
	return n
}

// BuildPlan expands a workflow into concrete job instances.
//
// The workflow must already be validated; BuildPlan still surfaces
// interpolation errors (e.g. a runs-on referencing an unknown matrix
// axis resolves to an empty label).
func BuildPlan(wf *workflow.Workflow) (*RunPlan, error) {
	fingerprint, err := workflow.Fingerprint(wf)
	if err != nil {
		return nil, fmt.Errorf("build plan: %w", err)
	}

	plan := &RunPlan{
		Workflow:    wf,
		Fingerprint: fingerprint,
		Instances:   make(map[string][]*JobInstance, len(wf.Jobs)),
	}

	for i := range wf.Jobs {
		job := &wf.Jobs[i]
		plan.Order = append(plan.Order, job.ID)

		combos := compiler.ExpandMatrix(job)
		instances := make([]*JobInstance, 0, len(combos))
		for _, combo := range combos {
			inst, err := buildInstance(job, combo)
			if err != nil {
				return nil, err
			}
			instances = append(instances, inst)
		}
		plan.Instances[job.ID] = instances
	}

	return plan, nil
}

func buildInstance(job *workflow.Job, combo compiler.Combination) (*JobInstance, error) {
	// runs-on may reference the matrix: "runs-on: ${{ matrix.os }}".
	// runner.* is not available yet because it derives from the label.
	labelCtx := &expr.Context{
		Matrix: combo.Values,
		Job:    workflow.StatusSuccess,
	}
	runsOn, err := expr.Interpolate(job.RunsOn, labelCtx)
	if err != nil {
		return nil, fmt.Errorf("job %s: resolve runs-on: %w", job.ID, err)
	}

	return &JobInstance{
		JobID:       job.ID,
		JobName:     job.DisplayName(),
		Key:         compiler.InstanceKey(job.ID, combo),
		RunsOn:      runsOn,
		Needs:       job.Needs,
		Combination: combo,
		Env:         job.Env,
		Steps:       job.Steps,
		FailFast:    job.FailFast(),
	}, nil
}
