package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/henrykironde/conveyor/internal/compiler"
	"github.com/henrykironde/conveyor/internal/store"
	"github.com/henrykironde/conveyor/internal/workflow"
)

// defaultParallelism bounds concurrent job instances per run.
const defaultParallelism = 4

// TriggerEvent is the event that fires a run.
type TriggerEvent struct {
	// Name is "push" or "pull_request".
	Name string

	// Ref is the branch the event targets, e.g. "master".
	Ref string
}

// Engine executes workflow runs: trigger matching, matrix expansion,
// dependency-ordered scheduling, and history persistence.
type Engine struct {
	store    *store.Store
	runner   CommandRunner
	runIDs   RunIDGenerator
	clock    *Clock
	parallel int
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore sets the history store. Without one, runs execute but leave
// no history.
func WithStore(s *store.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithCommandRunner overrides the step executor. Tests install fakes.
func WithCommandRunner(r CommandRunner) Option {
	return func(e *Engine) { e.runner = r }
}

// WithRunIDGenerator overrides run ID generation for deterministic
// tests.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) { e.runIDs = g }
}

// WithParallelism bounds the number of job instances executing at once.
// Values below 1 are ignored.
func WithParallelism(n int) Option {
	return func(e *Engine) {
		if n >= 1 {
			e.parallel = n
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an engine. Defaults: shell execution, UUIDv7 run IDs,
// parallelism of 4, slog default logger, no store.
func New(opts ...Option) *Engine {
	e := &Engine{
		runner:   &ShellRunner{},
		runIDs:   UUIDv7Generator{},
		clock:    NewClock(),
		parallel: defaultParallelism,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes the workflow for the given event.
//
// If the event matches no trigger rule, Run returns a NOT_TRIGGERED
// RuntimeError and no run is recorded. Otherwise the run executes to
// completion; a failing run yields a RunResult with a failure status
// and a nil error. The returned error is reserved for the run being
// unable to proceed at all.
func (e *Engine) Run(ctx context.Context, wf *workflow.Workflow, ev TriggerEvent) (*RunResult, error) {
	matched, err := compiler.MatchTrigger(wf, ev.Name, ev.Ref)
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, NewNotTriggeredError(ev.Name, ev.Ref)
	}

	plan, err := BuildPlan(wf)
	if err != nil {
		return nil, err
	}

	runID := e.runIDs.Generate()
	e.logger.Info("run started",
		"run_id", runID,
		"workflow", wf.Name,
		"event", ev.Name,
		"ref", ev.Ref,
		"instances", plan.TotalInstances(),
	)

	if e.store != nil {
		rec := workflow.RunRecord{
			ID:           runID,
			WorkflowName: wf.Name,
			Fingerprint:  plan.Fingerprint,
			Event:        ev.Name,
			Ref:          ev.Ref,
			Status:       workflow.StatusRunning,
		}
		if err := e.store.CreateRun(ctx, rec); err != nil {
			return nil, &RuntimeError{
				Code:    ErrCodeStore,
				Message: err.Error(),
				RunID:   runID,
			}
		}
	}

	result, err := e.schedule(ctx, runID, plan)
	if err != nil {
		return nil, err
	}

	if e.store != nil {
		if err := e.store.FinishRun(ctx, runID, result.Status); err != nil {
			e.logger.Error("record run status", "run_id", runID, "error", err)
		}
	}

	e.logger.Info("run finished", "run_id", runID, "status", result.Status)
	return result, nil
}

// schedule drives jobs through the needs graph in rounds. Each round
// runs every job whose dependencies all succeeded and skips every job
// with a failed, skipped, or cancelled dependency. Jobs within a round
// run concurrently, bounded by the parallelism limit.
func (e *Engine) schedule(ctx context.Context, runID string, plan *RunPlan) (*RunResult, error) {
	jobStatus := make(map[string]workflow.Status, len(plan.Order))
	remaining := make(map[string]bool, len(plan.Order))
	for _, id := range plan.Order {
		remaining[id] = true
	}

	results := make(map[string][]InstanceResult, len(plan.Order))
	sem := make(chan struct{}, e.parallel)

	for len(remaining) > 0 {
		var ready, blocked []string
		for _, id := range plan.Order {
			if !remaining[id] {
				continue
			}
			switch e.dependencyState(plan.Workflow.Job(id).Needs, jobStatus) {
			case depsSatisfied:
				ready = append(ready, id)
			case depsBlocked:
				blocked = append(blocked, id)
			}
		}

		for _, id := range blocked {
			delete(remaining, id)
			jobStatus[id] = workflow.StatusSkipped
			results[id] = e.skipJob(ctx, runID, plan.Instances[id])
		}

		if len(ready) == 0 {
			if len(remaining) == 0 {
				break
			}
			// Cycles are rejected at validation time, so a stall here
			// is a scheduler bug.
			return nil, &RuntimeError{
				Code:    ErrCodeStalled,
				Message: fmt.Sprintf("%d jobs remain but none are runnable", len(remaining)),
				RunID:   runID,
			}
		}

		var wg sync.WaitGroup
		var mu sync.Mutex
		for _, id := range ready {
			delete(remaining, id)
			id := id
			wg.Add(1)
			go func() {
				defer wg.Done()
				instResults := e.runJob(ctx, runID, plan.Instances[id], sem)
				mu.Lock()
				results[id] = instResults
				jobStatus[id] = jobStatusOf(instResults)
				mu.Unlock()
			}()
		}
		wg.Wait()
	}

	result := &RunResult{RunID: runID, Status: workflow.StatusSuccess}
	for _, id := range plan.Order {
		for _, ir := range results[id] {
			result.Jobs = append(result.Jobs, ir)
			result.Status = combineStatus(result.Status, ir.Status)
		}
	}
	return result, nil
}

type depState int

const (
	depsSatisfied depState = iota
	depsWaiting
	depsBlocked
)

// dependencyState classifies a job against its needs: satisfied when
// every dependency succeeded, blocked when any dependency terminated
// without success, waiting otherwise.
func (e *Engine) dependencyState(needs []string, jobStatus map[string]workflow.Status) depState {
	for _, dep := range needs {
		status, done := jobStatus[dep]
		if !done {
			return depsWaiting
		}
		if status != workflow.StatusSuccess {
			return depsBlocked
		}
	}
	return depsSatisfied
}

// runJob executes every instance of one job concurrently. When the
// job's strategy is fail-fast (the default), the first failing instance
// cancels its siblings.
func (e *Engine) runJob(ctx context.Context, runID string, instances []*JobInstance, sem chan struct{}) []InstanceResult {
	groupCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make([]InstanceResult, len(instances))
	var wg sync.WaitGroup
	for i, inst := range instances {
		i, inst := i, inst
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			out[i] = e.runInstance(groupCtx, runID, inst)
			if out[i].Status == workflow.StatusFailure && inst.FailFast {
				e.logger.Warn("fail-fast: cancelling sibling instances",
					"run_id", runID, "instance", inst.Key)
				cancel()
			}
		}()
	}
	wg.Wait()
	return out
}

// skipJob records every instance of a blocked job as skipped.
func (e *Engine) skipJob(ctx context.Context, runID string, instances []*JobInstance) []InstanceResult {
	out := make([]InstanceResult, len(instances))
	for i, inst := range instances {
		e.logger.Info("job skipped", "run_id", runID, "instance", inst.Key)
		e.persistSkippedInstance(ctx, runID, inst)
		out[i] = InstanceResult{
			JobID:  inst.JobID,
			Key:    inst.Key,
			Status: workflow.StatusSkipped,
		}
	}
	return out
}

// jobStatusOf folds instance results into the job's status.
func jobStatusOf(instances []InstanceResult) workflow.Status {
	status := workflow.StatusSuccess
	for _, ir := range instances {
		status = combineStatus(status, ir.Status)
	}
	return status
}
