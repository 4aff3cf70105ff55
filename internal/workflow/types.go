package workflow

// Workflow is a parsed workflow definition.
//
// Jobs preserve declaration order from the source document. That order is
// load-bearing: it determines planning order, tie-breaks in topological
// scheduling, and the fingerprint.
type Workflow struct {
	// Name is the human-readable workflow name. Optional.
	Name string

	// On declares the events that trigger this workflow.
	On Triggers

	// Jobs holds the workflow's jobs in declaration order.
	Jobs []Job
}

// Job returns the job with the given ID, or nil if it does not exist.
// When the document declares duplicate IDs (a validation error), the
// first declaration wins.
func (w *Workflow) Job(id string) *Job {
	for i := range w.Jobs {
		if w.Jobs[i].ID == id {
			return &w.Jobs[i]
		}
	}
	return nil
}

// Triggers declares which events fire the workflow.
// A nil rule means the workflow does not respond to that event.
type Triggers struct {
	Push        *TriggerRule
	PullRequest *TriggerRule
}

// TriggerRule restricts an event to a set of branches.
// An empty Branches list matches any branch. Branch entries may use
// path.Match wildcards (e.g. "release/*").
type TriggerRule struct {
	Branches []string
}

// Job is a single job within a workflow.
type Job struct {
	// ID is the job's key in the source document.
	ID string

	// Name is the display name. Falls back to ID when empty.
	Name string

	// RunsOn names the runner label (e.g. "ubuntu-latest"). May contain
	// ${{ ... }} interpolations resolved per matrix instance.
	RunsOn string

	// Needs lists job IDs that must succeed before this job starts.
	Needs []string

	// Strategy configures the build matrix and fail-fast policy.
	// Nil means a single instance with no matrix.
	Strategy *Strategy

	// Env is merged into every step's environment.
	Env map[string]string

	// Steps run sequentially within each job instance.
	Steps []Step

	// Line is the source line of the job key, for diagnostics.
	Line int
}

// DisplayName returns Name if set, otherwise the job ID.
func (j *Job) DisplayName() string {
	if j.Name != "" {
		return j.Name
	}
	return j.ID
}

// FailFast reports whether a failing matrix instance cancels its
// in-flight siblings. Defaults to true when unset, matching the hosted
// runner's behavior.
func (j *Job) FailFast() bool {
	if j.Strategy == nil || j.Strategy.FailFast == nil {
		return true
	}
	return *j.Strategy.FailFast
}

// Strategy configures matrix expansion for a job.
type Strategy struct {
	FailFast *bool
	Matrix   *Matrix
}

// Matrix describes the parameter axes of a job.
//
// Axes are kept in declaration order so that the cross product is
// deterministic. Include entries append explicit combinations after the
// cross product; Exclude entries remove matching combinations from it.
type Matrix struct {
	Axes    []Axis
	Include []map[string]string
	Exclude []map[string]string
}

// Axis is a single matrix dimension.
// Values are strings even when the YAML scalar looks numeric: "3.10"
// must never collapse to the float 3.1.
type Axis struct {
	Name   string
	Values []string
}

// Step is one entry in a job's step list.
//
// Exactly one of Run and Uses is set (enforced by validation). Uses
// names an external action which the local engine treats as an opaque
// delegated collaborator: it is recorded but not executed.
type Step struct {
	// Name is the display name. Optional.
	Name string

	// ID allows later steps to reference this one. Optional.
	ID string

	// Run is a shell script executed by the runner.
	Run string

	// Uses names an external action (e.g. "actions/checkout@v3").
	Uses string

	// With carries opaque inputs for a Uses step.
	With map[string]string

	// Shell overrides the default shell for Run (default "bash").
	Shell string

	// If is a condition expression gating execution.
	If string

	// Env is merged over the job environment for this step only.
	Env map[string]string

	// WorkingDirectory is the directory the script runs in.
	WorkingDirectory string

	// ContinueOnError keeps the job succeeding even if this step fails.
	ContinueOnError bool

	// Line is the source line of the step, for diagnostics.
	Line int
}

// DisplayName returns the step name, falling back to the run command or
// the action reference.
func (s *Step) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	if s.Uses != "" {
		return s.Uses
	}
	return firstLine(s.Run)
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
