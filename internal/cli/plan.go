package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/henrykironde/conveyor/internal/compiler"
	"github.com/henrykironde/conveyor/internal/engine"
	"github.com/henrykironde/conveyor/internal/workflow"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	Event string
	Ref   string
}

// PlanInstance is one job instance in the plan output.
type PlanInstance struct {
	JobID  string            `json:"job_id"`
	Key    string            `json:"instance_key"`
	RunsOn string            `json:"runs_on"`
	Needs  []string          `json:"needs,omitempty"`
	Matrix map[string]string `json:"matrix,omitempty"`
	Steps  int               `json:"steps"`
}

// PlanResult is the plan command's output payload.
type PlanResult struct {
	Workflow    string         `json:"workflow"`
	Fingerprint string         `json:"fingerprint"`
	Event       string         `json:"event"`
	Ref         string         `json:"ref"`
	Triggered   bool           `json:"triggered"`
	Instances   []PlanInstance `json:"instances"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan <workflow.yml>",
		Short: "Show the job instances a run would execute",
		Long: `Expand a workflow into its concrete job instances without running
anything: matrix combinations, resolved runner labels, and the needs
graph, in the order the scheduler would consider them.

Example:
  conveyor plan .conveyor/ci.yml --event push --ref master`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Event, "event", "push", "trigger event (push|pull_request)")
	cmd.Flags().StringVar(&opts.Ref, "ref", "master", "branch ref the event targets")

	return cmd
}

func runPlan(opts *PlanOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	wf, validationErrs, err := LoadWorkflow(path)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			_ = formatter.Error(loadErr.Code, loadErr.Message)
			return NewExitError(ExitCommandError, loadErr.Error())
		}
		_ = formatter.Error(ErrCodeGeneric, err.Error())
		return NewExitError(ExitCommandError, err.Error())
	}
	if len(validationErrs) > 0 {
		return outputValidationErrors(formatter, validationErrs)
	}

	result, err := BuildPlanResult(wf, opts.Event, opts.Ref)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error())
		return NewExitError(ExitCommandError, err.Error())
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	return renderPlanText(formatter, result)
}

// BuildPlanResult expands a validated workflow into the plan payload.
// Exported for the run command's dry summary and for tests.
func BuildPlanResult(wf *workflow.Workflow, event, ref string) (*PlanResult, error) {
	triggered, err := compiler.MatchTrigger(wf, event, ref)
	if err != nil {
		return nil, err
	}

	plan, err := engine.BuildPlan(wf)
	if err != nil {
		return nil, err
	}

	result := &PlanResult{
		Workflow:    wf.Name,
		Fingerprint: plan.Fingerprint,
		Event:       event,
		Ref:         ref,
		Triggered:   triggered,
		Instances:   make([]PlanInstance, 0, plan.TotalInstances()),
	}
	for _, id := range plan.Order {
		for _, inst := range plan.Instances[id] {
			result.Instances = append(result.Instances, PlanInstance{
				JobID:  inst.JobID,
				Key:    inst.Key,
				RunsOn: inst.RunsOn,
				Needs:  inst.Needs,
				Matrix: inst.Combination.Values,
				Steps:  len(inst.Steps),
			})
		}
	}
	return result, nil
}

func renderPlanText(formatter *OutputFormatter, result *PlanResult) error {
	w := formatter.Writer

	fmt.Fprintf(w, "Workflow: %s\n", result.Workflow)
	fmt.Fprintf(w, "Event:    %s (ref %s)\n", result.Event, result.Ref)
	if !result.Triggered {
		fmt.Fprintln(w, "Note:     this event does not trigger the workflow")
	}
	fmt.Fprintln(w)

	table := tablewriter.NewWriter(w)
	table.Header("Instance", "Runs On", "Needs", "Steps")
	for _, inst := range result.Instances {
		table.Append(
			inst.Key,
			inst.RunsOn,
			strings.Join(inst.Needs, ", "),
			fmt.Sprintf("%d", inst.Steps),
		)
	}
	table.Render()

	fmt.Fprintf(w, "\n%d instance(s)\n", len(result.Instances))
	return nil
}
