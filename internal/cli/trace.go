package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/henrykironde/conveyor/internal/store"
	"github.com/henrykironde/conveyor/internal/workflow"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
}

// TraceResult is the trace command's output payload.
type TraceResult struct {
	Run  workflow.RunRecord `json:"run"`
	Jobs []TraceJob         `json:"jobs"`
}

// TraceJob is one job instance with its step trail.
type TraceJob struct {
	workflow.JobRecord
	Steps []workflow.StepRecord `json:"steps"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <run-id>",
		Short: "Show the full step trail of one run",
		Long: `Show a recorded run's job instances and step results, in the order
the engine's logical clock stamped them.

Example:
  conveyor trace 0190a5c2-... --db conveyor.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "conveyor.db", "path to the SQLite history database")

	return cmd
}

func runTrace(opts *TraceOptions, runID string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error())
		return WrapExitError(ExitCommandError, "failed to open history database", err)
	}
	defer st.Close()

	ctx := cmd.Context()

	run, err := st.ReadRun(ctx, runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = formatter.Error(ErrCodeNotFound, err.Error())
			return WrapExitError(ExitCommandError, "run not found", err)
		}
		_ = formatter.Error(ErrCodeStore, err.Error())
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	jobs, err := st.ReadRunJobs(ctx, runID)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error())
		return WrapExitError(ExitCommandError, "failed to read run jobs", err)
	}

	result := TraceResult{Run: run, Jobs: make([]TraceJob, 0, len(jobs))}
	for _, job := range jobs {
		steps, err := st.ReadJobSteps(ctx, job.ID)
		if err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error())
			return WrapExitError(ExitCommandError, "failed to read job steps", err)
		}
		result.Jobs = append(result.Jobs, TraceJob{JobRecord: job, Steps: steps})
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	return renderTraceText(formatter, result)
}

func renderTraceText(formatter *OutputFormatter, result TraceResult) error {
	w := formatter.Writer

	fmt.Fprintf(w, "Run %s (%s)\n", result.Run.ID, result.Run.Status)
	fmt.Fprintf(w, "Workflow: %s\n", result.Run.WorkflowName)
	fmt.Fprintf(w, "Event:    %s (ref %s)\n", result.Run.Event, result.Run.Ref)
	fmt.Fprintf(w, "Created:  %s\n", result.Run.CreatedAt.Format("2006-01-02 15:04:05"))

	for _, job := range result.Jobs {
		fmt.Fprintf(w, "\n%s %s", statusGlyph(job.Status), job.InstanceKey)
		if job.MatrixJSON != "" && job.MatrixJSON != "{}" {
			fmt.Fprintf(w, "  %s", job.MatrixJSON)
		}
		fmt.Fprintln(w)

		for _, step := range job.Steps {
			fmt.Fprintf(w, "  [seq %d] %s %s", step.Seq, statusGlyph(step.Status), step.Name)
			if step.Status == workflow.StatusFailure {
				fmt.Fprintf(w, " (exit %d)", step.ExitCode)
			}
			fmt.Fprintln(w)
			if formatter.Verbose && step.Output != "" {
				printIndentedOutput(w, step.Output)
			}
		}
	}
	return nil
}

func printIndentedOutput(w io.Writer, output string) {
	for _, line := range strings.Split(strings.TrimRight(output, "\n"), "\n") {
		fmt.Fprintf(w, "      | %s\n", line)
	}
}
