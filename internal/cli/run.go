package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/henrykironde/conveyor/internal/engine"
	"github.com/henrykironde/conveyor/internal/store"
	"github.com/henrykironde/conveyor/internal/workflow"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Event    string
	Ref      string
	Database string
	Parallel int

	// RunIDGenerator allows overriding run ID generation (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDGenerator engine.RunIDGenerator

	// CommandRunner allows overriding step execution (for testing).
	// If nil, defaults to the local shell.
	CommandRunner engine.CommandRunner
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <workflow.yml>",
		Short: "Execute a workflow for an event",
		Long: `Execute a workflow on the local machine for a simulated event.

The workflow is validated, expanded into job instances, and executed in
dependency order. Matrix instances run concurrently; a failing instance
cancels its siblings unless fail-fast is disabled. Runs are recorded in
the history database unless --db is empty.

Example:
  conveyor run .conveyor/ci.yml --event push --ref master
  conveyor run ci.yml --event pull_request --ref feature/x --db /tmp/ci.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflow(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Event, "event", "push", "trigger event (push|pull_request)")
	cmd.Flags().StringVar(&opts.Ref, "ref", "master", "branch ref the event targets")
	cmd.Flags().StringVar(&opts.Database, "db", "conveyor.db", "path to the SQLite history database (empty disables history)")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", 4, "max job instances running at once")

	return cmd
}

func runWorkflow(opts *RunOptions, path string, cmd *cobra.Command) error {
	// Configure logging based on verbose flag
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)

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

	// An empty --db runs without history.
	var st *store.Store
	if opts.Database != "" {
		slog.Info("opening history database", "path", opts.Database)
		st, err = store.Open(opts.Database)
		if err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error())
			return WrapExitError(ExitCommandError, "failed to open history database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
	}

	runIDs := opts.RunIDGenerator
	if runIDs == nil {
		runIDs = engine.UUIDv7Generator{}
	}
	runner := opts.CommandRunner
	if runner == nil {
		runner = &engine.ShellRunner{
			Stdout: cmd.ErrOrStderr(),
			Stderr: cmd.ErrOrStderr(),
		}
	}

	engOpts := []engine.Option{
		engine.WithCommandRunner(runner),
		engine.WithRunIDGenerator(runIDs),
		engine.WithParallelism(opts.Parallel),
		engine.WithLogger(logger),
	}
	if st != nil {
		engOpts = append(engOpts, engine.WithStore(st))
	}
	eng := engine.New(engOpts...)

	// Ctrl-C cancels in-flight instances; the run records as cancelled.
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, cancelling run", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	result, err := eng.Run(ctx, wf, engine.TriggerEvent{Name: opts.Event, Ref: opts.Ref})
	if err != nil {
		if engine.IsNotTriggered(err) {
			// Not an error: the event simply does not fire this
			// workflow. Matches the hosted platform, which records
			// nothing at all.
			if formatter.Format == "json" {
				return formatter.Success(map[string]any{
					"triggered": false,
					"event":     opts.Event,
					"ref":       opts.Ref,
				})
			}
			fmt.Fprintf(formatter.Writer, "workflow %q not triggered by %s on %s\n", wf.Name, opts.Event, opts.Ref)
			return nil
		}
		_ = formatter.Error(ErrCodeGeneric, err.Error())
		return WrapExitError(ExitCommandError, "run failed to start", err)
	}

	if formatter.Format == "json" {
		if encErr := formatter.Success(result); encErr != nil {
			return encErr
		}
	} else {
		renderRunText(formatter, result)
	}

	if result.Failed() {
		return NewExitError(ExitFailure, fmt.Sprintf("run %s: %s", result.RunID, result.Status))
	}
	return nil
}

func renderRunText(formatter *OutputFormatter, result *engine.RunResult) {
	w := formatter.Writer

	fmt.Fprintf(w, "Run %s\n\n", result.RunID)
	for _, inst := range result.Jobs {
		fmt.Fprintf(w, "%s %s\n", statusGlyph(inst.Status), inst.Key)
		for _, sr := range inst.Steps {
			fmt.Fprintf(w, "    %s %s", statusGlyph(sr.Status), sr.Name)
			if sr.Status == workflow.StatusFailure && sr.ExitCode != 0 {
				fmt.Fprintf(w, " (exit %d)", sr.ExitCode)
			}
			fmt.Fprintln(w)
		}
	}
	fmt.Fprintf(w, "\nResult: %s\n", result.Status)
}
