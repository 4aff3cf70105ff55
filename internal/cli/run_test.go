package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/henrykironde/conveyor/internal/engine"
)

// scriptedRunner records scripts and fails those containing a marker.
type scriptedRunner struct {
	mu      sync.Mutex
	scripts []string
	failOn  string
}

func (r *scriptedRunner) Run(ctx context.Context, spec engine.CommandSpec) (engine.CommandResult, error) {
	r.mu.Lock()
	r.scripts = append(r.scripts, spec.Script)
	r.mu.Unlock()

	if r.failOn != "" && strings.Contains(spec.Script, r.failOn) {
		return engine.CommandResult{ExitCode: 1, Output: []byte("boom\n")}, nil
	}
	return engine.CommandResult{Output: []byte("ok\n")}, nil
}

func newRunCommandShell(out, errOut *bytes.Buffer) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	return cmd
}

func execRun(t *testing.T, opts *RunOptions, path string) (string, error) {
	t.Helper()

	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	err := runWorkflow(opts, path, newRunCommandShell(out, errOut))
	return out.String(), err
}

func TestRunFixtureToCompletion(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ci.db")
	runner := &scriptedRunner{}
	opts := &RunOptions{
		RootOptions:    &RootOptions{Format: "text"},
		Event:          "push",
		Ref:            "master",
		Database:       dbPath,
		Parallel:       4,
		RunIDGenerator: &engine.SequenceGenerator{Prefix: "run"},
		CommandRunner:  runner,
	}

	output, err := execRun(t, opts, fixtureWorkflow())
	require.NoError(t, err)

	assert.Contains(t, output, "Run run-1")
	assert.Contains(t, output, "Result: success")
	assert.Contains(t, output, "conda_test (ubuntu-latest, 3.11)")

	// History picks up the recorded run.
	histOut := &bytes.Buffer{}
	histCmd := NewHistoryCommand(&RootOptions{Format: "text"})
	histCmd.SetOut(histOut)
	histCmd.SetArgs([]string{"--db", dbPath})
	require.NoError(t, histCmd.Execute())
	assert.Contains(t, histOut.String(), "run-1")
	assert.Contains(t, histOut.String(), "CI")
	assert.Contains(t, histOut.String(), "success")

	// Trace shows the step trail.
	traceOut := &bytes.Buffer{}
	traceCmd := NewTraceCommand(&RootOptions{Format: "text"})
	traceCmd.SetOut(traceOut)
	traceCmd.SetArgs([]string{"run-1", "--db", dbPath})
	require.NoError(t, traceCmd.Execute())
	assert.Contains(t, traceOut.String(), "Run run-1 (success)")
	assert.Contains(t, traceOut.String(), "conda_test (macos-latest, 3.9)")
	assert.Contains(t, traceOut.String(), "Install package")
}

func TestRunFailureExitCode(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ci.db")
	opts := &RunOptions{
		RootOptions:    &RootOptions{Format: "text"},
		Event:          "push",
		Ref:            "master",
		Database:       dbPath,
		Parallel:       2,
		RunIDGenerator: &engine.SequenceGenerator{Prefix: "run"},
		CommandRunner:  &scriptedRunner{failOn: "pip install -e"},
	}

	output, err := execRun(t, opts, fixtureWorkflow())
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, output, "Result: failure")
}

func TestRunNotTriggeredIsNotAnError(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ci.db")
	runner := &scriptedRunner{}
	opts := &RunOptions{
		RootOptions:    &RootOptions{Format: "text"},
		Event:          "push",
		Ref:            "develop",
		Database:       dbPath,
		Parallel:       2,
		RunIDGenerator: &engine.SequenceGenerator{Prefix: "run"},
		CommandRunner:  runner,
	}

	output, err := execRun(t, opts, fixtureWorkflow())
	require.NoError(t, err)
	assert.Contains(t, output, "not triggered")
	assert.Empty(t, runner.scripts)
}

func TestRunWithoutDatabase(t *testing.T) {
	runner := &scriptedRunner{}
	opts := &RunOptions{
		RootOptions:    &RootOptions{Format: "text"},
		Event:          "push",
		Ref:            "master",
		Database:       "",
		Parallel:       2,
		RunIDGenerator: &engine.SequenceGenerator{Prefix: "run"},
		CommandRunner:  runner,
	}

	output, err := execRun(t, opts, fixtureWorkflow())
	require.NoError(t, err)
	assert.Contains(t, output, "Result: success")
	assert.Equal(t, 5, countScripts(runner, "pytest -vv"))
}

func countScripts(r *scriptedRunner, marker string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.scripts {
		if strings.Contains(s, marker) {
			n++
		}
	}
	return n
}

func TestRunJSONOutput(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ci.db")
	opts := &RunOptions{
		RootOptions:    &RootOptions{Format: "json"},
		Event:          "pull_request",
		Ref:            "master",
		Database:       dbPath,
		Parallel:       4,
		RunIDGenerator: &engine.SequenceGenerator{Prefix: "run"},
		CommandRunner:  &scriptedRunner{},
	}

	output, err := execRun(t, opts, fixtureWorkflow())
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestRunMissingWorkflow(t *testing.T) {
	opts := &RunOptions{
		RootOptions: &RootOptions{Format: "text"},
		Event:       "push",
		Ref:         "master",
		Database:    filepath.Join(t.TempDir(), "ci.db"),
		Parallel:    2,
	}

	_, err := execRun(t, opts, "/nonexistent/wf.yml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestHistoryEmptyDatabase(t *testing.T) {
	out := &bytes.Buffer{}
	cmd := NewHistoryCommand(&RootOptions{Format: "text"})
	cmd.SetOut(out)
	cmd.SetArgs([]string{"--db", filepath.Join(t.TempDir(), "empty.db")})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "no runs recorded")
}

func TestTraceUnknownRun(t *testing.T) {
	out := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: "text"})
	cmd.SetOut(out)
	cmd.SetArgs([]string{"ghost", "--db", filepath.Join(t.TempDir(), "empty.db")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
