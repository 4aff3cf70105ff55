package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureWorkflow() string {
	return filepath.Join("..", "..", "testdata", "workflows", "ci.yml")
}

func writeTempWorkflow(t *testing.T, doc string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "wf.yml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))
	return path
}

func TestValidateValidWorkflow(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{fixtureWorkflow()})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "✓ workflow valid")
}

func TestValidateValidWorkflowJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{fixtureWorkflow()})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestValidateMissingFile(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"/nonexistent/workflow.yml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNotFound)
}

func TestValidateInvalidWorkflow(t *testing.T) {
	path := writeTempWorkflow(t, `
name: broken
on: push
jobs:
  a:
    runs-on: ubuntu-latest
    needs: b
    steps:
      - run: "true"
  b:
    runs-on: ubuntu-latest
    needs: a
    steps:
      - run: "true"
`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "✗ validation failed")
	assert.Contains(t, buf.String(), "E104")
}

func TestValidateInvalidWorkflowJSON(t *testing.T) {
	path := writeTempWorkflow(t, `
name: broken
on: push
jobs:
  j:
    runs-on: ubuntu-latest
    steps: []
`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
}

func TestValidateSchemaViolation(t *testing.T) {
	path := writeTempWorkflow(t, `
name: broken
on: push
jobs:
  j:
    runs-on: ubuntu-latest
    steps: "not a list"
`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "E100")
}
