package engine

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell runner tests need a POSIX shell")
	}
}

func TestShellRunnerCapturesOutput(t *testing.T) {
	requireShell(t)

	r := &ShellRunner{}
	res, err := r.Run(context.Background(), CommandSpec{Script: "echo hello"})
	require.NoError(t, err)

	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "hello\n", string(res.Output))
}

func TestShellRunnerNonZeroExitIsNotError(t *testing.T) {
	requireShell(t)

	r := &ShellRunner{}
	res, err := r.Run(context.Background(), CommandSpec{Script: "exit 3"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
}

func TestShellRunnerStopsAtFirstFailure(t *testing.T) {
	requireShell(t)

	// -e semantics: the echo after the failing command never runs.
	r := &ShellRunner{}
	res, err := r.Run(context.Background(), CommandSpec{Script: "false\necho unreachable"})
	require.NoError(t, err)
	assert.NotZero(t, res.ExitCode)
	assert.NotContains(t, string(res.Output), "unreachable")
}

func TestShellRunnerFallbackChain(t *testing.T) {
	requireShell(t)

	r := &ShellRunner{}
	res, err := r.Run(context.Background(), CommandSpec{Script: "false || echo recovered"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, string(res.Output), "recovered")
}

func TestShellRunnerEnv(t *testing.T) {
	requireShell(t)

	r := &ShellRunner{}
	res, err := r.Run(context.Background(), CommandSpec{
		Script: "echo $CONVEYOR_TEST_VAR",
		Env:    map[string]string{"CONVEYOR_TEST_VAR": "present"},
	})
	require.NoError(t, err)
	assert.Equal(t, "present\n", string(res.Output))
}

func TestShellRunnerCancellation(t *testing.T) {
	requireShell(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &ShellRunner{}
	_, err := r.Run(ctx, CommandSpec{Script: "sleep 30"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestShellRunnerUnknownShell(t *testing.T) {
	requireShell(t)

	r := &ShellRunner{}
	_, err := r.Run(context.Background(), CommandSpec{Script: "echo hi", Shell: "no-such-shell-xyz"})
	assert.Error(t, err)
}

func TestLimitWriterTruncates(t *testing.T) {
	var buf []byte
	sink := writerFunc(func(p []byte) (int, error) {
		buf = append(buf, p...)
		return len(p), nil
	})

	lw := &limitWriter{w: sink, limit: 5}
	n, err := lw.Write([]byte("0123456789"))
	require.NoError(t, err)
	assert.Equal(t, 10, n) // reports full write
	assert.Equal(t, "01234", string(buf))

	n, err = lw.Write([]byte("more"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "01234", string(buf))
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
