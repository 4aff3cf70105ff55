package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// maxCapturedOutput bounds the output stored per step record.
const maxCapturedOutput = 64 * 1024

// CommandSpec describes one step script handed to the shell.
type CommandSpec struct {
	// Script is the resolved (interpolated) run block.
	Script string

	// Shell names the shell to use. Empty means bash with an sh
	// fallback when bash is not installed.
	Shell string

	// Dir is the working directory. Empty means the process cwd.
	Dir string

	// Env is merged over the parent environment.
	Env map[string]string
}

// CommandResult is the outcome of one step script.
type CommandResult struct {
	// ExitCode is the script's exit status. A shell-level fallback like
	// "cmd-a || cmd-b" resolves inside the shell; only the final status
	// surfaces here.
	ExitCode int

	// Output is the combined stdout/stderr, truncated to
	// maxCapturedOutput bytes.
	Output []byte
}

// CommandRunner executes step scripts. The production implementation
// shells out; tests install a fake to observe scripts without spawning
// processes.
type CommandRunner interface {
	Run(ctx context.Context, spec CommandSpec) (CommandResult, error)
}

// ShellRunner executes scripts via the local shell.
//
// Scripts run under "-e -c" so multi-line run blocks stop at the first
// failing command, matching the hosted runner's default shell options.
type ShellRunner struct {
	// Stdout and Stderr receive streamed output in addition to the
	// captured copy. Nil writers discard the stream.
	Stdout io.Writer
	Stderr io.Writer
}

// Run executes the script and reports its exit code.
//
// A non-zero exit is NOT an error: the caller decides what a failing
// step means. The returned error is reserved for the script being
// unrunnable (no shell, bad working directory) or the context being
// cancelled.
func (r *ShellRunner) Run(ctx context.Context, spec CommandSpec) (CommandResult, error) {
	shellPath, err := resolveShell(spec.Shell)
	if err != nil {
		return CommandResult{}, err
	}

	cmd := exec.CommandContext(ctx, shellPath, "-e", "-c", spec.Script)
	cmd.Dir = spec.Dir
	cmd.Env = mergedEnviron(spec.Env)

	var captured bytes.Buffer
	limited := &limitWriter{w: &captured, limit: maxCapturedOutput}
	cmd.Stdout = teeWriter(r.Stdout, limited)
	cmd.Stderr = teeWriter(r.Stderr, limited)

	err = cmd.Run()

	if ctx.Err() != nil {
		return CommandResult{Output: captured.Bytes()}, ctx.Err()
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return CommandResult{ExitCode: exitErr.ExitCode(), Output: captured.Bytes()}, nil
		}
		return CommandResult{Output: captured.Bytes()}, fmt.Errorf("run script: %w", err)
	}

	return CommandResult{Output: captured.Bytes()}, nil
}

// resolveShell locates the shell binary. The default is bash; when
// bash is absent (minimal containers) sh is close enough for the
// dialect's scripts.
func resolveShell(shell string) (string, error) {
	if shell == "" {
		if path, err := exec.LookPath("bash"); err == nil {
			return path, nil
		}
		shell = "sh"
	}

	path, err := exec.LookPath(shell)
	if err != nil {
		return "", fmt.Errorf("shell %q not found: %w", shell, err)
	}
	return path, nil
}

// mergedEnviron overlays extra variables on the parent environment.
func mergedEnviron(extra map[string]string) []string {
	env := os.Environ()
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}

func teeWriter(stream io.Writer, capture io.Writer) io.Writer {
	if stream == nil {
		return capture
	}
	return io.MultiWriter(stream, capture)
}

// limitWriter accepts all writes but stops retaining bytes past the
// limit, so a chatty script cannot bloat the history store.
type limitWriter struct {
	w     io.Writer
	limit int
	n     int
}

func (lw *limitWriter) Write(p []byte) (int, error) {
	if lw.n >= lw.limit {
		return len(p), nil
	}
	remain := lw.limit - lw.n
	toWrite := p
	if len(toWrite) > remain {
		toWrite = toWrite[:remain]
	}
	n, err := lw.w.Write(toWrite)
	lw.n += n
	if err != nil {
		return n, err
	}
	return len(p), nil
}
