package expr

import (
	"strings"

	"github.com/henrykironde/conveyor/internal/workflow"
)

// Context carries the values visible to an expression during one job
// instance: the matrix combination, runner properties, environment, and
// the job's current status for the status functions.
type Context struct {
	// Matrix holds the instance's matrix combination (axis → value).
	Matrix map[string]string

	// Runner holds runner properties, e.g. "os" → "Linux".
	Runner map[string]string

	// Env holds the merged environment visible to the step.
	Env map[string]string

	// Job is the instance's status at evaluation time. Drives
	// success(), failure(), and cancelled().
	Job workflow.Status
}

// Resolve looks up a dotted context reference like "matrix.os" or
// "env.HOME". Unknown references resolve to the empty string, matching
// the hosted runner's permissive lookup semantics.
func (c *Context) Resolve(path string) string {
	root, rest, ok := strings.Cut(path, ".")
	if !ok {
		// Bare root references: "matrix" etc. have no scalar value.
		return ""
	}

	switch root {
	case "matrix":
		return c.Matrix[rest]
	case "runner":
		return c.Runner[rest]
	case "env":
		return c.Env[rest]
	case "job":
		if rest == "status" {
			return string(c.Job)
		}
		return ""
	default:
		return ""
	}
}

// RunnerOSFromLabel maps a runner label to the runner.os context value
// the hosted platform exposes: "ubuntu-*" → Linux, "macos-*" → macOS,
// "windows-*" → Windows. Unknown labels map to the label itself.
func RunnerOSFromLabel(label string) string {
	switch {
	case strings.HasPrefix(label, "ubuntu"):
		return "Linux"
	case strings.HasPrefix(label, "macos"):
		return "macOS"
	case strings.HasPrefix(label, "windows"):
		return "Windows"
	default:
		return label
	}
}
