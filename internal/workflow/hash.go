package workflow

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainWorkflow = "conveyor/workflow/v1"
	DomainMatrix   = "conveyor/matrix/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint computes the content-addressed identity of a workflow.
// The hash is stable across loads of the same document: declaration
// order of jobs, axes, and steps is encoded positionally, while
// unordered maps (env, with) are canonically sorted.
func Fingerprint(w *Workflow) (string, error) {
	obj := map[string]any{
		"name": w.Name,
		"on":   triggersToCanonical(w.On),
		"jobs": jobsToCanonical(w.Jobs),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}

	return hashWithDomain(DomainWorkflow, canonical), nil
}

// MatrixHash computes a stable hash for one matrix combination, used to
// key job instances in the history store.
func MatrixHash(combo map[string]string) (string, error) {
	canonical, err := MarshalCanonical(combo)
	if err != nil {
		return "", fmt.Errorf("matrix hash: %w", err)
	}
	return hashWithDomain(DomainMatrix, canonical), nil
}

func triggersToCanonical(t Triggers) map[string]any {
	obj := map[string]any{}
	if t.Push != nil {
		obj["push"] = map[string]any{"branches": stringsOrEmpty(t.Push.Branches)}
	}
	if t.PullRequest != nil {
		obj["pull_request"] = map[string]any{"branches": stringsOrEmpty(t.PullRequest.Branches)}
	}
	return obj
}

func jobsToCanonical(jobs []Job) []any {
	out := make([]any, len(jobs))
	for i, j := range jobs {
		obj := map[string]any{
			"id":      j.ID,
			"name":    j.Name,
			"runs_on": j.RunsOn,
			"needs":   stringsOrEmpty(j.Needs),
			"env":     mapOrEmpty(j.Env),
			"steps":   stepsToCanonical(j.Steps),
		}
		if j.Strategy != nil {
			obj["strategy"] = strategyToCanonical(j.Strategy)
		}
		out[i] = obj
	}
	return out
}

func strategyToCanonical(s *Strategy) map[string]any {
	obj := map[string]any{
		"fail_fast": s.FailFast == nil || *s.FailFast,
	}
	if s.Matrix != nil {
		axes := make([]any, len(s.Matrix.Axes))
		for i, a := range s.Matrix.Axes {
			axes[i] = map[string]any{"name": a.Name, "values": stringsOrEmpty(a.Values)}
		}
		obj["matrix"] = map[string]any{
			"axes":    axes,
			"include": mapsToCanonical(s.Matrix.Include),
			"exclude": mapsToCanonical(s.Matrix.Exclude),
		}
	}
	return obj
}

func stepsToCanonical(steps []Step) []any {
	out := make([]any, len(steps))
	for i, s := range steps {
		out[i] = map[string]any{
			"name":              s.Name,
			"id":                s.ID,
			"run":               s.Run,
			"uses":              s.Uses,
			"with":              mapOrEmpty(s.With),
			"shell":             s.Shell,
			"if":                s.If,
			"env":               mapOrEmpty(s.Env),
			"working_directory": s.WorkingDirectory,
			"continue_on_error": s.ContinueOnError,
		}
	}
	return out
}

func mapsToCanonical(maps []map[string]string) []any {
	out := make([]any, len(maps))
	for i, m := range maps {
		out[i] = mapOrEmpty(m)
	}
	return out
}

func stringsOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func mapOrEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
