package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/henrykironde/conveyor/internal/workflow"
)

// Combination is one concrete assignment of matrix variables for a job
// instance. Keys preserves axis declaration order (extra include-only
// keys follow, sorted) so instance naming is deterministic.
type Combination struct {
	Keys   []string
	Values map[string]string
}

// Get returns the value for a matrix variable, or "" if unset.
func (c Combination) Get(key string) string {
	return c.Values[key]
}

// Empty reports whether the combination carries no variables.
func (c Combination) Empty() bool {
	return len(c.Keys) == 0
}

// String renders the combination values in key order, e.g.
// "macos-latest, 3.9".
func (c Combination) String() string {
	parts := make([]string, len(c.Keys))
	for i, k := range c.Keys {
		parts[i] = c.Values[k]
	}
	return strings.Join(parts, ", ")
}

func (c Combination) equal(other Combination) bool {
	if len(c.Values) != len(other.Values) {
		return false
	}
	for k, v := range c.Values {
		if other.Values[k] != v {
			return false
		}
	}
	return true
}

// InstanceKey names one job instance within a run: the bare job ID for
// non-matrix jobs, "id (v1, v2)" for matrix jobs. This matches how the
// hosted runner labels matrix instances.
func InstanceKey(jobID string, c Combination) string {
	if c.Empty() {
		return jobID
	}
	return fmt.Sprintf("%s (%s)", jobID, c.String())
}

// ExpandMatrix produces the concrete combinations for a job.
//
// Expansion is the cross product of the axes in declaration order,
// minus exclude entries (an exclude matches a combination when every
// one of its key/value pairs matches), plus include entries appended in
// order. Include entries that duplicate an existing combination are
// dropped. A job without a matrix yields a single empty combination.
func ExpandMatrix(job *workflow.Job) []Combination {
	if job.Strategy == nil || job.Strategy.Matrix == nil || len(job.Strategy.Matrix.Axes) == 0 {
		combos := []Combination{{Values: map[string]string{}}}
		if job.Strategy != nil && job.Strategy.Matrix != nil {
			combos = appendIncludes(combos[:0], job.Strategy.Matrix, nil)
			if len(combos) == 0 {
				combos = []Combination{{Values: map[string]string{}}}
			}
		}
		return combos
	}

	matrix := job.Strategy.Matrix
	axisNames := make([]string, len(matrix.Axes))
	for i, a := range matrix.Axes {
		axisNames[i] = a.Name
	}

	// Cross product in declaration order: the last axis varies fastest.
	combos := []Combination{{Keys: axisNames, Values: map[string]string{}}}
	for _, axis := range matrix.Axes {
		next := make([]Combination, 0, len(combos)*len(axis.Values))
		for _, base := range combos {
			for _, v := range axis.Values {
				values := make(map[string]string, len(base.Values)+1)
				for k, bv := range base.Values {
					values[k] = bv
				}
				values[axis.Name] = v
				next = append(next, Combination{Keys: axisNames, Values: values})
			}
		}
		combos = next
	}

	combos = applyExcludes(combos, matrix.Exclude)
	combos = appendIncludes(combos, matrix, axisNames)

	return combos
}

func applyExcludes(combos []Combination, excludes []map[string]string) []Combination {
	if len(excludes) == 0 {
		return combos
	}
	kept := combos[:0]
	for _, c := range combos {
		excluded := false
		for _, ex := range excludes {
			if matchesAll(c, ex) {
				excluded = true
				break
			}
		}
		if !excluded {
			kept = append(kept, c)
		}
	}
	return kept
}

func matchesAll(c Combination, entry map[string]string) bool {
	for k, v := range entry {
		if c.Values[k] != v {
			return false
		}
	}
	return len(entry) > 0
}

func appendIncludes(combos []Combination, matrix *workflow.Matrix, axisNames []string) []Combination {
	for _, entry := range matrix.Include {
		keys := includeKeys(entry, axisNames)
		values := make(map[string]string, len(entry))
		for k, v := range entry {
			values[k] = v
		}
		combo := Combination{Keys: keys, Values: values}

		duplicate := false
		for _, existing := range combos {
			if existing.equal(combo) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			combos = append(combos, combo)
		}
	}
	return combos
}

// includeKeys orders an include entry's keys: declared axes first in
// axis order, then include-only keys sorted for determinism.
func includeKeys(entry map[string]string, axisNames []string) []string {
	keys := make([]string, 0, len(entry))
	seen := make(map[string]bool, len(entry))
	for _, name := range axisNames {
		if _, ok := entry[name]; ok {
			keys = append(keys, name)
			seen[name] = true
		}
	}
	var extra []string
	for k := range entry {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(keys, extra...)
}
