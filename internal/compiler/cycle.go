package compiler

import (
	"fmt"
	"strings"

	"github.com/henrykironde/conveyor/internal/workflow"
)

// AnalyzeNeeds performs static cycle analysis on the needs graph.
//
// The dependency graph must be a DAG for the scheduler to make
// progress, so unlike lint-style checks a cycle here is a hard error.
//
// The algorithm:
//  1. Build job → needs dependency edges
//  2. Run Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1, and each self-loop, as an error
//
// Jobs are visited in declaration order so the reported cycle paths are
// deterministic for a given document.
func AnalyzeNeeds(wf *workflow.Workflow) []ValidationError {
	if len(wf.Jobs) == 0 {
		return nil
	}

	graph := make(map[string][]string, len(wf.Jobs))
	order := make([]string, 0, len(wf.Jobs))
	known := make(map[string]bool, len(wf.Jobs))
	for i := range wf.Jobs {
		job := &wf.Jobs[i]
		if known[job.ID] {
			continue // duplicate IDs are reported separately
		}
		known[job.ID] = true
		order = append(order, job.ID)
		graph[job.ID] = append([]string{}, job.Needs...)
	}

	// Drop edges to unknown jobs; those are E103, not cycle material.
	for id, deps := range graph {
		kept := deps[:0]
		for _, dep := range deps {
			if known[dep] {
				kept = append(kept, dep)
			}
		}
		graph[id] = kept
	}

	var errs []ValidationError
	for _, scc := range tarjanSCC(order, graph) {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			path := append(scc, scc[0])
			errs = append(errs, ValidationError{
				Field:   "jobs." + scc[0] + ".needs",
				Message: fmt.Sprintf("dependency cycle: %s", strings.Join(path, " → ")),
				Code:    ErrNeedsCycle,
			})
		}
	}
	return errs
}

func hasSelfLoop(node string, graph map[string][]string) bool {
	for _, dep := range graph[node] {
		if dep == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's
// algorithm, visiting roots in the given order for determinism.
func tarjanSCC(order []string, graph map[string][]string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}
