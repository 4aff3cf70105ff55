package compiler

import (
	"fmt"
	"path"

	"github.com/henrykironde/conveyor/internal/workflow"
)

// MatchTrigger reports whether a workflow fires for the given event and
// branch ref.
//
// Supported events are "push" and "pull_request". A nil trigger rule
// means the workflow ignores that event; an empty branch list matches
// any branch. Branch patterns may use path.Match wildcards.
func MatchTrigger(wf *workflow.Workflow, event, ref string) (bool, error) {
	var rule *workflow.TriggerRule
	switch event {
	case "push":
		rule = wf.On.Push
	case "pull_request":
		rule = wf.On.PullRequest
	default:
		return false, fmt.Errorf("unsupported event %q (expected push or pull_request)", event)
	}

	if rule == nil {
		return false, nil
	}
	if len(rule.Branches) == 0 {
		return true, nil
	}

	for _, pattern := range rule.Branches {
		if pattern == ref {
			return true, nil
		}
		if ok, err := path.Match(pattern, ref); err == nil && ok {
			return true, nil
		}
	}
	return false, nil
}
