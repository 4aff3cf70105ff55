package compiler

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/henrykironde/conveyor/internal/workflow"
)

// ParseError reports a structural problem found while decoding a
// workflow document.
type ParseError struct {
	File    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// Parse decodes a workflow document.
//
// Decoding walks yaml.Node trees rather than unmarshalling into maps:
// Go maps would lose declaration order (jobs, matrix axes) and the YAML
// resolver would collapse version-like scalars ("3.10") into floats.
// Scalar values are taken verbatim from the node.
func Parse(data []byte, filename string) (*workflow.Workflow, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &ParseError{File: filename, Message: fmt.Sprintf("invalid YAML: %v", err)}
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, &ParseError{File: filename, Message: "empty document"}
	}

	p := &docParser{file: filename}
	wf, err := p.parseWorkflow(root.Content[0])
	if err != nil {
		return nil, err
	}
	return wf, nil
}

type docParser struct {
	file string
}

func (p *docParser) errf(n *yaml.Node, format string, args ...any) error {
	line := 0
	if n != nil {
		line = n.Line
	}
	return &ParseError{File: p.file, Line: line, Message: fmt.Sprintf(format, args...)}
}

func (p *docParser) parseWorkflow(n *yaml.Node) (*workflow.Workflow, error) {
	if n.Kind != yaml.MappingNode {
		return nil, p.errf(n, "workflow must be a mapping")
	}

	wf := &workflow.Workflow{}
	for key, val := range mappingPairs(n) {
		switch key.Value {
		case "name":
			wf.Name = val.Value
		case "on":
			on, err := p.parseTriggers(val)
			if err != nil {
				return nil, err
			}
			wf.On = on
		case "jobs":
			jobs, err := p.parseJobs(val)
			if err != nil {
				return nil, err
			}
			wf.Jobs = jobs
		default:
			return nil, p.errf(key, "unknown workflow field %q", key.Value)
		}
	}
	return wf, nil
}

func (p *docParser) parseTriggers(n *yaml.Node) (workflow.Triggers, error) {
	var t workflow.Triggers

	setEvent := func(name string, rule *workflow.TriggerRule, at *yaml.Node) error {
		switch name {
		case "push":
			t.Push = rule
		case "pull_request":
			t.PullRequest = rule
		default:
			return p.errf(at, "unsupported trigger event %q", name)
		}
		return nil
	}

	switch n.Kind {
	case yaml.ScalarNode:
		return t, setEvent(n.Value, &workflow.TriggerRule{}, n)

	case yaml.SequenceNode:
		for _, item := range n.Content {
			if err := setEvent(item.Value, &workflow.TriggerRule{}, item); err != nil {
				return t, err
			}
		}
		return t, nil

	case yaml.MappingNode:
		for key, val := range mappingPairs(n) {
			rule := &workflow.TriggerRule{}
			if val.Kind == yaml.MappingNode {
				for rk, rv := range mappingPairs(val) {
					if rk.Value != "branches" {
						return t, p.errf(rk, "unknown trigger field %q", rk.Value)
					}
					branches, err := p.stringList(rv)
					if err != nil {
						return t, err
					}
					rule.Branches = branches
				}
			} else if !isNull(val) {
				return t, p.errf(val, "trigger %q must be a mapping or empty", key.Value)
			}
			if err := setEvent(key.Value, rule, key); err != nil {
				return t, err
			}
		}
		return t, nil

	default:
		return t, p.errf(n, "invalid 'on' value")
	}
}

func (p *docParser) parseJobs(n *yaml.Node) ([]workflow.Job, error) {
	if n.Kind != yaml.MappingNode {
		return nil, p.errf(n, "jobs must be a mapping")
	}

	var jobs []workflow.Job
	for key, val := range mappingPairs(n) {
		job, err := p.parseJob(key, val)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (p *docParser) parseJob(id, n *yaml.Node) (workflow.Job, error) {
	job := workflow.Job{ID: id.Value, Line: id.Line}
	if n.Kind != yaml.MappingNode {
		return job, p.errf(n, "job %q must be a mapping", id.Value)
	}

	for key, val := range mappingPairs(n) {
		switch key.Value {
		case "name":
			job.Name = val.Value
		case "runs-on":
			job.RunsOn = val.Value
		case "needs":
			needs, err := p.stringList(val)
			if err != nil {
				return job, err
			}
			job.Needs = needs
		case "strategy":
			strategy, err := p.parseStrategy(val)
			if err != nil {
				return job, err
			}
			job.Strategy = strategy
		case "env":
			env, err := p.stringMap(val)
			if err != nil {
				return job, err
			}
			job.Env = env
		case "steps":
			steps, err := p.parseSteps(val)
			if err != nil {
				return job, err
			}
			job.Steps = steps
		default:
			return job, p.errf(key, "unknown job field %q", key.Value)
		}
	}
	return job, nil
}

func (p *docParser) parseStrategy(n *yaml.Node) (*workflow.Strategy, error) {
	if n.Kind != yaml.MappingNode {
		return nil, p.errf(n, "strategy must be a mapping")
	}

	strategy := &workflow.Strategy{}
	for key, val := range mappingPairs(n) {
		switch key.Value {
		case "fail-fast":
			b, err := strconv.ParseBool(val.Value)
			if err != nil {
				return nil, p.errf(val, "fail-fast must be a boolean")
			}
			strategy.FailFast = &b
		case "matrix":
			matrix, err := p.parseMatrix(val)
			if err != nil {
				return nil, err
			}
			strategy.Matrix = matrix
		default:
			return nil, p.errf(key, "unknown strategy field %q", key.Value)
		}
	}
	return strategy, nil
}

func (p *docParser) parseMatrix(n *yaml.Node) (*workflow.Matrix, error) {
	if n.Kind != yaml.MappingNode {
		return nil, p.errf(n, "matrix must be a mapping")
	}

	matrix := &workflow.Matrix{}
	for key, val := range mappingPairs(n) {
		switch key.Value {
		case "include":
			entries, err := p.mapList(val)
			if err != nil {
				return nil, err
			}
			matrix.Include = entries
		case "exclude":
			entries, err := p.mapList(val)
			if err != nil {
				return nil, err
			}
			matrix.Exclude = entries
		default:
			values, err := p.stringList(val)
			if err != nil {
				return nil, err
			}
			matrix.Axes = append(matrix.Axes, workflow.Axis{Name: key.Value, Values: values})
		}
	}
	return matrix, nil
}

func (p *docParser) parseSteps(n *yaml.Node) ([]workflow.Step, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, p.errf(n, "steps must be a sequence")
	}

	var steps []workflow.Step
	for _, item := range n.Content {
		step, err := p.parseStep(item)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func (p *docParser) parseStep(n *yaml.Node) (workflow.Step, error) {
	step := workflow.Step{Line: n.Line}
	if n.Kind != yaml.MappingNode {
		return step, p.errf(n, "step must be a mapping")
	}

	for key, val := range mappingPairs(n) {
		switch key.Value {
		case "name":
			step.Name = val.Value
		case "id":
			step.ID = val.Value
		case "run":
			step.Run = val.Value
		case "uses":
			step.Uses = val.Value
		case "with":
			with, err := p.stringMap(val)
			if err != nil {
				return step, err
			}
			step.With = with
		case "shell":
			step.Shell = val.Value
		case "if":
			step.If = val.Value
		case "env":
			env, err := p.stringMap(val)
			if err != nil {
				return step, err
			}
			step.Env = env
		case "working-directory":
			step.WorkingDirectory = val.Value
		case "continue-on-error":
			b, err := strconv.ParseBool(val.Value)
			if err != nil {
				return step, p.errf(val, "continue-on-error must be a boolean")
			}
			step.ContinueOnError = b
		default:
			return step, p.errf(key, "unknown step field %q", key.Value)
		}
	}
	return step, nil
}

// stringList accepts a scalar (one element) or a sequence of scalars.
func (p *docParser) stringList(n *yaml.Node) ([]string, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return []string{n.Value}, nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(n.Content))
		for _, item := range n.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, p.errf(item, "expected scalar value")
			}
			out = append(out, item.Value)
		}
		return out, nil
	default:
		return nil, p.errf(n, "expected scalar or sequence")
	}
}

func (p *docParser) stringMap(n *yaml.Node) (map[string]string, error) {
	if n.Kind != yaml.MappingNode {
		return nil, p.errf(n, "expected a mapping")
	}
	out := make(map[string]string, len(n.Content)/2)
	for key, val := range mappingPairs(n) {
		if val.Kind != yaml.ScalarNode {
			return nil, p.errf(val, "value of %q must be a scalar", key.Value)
		}
		out[key.Value] = val.Value
	}
	return out, nil
}

func (p *docParser) mapList(n *yaml.Node) ([]map[string]string, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, p.errf(n, "expected a sequence of mappings")
	}
	out := make([]map[string]string, 0, len(n.Content))
	for _, item := range n.Content {
		m, err := p.stringMap(item)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// mappingPairs iterates key/value node pairs of a mapping in
// declaration order.
func mappingPairs(n *yaml.Node) func(yield func(*yaml.Node, *yaml.Node) bool) {
	return func(yield func(*yaml.Node, *yaml.Node) bool) {
		for i := 0; i+1 < len(n.Content); i += 2 {
			if !yield(n.Content[i], n.Content[i+1]) {
				return
			}
		}
	}
}

func isNull(n *yaml.Node) bool {
	return n.Kind == 0 || n.Tag == "!!null"
}
