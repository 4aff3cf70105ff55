package compiler

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
)

//go:embed schema.cue
var schemaSource string

var (
	schemaOnce sync.Once
	schemaCtx  *cue.Context
	schemaVal  cue.Value
	schemaErr  error
)

// workflowSchema compiles the embedded dialect schema once. The context
// is returned alongside the value: documents must be built in the same
// context, Unify is not defined across contexts.
func workflowSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		compiled := schemaCtx.CompileString(schemaSource, cue.Filename("schema.cue"))
		if err := compiled.Err(); err != nil {
			schemaErr = fmt.Errorf("compile embedded schema: %w", err)
			return
		}
		schemaVal = compiled.LookupPath(cue.ParsePath("#Workflow"))
		if err := schemaVal.Err(); err != nil {
			schemaErr = fmt.Errorf("lookup #Workflow: %w", err)
		}
	})
	return schemaCtx, schemaVal, schemaErr
}

// VetDocument checks a raw workflow document against the dialect
// schema. Returns one ValidationError per schema violation, each with
// the source line where CUE reports the conflict.
//
// A nil slice means the document is schema-clean; parse and semantic
// validation still apply afterwards.
func VetDocument(data []byte, filename string) ([]ValidationError, error) {
	cuectx, schema, err := workflowSchema()
	if err != nil {
		return nil, err
	}

	file, err := cueyaml.Extract(filename, data)
	if err != nil {
		return []ValidationError{{
			Field:   "document",
			Message: fmt.Sprintf("invalid YAML: %v", err),
			Code:    ErrSchema,
		}}, nil
	}

	doc := cuectx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return []ValidationError{{
			Field:   "document",
			Message: fmt.Sprintf("build document: %v", err),
			Code:    ErrSchema,
		}}, nil
	}

	unified := schema.Unify(doc)
	if err := unified.Validate(); err != nil {
		var errs []ValidationError
		for _, e := range cueerrors.Errors(err) {
			line := 0
			if pos := e.Position(); pos.IsValid() {
				line = pos.Line()
			}
			errs = append(errs, ValidationError{
				Field:   strings.Join(pathStrings(e.Path()), "."),
				Message: e.Error(),
				Code:    ErrSchema,
				Line:    line,
			})
		}
		return errs, nil
	}

	return nil, nil
}

func pathStrings(path []string) []string {
	out := path[:0:0]
	for _, p := range path {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
