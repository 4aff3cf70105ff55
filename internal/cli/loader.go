package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/henrykironde/conveyor/internal/compiler"
	"github.com/henrykironde/conveyor/internal/workflow"
)

// Error code constants for command-level (non-validation) failures.
// Validation errors carry the compiler's E1xx codes.
const (
	ErrCodeGeneric    = "E001" // Generic/unknown error
	ErrCodeReadFailed = "E002" // Workflow file could not be read
	ErrCodeNotFound   = "E005" // Path not found or not a file
	ErrCodeStore      = "E007" // History database error
)

// LoadError represents an error that occurred while reading a workflow
// file, before any validation could run.
type LoadError struct {
	Code    string
	Path    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Path, e.Message)
}

// LoadWorkflow reads a workflow file and runs it through every
// compilation stage: schema vetting, structural parsing, and semantic
// validation.
//
// Environmental problems (missing file, unreadable path) come back as
// a *LoadError. Problems with the document itself come back as the
// ValidationError slice; the workflow is non-nil only when that slice
// is empty.
func LoadWorkflow(path string) (*workflow.Workflow, []compiler.ValidationError, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, nil, &LoadError{Code: ErrCodeNotFound, Path: path, Message: "workflow file not found"}
	}
	if err != nil {
		return nil, nil, &LoadError{Code: ErrCodeNotFound, Path: path, Message: err.Error()}
	}
	if info.IsDir() {
		return nil, nil, &LoadError{Code: ErrCodeNotFound, Path: path, Message: "is a directory, expected a workflow file"}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, &LoadError{Code: ErrCodeReadFailed, Path: path, Message: err.Error()}
	}

	// Schema gate first: a document that fails the dialect schema gets
	// positioned schema errors instead of a parser stack trace.
	schemaErrs, err := compiler.VetDocument(data, path)
	if err != nil {
		return nil, nil, &LoadError{Code: ErrCodeGeneric, Path: path, Message: err.Error()}
	}
	if len(schemaErrs) > 0 {
		return nil, schemaErrs, nil
	}

	wf, err := compiler.Parse(data, path)
	if err != nil {
		var parseErr *compiler.ParseError
		if errors.As(err, &parseErr) {
			return nil, []compiler.ValidationError{{
				Field:   "document",
				Message: parseErr.Message,
				Code:    compiler.ErrSchema,
				Line:    parseErr.Line,
			}}, nil
		}
		return nil, nil, &LoadError{Code: ErrCodeGeneric, Path: path, Message: err.Error()}
	}

	if validationErrs := compiler.Validate(wf); len(validationErrs) > 0 {
		return nil, validationErrs, nil
	}

	return wf, nil, nil
}
