// Package workflow defines the document model for declarative CI workflow
// definitions: triggers, jobs, build matrices, and steps, plus the run
// records produced when a workflow executes.
//
// The model preserves declaration order everywhere it matters. Jobs and
// matrix axes are slices, not maps, so that planning and execution are
// deterministic for a given document.
//
// Identity is content-addressed: Fingerprint produces a domain-separated
// SHA-256 hash over a canonical JSON encoding of the document, so run
// history rows can always be traced back to the exact revision of the
// workflow file that produced them.
package workflow
