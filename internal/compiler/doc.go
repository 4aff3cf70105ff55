// Package compiler turns workflow YAML documents into the workflow
// model and checks them before execution.
//
// Compilation runs in three phases:
//
//  1. Schema gate: the raw document is vetted against an embedded CUE
//     schema of the dialect, producing positioned errors for unknown
//     fields and type mismatches.
//  2. Parse: the YAML is decoded into workflow types via node walking,
//     preserving declaration order and keeping scalars like "3.10" as
//     strings.
//  3. Validate: semantic checks (needs references, duplicate IDs, step
//     shape, matrix shape, condition syntax) and cycle analysis over
//     the needs graph.
//
// Matrix expansion and trigger matching also live here since both are
// pure functions of the document.
package compiler
