// Package engine plans and executes workflow runs.
//
// Planning expands each job's matrix into concrete job instances and
// resolves per-instance runner labels. Execution schedules jobs by
// their needs graph: a job instance never starts before every job it
// needs has succeeded, and a failed or skipped dependency marks its
// dependents skipped.
//
// Matrix instances of a job run concurrently on a bounded worker pool.
// With fail-fast (the default) the first failing instance cancels its
// in-flight and pending siblings via context cancellation; cancelled
// instances are recorded as cancelled, not failed.
//
// Steps run sequentially within an instance. A non-zero exit fails the
// step and the job unless continue-on-error is set; once a job is
// failing, only steps gated on failure() or always() still run. Steps
// that reference external actions (uses:) are opaque delegated
// collaborators: they are logged and recorded, never executed.
//
// Every state change is stamped with a monotonic logical clock sequence
// and, when a store is attached, persisted for the history and trace
// commands.
package engine
