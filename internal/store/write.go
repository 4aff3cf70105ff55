package store

import (
	"context"
	"fmt"

	"github.com/henrykironde/conveyor/internal/workflow"
)

// CreateRun inserts the run row at execution start, status "running".
// Uses ON CONFLICT(id) DO NOTHING for idempotency - run IDs are UUIDv7
// so a conflict means the same run was recorded twice.
func (s *Store) CreateRun(ctx context.Context, rec workflow.RunRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, workflow_name, fingerprint, event, ref, status)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.WorkflowName,
		rec.Fingerprint,
		rec.Event,
		rec.Ref,
		string(rec.Status),
	)
	if err != nil {
		return fmt.Errorf("create run %s: %w", rec.ID, err)
	}
	return nil
}

// FinishRun records the run's terminal status.
func (s *Store) FinishRun(ctx context.Context, id string, status workflow.Status) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: run not found", id)
	}
	return nil
}

// WriteJob inserts a job instance row and returns its rowid, which
// keys the instance's step rows.
//
// The UNIQUE(run_id, instance_key) constraint makes duplicate writes an
// error rather than silent - a run never legitimately produces the same
// instance twice.
func (s *Store) WriteJob(ctx context.Context, rec workflow.JobRecord) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (run_id, job_id, instance_key, matrix, status, seq)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		rec.RunID,
		rec.JobID,
		rec.InstanceKey,
		rec.MatrixJSON,
		string(rec.Status),
		rec.Seq,
	)
	if err != nil {
		return 0, fmt.Errorf("write job %s: %w", rec.InstanceKey, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("write job %s: last insert id: %w", rec.InstanceKey, err)
	}
	return id, nil
}

// FinishJob records a job instance's terminal status.
func (s *Store) FinishJob(ctx context.Context, jobRowID int64, status workflow.Status) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ? WHERE id = ?`, string(status), jobRowID)
	if err != nil {
		return fmt.Errorf("finish job %d: %w", jobRowID, err)
	}
	return nil
}

// WriteStep inserts a step result row.
// Uses ON CONFLICT DO NOTHING: a (job, index) pair is written once.
func (s *Store) WriteStep(ctx context.Context, rec workflow.StepRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO steps (job_id, idx, name, status, exit_code, output, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id, idx) DO NOTHING
	`,
		rec.JobRowID,
		rec.Index,
		rec.Name,
		string(rec.Status),
		rec.ExitCode,
		rec.Output,
		rec.Seq,
	)
	if err != nil {
		return fmt.Errorf("write step %d/%d: %w", rec.JobRowID, rec.Index, err)
	}
	return nil
}
