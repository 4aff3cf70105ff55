package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/henrykironde/conveyor/internal/workflow"
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("not found")

// ListRuns returns the most recent runs, newest first.
// Returns an empty slice (not nil) when the store is empty.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]workflow.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workflow_name, fingerprint, event, ref, status, created_at
		FROM runs
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []workflow.RunRecord{}
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}

// ReadRun returns a single run by ID.
func (s *Store) ReadRun(ctx context.Context, id string) (workflow.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, workflow_name, fingerprint, event, ref, status, created_at
		FROM runs
		WHERE id = ?
	`, id)

	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return workflow.RunRecord{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return workflow.RunRecord{}, err
	}
	return rec, nil
}

// ReadRunJobs returns all job instances of a run ordered by the
// engine's logical clock sequence.
func (s *Store) ReadRunJobs(ctx context.Context, runID string) ([]workflow.JobRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, job_id, instance_key, matrix, status, seq
		FROM jobs
		WHERE run_id = ?
		ORDER BY seq ASC, id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	jobs := []workflow.JobRecord{}
	for rows.Next() {
		var rec workflow.JobRecord
		var status string
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.JobID, &rec.InstanceKey, &rec.MatrixJSON, &status, &rec.Seq); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		rec.Status = workflow.Status(status)
		jobs = append(jobs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}

	return jobs, nil
}

// ReadJobSteps returns the step results of one job instance in
// execution order.
func (s *Store) ReadJobSteps(ctx context.Context, jobRowID int64) ([]workflow.StepRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, idx, name, status, exit_code, output, seq
		FROM steps
		WHERE job_id = ?
		ORDER BY idx ASC
	`, jobRowID)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	steps := []workflow.StepRecord{}
	for rows.Next() {
		var rec workflow.StepRecord
		var status string
		if err := rows.Scan(&rec.JobRowID, &rec.Index, &rec.Name, &status, &rec.ExitCode, &rec.Output, &rec.Seq); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		rec.Status = workflow.Status(status)
		steps = append(steps, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}

	return steps, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (workflow.RunRecord, error) {
	var rec workflow.RunRecord
	var status, createdAt string
	if err := row.Scan(&rec.ID, &rec.WorkflowName, &rec.Fingerprint, &rec.Event, &rec.Ref, &status, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scan run: %w", err)
	}
	rec.Status = workflow.Status(status)

	ts, err := time.Parse("2006-01-02T15:04:05.999Z", createdAt)
	if err != nil {
		// Fall back to second precision for rows written by other tools.
		ts, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return rec, fmt.Errorf("parse created_at %q: %w", createdAt, err)
		}
	}
	rec.CreatedAt = ts

	return rec, nil
}
