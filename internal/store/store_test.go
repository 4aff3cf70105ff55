package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/henrykironde/conveyor/internal/workflow"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	st, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func testRun(id string) workflow.RunRecord {
	return workflow.RunRecord{
		ID:           id,
		WorkflowName: "CI",
		Fingerprint:  "abc123",
		Event:        "push",
		Ref:          "master",
		Status:       workflow.StatusRunning,
	}
}

func TestRunRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateRun(ctx, testRun("run-1")))

	got, err := st.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "CI", got.WorkflowName)
	assert.Equal(t, "push", got.Event)
	assert.Equal(t, "master", got.Ref)
	assert.Equal(t, workflow.StatusRunning, got.Status)
	assert.False(t, got.CreatedAt.IsZero())

	require.NoError(t, st.FinishRun(ctx, "run-1", workflow.StatusSuccess))
	got, err = st.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusSuccess, got.Status)
}

func TestCreateRunIdempotent(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateRun(ctx, testRun("run-1")))
	require.NoError(t, st.CreateRun(ctx, testRun("run-1")))

	runs, err := st.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestFinishRunNotFound(t *testing.T) {
	st := openTestStore(t)

	err := st.FinishRun(context.Background(), "ghost", workflow.StatusSuccess)
	assert.Error(t, err)
}

func TestReadRunNotFound(t *testing.T) {
	st := openTestStore(t)

	_, err := st.ReadRun(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRunsNewestFirstAndLimit(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"run-1", "run-2", "run-3"} {
		require.NoError(t, st.CreateRun(ctx, testRun(id)))
	}

	runs, err := st.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	all, err := st.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestJobAndStepRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateRun(ctx, testRun("run-1")))

	rowID, err := st.WriteJob(ctx, workflow.JobRecord{
		RunID:       "run-1",
		JobID:       "conda_test",
		InstanceKey: "conda_test (macos-latest, 3.9)",
		MatrixJSON:  `{"os":"macos-latest","python-version":"3.9"}`,
		Status:      workflow.StatusRunning,
		Seq:         1,
	})
	require.NoError(t, err)
	require.NotZero(t, rowID)

	require.NoError(t, st.WriteStep(ctx, workflow.StepRecord{
		JobRowID: rowID,
		Index:    0,
		Name:     "Install package",
		Status:   workflow.StatusSuccess,
		ExitCode: 0,
		Output:   "ok\n",
		Seq:      2,
	}))
	require.NoError(t, st.WriteStep(ctx, workflow.StepRecord{
		JobRowID: rowID,
		Index:    1,
		Name:     "Run tests (macOS)",
		Status:   workflow.StatusFailure,
		ExitCode: 1,
		Seq:      3,
	}))

	require.NoError(t, st.FinishJob(ctx, rowID, workflow.StatusFailure))

	jobs, err := st.ReadRunJobs(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "conda_test (macos-latest, 3.9)", jobs[0].InstanceKey)
	assert.Equal(t, workflow.StatusFailure, jobs[0].Status)

	steps, err := st.ReadJobSteps(ctx, rowID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "Install package", steps[0].Name)
	assert.Equal(t, workflow.StatusSuccess, steps[0].Status)
	assert.Equal(t, 1, steps[1].ExitCode)
}

func TestWriteJobDuplicateInstance(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateRun(ctx, testRun("run-1")))

	rec := workflow.JobRecord{
		RunID:       "run-1",
		JobID:       "linting",
		InstanceKey: "linting",
		MatrixJSON:  "{}",
		Status:      workflow.StatusRunning,
		Seq:         1,
	}
	_, err := st.WriteJob(ctx, rec)
	require.NoError(t, err)

	_, err = st.WriteJob(ctx, rec)
	assert.Error(t, err)
}

func TestWriteStepIdempotent(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateRun(ctx, testRun("run-1")))
	rowID, err := st.WriteJob(ctx, workflow.JobRecord{
		RunID: "run-1", JobID: "linting", InstanceKey: "linting",
		MatrixJSON: "{}", Status: workflow.StatusRunning, Seq: 1,
	})
	require.NoError(t, err)

	step := workflow.StepRecord{JobRowID: rowID, Index: 0, Name: "a", Status: workflow.StatusSuccess, Seq: 2}
	require.NoError(t, st.WriteStep(ctx, step))
	require.NoError(t, st.WriteStep(ctx, step))

	steps, err := st.ReadJobSteps(ctx, rowID)
	require.NoError(t, err)
	assert.Len(t, steps, 1)
}

func TestDeleteRunCascades(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateRun(ctx, testRun("run-1")))
	rowID, err := st.WriteJob(ctx, workflow.JobRecord{
		RunID: "run-1", JobID: "linting", InstanceKey: "linting",
		MatrixJSON: "{}", Status: workflow.StatusSuccess, Seq: 1,
	})
	require.NoError(t, err)
	require.NoError(t, st.WriteStep(ctx, workflow.StepRecord{
		JobRowID: rowID, Index: 0, Name: "a", Status: workflow.StatusSuccess, Seq: 2,
	}))

	_, err = st.DB().ExecContext(ctx, `DELETE FROM runs WHERE id = 'run-1'`)
	require.NoError(t, err)

	jobs, err := st.ReadRunJobs(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, jobs)
}
