package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobLookup(t *testing.T) {
	wf := sampleWorkflow()

	assert.NotNil(t, wf.Job("linting"))
	assert.Nil(t, wf.Job("missing"))
}

func TestJobDisplayName(t *testing.T) {
	assert.Equal(t, "Lint", (&Job{ID: "linting", Name: "Lint"}).DisplayName())
	assert.Equal(t, "linting", (&Job{ID: "linting"}).DisplayName())
}

func TestFailFastDefaultsTrue(t *testing.T) {
	off := false

	assert.True(t, (&Job{}).FailFast())
	assert.True(t, (&Job{Strategy: &Strategy{}}).FailFast())
	assert.False(t, (&Job{Strategy: &Strategy{FailFast: &off}}).FailFast())
}

func TestStepDisplayName(t *testing.T) {
	assert.Equal(t, "Run tests", (&Step{Name: "Run tests", Run: "pytest"}).DisplayName())
	assert.Equal(t, "actions/checkout@v4", (&Step{Uses: "actions/checkout@v4"}).DisplayName())
	assert.Equal(t, "pytest -vv", (&Step{Run: "pytest -vv\nextra"}).DisplayName())
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusSuccess.Terminal())
	assert.True(t, StatusFailure.Terminal())
	assert.True(t, StatusSkipped.Terminal())
	assert.True(t, StatusCancelled.Terminal())
}
