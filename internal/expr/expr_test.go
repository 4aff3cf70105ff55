package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/henrykironde/conveyor/internal/workflow"
)

func testContext() *Context {
	return &Context{
		Matrix: map[string]string{"os": "ubuntu-latest", "python-version": "3.10"},
		Runner: map[string]string{"os": "Linux"},
		Env:    map[string]string{"CI": "true"},
		Job:    workflow.StatusSuccess,
	}
}

func TestParseAndEval(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want bool
	}{
		{"equality true", "matrix.os == 'ubuntu-latest'", true},
		{"equality false", "matrix.os == 'macos-latest'", false},
		{"inequality", "matrix.os != 'macos-latest'", true},
		{"hyphenated axis", "matrix.python-version == '3.10'", true},
		{"and", "matrix.os == 'ubuntu-latest' && matrix.python-version == '3.10'", true},
		{"and short circuit", "matrix.os == 'macos-latest' && matrix.python-version == '3.10'", false},
		{"or", "matrix.os == 'macos-latest' || matrix.os == 'ubuntu-latest'", true},
		{"not", "!(matrix.os == 'macos-latest')", true},
		{"parens", "(matrix.os == 'ubuntu-latest')", true},
		{"runner context", "runner.os == 'Linux'", true},
		{"env context", "env.CI == 'true'", true},
		{"unknown ref is empty", "matrix.arch == ''", true},
		{"bare ref truthy", "matrix.os", true},
		{"bare unknown ref falsy", "matrix.arch", false},
		{"string literal truthy", "'anything'", true},
		{"wrapped expression", "${{ matrix.os == 'ubuntu-latest' }}", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compiled, err := Parse(tt.src)
			require.NoError(t, err)

			got, err := compiled.Eval(testContext())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", ""},
		{"single equals", "matrix.os = 'x'"},
		{"single ampersand", "a & b"},
		{"single pipe", "a | b"},
		{"unterminated string", "matrix.os == 'x"},
		{"unbalanced paren", "(matrix.os == 'x'"},
		{"unknown function", "sometimes()"},
		{"trailing garbage", "matrix.os == 'x' matrix.os"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			assert.Error(t, err)
		})
	}
}

func TestStatusFunctions(t *testing.T) {
	tests := []struct {
		src    string
		status workflow.Status
		want   bool
	}{
		{"success()", workflow.StatusSuccess, true},
		{"success()", workflow.StatusFailure, false},
		{"failure()", workflow.StatusFailure, true},
		{"failure()", workflow.StatusSuccess, false},
		{"cancelled()", workflow.StatusCancelled, true},
		{"cancelled()", workflow.StatusSuccess, false},
		{"always()", workflow.StatusFailure, true},
		{"always()", workflow.StatusCancelled, true},
		{"!success()", workflow.StatusFailure, true},
	}

	for _, tt := range tests {
		t.Run(tt.src+"/"+string(tt.status), func(t *testing.T) {
			ctx := testContext()
			ctx.Job = tt.status

			compiled, err := Parse(tt.src)
			require.NoError(t, err)
			assert.True(t, compiled.UsesStatusFunc())

			got, err := compiled.Eval(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateEmptyConditionFollowsJobStatus(t *testing.T) {
	ctx := testContext()

	run, err := Evaluate("", ctx)
	require.NoError(t, err)
	assert.True(t, run)

	ctx.Job = workflow.StatusFailure
	run, err = Evaluate("", ctx)
	require.NoError(t, err)
	assert.False(t, run)
}

func TestEvaluateImplicitSuccessConjunct(t *testing.T) {
	ctx := testContext()
	ctx.Job = workflow.StatusFailure

	// A plain condition does not run once the job is failing, even if
	// the condition itself holds.
	run, err := Evaluate("matrix.os == 'ubuntu-latest'", ctx)
	require.NoError(t, err)
	assert.False(t, run)

	// A status function stands alone.
	run, err = Evaluate("failure()", ctx)
	require.NoError(t, err)
	assert.True(t, run)

	run, err = Evaluate("always()", ctx)
	require.NoError(t, err)
	assert.True(t, run)
}

func TestEvaluateOSGate(t *testing.T) {
	ctx := testContext()

	run, err := Evaluate("matrix.os == 'ubuntu-latest'", ctx)
	require.NoError(t, err)
	assert.True(t, run)

	run, err = Evaluate("matrix.os == 'macos-latest'", ctx)
	require.NoError(t, err)
	assert.False(t, run)
}

func TestRunnerOSFromLabel(t *testing.T) {
	assert.Equal(t, "Linux", RunnerOSFromLabel("ubuntu-latest"))
	assert.Equal(t, "macOS", RunnerOSFromLabel("macos-latest"))
	assert.Equal(t, "Windows", RunnerOSFromLabel("windows-2022"))
	assert.Equal(t, "custom-runner", RunnerOSFromLabel("custom-runner"))
}
