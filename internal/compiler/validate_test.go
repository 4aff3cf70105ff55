package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codesOf(errs []ValidationError) []string {
	codes := make([]string, len(errs))
	for i, e := range errs {
		codes[i] = e.Code
	}
	return codes
}

func TestValidateFixtureClean(t *testing.T) {
	wf := loadFixture(t)
	assert.Empty(t, Validate(wf))
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		code string
	}{
		{
			name: "no triggers",
			doc:  "name: t\njobs:\n  j:\n    runs-on: x\n    steps:\n      - run: a\n",
			code: ErrNoTriggers,
		},
		{
			name: "no jobs",
			doc:  "name: t\non: push\njobs: {}\n",
			code: ErrNoJobs,
		},
		{
			name: "no runner",
			doc:  "name: t\non: push\njobs:\n  j:\n    steps:\n      - run: a\n",
			code: ErrJobNoRunner,
		},
		{
			name: "unknown needs",
			doc:  "name: t\non: push\njobs:\n  j:\n    runs-on: x\n    needs: ghost\n    steps:\n      - run: a\n",
			code: ErrUnknownNeeds,
		},
		{
			name: "no steps",
			doc:  "name: t\non: push\njobs:\n  j:\n    runs-on: x\n    steps: []\n",
			code: ErrJobNoSteps,
		},
		{
			name: "step without action",
			doc:  "name: t\non: push\njobs:\n  j:\n    runs-on: x\n    steps:\n      - name: hollow\n",
			code: ErrStepNoAction,
		},
		{
			name: "step with both actions",
			doc:  "name: t\non: push\njobs:\n  j:\n    runs-on: x\n    steps:\n      - run: a\n        uses: b@v1\n",
			code: ErrStepBothActions,
		},
		{
			name: "duplicate step id",
			doc:  "name: t\non: push\njobs:\n  j:\n    runs-on: x\n    steps:\n      - id: s\n        run: a\n      - id: s\n        run: b\n",
			code: ErrDuplicateStepID,
		},
		{
			name: "empty matrix axis",
			doc:  "name: t\non: push\njobs:\n  j:\n    runs-on: x\n    strategy:\n      matrix:\n        os: []\n    steps:\n      - run: a\n",
			code: ErrMatrixAxisEmpty,
		},
		{
			name: "bad condition",
			doc:  "name: t\non: push\njobs:\n  j:\n    runs-on: x\n    steps:\n      - run: a\n        if: \"matrix.os = 'x'\"\n",
			code: ErrBadCondition,
		},
		{
			name: "needs cycle",
			doc:  "name: t\non: push\njobs:\n  a:\n    runs-on: x\n    needs: b\n    steps:\n      - run: a\n  b:\n    runs-on: x\n    needs: a\n    steps:\n      - run: b\n",
			code: ErrNeedsCycle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf, err := Parse([]byte(tt.doc), "t.yml")
			require.NoError(t, err)

			errs := Validate(wf)
			require.NotEmpty(t, errs)
			assert.Contains(t, codesOf(errs), tt.code)
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	doc := "name: t\njobs:\n  j:\n    steps: []\n"
	wf, err := Parse([]byte(doc), "t.yml")
	require.NoError(t, err)

	codes := codesOf(Validate(wf))
	assert.Contains(t, codes, ErrNoTriggers)
	assert.Contains(t, codes, ErrJobNoRunner)
	assert.Contains(t, codes, ErrJobNoSteps)
}

func TestValidationErrorMessage(t *testing.T) {
	err := ValidationError{Field: "jobs.j.needs", Message: "boom", Code: ErrUnknownNeeds, Line: 7}
	assert.Equal(t, "[E103] line 7: jobs.j.needs: boom", err.Error())

	err.Line = 0
	assert.Equal(t, "[E103] jobs.j.needs: boom", err.Error())
}
