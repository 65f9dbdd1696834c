package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorsWrapSentinels(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"validation", &ValidationError{Reason: "too many files"}, ErrValidation},
		{"apply", &ApplyError{Reason: "patch does not apply"}, ErrApply},
		{"gate", &GateFailure{Gate: "static", Output: "build failed"}, ErrGate},
		{"regression", &RegressionError{MuPre: 1, MuPost: 4}, ErrRegression},
		{"external", &ExternalError{Stage: "planner", Detail: "missing field"}, ErrExternal},
		{"vcsfatal", &VcsFatalError{Op: "checkpoint", Reason: "not a git repo"}, ErrVcsFatal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Error(t, tc.err)
			assert.True(t, errors.Is(tc.err, tc.sentinel))
			assert.NotEmpty(t, tc.err.Error())
		})
	}
}

func TestIsRecoverable(t *testing.T) {
	assert.True(t, IsRecoverable("validation failed: too many files"))
	assert.True(t, IsRecoverable("git apply failed: patch does not apply"))
	assert.True(t, IsRecoverable("static gate failed: compile error"))
	assert.True(t, IsRecoverable("targeted_tests gate failed: 2 failures"))
	assert.True(t, IsRecoverable("mu worsened: 4 > 1"))
	assert.False(t, IsRecoverable("vcs fatal during checkpoint: not a git repo"))
	assert.False(t, IsRecoverable(""))
}
