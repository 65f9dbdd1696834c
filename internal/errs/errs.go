// Package errs defines the typed error hierarchy shared by every core
// subsystem (spec.md §7): recoverable errors that the TNR Executor
// folds into a transaction's logs, and fatal errors that unwind through
// the Controller to the CLI.
package errs

import (
	"errors"
	"strings"
)

// Sentinels for errors.Is against the recoverable error kinds. Each
// concrete error type below wraps one of these so callers can test
// "is this kind of failure" without caring about the message text.
var (
	// ErrValidation marks a diff rejected by the bounded-scope policy.
	ErrValidation = errors.New("validation failed")
	// ErrApply marks a VCS-level apply rejection.
	ErrApply = errors.New("git apply failed")
	// ErrGate marks a static or targeted gate reporting non-zero.
	ErrGate = errors.New("gate failed")
	// ErrRegression marks mu worsening under require_mu_nonworsening.
	ErrRegression = errors.New("mu worsened")
	// ErrExternal marks malformed language-model output.
	ErrExternal = errors.New("external payload malformed")
	// ErrVcsFatal marks a missing or corrupt underlying VCS tool/tree.
	ErrVcsFatal = errors.New("vcs fatal error")
)

// ValidationError is raised when a proposed diff fails
// internal/diffmodel's bounded-scope policy. Recoverable: the TNR
// Executor tries the next proposal.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation failed: " + e.Reason }
func (e *ValidationError) Unwrap() error { return ErrValidation }

// ApplyError is raised when the VCS Gateway's native apply (and its
// manual fallback) both reject a diff. Recoverable: revert and
// continue to the next proposal.
type ApplyError struct {
	Reason string
}

func (e *ApplyError) Error() string { return "git apply failed: " + e.Reason }
func (e *ApplyError) Unwrap() error { return ErrApply }

// GateFailure is raised when the static or targeted-tests gate reports
// a non-zero outcome. Recoverable.
type GateFailure struct {
	Gate   string // "static" | "targeted_tests"
	Output string
}

func (e *GateFailure) Error() string { return e.Gate + " gate failed: " + e.Output }
func (e *GateFailure) Unwrap() error { return ErrGate }

// RegressionError is raised when mu worsens under
// require_mu_nonworsening. Recoverable: revert and try the next
// proposal.
type RegressionError struct {
	MuPre, MuPost int
}

func (e *RegressionError) Error() string {
	return "mu worsened"
}
func (e *RegressionError) Unwrap() error { return ErrRegression }

// ExternalError marks malformed language-model output: non-JSON or
// missing required fields. Surfaced to the caller; the core never
// auto-retries it.
type ExternalError struct {
	Stage  string // "investigator" | "planner" | "proposer"
	Detail string
}

func (e *ExternalError) Error() string { return e.Stage + ": " + e.Detail }
func (e *ExternalError) Unwrap() error { return ErrExternal }

// VcsFatalError marks the underlying VCS tool being missing or the
// working tree being corrupt. Fatal: unwinds through the Controller to
// the CLI.
type VcsFatalError struct {
	Op     string
	Reason string
}

func (e *VcsFatalError) Error() string { return "vcs fatal during " + e.Op + ": " + e.Reason }
func (e *VcsFatalError) Unwrap() error { return ErrVcsFatal }

// recoverableMarkers are the log substrings the Controller looks for
// per spec.md §4.8's retry policy before re-entering the TNR Executor.
var recoverableMarkers = []string{
	"validation failed",
	"git apply failed",
	"gate failed",
	"mu worsened",
}

// IsRecoverable reports whether a TransactionResult log line matches
// one of the retry policy's recoverable markers.
func IsRecoverable(log string) bool {
	for _, marker := range recoverableMarkers {
		if strings.Contains(log, marker) {
			return true
		}
	}
	return false
}
