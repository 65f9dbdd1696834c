package types

// TransactionResult is the outcome of one TNR Executor attempt (see
// internal/tnr). mu_pre/mu_post follow the spec's dual definition:
// a binary pass/fail indicator when targeted tests gate the attempt,
// or a working-tree churn measure when they don't.
type TransactionResult struct {
	Committed   bool          `json:"committed"`
	AppliedDiff *DiffProposal `json:"applied_diff,omitempty"`
	MuPre       int           `json:"mu_pre"`
	MuPost      int           `json:"mu_post"`
	Logs        []string      `json:"logs,omitempty"`
}
