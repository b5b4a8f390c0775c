package ledger

import "time"

// RunStatus is the lifecycle state of a batch run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunCanceled  RunStatus = "canceled"
)

// TrialStatus is the outcome of one trial within a run.
type TrialStatus string

const (
	TrialRunning   TrialStatus = "running"
	TrialSucceeded TrialStatus = "succeeded"
	TrialFailed    TrialStatus = "failed"
)

// Run is a recorded batch invocation.
type Run struct {
	ID         string
	Status     RunStatus
	Sessions   []string
	Settings   map[string]string
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time

	// Aggregated from trial_runs by ListRuns and GetRun.
	TrialsSucceeded int
	TrialsFailed    int
}

// TrialRun records processing of one trial.
type TrialRun struct {
	ID           int64
	RunID        string
	SessionID    string
	TrialID      string
	TrialName    string
	Kind         string
	Status       TrialStatus
	ErrorKind    string
	ErrorMessage string
	Uploads      int
	StartedAt    time.Time
	FinishedAt   *time.Time
}

// Duration returns the elapsed time, or zero while still running.
func (t TrialRun) Duration() time.Duration {
	if t.FinishedAt == nil {
		return 0
	}
	return t.FinishedAt.Sub(t.StartedAt)
}
