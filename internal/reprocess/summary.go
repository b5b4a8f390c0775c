package reprocess

import (
	"time"

	"opencap/internal/trials"
)

// TrialOutcome is the result of processing one trial.
type TrialOutcome struct {
	Trial    trials.Trial
	Uploads  int
	Duration time.Duration
	Err      error
}

// SessionSummary collects the outcomes for one session.
type SessionSummary struct {
	SessionID  string
	Trials     []TrialOutcome
	ArchiveKey string
	Removed    bool
}

// Summary describes a finished run.
type Summary struct {
	RunID    string
	Sessions []SessionSummary
	Canceled bool
}

// Succeeded counts trials that finished without error.
func (s Summary) Succeeded() int {
	n := 0
	for _, session := range s.Sessions {
		for _, t := range session.Trials {
			if t.Err == nil {
				n++
			}
		}
	}
	return n
}

// Failed counts trials that returned an error.
func (s Summary) Failed() int {
	n := 0
	for _, session := range s.Sessions {
		for _, t := range session.Trials {
			if t.Err != nil {
				n++
			}
		}
	}
	return n
}
