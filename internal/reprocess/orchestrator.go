package reprocess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"opencap/internal/ledger"
	"opencap/internal/logging"
	"opencap/internal/processing"
	"opencap/internal/publish"
	"opencap/internal/services"
	"opencap/internal/trials"
	"opencap/internal/workspace"
)

// TrialSource lists the trials recorded for a session.
type TrialSource interface {
	Trials(ctx context.Context, sessionID string) ([]trials.Trial, error)
}

// Publisher uploads the outputs of a processed trial.
type Publisher interface {
	PublishTrial(ctx context.Context, result publish.TrialResult) ([]publish.Upload, error)
}

// Ledger records runs and trial outcomes.
type Ledger interface {
	StartRun(ctx context.Context, sessions []string, settings map[string]string) (*ledger.Run, error)
	FinishRun(ctx context.Context, runID string, status ledger.RunStatus, message string) error
	StartTrial(ctx context.Context, runID, sessionID, trialID, trialName, kind string) (int64, error)
	FinishTrial(ctx context.Context, id int64, status ledger.TrialStatus, uploads int, errKind, message string) error
}

// Archiver preserves a session directory before it is removed.
type Archiver interface {
	ArchiveSession(ctx context.Context, sessionID, dir string) (string, error)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPublisher sets the publisher used when a request enables publishing.
func WithPublisher(p Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithLedger records runs in l.
func WithLedger(l Ledger) Option {
	return func(o *Orchestrator) { o.ledger = l }
}

// WithArchiver archives session folders before local deletion.
func WithArchiver(a Archiver) Option {
	return func(o *Orchestrator) { o.archiver = a }
}

// WithPicker overrides how auto calibration and static trials are chosen.
func WithPicker(p trials.Picker) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.policy.Picker = p
		}
	}
}

// WithLogger sets the orchestrator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logging.NewComponentLogger(logger, "reprocess")
	}
}

// Orchestrator drives sessions through trial resolution, selection,
// processing and publishing, one trial at a time.
type Orchestrator struct {
	source    TrialSource
	runner    processing.Runner
	layout    workspace.Layout
	policy    trials.Policy
	publisher Publisher
	ledger    Ledger
	archiver  Archiver
	logger    *slog.Logger
}

// New constructs an Orchestrator.
func New(source TrialSource, runner processing.Runner, layout workspace.Layout, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		source: source,
		runner: runner,
		layout: layout,
		policy: trials.Policy{Picker: trials.LatestPicker{}},
		logger: logging.NewComponentLogger(logging.NewNop(), "reprocess"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run processes every session in req. Request and selection problems abort
// the run; trial failures are collected and joined into the returned error.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Summary, error) {
	if err := req.Validate(); err != nil {
		return Summary{}, err
	}
	if req.Publish && o.publisher == nil {
		return Summary{}, services.Wrap(services.ErrConfiguration, "reprocess", "validate", "publishing enabled but no publisher configured", nil)
	}

	runID, err := o.startRun(ctx, req)
	if err != nil {
		return Summary{}, err
	}
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, o.logger)
	logger.Info("batch run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.Strings("sessions", req.Sessions),
		logging.String("pose_detector", string(req.Processing.PoseDetector)),
		logging.String("resolution", string(req.Processing.Resolution)),
		logging.String("cameras", req.Processing.Cameras.String()),
		logging.Bool("publish", req.Publish),
	)

	summary := Summary{RunID: runID}
	var (
		fatal    error
		failures []error
	)
	for _, sessionID := range req.Sessions {
		if ctx.Err() != nil {
			break
		}
		session, errs, err := o.runSession(ctx, sessionID, req)
		summary.Sessions = append(summary.Sessions, session)
		failures = append(failures, errs...)
		if err != nil {
			fatal = err
			break
		}
		if len(errs) > 0 && !req.ContinueOnError {
			break
		}
	}

	status := ledger.RunSucceeded
	switch {
	case ctx.Err() != nil:
		summary.Canceled = true
		status = ledger.RunCanceled
		if !errors.Is(errors.Join(failures...), ctx.Err()) {
			failures = append(failures, ctx.Err())
		}
	case fatal != nil || len(failures) > 0:
		status = ledger.RunFailed
	}
	runErr := errors.Join(append([]error{fatal}, failures...)...)
	o.finishRun(context.WithoutCancel(ctx), runID, status, runErr)

	logger.Info("batch run finished",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String("status", string(status)),
		logging.Int("trials_succeeded", summary.Succeeded()),
		logging.Int("trials_failed", summary.Failed()),
	)
	return summary, runErr
}

func (o *Orchestrator) runSession(ctx context.Context, sessionID string, req Request) (SessionSummary, []error, error) {
	ctx = services.WithSessionID(ctx, sessionID)
	logger := logging.WithContext(ctx, o.logger)
	summary := SessionSummary{SessionID: sessionID}

	list, err := o.source.Trials(ctx, sessionID)
	if err != nil {
		return summary, nil, err
	}
	selection, err := o.policy.Select(sessionID, list, req.Overrides)
	if err != nil {
		return summary, nil, err
	}
	if selection.Len() == 0 {
		logger.Warn("no trials selected",
			logging.String(logging.FieldEventType, "empty_selection"),
			logging.String(logging.FieldImpact, "session skipped"),
		)
		return summary, nil, nil
	}

	lock, err := o.layout.Lock(sessionID)
	if err != nil {
		return summary, nil, err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("session unlock failed", logging.Error(err))
		}
	}()

	logger.Info("session started",
		logging.String(logging.FieldEventType, "session_start"),
		logging.Int("trials", selection.Len()),
	)

	var failures []error
	for _, trial := range selection.Ordered() {
		if ctx.Err() != nil {
			return summary, failures, nil
		}
		outcome := o.runTrial(ctx, sessionID, trial, req)
		summary.Trials = append(summary.Trials, outcome)
		if outcome.Err != nil {
			failures = append(failures, outcome.Err)
			if !req.ContinueOnError {
				return summary, failures, nil
			}
		}
	}

	if req.Processing.DeleteLocalFolder {
		if len(failures) > 0 {
			logging.WarnWithContext(logger, "keeping session folder after trial failures", "cleanup_skipped",
				logging.String(logging.FieldImpact, "local outputs retained for inspection"),
				logging.Int("failed_trials", len(failures)),
			)
			return summary, failures, nil
		}
		if err := o.cleanup(ctx, &summary); err != nil {
			failures = append(failures, err)
		}
	}
	return summary, failures, nil
}

func (o *Orchestrator) runTrial(ctx context.Context, sessionID string, trial trials.Trial, req Request) TrialOutcome {
	ctx = services.WithTrial(ctx, trial.ID, trial.Name)
	logger := logging.WithContext(ctx, o.logger)
	runID, _ := services.RunIDFromContext(ctx)

	entryID := o.startTrial(ctx, runID, sessionID, trial)
	logger.Info("trial started",
		logging.String(logging.FieldEventType, "trial_start"),
		logging.String("kind", string(trial.Kind)),
	)

	start := time.Now()
	outcome := TrialOutcome{Trial: trial}
	job := processing.Job{
		SessionID: sessionID,
		TrialID:   trial.ID,
		TrialName: trial.Name,
		Kind:      trial.Kind,
		DataDir:   o.layout.DataDir,
	}
	err := o.runner.Process(ctx, job, req.Processing)
	if err == nil && req.Publish {
		var uploads []publish.Upload
		uploads, err = o.publisher.PublishTrial(ctx, publish.TrialResult{
			SessionID:     sessionID,
			Trial:         trial,
			Configuration: req.Processing,
		})
		outcome.Uploads = len(uploads)
	}
	outcome.Duration = time.Since(start)

	if err != nil {
		outcome.Err = fmt.Errorf("session %s trial %s: %w", sessionID, trial.Name, err)
		o.finishTrial(context.WithoutCancel(ctx), entryID, ledger.TrialFailed, outcome.Uploads, err)
		logger.Error("trial failed",
			logging.String(logging.FieldEventType, "trial_failed"),
			logging.String("error_kind", services.Kind(err)),
			logging.Duration("duration", outcome.Duration),
			logging.Error(err),
		)
		return outcome
	}

	o.finishTrial(context.WithoutCancel(ctx), entryID, ledger.TrialSucceeded, outcome.Uploads, nil)
	logger.Info("trial completed",
		logging.String(logging.FieldEventType, "trial_complete"),
		logging.Int("uploads", outcome.Uploads),
		logging.Duration("duration", outcome.Duration),
	)
	return outcome
}

func (o *Orchestrator) cleanup(ctx context.Context, summary *SessionSummary) error {
	logger := logging.WithContext(ctx, o.logger)
	if o.archiver != nil {
		key, err := o.archiver.ArchiveSession(ctx, summary.SessionID, o.layout.SessionDir(summary.SessionID))
		if err != nil {
			logging.WarnWithContext(logger, "session archive failed", "archive_failed",
				logging.String(logging.FieldImpact, "local folder retained"),
				logging.Error(err),
			)
			return fmt.Errorf("session %s archive: %w", summary.SessionID, err)
		}
		summary.ArchiveKey = key
	}
	if err := o.layout.RemoveSession(summary.SessionID); err != nil {
		return fmt.Errorf("session %s cleanup: %w", summary.SessionID, err)
	}
	summary.Removed = true
	logger.Info("session folder removed", logging.String("archive_key", summary.ArchiveKey))
	return nil
}

func (o *Orchestrator) startRun(ctx context.Context, req Request) (string, error) {
	if o.ledger == nil {
		return uuid.NewString(), nil
	}
	run, err := o.ledger.StartRun(ctx, req.Sessions, req.settings())
	if err != nil {
		return "", fmt.Errorf("record run start: %w", err)
	}
	return run.ID, nil
}

func (o *Orchestrator) finishRun(ctx context.Context, runID string, status ledger.RunStatus, runErr error) {
	if o.ledger == nil {
		return
	}
	message := ""
	if runErr != nil {
		message = firstLine(runErr.Error())
	}
	if err := o.ledger.FinishRun(ctx, runID, status, message); err != nil {
		o.logger.Warn("record run finish failed", logging.String(logging.FieldRunID, runID), logging.Error(err))
	}
}

func (o *Orchestrator) startTrial(ctx context.Context, runID, sessionID string, trial trials.Trial) int64 {
	if o.ledger == nil {
		return 0
	}
	id, err := o.ledger.StartTrial(ctx, runID, sessionID, trial.ID, trial.Name, string(trial.Kind))
	if err != nil {
		logging.WithContext(ctx, o.logger).Warn("record trial start failed", logging.Error(err))
		return 0
	}
	return id
}

func (o *Orchestrator) finishTrial(ctx context.Context, id int64, status ledger.TrialStatus, uploads int, trialErr error) {
	if o.ledger == nil || id == 0 {
		return
	}
	kind, message := "", ""
	if trialErr != nil {
		kind = services.Kind(trialErr)
		message = trialErr.Error()
	}
	if err := o.ledger.FinishTrial(ctx, id, status, uploads, kind, message); err != nil {
		logging.WithContext(ctx, o.logger).Warn("record trial finish failed", logging.Error(err))
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
