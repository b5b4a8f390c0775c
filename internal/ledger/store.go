package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"opencap/internal/config"
)

// Store records batch runs and per-trial outcomes in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// Open opens the ledger at the configured location.
func Open(cfg *config.Config) (*Store, error) {
	return OpenPath(cfg.LedgerPath())
}

// OpenPath opens or creates a ledger database at path.
func OpenPath(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure ledger directory: %w", err)
	}
	// Pragmas in the DSN apply to every pooled connection.
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// StartRun records a new run in the running state and returns it.
func (s *Store) StartRun(ctx context.Context, sessions []string, settings map[string]string) (*Run, error) {
	sessionsJSON, err := json.Marshal(sessions)
	if err != nil {
		return nil, fmt.Errorf("marshal sessions: %w", err)
	}
	var settingsJSON any
	if len(settings) > 0 {
		data, err := json.Marshal(settings)
		if err != nil {
			return nil, fmt.Errorf("marshal settings: %w", err)
		}
		settingsJSON = string(data)
	}

	run := &Run{
		ID:        uuid.NewString(),
		Status:    RunRunning,
		Sessions:  append([]string(nil), sessions...),
		Settings:  settings,
		StartedAt: time.Now().UTC(),
	}
	if _, err := s.exec(ctx,
		`INSERT INTO runs (id, status, sessions_json, settings_json, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Status, string(sessionsJSON), settingsJSON, formatTime(run.StartedAt),
	); err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// FinishRun stores the final status of a run.
func (s *Store) FinishRun(ctx context.Context, runID string, status RunStatus, message string) error {
	res, err := s.exec(ctx,
		`UPDATE runs SET status = ?, error_message = ?, finished_at = ? WHERE id = ?`,
		status, nullableString(message), formatTime(time.Now().UTC()), runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return expectOneRow(res, "run "+runID)
}

// StartTrial records a trial entering processing and returns its row id.
func (s *Store) StartTrial(ctx context.Context, runID, sessionID, trialID, trialName, kind string) (int64, error) {
	res, err := s.exec(ctx,
		`INSERT INTO trial_runs (run_id, session_id, trial_id, trial_name, kind, status, started_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, sessionID, trialID, trialName, kind, TrialRunning, formatTime(time.Now().UTC()),
	)
	if err != nil {
		return 0, fmt.Errorf("insert trial run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// FinishTrial stores a trial outcome. errKind and message are empty on success.
func (s *Store) FinishTrial(ctx context.Context, id int64, status TrialStatus, uploads int, errKind, message string) error {
	res, err := s.exec(ctx,
		`UPDATE trial_runs SET status = ?, uploads = ?, error_kind = ?, error_message = ?, finished_at = ? WHERE id = ?`,
		status, uploads, nullableString(errKind), nullableString(message), formatTime(time.Now().UTC()), id,
	)
	if err != nil {
		return fmt.Errorf("finish trial run: %w", err)
	}
	return expectOneRow(res, fmt.Sprintf("trial run %d", id))
}

const runColumns = `r.id, r.status, r.sessions_json, r.settings_json, r.error_message, r.started_at, r.finished_at,
    (SELECT COUNT(1) FROM trial_runs t WHERE t.run_id = r.id AND t.status = 'succeeded'),
    (SELECT COUNT(1) FROM trial_runs t WHERE t.run_id = r.id AND t.status = 'failed')`

// ListRuns returns the most recent runs first. A limit <= 0 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs r ORDER BY r.started_at DESC, r.rowid DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetRun fetches a run by id, or a prefix of it. It returns nil when nothing
// matches.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs r WHERE r.id LIKE ? ORDER BY r.started_at DESC LIMIT 2`,
		strings.TrimSpace(id)+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	defer rows.Close()

	var found []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("run id prefix %q is ambiguous", id)
	}
}

// RunTrials lists the trial outcomes of a run in processing order.
func (s *Store) RunTrials(ctx context.Context, runID string) ([]TrialRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, session_id, trial_id, trial_name, kind, status, error_kind, error_message,
                uploads, started_at, finished_at
         FROM trial_runs WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list trial runs: %w", err)
	}
	defer rows.Close()

	var out []TrialRun
	for rows.Next() {
		var (
			tr         TrialRun
			errKind    sql.NullString
			errMessage sql.NullString
			startedAt  string
			finishedAt sql.NullString
		)
		if err := rows.Scan(&tr.ID, &tr.RunID, &tr.SessionID, &tr.TrialID, &tr.TrialName, &tr.Kind, &tr.Status,
			&errKind, &errMessage, &tr.Uploads, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan trial run: %w", err)
		}
		tr.ErrorKind = errKind.String
		tr.ErrorMessage = errMessage.String
		tr.StartedAt = parseTime(startedAt)
		tr.FinishedAt = parseNullableTime(finishedAt)
		out = append(out, tr)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run          Run
		sessionsJSON string
		settingsJSON sql.NullString
		errMessage   sql.NullString
		startedAt    string
		finishedAt   sql.NullString
	)
	if err := row.Scan(&run.ID, &run.Status, &sessionsJSON, &settingsJSON, &errMessage, &startedAt, &finishedAt,
		&run.TrialsSucceeded, &run.TrialsFailed); err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	if err := json.Unmarshal([]byte(sessionsJSON), &run.Sessions); err != nil {
		return nil, fmt.Errorf("decode run sessions: %w", err)
	}
	if settingsJSON.Valid && settingsJSON.String != "" {
		if err := json.Unmarshal([]byte(settingsJSON.String), &run.Settings); err != nil {
			return nil, fmt.Errorf("decode run settings: %w", err)
		}
	}
	run.Error = errMessage.String
	run.StartedAt = parseTime(startedAt)
	run.FinishedAt = parseNullableTime(finishedAt)
	return &run, nil
}

func expectOneRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s not found", what)
	}
	return nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// timeLayout keeps a fixed-width fraction so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid || value.String == "" {
		return nil
	}
	t := parseTime(value.String)
	return &t
}
