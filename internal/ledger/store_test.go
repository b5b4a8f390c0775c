package ledger_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"opencap/internal/ledger"
	"opencap/internal/testsupport"
)

func mustOpen(t *testing.T) *ledger.Store {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func TestRunRoundTrip(t *testing.T) {
	store := mustOpen(t)
	ctx := context.Background()

	run, err := store.StartRun(ctx, []string{"S1", "S2"}, map[string]string{"pose_detector": "hrnet"})
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if run.ID == "" || run.Status != ledger.RunRunning {
		t.Fatalf("unexpected run %+v", run)
	}

	ok, err := store.StartTrial(ctx, run.ID, "S1", "t1", "calibration", "calibration")
	if err != nil {
		t.Fatalf("StartTrial: %v", err)
	}
	if err := store.FinishTrial(ctx, ok, ledger.TrialSucceeded, 0, "", ""); err != nil {
		t.Fatalf("FinishTrial: %v", err)
	}
	bad, err := store.StartTrial(ctx, run.ID, "S1", "t2", "C90_L1", "dynamic")
	if err != nil {
		t.Fatalf("StartTrial: %v", err)
	}
	if err := store.FinishTrial(ctx, bad, ledger.TrialFailed, 0, "processing", "exit status 1"); err != nil {
		t.Fatalf("FinishTrial: %v", err)
	}
	if err := store.FinishRun(ctx, run.ID, ledger.RunFailed, "1 trial failed"); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	got, err := store.GetRun(ctx, run.ID[:8])
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got == nil || got.ID != run.ID {
		t.Fatalf("expected run %s, got %+v", run.ID, got)
	}
	if got.Status != ledger.RunFailed || got.Error != "1 trial failed" || got.FinishedAt == nil {
		t.Fatalf("unexpected final run %+v", got)
	}
	if !reflect.DeepEqual(got.Sessions, []string{"S1", "S2"}) || got.Settings["pose_detector"] != "hrnet" {
		t.Fatalf("unexpected run payload %+v", got)
	}
	if got.TrialsSucceeded != 1 || got.TrialsFailed != 1 {
		t.Fatalf("unexpected counts %d/%d", got.TrialsSucceeded, got.TrialsFailed)
	}

	trialRuns, err := store.RunTrials(ctx, run.ID)
	if err != nil {
		t.Fatalf("RunTrials: %v", err)
	}
	if len(trialRuns) != 2 {
		t.Fatalf("expected 2 trial runs, got %d", len(trialRuns))
	}
	if trialRuns[0].TrialName != "calibration" || trialRuns[0].Status != ledger.TrialSucceeded {
		t.Fatalf("unexpected first trial run %+v", trialRuns[0])
	}
	if trialRuns[1].ErrorKind != "processing" || trialRuns[1].ErrorMessage != "exit status 1" || trialRuns[1].FinishedAt == nil {
		t.Fatalf("unexpected second trial run %+v", trialRuns[1])
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	store := mustOpen(t)
	ctx := context.Background()

	var ids []string
	for _, session := range []string{"A", "B", "C"} {
		run, err := store.StartRun(ctx, []string{session}, nil)
		if err != nil {
			t.Fatalf("StartRun: %v", err)
		}
		ids = append(ids, run.ID)
	}

	runs, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != ids[2] || runs[1].ID != ids[1] {
		t.Fatalf("unexpected order: %+v", runs)
	}
	if runs[0].Settings != nil {
		t.Fatalf("expected nil settings, got %v", runs[0].Settings)
	}

	all, err := store.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(all))
	}
}

func TestGetRunMissing(t *testing.T) {
	store := mustOpen(t)
	run, err := store.GetRun(context.Background(), "nope")
	if err != nil || run != nil {
		t.Fatalf("expected nil run, got %+v %v", run, err)
	}
}

func TestFinishUnknownRunFails(t *testing.T) {
	store := mustOpen(t)
	if err := store.FinishRun(context.Background(), "missing", ledger.RunSucceeded, ""); err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	run, err := first.StartRun(context.Background(), []string{"S"}, nil)
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	first.Close()

	second, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	got, err := second.GetRun(context.Background(), run.ID)
	if err != nil || got == nil {
		t.Fatalf("expected run after reopen, got %+v %v", got, err)
	}
}

func TestOpenRejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 42"); err != nil {
		t.Fatalf("set user_version: %v", err)
	}
	db.Close()

	if _, err := ledger.OpenPath(path); !errors.Is(err, ledger.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
