package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"opencap/internal/services"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.dataDir)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
}

func TestTokenSetWritesTokenFile(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"token", "set", "abc123"}, env.configPath)
	if err != nil {
		t.Fatalf("token set: %v", err)
	}
	requireContains(t, out, "Token saved to "+env.tokenFile)
	requireContains(t, out, "takes precedence")

	info, err := os.Stat(env.tokenFile)
	if err != nil {
		t.Fatalf("stat token file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("token file mode = %v, want 0600", perm)
	}
	data, err := os.ReadFile(env.tokenFile)
	if err != nil {
		t.Fatalf("read token file: %v", err)
	}
	requireContains(t, string(data), "abc123")
}

func TestTrialsListsSessionTrials(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"trials", "S"}, env.configPath)
	if err != nil {
		t.Fatalf("trials: %v", err)
	}
	for _, want := range []string{"calibration", "neutral", "static", "C90_L1", "dynamic", "id-dj", "cut 90", "drop jump"} {
		requireContains(t, out, want)
	}

	_, _, err = runCLI(t, []string{"trials", "missing"}, env.configPath)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for unknown session, got %v", err)
	}
}

func TestReprocessRunsTrialsInOrderAndRecordsHistory(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"reprocess", "S", "--dynamic", "C90_L1"}, env.configPath)
	if err != nil {
		t.Fatalf("reprocess: %v", err)
	}
	requireContains(t, out, "3 succeeded, 0 failed")
	runID := strings.TrimSuffix(strings.Fields(out[strings.LastIndex(out, "Run "):])[1], ":")

	calls := env.processingCalls(t)
	if len(calls) != 3 {
		t.Fatalf("expected 3 processing calls, got %d: %v", len(calls), calls)
	}
	for i, name := range []string{"calibration", "neutral", "C90_L1"} {
		requireContains(t, calls[i], "--trial-name "+name+" ")
		requireContains(t, calls[i], "--pose-detector OpenPose --resolution 1x736 --cameras all_available")
	}

	out, _, err = runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "succeeded")
	requireContains(t, out, "S")

	out, _, err = runCLI(t, []string{"history", "--run", runID}, env.configPath)
	if err != nil {
		t.Fatalf("history --run: %v", err)
	}
	requireContains(t, out, "C90_L1")
	requireContains(t, out, "pose_detector=OpenPose")
}

func TestReprocessRejectsExplicitSelectorsForManySessions(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"reprocess", "S", "T", "--calib", "calibration"}, env.configPath)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if hits := env.apiHits.Load(); hits != 0 {
		t.Fatalf("expected no API calls, got %d", hits)
	}
	if calls := env.processingCalls(t); len(calls) != 0 {
		t.Fatalf("expected no processing calls, got %v", calls)
	}
}

func TestProcessRunsOnlyNamedDynamicTrials(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"process", "S", "--trial", "DJ"}, env.configPath)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	requireContains(t, out, "1 succeeded")
	calls := env.processingCalls(t)
	if len(calls) != 1 {
		t.Fatalf("expected one processing call, got %v", calls)
	}
	requireContains(t, calls[0], "--trial-name DJ_2 ")
	requireContains(t, calls[0], "--trial-type dynamic")
}

func TestReprocessFromManifestGroup(t *testing.T) {
	env := setupCLITestEnv(t)
	manifestPath := filepath.Join(env.baseDir, "sessions.yaml")
	content := "groups:\n  pilot:\n    sessions:\n      - S\n      - id: S\n        label: duplicate\n"
	if err := os.WriteFile(manifestPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	out, _, err := runCLI(t, []string{"reprocess", "--manifest", manifestPath, "--group", "pilot", "--dynamic", "skip", "--static", "skip"}, env.configPath)
	if err != nil {
		t.Fatalf("reprocess manifest: %v", err)
	}
	requireContains(t, out, "1 succeeded")
	calls := env.processingCalls(t)
	if len(calls) != 1 {
		t.Fatalf("expected calibration only, got %v", calls)
	}
	requireContains(t, calls[0], "--trial-type calibration")

	if _, _, err := runCLI(t, []string{"reprocess", "--group", "pilot"}, env.configPath); err == nil {
		t.Fatal("expected --group without --manifest to fail")
	}
}

func TestCheckReportsResults(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"check"}, env.configPath)
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	requireContains(t, out, "[OK]")
	if strings.Contains(out, "\x1b[") {
		t.Fatal("expected no colour codes when writing to a buffer")
	}
}
