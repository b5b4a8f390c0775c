package preflight_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"opencap/internal/auth"
	"opencap/internal/preflight"
	"opencap/internal/services"
	"opencap/internal/testsupport"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestCheckDirectoryAccess_OK(t *testing.T) {
	result := preflight.CheckDirectoryAccess("test", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := preflight.CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed || !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("expected failure for missing dir, got %+v", result)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := preflight.CheckDirectoryAccess("test", f); result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckCommand(t *testing.T) {
	if result := preflight.CheckCommand("sh", "sh"); !result.Passed {
		t.Fatalf("expected sh on PATH, got %+v", result)
	}
	if result := preflight.CheckCommand("missing", "definitely-not-a-real-binary"); result.Passed {
		t.Fatal("expected failure for missing binary")
	}
	if result := preflight.CheckCommand("blank", " "); result.Passed || result.Detail != "command not configured" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestCheckAPI(t *testing.T) {
	if result := preflight.CheckAPI(context.Background(), "http://x/", pinger{}); !result.Passed {
		t.Fatalf("expected pass, got %+v", result)
	}
	authErr := services.Wrap(services.ErrAuth, "opencapapi", "GET sessions/", "status 401", nil)
	if result := preflight.CheckAPI(context.Background(), "http://x/", pinger{err: authErr}); result.Passed || !strings.Contains(result.Detail, "auth failed") {
		t.Fatalf("unexpected result %+v", result)
	}
	if result := preflight.CheckAPI(context.Background(), "http://x/", pinger{err: context.DeadlineExceeded}); !strings.Contains(result.Detail, "timed out") {
		t.Fatalf("unexpected result %+v", result)
	}
	if result := preflight.CheckAPI(context.Background(), "http://x/", pinger{err: errors.New("refused")}); result.Detail != "refused" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestRunAll(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := preflight.RunAll(context.Background(), cfg, auth.NewProvider(cfg), pinger{})
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d: %+v", len(results), results)
	}
	if failed := preflight.Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures %+v", failed)
	}

	cfg.API.Token = ""
	results = preflight.RunAll(context.Background(), cfg, auth.NewProvider(cfg), nil)
	failed := preflight.Failed(results)
	if len(failed) != 1 || failed[0].Name != "API token" {
		t.Fatalf("expected token failure, got %+v", failed)
	}
}
