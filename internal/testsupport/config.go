package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"opencap/internal/config"
)

// ConfigOption customizes a configuration built by NewConfig. root is the
// per-test temporary directory holding the data, log and token paths.
type ConfigOption func(t testing.TB, root string, cfg *config.Config)

// NewConfig returns the default configuration with every path moved under a
// fresh temporary directory and a fixed API token.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(root, "data")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	cfg.API.BaseURL = "http://127.0.0.1:0/"
	cfg.API.Token = "test-token"
	cfg.API.TokenFile = filepath.Join(root, "token.json")

	for _, opt := range opts {
		opt(t, root, &cfg)
	}
	return &cfg
}

// WithAPIBaseURL points the configuration at a fake API server.
func WithAPIBaseURL(url string) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) {
		cfg.API.BaseURL = url
	}
}

func WithToken(token string) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) {
		cfg.API.Token = token
	}
}

// WithStubbedBinaries installs executables that exit 0 under root/bin and
// puts that directory first on PATH. Without names the processing command is
// stubbed. Tests using it must not run in parallel.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(t testing.TB, root string, cfg *config.Config) {
		t.Helper()
		if len(names) == 0 {
			names = []string{cfg.Processing.Command}
		}
		bin := filepath.Join(root, "bin")
		for _, name := range names {
			WriteFile(t, filepath.Join(bin, name), "#!/bin/sh\nexit 0\n")
			if err := os.Chmod(filepath.Join(bin, name), 0o755); err != nil {
				t.Fatalf("chmod stub %s: %v", name, err)
			}
		}
		t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}
