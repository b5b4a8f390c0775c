package preflight

import (
	"context"
	"path/filepath"

	"opencap/internal/auth"
	"opencap/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every check that applies to cfg. api may be nil, in which
// case the server check is skipped.
func RunAll(ctx context.Context, cfg *config.Config, tokens auth.TokenProvider, api Pinger) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckCommand("Processing command", cfg.Processing.Command),
	}
	if dir := cfg.Processing.WorkingDir; dir != "" {
		results = append(results, CheckDirectoryAccess("Processing working directory", filepath.Clean(dir)))
	}
	if tokens != nil {
		results = append(results, CheckToken(ctx, tokens))
	}
	if api != nil {
		results = append(results, CheckAPI(ctx, cfg.API.BaseURL, api))
	}
	return results
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
