package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"opencap/internal/auth"
	"opencap/internal/services"
)

// Pinger is the API reachability probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CheckAPI verifies the OpenCap server answers and accepts the token.
func CheckAPI(ctx context.Context, baseURL string, api Pinger) Result {
	const name = "OpenCap API"

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err := api.Ping(checkCtx)
	switch {
	case err == nil:
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (reachable)", baseURL)}
	case errors.Is(err, services.ErrAuth):
		return Result{Name: name, Detail: "auth failed (invalid or missing token)"}
	default:
		return Result{Name: name, Detail: summarizeAPIError(err)}
	}
}

// CheckToken verifies a token can be resolved without contacting the server.
func CheckToken(ctx context.Context, tokens auth.TokenProvider) Result {
	const name = "API token"
	if _, err := tokens.Token(ctx); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: "configured"}
}

// CheckCommand verifies an executable is on PATH (or an existing path).
func CheckCommand(name, command string) Result {
	cmd := strings.TrimSpace(command)
	if cmd == "" {
		return Result{Name: name, Detail: "command not configured"}
	}
	resolved, err := exec.LookPath(cmd)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("binary %q not found", cmd)}
	}
	return Result{Name: name, Passed: true, Detail: resolved}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

func summarizeAPIError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (API unreachable)"
	}
	return err.Error()
}
