package processing

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"opencap/internal/config"
	"opencap/internal/logging"
	"opencap/internal/services"
	"opencap/internal/trials"
)

const outputTailLines = 20

// Job identifies one trial to process.
type Job struct {
	SessionID string
	TrialID   string
	TrialName string
	Kind      trials.Kind
	DataDir   string
}

// Runner runs the processing entry point for a single trial.
type Runner interface {
	Process(ctx context.Context, job Job, conf Configuration) error
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, dir, binary string, args []string, onOutput func(string)) error
}

// Option configures a CommandRunner.
type Option func(*CommandRunner)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(r *CommandRunner) {
		if exec != nil {
			r.exec = exec
		}
	}
}

// WithLogger routes command output to logger at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(r *CommandRunner) {
		r.logger = logging.NewComponentLogger(logger, "processing")
	}
}

// CommandRunner invokes the configured external processing command.
type CommandRunner struct {
	command    string
	baseArgs   []string
	workingDir string
	exec       Executor
	logger     *slog.Logger
}

// NewCommandRunner builds a runner from the processing section of cfg.
func NewCommandRunner(cfg config.Processing, opts ...Option) (*CommandRunner, error) {
	command := strings.TrimSpace(cfg.Command)
	if command == "" {
		return nil, services.Wrap(services.ErrConfiguration, "processing", "new runner", "processing command required", nil)
	}
	r := &CommandRunner{
		command:    command,
		baseArgs:   append([]string(nil), cfg.Args...),
		workingDir: cfg.WorkingDir,
		exec:       commandExecutor{},
		logger:     logging.NewComponentLogger(nil, "processing"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Process runs the command for job and waits for it to exit.
func (r *CommandRunner) Process(ctx context.Context, job Job, conf Configuration) error {
	args := append(append([]string(nil), r.baseArgs...), Args(job, conf)...)
	logger := logging.WithContext(ctx, r.logger)
	logger.Info("processing trial",
		logging.String("trial_type", string(job.Kind)),
		logging.String("pose_detector", string(conf.PoseDetector)),
		logging.String("cameras", conf.Cameras.String()),
	)

	tail := newTail(outputTailLines)
	err := r.exec.Run(ctx, r.workingDir, r.command, args, func(line string) {
		tail.add(line)
		logger.Debug(line)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		message := fmt.Sprintf("trial %s (%s)", job.TrialName, job.TrialID)
		if lines := tail.String(); lines != "" {
			message += ": " + lines
		}
		return services.Wrap(services.ErrProcessing, "processing", "run command", message, err)
	}
	return nil
}

// Args maps a job and configuration to the processing command's flags.
func Args(job Job, conf Configuration) []string {
	args := []string{
		"--session-id", job.SessionID,
		"--trial-name", job.TrialName,
		"--trial-id", job.TrialID,
		"--trial-type", string(job.Kind),
		"--data-dir", job.DataDir,
		"--pose-detector", string(conf.PoseDetector),
		"--resolution", string(conf.Resolution),
		"--cameras", conf.Cameras.String(),
	}
	if conf.GenericFolderNames {
		args = append(args, "--generic-folder-names")
	}
	return args
}

type tail struct {
	mu    sync.Mutex
	lines []string
	max   int
}

func newTail(limit int) *tail {
	return &tail{max: limit}
}

func (t *tail) add(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *tail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, " | ")
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, dir, binary string, args []string, onOutput func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.Dir = dir
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once

	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			if onOutput != nil {
				onOutput(scanner.Text())
			}
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	wg.Add(2)
	go scan(stdout)
	go scan(stderr)

	wg.Wait()
	if scanErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return fmt.Errorf("scan output: %w", scanErr)
	}

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("exit status %d", exitErr.ExitCode())
		}
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}
