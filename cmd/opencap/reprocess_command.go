package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"opencap/internal/config"
	"opencap/internal/ledger"
	"opencap/internal/manifest"
	"opencap/internal/processing"
	"opencap/internal/publish"
	"opencap/internal/reprocess"
	"opencap/internal/trials"
	"opencap/internal/workspace"
)

// runFlags holds the processing and batch overrides shared by reprocess and
// process.
type runFlags struct {
	poseDetector string
	resolution   string
	cameras      []string
	deleteLocal  bool
	noPublish    bool
	stopOnError  bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.poseDetector, "pose-detector", "", "Pose detector (OpenPose or hrnet)")
	cmd.Flags().StringVar(&f.resolution, "resolution", "", "OpenPose resolution (default, 1x736, 1x736_2scales, 1x1008_4scales)")
	cmd.Flags().StringSliceVar(&f.cameras, "cameras", nil, "Cameras to use (names or all_available)")
	cmd.Flags().BoolVar(&f.deleteLocal, "delete-local", false, "Remove the local session folder after processing")
	cmd.Flags().BoolVar(&f.noPublish, "no-publish", false, "Process without uploading results")
	cmd.Flags().BoolVar(&f.stopOnError, "stop-on-error", false, "Stop the run at the first trial failure")
}

// apply overlays changed flags onto a copy of cfg.
func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) *config.Config {
	out := *cfg
	out.Processing.Cameras = append([]string(nil), cfg.Processing.Cameras...)
	flags := cmd.Flags()
	if flags.Changed("pose-detector") {
		out.Processing.PoseDetector = strings.TrimSpace(f.poseDetector)
	}
	if flags.Changed("resolution") {
		out.Processing.Resolution = strings.TrimSpace(f.resolution)
	}
	if flags.Changed("cameras") {
		out.Processing.Cameras = f.cameras
	}
	if flags.Changed("delete-local") {
		out.Batch.DeleteLocalFolder = f.deleteLocal
	}
	if flags.Changed("no-publish") {
		out.Publish.Enabled = !f.noPublish
	}
	if flags.Changed("stop-on-error") {
		out.Batch.ContinueOnError = !f.stopOnError
	}
	return &out
}

func newReprocessCommand(ctx *commandContext) *cobra.Command {
	var (
		flags        runFlags
		manifestPath string
		group        string
		calib        string
		static       string
		dynamic      string
	)

	cmd := &cobra.Command{
		Use:   "reprocess [SESSION_ID...]",
		Short: "Reprocess sessions and publish their results",
		Long: `Reprocess one or more sessions. Each session's calibration, static and
dynamic trials are processed in that order with the same settings.

Trial selectors (--calib, --static, --dynamic) accept auto, skip, or explicit
values. Explicit values are only allowed when a single session is targeted.
--dynamic accepts trial names and the activity codes DJ, LS, DC, TH and C9.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := collectSessions(args, manifestPath, group)
			if err != nil {
				return err
			}
			overrides := trials.Overrides{
				Calibration: trials.ParseSelector(calib),
				Static:      trials.ParseSelector(static),
				Dynamic:     trials.ParseSelector(dynamic),
			}
			return runBatch(cmd, ctx, &flags, sessions, overrides)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&manifestPath, "manifest", "", "YAML manifest of session groups")
	cmd.Flags().StringVar(&group, "group", "", "Manifest group to process")
	cmd.Flags().StringVar(&calib, "calib", "auto", "Calibration trial: auto, skip, or a trial name/id")
	cmd.Flags().StringVar(&static, "static", "auto", "Static trial: auto, skip, or a trial name/id")
	cmd.Flags().StringVar(&dynamic, "dynamic", "auto", "Dynamic trials: auto, skip, or comma separated names/activity codes")
	return cmd
}

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var (
		flags runFlags
		names []string
	)

	cmd := &cobra.Command{
		Use:   "process SESSION_ID --trial NAME...",
		Short: "Process named dynamic trials of one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(names) == 0 {
				return fmt.Errorf("at least one --trial is required")
			}
			overrides := trials.Overrides{
				Calibration: trials.Skip(),
				Static:      trials.Skip(),
				Dynamic:     trials.Explicit(names...),
			}
			return runBatch(cmd, ctx, &flags, []string{strings.TrimSpace(args[0])}, overrides)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringSliceVarP(&names, "trial", "t", nil, "Dynamic trial name or activity code (repeatable)")
	return cmd
}

// collectSessions merges positional session ids with a manifest group,
// dropping duplicates while keeping first-seen order.
func collectSessions(args []string, manifestPath, group string) ([]string, error) {
	ids := make([]string, 0, len(args))
	for _, arg := range args {
		ids = append(ids, strings.TrimSpace(arg))
	}
	manifestPath = strings.TrimSpace(manifestPath)
	group = strings.TrimSpace(group)
	switch {
	case manifestPath != "" && group == "":
		return nil, fmt.Errorf("--manifest requires --group")
	case manifestPath == "" && group != "":
		return nil, fmt.Errorf("--group requires --manifest")
	case manifestPath != "":
		path, err := config.ExpandPath(manifestPath)
		if err != nil {
			return nil, fmt.Errorf("resolve manifest path: %w", err)
		}
		m, err := manifest.Load(path)
		if err != nil {
			return nil, err
		}
		g, err := m.Group(group)
		if err != nil {
			return nil, err
		}
		ids = append(ids, g.IDs()...)
	}

	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no sessions given; pass session ids or --manifest with --group")
	}
	return out, nil
}

func runBatch(cmd *cobra.Command, ctx *commandContext, flags *runFlags, sessions []string, overrides trials.Overrides) error {
	base, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	cfg := flags.apply(cmd, base)
	conf, err := processing.NewConfiguration(cfg)
	if err != nil {
		return err
	}
	req := reprocess.Request{
		Sessions:        sessions,
		Overrides:       overrides,
		Processing:      conf,
		Publish:         cfg.Publish.Enabled,
		ContinueOnError: cfg.Batch.ContinueOnError,
	}
	// Reject bad requests before building clients or touching the ledger.
	if err := req.Validate(); err != nil {
		return err
	}

	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}
	defer ctx.closeLogger()
	client, err := ctx.apiClient(logger)
	if err != nil {
		return err
	}
	runner, err := processing.NewCommandRunner(cfg.Processing, processing.WithLogger(logger))
	if err != nil {
		return err
	}
	layout := workspace.New(cfg.Paths.DataDir)

	opts := []reprocess.Option{
		reprocess.WithLogger(logger),
		reprocess.WithPublisher(publish.NewFromConfig(cfg, client, logger)),
	}
	if cfg.Batch.DeleteLocalFolder {
		archiver, err := ctx.archiver(cmd.Context(), logger)
		if err != nil {
			return err
		}
		if archiver != nil {
			opts = append(opts, reprocess.WithArchiver(archiver))
		}
	}

	return ctx.withLedger(func(store *ledger.Store) error {
		opts = append(opts, reprocess.WithLedger(store))
		orch := reprocess.New(trials.NewResolver(client), runner, layout, opts...)
		summary, runErr := orch.Run(cmd.Context(), req)
		if summary.RunID != "" {
			printSummary(cmd.OutOrStdout(), summary)
		}
		return runErr
	})
}

func printSummary(out io.Writer, summary reprocess.Summary) {
	rows := make([][]string, 0)
	for _, session := range summary.Sessions {
		for _, t := range session.Trials {
			status := "ok"
			if t.Err != nil {
				status = "failed"
			}
			rows = append(rows, []string{
				session.SessionID,
				t.Trial.Name,
				string(t.Trial.Kind),
				status,
				fmt.Sprintf("%d", t.Uploads),
				formatDuration(t.Duration),
			})
		}
	}
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable(
			[]string{"Session", "Trial", "Type", "Status", "Uploads", "Duration"},
			rows, 4, 5,
		))
	}
	for _, session := range summary.Sessions {
		if session.Removed {
			line := fmt.Sprintf("Removed local folder for %s", session.SessionID)
			if session.ArchiveKey != "" {
				line += fmt.Sprintf(" (archived to %s)", session.ArchiveKey)
			}
			fmt.Fprintln(out, line)
		}
	}
	state := ""
	if summary.Canceled {
		state = " (canceled)"
	}
	fmt.Fprintf(out, "Run %s: %d succeeded, %d failed%s\n", summary.RunID, summary.Succeeded(), summary.Failed(), state)
}
