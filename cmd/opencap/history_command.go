package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"opencap/internal/ledger"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		limit int
		runID string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded batch runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return ctx.withLedger(func(store *ledger.Store) error {
				if id := strings.TrimSpace(runID); id != "" {
					return printRunDetail(cmd, out, store, id)
				}
				runs, err := store.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					rows = append(rows, []string{
						shortID(run.ID),
						formatTime(run.StartedAt),
						string(run.Status),
						strings.Join(run.Sessions, ", "),
						strconv.Itoa(run.TrialsSucceeded),
						strconv.Itoa(run.TrialsFailed),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Run", "Started", "Status", "Sessions", "OK", "Failed"},
					rows, 4, 5,
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")
	cmd.Flags().StringVar(&runID, "run", "", "Show trial outcomes for a run (id or unique prefix)")
	return cmd
}

func printRunDetail(cmd *cobra.Command, out io.Writer, store *ledger.Store, id string) error {
	run, err := store.GetRun(cmd.Context(), id)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found", id)
	}
	fmt.Fprintf(out, "Run:      %s\n", run.ID)
	fmt.Fprintf(out, "Status:   %s\n", run.Status)
	fmt.Fprintf(out, "Started:  %s\n", formatTime(run.StartedAt))
	if run.FinishedAt != nil {
		fmt.Fprintf(out, "Finished: %s\n", formatTime(*run.FinishedAt))
	}
	fmt.Fprintf(out, "Sessions: %s\n", strings.Join(run.Sessions, ", "))
	if len(run.Settings) > 0 {
		keys := make([]string, 0, len(run.Settings))
		for k := range run.Settings {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+run.Settings[k])
		}
		fmt.Fprintf(out, "Settings: %s\n", strings.Join(parts, " "))
	}
	if run.Error != "" {
		fmt.Fprintf(out, "Error:    %s\n", run.Error)
	}

	entries, err := store.RunTrials(cmd.Context(), run.ID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		detail := e.ErrorMessage
		if e.ErrorKind != "" {
			detail = e.ErrorKind + ": " + detail
		}
		rows = append(rows, []string{
			e.SessionID,
			e.TrialName,
			e.Kind,
			string(e.Status),
			strconv.Itoa(e.Uploads),
			formatDuration(e.Duration()),
			detail,
		})
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderTable(
		[]string{"Session", "Trial", "Type", "Status", "Uploads", "Duration", "Error"},
		rows, 4, 5,
	))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
