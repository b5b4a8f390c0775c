package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"opencap/internal/logging"
	"opencap/internal/trials"
)

func newTrialsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "trials SESSION_ID",
		Short: "List a session's trials with their type, activity and creation time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient(logging.NewNop())
			if err != nil {
				return err
			}
			sessionID := strings.TrimSpace(args[0])
			list, err := trials.NewResolver(client).Trials(cmd.Context(), sessionID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintf(out, "Session %s has no trials\n", sessionID)
				return nil
			}
			rows := make([][]string, 0, len(list))
			for _, t := range list {
				activity := "-"
				if a, ok := trials.ActivityOf(t.Name); ok && t.Kind == trials.KindDynamic {
					activity = a.Name
				}
				rows = append(rows, []string{t.Name, string(t.Kind), activity, formatTime(t.CreatedAt), t.ID})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Name", "Type", "Activity", "Created", "ID"},
				rows,
			))
			return nil
		},
	}
}
