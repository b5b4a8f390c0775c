package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"opencap/internal/logging"
	"opencap/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify directories, credentials, API access and the processing command",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			tokens, err := ctx.tokens()
			if err != nil {
				return err
			}
			client, err := ctx.apiClient(logging.NewNop())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			results := preflight.RunAll(cmd.Context(), cfg, tokens, client)
			for _, r := range results {
				fmt.Fprintln(out, statusLine(r.Name, r.Passed, r.Detail, colorize))
			}
			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d of %d checks failed", len(failed), len(results))
			}
			return nil
		},
	}
}
