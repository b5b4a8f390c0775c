package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"opencap/internal/auth"
)

func newTokenCommand(ctx *commandContext) *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the stored API token",
	}
	tokenCmd.AddCommand(newTokenSetCommand(ctx))
	return tokenCmd
}

func newTokenSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set TOKEN",
		Short: "Store the API token in the token file (use - to read stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := strings.TrimSpace(cfg.API.TokenFile)
			if path == "" {
				return fmt.Errorf("api.token_file is not configured")
			}

			token := strings.TrimSpace(args[0])
			if token == "-" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read token from stdin: %w", err)
				}
				token = strings.TrimSpace(line)
			}
			if token == "" {
				return fmt.Errorf("token is empty")
			}

			store := auth.NewFileTokenStore(path)
			if err := store.Save(token); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Token saved to %s\n", store.Path())
			if strings.TrimSpace(cfg.API.Token) != "" {
				fmt.Fprintln(out, "Note: api.token (or OPENCAP_API_TOKEN) is set and takes precedence over the token file.")
			}
			return nil
		},
	}
}
