package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <url> [url...]",
		Short: "Enqueue crawl targets",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openQueue()
			if err != nil {
				return fmt.Errorf("open queue: %w", err)
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			for _, url := range args {
				id, err := store.AddTarget(cmd.Context(), url)
				if err != nil {
					return fmt.Errorf("add target %q: %w", url, err)
				}
				fmt.Fprintf(out, "Enqueued target %d: %s\n", id, url)
			}
			return nil
		},
	}
}
