package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInitCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Recreate the queue and knowledge databases and seed crawl targets",
		Long: `Destructively recreates both databases, dropping all queued work and
admitted knowledge, then enqueues the seed targets from the configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("init drops all pipeline state; re-run with --force to confirm")
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := ctx.openQueue()
			if err != nil {
				return fmt.Errorf("open queue: %w", err)
			}
			defer store.Close()

			if err := store.Reinitialize(cmd.Context(), cfg.Ingestor.SeedTargets); err != nil {
				return fmt.Errorf("reinitialize queue: %w", err)
			}

			kstore, err := ctx.openKnowledge()
			if err != nil {
				return fmt.Errorf("open knowledge store: %w", err)
			}
			defer kstore.Close()

			if err := kstore.Reinitialize(cmd.Context()); err != nil {
				return fmt.Errorf("reinitialize knowledge store: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Recreated %s and %s\n", store.Path(), kstore.Path())
			fmt.Fprintf(out, "Seeded %d crawl target(s)\n", len(cfg.Ingestor.SeedTargets))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Confirm destruction of existing pipeline state")
	return cmd
}
