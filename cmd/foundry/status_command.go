package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"foundry/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue and knowledge store state",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openQueue()
			if err != nil {
				return fmt.Errorf("open queue: %w", err)
			}
			defer store.Close()

			kstore, err := ctx.openKnowledge()
			if err != nil {
				return fmt.Errorf("open knowledge store: %w", err)
			}
			defer kstore.Close()

			summary, err := store.Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("queue health: %w", err)
			}
			records, err := kstore.Count(cmd.Context())
			if err != nil {
				return fmt.Errorf("count knowledge records: %w", err)
			}

			rows := make([][]string, 0, 8)
			rows = append(rows, statusRows("target", summary.Targets)...)
			rows = append(rows, statusRows("content", summary.Content)...)
			rows = append(rows, []string{"knowledge", "admitted", strconv.Itoa(records)})

			pretty := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
			out := renderTable(
				[]string{"Kind", "Status", "Count"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight},
				pretty,
			)
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func statusRows(kind string, counts map[queue.Status]int) [][]string {
	statuses := make([]string, 0, len(counts))
	for status := range counts {
		statuses = append(statuses, string(status))
	}
	sort.Strings(statuses)

	rows := make([][]string, 0, len(statuses)+1)
	for _, status := range statuses {
		rows = append(rows, []string{kind, status, strconv.Itoa(counts[queue.Status(status)])})
	}
	if len(rows) == 0 {
		return append(rows, []string{kind, "-", "0"})
	}

	backlog := 0
	for status, count := range counts {
		if !queue.IsTerminal(status) {
			backlog += count
		}
	}
	return append(rows, []string{kind, "backlog", strconv.Itoa(backlog)})
}
