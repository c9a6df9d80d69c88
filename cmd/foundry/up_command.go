package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"foundry/internal/logging"
	"foundry/internal/supervisor"
)

func newUpCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Run the full pipeline under the supervisor",
		Long: `Launches the ingestor, processor, and api services as child processes and
keeps them alive. A service that dies is restarted on the next monitor tick.
Interrupting the supervisor shuts the services down gracefully.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			logger, err := logging.NewFromConfig(cfg, "supervisor")
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}
			logger = logging.NewComponentLogger(logger, "supervisor")

			executable, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}

			specs := make([]supervisor.ServiceSpec, 0, len(stageServiceNames()))
			for _, name := range stageServiceNames() {
				args := []string{"run", name}
				if configPath := ctx.configFilePath(); configPath != "" {
					args = append(args, "--config", configPath)
				}
				specs = append(specs, supervisor.ServiceSpec{Name: name, Args: args})
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			runner := &supervisor.ExecRunner{Executable: executable}
			return supervisor.New(cfg, runner, specs, logger).Run(runCtx)
		},
	}
}
