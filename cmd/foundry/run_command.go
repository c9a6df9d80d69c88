package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"foundry/internal/api"
	"foundry/internal/config"
	"foundry/internal/fetch"
	"foundry/internal/ingestor"
	"foundry/internal/knowledge"
	"foundry/internal/logging"
	"foundry/internal/processor"
	"foundry/internal/services/ollama"
	"foundry/internal/stage"
)

const (
	serviceIngestor  = "ingestor"
	serviceProcessor = "processor"
	serviceAPI       = "api"
)

func stageServiceNames() []string {
	return []string{serviceIngestor, serviceProcessor, serviceAPI}
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:       "run <service>",
		Short:     "Run a single pipeline service in the foreground",
		Args:      cobra.ExactArgs(1),
		ValidArgs: stageServiceNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			service := args[0]
			logger, err := logging.NewFromConfig(cfg, service)
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}
			logger = logging.NewComponentLogger(logger, service)

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			switch service {
			case serviceIngestor:
				return runIngestor(runCtx, ctx, cfg, logger)
			case serviceProcessor:
				return runProcessor(runCtx, ctx, cfg, logger)
			case serviceAPI:
				return runAPI(runCtx, ctx, cfg, logger)
			default:
				return fmt.Errorf("unknown service %q (expected one of %v)", service, stageServiceNames())
			}
		},
	}
}

func newOllamaClient(cfg *config.Config) *ollama.Client {
	return ollama.NewClient(ollama.Config{
		Host:            cfg.Ollama.Host,
		GenerationModel: cfg.Ollama.GenerationModel,
		EmbeddingModel:  cfg.Ollama.EmbeddingModel,
		TimeoutSeconds:  cfg.Ollama.TimeoutSeconds,
	})
}

func runIngestor(runCtx context.Context, ctx *commandContext, cfg *config.Config, logger *slog.Logger) error {
	store, err := ctx.openQueue()
	if err != nil {
		return fmt.Errorf("open queue: %w", err)
	}
	defer store.Close()

	handler := ingestor.New(store, fetch.New(cfg), logger)
	interval := time.Duration(cfg.Ingestor.PollIntervalSeconds) * time.Second
	err = stage.NewLoop(handler, interval, logger).Run(runCtx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runProcessor(runCtx context.Context, ctx *commandContext, cfg *config.Config, logger *slog.Logger) error {
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

	controller := knowledge.NewAdmissionController(kstore, cfg.Processor.AnnealingThreshold)
	handler := processor.New(store, newOllamaClient(cfg), controller, logger)
	interval := time.Duration(cfg.Processor.PollIntervalSeconds) * time.Second
	err = stage.NewLoop(handler, interval, logger).Run(runCtx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runAPI(runCtx context.Context, ctx *commandContext, cfg *config.Config, logger *slog.Logger) error {
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

	server := &http.Server{
		Addr:    cfg.API.Bind,
		Handler: api.NewServer(store, kstore, newOllamaClient(cfg), cfg, logger).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening", logging.String("bind", cfg.API.Bind))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-runCtx.Done():
	}

	shutdownTimeout := time.Duration(cfg.API.ShutdownSeconds) * time.Second
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown api server: %w", err)
	}
	return nil
}
