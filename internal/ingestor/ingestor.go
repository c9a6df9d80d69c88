package ingestor

import (
	"context"
	"fmt"
	"log/slog"

	"foundry/internal/fetch"
	"foundry/internal/logging"
	"foundry/internal/queue"
	"foundry/internal/services"
)

// Fetcher retrieves a page and extracts its readable text.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (fetch.Result, error)
}

// Ingestor is the fetch stage: it claims pending crawl targets, retrieves
// their content, and enqueues the raw text for the processing stage.
type Ingestor struct {
	store   *queue.Store
	fetcher Fetcher
	logger  *slog.Logger
}

// New constructs the fetch stage handler.
func New(store *queue.Store, fetcher Fetcher, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Ingestor{store: store, fetcher: fetcher, logger: logger}
}

// Name identifies the stage in logs and process arguments.
func (i *Ingestor) Name() string { return "ingestor" }

// RunOnce claims one pending target and fetches it. A fetch failure marks the
// target failed and counts as handled work; only queue errors propagate.
func (i *Ingestor) RunOnce(ctx context.Context) (bool, error) {
	target, err := i.store.ClaimNextTarget(ctx)
	if err != nil {
		return false, fmt.Errorf("claim target: %w", err)
	}
	if target == nil {
		return false, nil
	}

	itemCtx := services.WithItemID(ctx, target.ID)
	logger := logging.WithContext(itemCtx, i.logger).With(logging.String(logging.FieldURL, target.URL))
	logger.Info("fetching target")

	result, err := i.fetcher.Fetch(itemCtx, target.URL)
	if err != nil {
		wrapped := services.Wrap(services.ErrFetch, i.Name(), "fetch", "retrieve target content", err)
		logger.Error("fetch failed", logging.Error(wrapped))
		if statusErr := i.store.SetTargetStatus(itemCtx, target.ID, queue.StatusFailed); statusErr != nil {
			return false, fmt.Errorf("mark target failed: %w", statusErr)
		}
		return true, nil
	}

	contentID, err := i.store.AddContent(itemCtx, target.ID, target.URL, result.Text)
	if err != nil {
		return false, fmt.Errorf("enqueue content: %w", err)
	}
	if err := i.store.SetTargetStatus(itemCtx, target.ID, queue.StatusCompleted); err != nil {
		return false, fmt.Errorf("mark target completed: %w", err)
	}

	logger.Info("target fetched",
		logging.Int64("content_id", contentID),
		logging.Int("text_bytes", len(result.Text)),
	)
	return true, nil
}
