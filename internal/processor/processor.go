package processor

import (
	"context"
	"fmt"
	"log/slog"

	"foundry/internal/knowledge"
	"foundry/internal/logging"
	"foundry/internal/queue"
	"foundry/internal/services"
	"foundry/internal/services/ollama"
)

// Structurer turns raw text into a structured record and embeds it.
type Structurer interface {
	Structure(ctx context.Context, rawText, sourceURL string) (ollama.Structured, error)
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Admitter gates candidate records into the knowledge store.
type Admitter interface {
	Admit(ctx context.Context, candidate knowledge.Record) (knowledge.Decision, error)
}

// Processor is the processing stage: it claims pending raw content,
// structures and embeds it, and submits the result to admission control.
type Processor struct {
	store      *queue.Store
	structurer Structurer
	admitter   Admitter
	logger     *slog.Logger
}

// New constructs the processing stage handler.
func New(store *queue.Store, structurer Structurer, admitter Admitter, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Processor{store: store, structurer: structurer, admitter: admitter, logger: logger}
}

// Name identifies the stage in logs and process arguments.
func (p *Processor) Name() string { return "processor" }

// RunOnce claims one pending content item and runs it through structuring,
// embedding, and admission control. A model failure marks the item failed; a
// rejected near-duplicate still marks it processed. Both count as handled
// work. Only queue errors propagate.
func (p *Processor) RunOnce(ctx context.Context) (bool, error) {
	content, err := p.store.ClaimNextContent(ctx)
	if err != nil {
		return false, fmt.Errorf("claim content: %w", err)
	}
	if content == nil {
		return false, nil
	}

	itemCtx := services.WithItemID(ctx, content.ID)
	logger := logging.WithContext(itemCtx, p.logger).With(logging.String(logging.FieldURL, content.URL))
	logger.Info("processing content")

	record, err := p.buildRecord(itemCtx, content)
	if err != nil {
		wrapped := services.Wrap(services.ErrStructuring, p.Name(), "structure", "distill raw content", err)
		logger.Error("structuring failed", logging.Error(wrapped))
		if statusErr := p.store.SetContentStatus(itemCtx, content.ID, queue.StatusFailed); statusErr != nil {
			return false, fmt.Errorf("mark content failed: %w", statusErr)
		}
		return true, nil
	}

	decision, err := p.admitter.Admit(itemCtx, record)
	if err != nil {
		wrapped := services.Wrap(services.ErrDatabase, p.Name(), "admit", "evaluate candidate record", err)
		logger.Error("admission failed", logging.Error(wrapped))
		if statusErr := p.store.SetContentStatus(itemCtx, content.ID, queue.StatusFailed); statusErr != nil {
			return false, fmt.Errorf("mark content failed: %w", statusErr)
		}
		return true, nil
	}

	if err := p.store.SetContentStatus(itemCtx, content.ID, queue.StatusProcessed); err != nil {
		return false, fmt.Errorf("mark content processed: %w", err)
	}

	if decision.Accepted {
		logger.Info("record admitted",
			logging.String("title", record.Title),
			logging.Int("entities", len(record.Entities)),
		)
	} else {
		attrs := []logging.Attr{logging.Float64("similarity", decision.Similarity)}
		if decision.Nearest != nil {
			attrs = append(attrs, logging.String("nearest_url", decision.Nearest.Record.URL))
		}
		logger.Info("record rejected as near-duplicate", logging.Args(attrs...)...)
	}
	return true, nil
}

func (p *Processor) buildRecord(ctx context.Context, content *queue.Content) (knowledge.Record, error) {
	structured, err := p.structurer.Structure(ctx, content.RawText, content.URL)
	if err != nil {
		return knowledge.Record{}, err
	}

	// Admission control compares summaries: the embedding is computed from
	// the distilled summary alone, so boilerplate differences between copies
	// of the same document do not defeat deduplication.
	vector, err := p.structurer.Embed(ctx, structured.Summary)
	if err != nil {
		return knowledge.Record{}, err
	}

	return knowledge.Record{
		URL:      content.URL,
		Title:    structured.Title,
		Summary:  structured.Summary,
		Entities: structured.Entities,
		Vector:   vector,
	}, nil
}
