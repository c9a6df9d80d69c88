package processor_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"foundry/internal/knowledge"
	"foundry/internal/processor"
	"foundry/internal/queue"
	"foundry/internal/services"
	"foundry/internal/services/ollama"
	"foundry/internal/testsupport"
)

type fakeStructurer struct {
	structured   ollama.Structured
	structureErr error
	vector       []float64
	embedErr     error
	embedInputs  []string
}

func (f *fakeStructurer) Structure(ctx context.Context, rawText, sourceURL string) (ollama.Structured, error) {
	if f.structureErr != nil {
		return ollama.Structured{}, f.structureErr
	}
	return f.structured, nil
}

func (f *fakeStructurer) Embed(ctx context.Context, text string) ([]float64, error) {
	f.embedInputs = append(f.embedInputs, text)
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return f.vector, nil
}

func openKnowledge(t *testing.T) *knowledge.Store {
	t.Helper()
	store, err := knowledge.Open(testsupport.NewConfig(t))
	if err != nil {
		t.Fatalf("knowledge.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRunOnceIdleQueue(t *testing.T) {
	t.Parallel()

	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	controller := knowledge.NewAdmissionController(openKnowledge(t), 0.95)
	handler := processor.New(store, &fakeStructurer{}, controller, nil)

	handled, err := handler.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if handled {
		t.Fatal("expected no work on an empty queue")
	}
}

func TestRunOnceAdmitsStructuredRecord(t *testing.T) {
	t.Parallel()

	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	kstore := openKnowledge(t)
	controller := knowledge.NewAdmissionController(kstore, 0.95)
	ctx := context.Background()

	contentID := testsupport.AddContent(t, store, 0, "https://example.com/a", "raw page text")
	structurer := &fakeStructurer{
		structured: ollama.Structured{Title: "Doc", Summary: "A summary.", Entities: []string{"Alpha"}},
		vector:     []float64{1, 0, 0},
	}
	handler := processor.New(store, structurer, controller, nil)

	handled, err := handler.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !handled {
		t.Fatal("expected content to be handled")
	}

	content, err := store.GetContent(ctx, contentID)
	if err != nil {
		t.Fatalf("GetContent: %v", err)
	}
	if content.Status != queue.StatusProcessed {
		t.Fatalf("content status = %q, want %q", content.Status, queue.StatusProcessed)
	}

	matches, err := kstore.SearchNearest(ctx, []float64{1, 0, 0}, 1)
	if err != nil {
		t.Fatalf("SearchNearest: %v", err)
	}
	if len(matches) != 1 || matches[0].Record.Title != "Doc" {
		t.Fatalf("expected admitted record, got %+v", matches)
	}
}

func TestRunOnceRejectedDuplicateStillProcessed(t *testing.T) {
	t.Parallel()

	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	kstore := openKnowledge(t)
	controller := knowledge.NewAdmissionController(kstore, 0.95)
	ctx := context.Background()

	if _, err := kstore.Insert(ctx, knowledge.Record{
		URL:    "https://example.com/original",
		Title:  "Original",
		Vector: []float64{1, 0, 0},
	}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	contentID := testsupport.AddContent(t, store, 0, "https://example.com/copy", "same text again")
	structurer := &fakeStructurer{
		structured: ollama.Structured{Title: "Copy", Summary: "Same summary."},
		vector:     []float64{1, 0.001, 0},
	}
	handler := processor.New(store, structurer, controller, nil)

	handled, err := handler.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !handled {
		t.Fatal("expected content to be handled")
	}

	content, err := store.GetContent(ctx, contentID)
	if err != nil {
		t.Fatalf("GetContent: %v", err)
	}
	if content.Status != queue.StatusProcessed {
		t.Fatalf("rejected duplicate must still be processed, got %q", content.Status)
	}

	count, err := kstore.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Fatalf("knowledge count = %d, want 1 (duplicate kept out)", count)
	}
}

func TestRunOnceEmbedsSummaryOnly(t *testing.T) {
	t.Parallel()

	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	controller := knowledge.NewAdmissionController(openKnowledge(t), 0.95)
	ctx := context.Background()

	testsupport.AddContent(t, store, 0, "https://example.com/a", "raw page text")
	structurer := &fakeStructurer{
		structured: ollama.Structured{
			Title:    "A Long Headline",
			Summary:  "The distilled summary.",
			Entities: []string{"Alpha", "Beta"},
		},
		vector: []float64{1, 0, 0},
	}
	handler := processor.New(store, structurer, controller, nil)

	if _, err := handler.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(structurer.embedInputs) != 1 {
		t.Fatalf("embed calls = %d, want 1", len(structurer.embedInputs))
	}
	if got := structurer.embedInputs[0]; got != "The distilled summary." {
		t.Fatalf("embedding input = %q, want the summary alone", got)
	}
}

type failingAdmitter struct {
	err error
}

func (f *failingAdmitter) Admit(ctx context.Context, candidate knowledge.Record) (knowledge.Decision, error) {
	return knowledge.Decision{}, f.err
}

func TestRunOnceMarksContentFailedOnAdmitError(t *testing.T) {
	t.Parallel()

	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	contentID := testsupport.AddContent(t, store, 0, "https://example.com/a", "raw text")
	structurer := &fakeStructurer{
		structured: ollama.Structured{Title: "Doc", Summary: "A summary."},
		vector:     []float64{1, 0, 0},
	}
	admitter := &failingAdmitter{err: errors.New("disk I/O error")}

	var captured capturingHandler
	handler := processor.New(store, structurer, admitter, slog.New(&captured))

	handled, err := handler.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !handled {
		t.Fatal("a failed item still counts as handled work")
	}

	content, err := store.GetContent(ctx, contentID)
	if err != nil {
		t.Fatalf("GetContent: %v", err)
	}
	if content.Status != queue.StatusFailed {
		t.Fatalf("content status = %q, want %q", content.Status, queue.StatusFailed)
	}

	logged := captured.errorText(t, "admission failed")
	if !strings.Contains(logged, services.ErrDatabase.Error()) {
		t.Fatalf("admit failure logged as %q, want the %q marker", logged, services.ErrDatabase.Error())
	}
	if strings.Contains(logged, services.ErrStructuring.Error()) {
		t.Fatalf("admit failure must not carry the structuring marker: %q", logged)
	}
}

// capturingHandler records log records so tests can assert on error
// classification.
type capturingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *capturingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *capturingHandler) Handle(_ context.Context, record slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, record.Clone())
	return nil
}

func (h *capturingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h *capturingHandler) WithGroup(string) slog.Handler { return h }

func (h *capturingHandler) errorText(t *testing.T, message string) string {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, record := range h.records {
		if record.Message != message {
			continue
		}
		var text string
		record.Attrs(func(attr slog.Attr) bool {
			if attr.Key == "error" {
				text = attr.Value.String()
				return false
			}
			return true
		})
		return text
	}
	t.Fatalf("no %q log record captured", message)
	return ""
}

func TestRunOnceMarksContentFailedOnModelError(t *testing.T) {
	t.Parallel()

	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	controller := knowledge.NewAdmissionController(openKnowledge(t), 0.95)
	ctx := context.Background()

	contentID := testsupport.AddContent(t, store, 0, "https://example.com/a", "raw text")
	structurer := &fakeStructurer{structureErr: errors.New("model unavailable")}
	handler := processor.New(store, structurer, controller, nil)

	handled, err := handler.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !handled {
		t.Fatal("a failed item still counts as handled work")
	}

	content, err := store.GetContent(ctx, contentID)
	if err != nil {
		t.Fatalf("GetContent: %v", err)
	}
	if content.Status != queue.StatusFailed {
		t.Fatalf("content status = %q, want %q", content.Status, queue.StatusFailed)
	}
}

func TestRunOnceMarksContentFailedOnEmbedError(t *testing.T) {
	t.Parallel()

	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	controller := knowledge.NewAdmissionController(openKnowledge(t), 0.95)
	ctx := context.Background()

	contentID := testsupport.AddContent(t, store, 0, "https://example.com/a", "raw text")
	structurer := &fakeStructurer{
		structured: ollama.Structured{Title: "Doc", Summary: "A summary."},
		embedErr:   errors.New("embedding model missing"),
	}
	handler := processor.New(store, structurer, controller, nil)

	handled, err := handler.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !handled {
		t.Fatal("a failed item still counts as handled work")
	}

	content, err := store.GetContent(ctx, contentID)
	if err != nil {
		t.Fatalf("GetContent: %v", err)
	}
	if content.Status != queue.StatusFailed {
		t.Fatalf("content status = %q, want %q", content.Status, queue.StatusFailed)
	}
}
