package testsupport

import (
	"context"
	"testing"

	"foundry/internal/config"
	"foundry/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// AddTarget enqueues a crawl target for tests using the provided store.
func AddTarget(t testing.TB, store *queue.Store, url string) int64 {
	t.Helper()

	id, err := store.AddTarget(context.Background(), url)
	if err != nil {
		t.Fatalf("store.AddTarget: %v", err)
	}
	return id
}

// AddContent enqueues raw content for tests using the provided store.
func AddContent(t testing.TB, store *queue.Store, targetID int64, url, rawText string) int64 {
	t.Helper()

	id, err := store.AddContent(context.Background(), targetID, url, rawText)
	if err != nil {
		t.Fatalf("store.AddContent: %v", err)
	}
	return id
}
