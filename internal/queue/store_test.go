package queue_test

import (
	"context"
	"errors"
	"testing"

	"foundry/internal/queue"
	"foundry/internal/services"
	"foundry/internal/testsupport"
)

func TestAddTargetIsIdempotent(t *testing.T) {
	t.Parallel()

	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first, err := store.AddTarget(ctx, "https://example.com/a")
	if err != nil {
		t.Fatalf("AddTarget: %v", err)
	}
	second, err := store.AddTarget(ctx, "https://example.com/a")
	if err != nil {
		t.Fatalf("AddTarget repeat: %v", err)
	}
	if first != second {
		t.Fatalf("expected same id for duplicate url, got %d and %d", first, second)
	}

	stats, err := store.TargetStats(ctx)
	if err != nil {
		t.Fatalf("TargetStats: %v", err)
	}
	if stats[queue.StatusPending] != 1 {
		t.Fatalf("expected 1 pending target, got %d", stats[queue.StatusPending])
	}
}

func TestAddTargetRejectsEmptyURL(t *testing.T) {
	t.Parallel()

	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	if _, err := store.AddTarget(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func TestClaimNextTargetMarksActive(t *testing.T) {
	t.Parallel()

	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	id := testsupport.AddTarget(t, store, "https://example.com/a")

	claimed, err := store.ClaimNextTarget(ctx)
	if err != nil {
		t.Fatalf("ClaimNextTarget: %v", err)
	}
	if claimed == nil {
		t.Fatal("expected a claimed target")
	}
	if claimed.ID != id {
		t.Fatalf("claimed id = %d, want %d", claimed.ID, id)
	}
	if claimed.Status != queue.StatusActive {
		t.Fatalf("claimed status = %q, want %q", claimed.Status, queue.StatusActive)
	}

	// The claim is durable: a second poller sees no pending work.
	again, err := store.ClaimNextTarget(ctx)
	if err != nil {
		t.Fatalf("ClaimNextTarget second: %v", err)
	}
	if again != nil {
		t.Fatalf("expected no second claim, got target %d", again.ID)
	}
}

func TestClaimNextTargetNeverReturnsFailedTargets(t *testing.T) {
	t.Parallel()

	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	failedID := testsupport.AddTarget(t, store, "https://example.com/broken")
	if err := store.SetTargetStatus(ctx, failedID, queue.StatusFailed); err != nil {
		t.Fatalf("SetTargetStatus: %v", err)
	}

	// Failed targets are permanently abandoned.
	claimed, err := store.ClaimNextTarget(ctx)
	if err != nil {
		t.Fatalf("ClaimNextTarget: %v", err)
	}
	if claimed != nil {
		t.Fatalf("claimed failed target %d", claimed.ID)
	}

	freshID := testsupport.AddTarget(t, store, "https://example.com/fresh")
	claimed, err = store.ClaimNextTarget(ctx)
	if err != nil {
		t.Fatalf("ClaimNextTarget after enqueue: %v", err)
	}
	if claimed == nil || claimed.ID != freshID {
		t.Fatalf("claimed = %+v, want fresh target %d", claimed, freshID)
	}
}

func TestClaimNextTargetPrefersNeverAttempted(t *testing.T) {
	t.Parallel()

	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	attempted := testsupport.AddTarget(t, store, "https://example.com/attempted")
	fresh := testsupport.AddTarget(t, store, "https://example.com/fresh")

	// Give the first target an attempt timestamp while leaving it pending.
	// Never-attempted work must still win the next claim.
	if err := store.SetTargetStatus(ctx, attempted, queue.StatusPending); err != nil {
		t.Fatalf("SetTargetStatus pending: %v", err)
	}

	claimed, err := store.ClaimNextTarget(ctx)
	if err != nil {
		t.Fatalf("ClaimNextTarget: %v", err)
	}
	if claimed == nil || claimed.ID != fresh {
		t.Fatalf("expected never-attempted target %d first, got %+v", fresh, claimed)
	}
}

func TestClaimNextTargetOrdersByID(t *testing.T) {
	t.Parallel()

	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first := testsupport.AddTarget(t, store, "https://example.com/1")
	testsupport.AddTarget(t, store, "https://example.com/2")

	claimed, err := store.ClaimNextTarget(ctx)
	if err != nil {
		t.Fatalf("ClaimNextTarget: %v", err)
	}
	if claimed == nil || claimed.ID != first {
		t.Fatalf("expected target %d first, got %+v", first, claimed)
	}
}

func TestSetTargetStatusRecordsAttemptTime(t *testing.T) {
	t.Parallel()

	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	id := testsupport.AddTarget(t, store, "https://example.com/a")

	target, err := store.GetTarget(ctx, id)
	if err != nil {
		t.Fatalf("GetTarget: %v", err)
	}
	if target.LastAttemptAt != nil {
		t.Fatal("expected no attempt time before first claim")
	}

	if err := store.SetTargetStatus(ctx, id, queue.StatusCompleted); err != nil {
		t.Fatalf("SetTargetStatus: %v", err)
	}

	target, err = store.GetTarget(ctx, id)
	if err != nil {
		t.Fatalf("GetTarget after update: %v", err)
	}
	if target.Status != queue.StatusCompleted {
		t.Fatalf("status = %q, want %q", target.Status, queue.StatusCompleted)
	}
	if target.LastAttemptAt == nil {
		t.Fatal("expected attempt time after status write")
	}
}

func TestSetTargetStatusValidation(t *testing.T) {
	t.Parallel()

	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	id := testsupport.AddTarget(t, store, "https://example.com/a")

	if err := store.SetTargetStatus(ctx, id, queue.StatusProcessed); err == nil {
		t.Fatal("expected error for content-only status on a target")
	}
	err := store.SetTargetStatus(ctx, id+999, queue.StatusCompleted)
	if !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing id, got %v", err)
	}
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected the not-found marker, got %v", err)
	}
}

func TestAddContentAlwaysInserts(t *testing.T) {
	t.Parallel()

	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	targetID := testsupport.AddTarget(t, store, "https://example.com/a")

	first := testsupport.AddContent(t, store, targetID, "https://example.com/a", "body one")
	second := testsupport.AddContent(t, store, targetID, "https://example.com/a", "body one")
	if first == second {
		t.Fatal("expected distinct rows for repeated content")
	}

	stats, err := store.ContentStats(ctx)
	if err != nil {
		t.Fatalf("ContentStats: %v", err)
	}
	if stats[queue.StatusPending] != 2 {
		t.Fatalf("expected 2 pending content items, got %d", stats[queue.StatusPending])
	}
}

func TestAddContentWithoutTarget(t *testing.T) {
	t.Parallel()

	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	id := testsupport.AddContent(t, store, 0, "https://example.com/manual", "pasted body")

	content, err := store.GetContent(ctx, id)
	if err != nil {
		t.Fatalf("GetContent: %v", err)
	}
	if content == nil {
		t.Fatal("expected content row")
	}
	if content.TargetID != nil {
		t.Fatalf("expected nil target id, got %d", *content.TargetID)
	}
}

func TestClaimNextContentLeavesStatusPending(t *testing.T) {
	t.Parallel()

	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	id := testsupport.AddContent(t, store, 0, "https://example.com/a", "body")

	claimed, err := store.ClaimNextContent(ctx)
	if err != nil {
		t.Fatalf("ClaimNextContent: %v", err)
	}
	if claimed == nil || claimed.ID != id {
		t.Fatalf("expected content %d, got %+v", id, claimed)
	}
	if claimed.Status != queue.StatusPending {
		t.Fatalf("claimed content status = %q, want %q", claimed.Status, queue.StatusPending)
	}

	// Until the caller finalizes the item it remains claimable.
	again, err := store.ClaimNextContent(ctx)
	if err != nil {
		t.Fatalf("ClaimNextContent second: %v", err)
	}
	if again == nil || again.ID != id {
		t.Fatalf("expected the same pending item, got %+v", again)
	}

	if err := store.SetContentStatus(ctx, id, queue.StatusProcessed); err != nil {
		t.Fatalf("SetContentStatus: %v", err)
	}
	done, err := store.ClaimNextContent(ctx)
	if err != nil {
		t.Fatalf("ClaimNextContent after finalize: %v", err)
	}
	if done != nil {
		t.Fatalf("expected no pending content after finalize, got %+v", done)
	}
}

func TestClaimNextContentOrdersByCreation(t *testing.T) {
	t.Parallel()

	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	first := testsupport.AddContent(t, store, 0, "https://example.com/1", "one")
	testsupport.AddContent(t, store, 0, "https://example.com/2", "two")

	claimed, err := store.ClaimNextContent(context.Background())
	if err != nil {
		t.Fatalf("ClaimNextContent: %v", err)
	}
	if claimed == nil || claimed.ID != first {
		t.Fatalf("expected oldest content %d, got %+v", first, claimed)
	}
}

func TestSetContentStatusValidation(t *testing.T) {
	t.Parallel()

	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	id := testsupport.AddContent(t, store, 0, "https://example.com/a", "body")

	if err := store.SetContentStatus(ctx, id, queue.StatusCompleted); err == nil {
		t.Fatal("expected error for target-only status on content")
	}
	if err := store.SetContentStatus(ctx, id+999, queue.StatusProcessed); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing id, got %v", err)
	}
}

func TestGetTargetMissingReturnsNil(t *testing.T) {
	t.Parallel()

	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	target, err := store.GetTarget(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetTarget: %v", err)
	}
	if target != nil {
		t.Fatalf("expected nil for missing target, got %+v", target)
	}
}

func TestSeedTargetsCountsInserted(t *testing.T) {
	t.Parallel()

	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	inserted, err := store.SeedTargets(ctx, []string{
		"https://example.com/a",
		"https://example.com/b",
		"",
	})
	if err != nil {
		t.Fatalf("SeedTargets: %v", err)
	}
	if inserted != 2 {
		t.Fatalf("inserted = %d, want 2", inserted)
	}

	inserted, err = store.SeedTargets(ctx, []string{"https://example.com/a", "https://example.com/c"})
	if err != nil {
		t.Fatalf("SeedTargets repeat: %v", err)
	}
	if inserted != 1 {
		t.Fatalf("inserted = %d, want 1 (one duplicate)", inserted)
	}
}

func TestReinitializeResetsQueue(t *testing.T) {
	t.Parallel()

	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	testsupport.AddTarget(t, store, "https://example.com/old")
	testsupport.AddContent(t, store, 0, "https://example.com/old", "stale body")

	if err := store.Reinitialize(ctx, []string{"https://example.com/seed"}); err != nil {
		t.Fatalf("Reinitialize: %v", err)
	}

	targets, err := store.ListTargets(ctx)
	if err != nil {
		t.Fatalf("ListTargets: %v", err)
	}
	if len(targets) != 1 || targets[0].URL != "https://example.com/seed" {
		t.Fatalf("expected only seeded target, got %+v", targets)
	}

	stats, err := store.ContentStats(ctx)
	if err != nil {
		t.Fatalf("ContentStats: %v", err)
	}
	if len(stats) != 0 {
		t.Fatalf("expected empty content table, got %+v", stats)
	}
}

func TestListTargetsFiltersByStatus(t *testing.T) {
	t.Parallel()

	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	a := testsupport.AddTarget(t, store, "https://example.com/a")
	testsupport.AddTarget(t, store, "https://example.com/b")
	if err := store.SetTargetStatus(ctx, a, queue.StatusCompleted); err != nil {
		t.Fatalf("SetTargetStatus: %v", err)
	}

	completed, err := store.ListTargets(ctx, queue.StatusCompleted)
	if err != nil {
		t.Fatalf("ListTargets completed: %v", err)
	}
	if len(completed) != 1 || completed[0].ID != a {
		t.Fatalf("expected only completed target %d, got %+v", a, completed)
	}

	all, err := store.ListTargets(ctx)
	if err != nil {
		t.Fatalf("ListTargets all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(all))
	}
}

func TestHealthAggregatesCounts(t *testing.T) {
	t.Parallel()

	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	testsupport.AddTarget(t, store, "https://example.com/a")
	testsupport.AddContent(t, store, 0, "https://example.com/a", "body")

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Targets[queue.StatusPending] != 1 {
		t.Fatalf("targets pending = %d, want 1", health.Targets[queue.StatusPending])
	}
	if health.Content[queue.StatusPending] != 1 {
		t.Fatalf("content pending = %d, want 1", health.Content[queue.StatusPending])
	}
}
