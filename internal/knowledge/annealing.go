package knowledge

import (
	"context"
	"fmt"
)

// Decision is the outcome of admission control for a candidate record.
// A rejected candidate is a normal outcome, not an error: the caller still
// finalizes the originating queue item as processed.
type Decision struct {
	Accepted   bool
	Nearest    *Match
	Similarity float64
}

// AdmissionController gates new records into the knowledge store. A candidate
// is compared against its single nearest stored neighbor; similarity strictly
// above the threshold marks it a near-duplicate and keeps it out. Similarity
// exactly at the threshold is admitted.
type AdmissionController struct {
	store     *Store
	threshold float64
}

// NewAdmissionController builds an admission controller over the store.
func NewAdmissionController(store *Store, threshold float64) *AdmissionController {
	return &AdmissionController{store: store, threshold: threshold}
}

// Admit evaluates a candidate and inserts it when it passes. An empty store
// always admits.
func (a *AdmissionController) Admit(ctx context.Context, candidate Record) (Decision, error) {
	matches, err := a.store.SearchNearest(ctx, candidate.Vector, 1)
	if err != nil {
		return Decision{}, fmt.Errorf("nearest-neighbor search: %w", err)
	}

	if len(matches) > 0 {
		nearest := matches[0]
		if nearest.Similarity > a.threshold {
			return Decision{Accepted: false, Nearest: &nearest, Similarity: nearest.Similarity}, nil
		}
		if _, err := a.store.Insert(ctx, candidate); err != nil {
			return Decision{}, err
		}
		return Decision{Accepted: true, Nearest: &nearest, Similarity: nearest.Similarity}, nil
	}

	if _, err := a.store.Insert(ctx, candidate); err != nil {
		return Decision{}, err
	}
	return Decision{Accepted: true}, nil
}

// Threshold reports the configured similarity cutoff.
func (a *AdmissionController) Threshold() float64 {
	return a.threshold
}
