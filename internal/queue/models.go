package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a queue item. Crawl targets move
// pending → active → completed/failed; raw content moves pending →
// processed/failed. The store does not police transitions; the stages treat
// completed, processed, and failed as terminal and never requeue them.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusProcessed Status = "processed"
	StatusFailed    Status = "failed"
)

var targetStatuses = map[Status]struct{}{
	StatusPending:   {},
	StatusActive:    {},
	StatusCompleted: {},
	StatusFailed:    {},
}

var contentStatuses = map[Status]struct{}{
	StatusPending:   {},
	StatusProcessed: {},
	StatusFailed:    {},
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case StatusPending, StatusActive, StatusCompleted, StatusProcessed, StatusFailed:
		return normalized, true
	default:
		return "", false
	}
}

// IsTargetStatus reports whether a status is valid for crawl targets.
func IsTargetStatus(status Status) bool {
	_, ok := targetStatuses[status]
	return ok
}

// IsContentStatus reports whether a status is valid for raw content.
func IsContentStatus(status Status) bool {
	_, ok := contentStatuses[status]
	return ok
}

// IsTerminal reports whether a status absorbs all further transitions.
func IsTerminal(status Status) bool {
	switch status {
	case StatusCompleted, StatusProcessed, StatusFailed:
		return true
	default:
		return false
	}
}

// Target is a URL awaiting or having undergone content retrieval.
type Target struct {
	ID            int64
	URL           string
	Status        Status
	LastAttemptAt *time.Time
}

// Content is raw text retrieved from a target, awaiting or having undergone
// structuring. TargetID is a weak reference: deleting the originating target
// nulls it rather than cascading.
type Content struct {
	ID        int64
	TargetID  *int64
	URL       string
	RawText   string
	Status    Status
	CreatedAt time.Time
}

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Targets map[Status]int
	Content map[Status]int
}
