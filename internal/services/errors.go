package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFetch marks transient network or HTTP failures while retrieving a target.
	ErrFetch = errors.New("fetch error")
	// ErrStructuring marks LLM call failures or malformed structured output.
	ErrStructuring = errors.New("structuring error")
	// ErrDatabase marks queue or knowledge-store failures.
	ErrDatabase = errors.New("database error")
	// ErrConfiguration marks unusable component configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks lookups for queue items that do not exist.
	ErrNotFound = errors.New("not found")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrFetch
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
