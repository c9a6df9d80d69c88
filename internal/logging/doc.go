// Package logging centralizes slog construction and helpers for the pipeline.
//
// It provides a console handler with aligned key=value output, a JSON handler
// for machine consumption, typed attribute helpers, standardized field names,
// and context-derived fields (item id, stage, correlation id) so every stage
// process logs the same way.
package logging
