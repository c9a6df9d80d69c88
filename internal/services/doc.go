// Package services defines shared utilities consumed by the stage handlers
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp queue item IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so collaborator failures
//     travel as classified data rather than control flow.
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error handling, observability) stays uniform across the pipeline.
package services
