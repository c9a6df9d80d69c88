// Package processor implements the processing stage of the pipeline:
// structuring, embedding, and admission control.
package processor
