// Package ingestor implements the fetch stage of the pipeline.
package ingestor
