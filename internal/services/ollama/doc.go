// Package ollama provides the client for the local LLM runtime: structuring
// raw text, producing embeddings, and synthesizing grounded answers.
package ollama
