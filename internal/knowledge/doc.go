// Package knowledge holds the embedded-record store and the admission
// control that keeps near-duplicate content out of it.
package knowledge
