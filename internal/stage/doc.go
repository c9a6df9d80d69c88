// Package stage provides the shared poll loop that drives the fetch and
// processing stages against the work queue.
package stage
