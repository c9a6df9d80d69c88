// Package queue provides the durable SQLite-backed work queue that links
// the fetch and processing stages. Crawl targets and raw content each move
// through a small forward-only status lifecycle; the store exposes atomic
// claim operations so independent stage processes cooperate through the
// database alone.
package queue
