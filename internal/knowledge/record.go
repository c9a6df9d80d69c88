package knowledge

import "time"

// Record is a structured, embedded unit of knowledge. Records are immutable
// once admitted: the pipeline only ever inserts, never updates.
type Record struct {
	ID        string
	URL       string
	Title     string
	Summary   string
	Entities  []string
	Vector    []float64
	CreatedAt time.Time
}

// Match pairs a stored record with its cosine similarity to a query vector.
type Match struct {
	Record     Record
	Similarity float64
}
