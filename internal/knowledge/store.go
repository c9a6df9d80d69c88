package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"foundry/internal/config"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS knowledge_records (
    id TEXT PRIMARY KEY,
    url TEXT NOT NULL,
    title TEXT NOT NULL,
    summary TEXT NOT NULL,
    entities TEXT NOT NULL DEFAULT '[]',
    vector TEXT NOT NULL,
    created_at TEXT NOT NULL
);
`

// Store persists admitted knowledge records in SQLite. Vectors are stored as
// JSON arrays and compared in memory; the corpus is scanned in full on each
// search, which holds up well into the tens of thousands of records.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the knowledge database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.KnowledgeDatabasePath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open knowledge db: %w", err)
	}

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout = 5000"} {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create knowledge schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the location of the knowledge database file.
func (s *Store) Path() string {
	return s.path
}

// Reinitialize drops and recreates the knowledge schema. Used by 'foundry init'.
func (s *Store) Reinitialize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS knowledge_records`); err != nil {
		return fmt.Errorf("drop knowledge schema: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("recreate knowledge schema: %w", err)
	}
	return nil
}

// Insert stores a new record and returns it with a generated id and creation
// time. The caller's record is not mutated.
func (s *Store) Insert(ctx context.Context, record Record) (Record, error) {
	if len(record.Vector) == 0 {
		return Record{}, errors.New("record vector must not be empty")
	}

	record.ID = uuid.NewString()
	record.CreatedAt = time.Now().UTC()

	entitiesJSON, err := json.Marshal(record.Entities)
	if err != nil {
		return Record{}, fmt.Errorf("encode entities: %w", err)
	}
	vectorJSON, err := json.Marshal(record.Vector)
	if err != nil {
		return Record{}, fmt.Errorf("encode vector: %w", err)
	}

	if _, err := s.db.ExecContext(
		ctx,
		`INSERT INTO knowledge_records (id, url, title, summary, entities, vector, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.URL,
		record.Title,
		record.Summary,
		string(entitiesJSON),
		string(vectorJSON),
		record.CreatedAt.Format(time.RFC3339Nano),
	); err != nil {
		return Record{}, fmt.Errorf("insert record: %w", err)
	}

	return record, nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM knowledge_records`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}

// SearchNearest returns the limit records most similar to the query vector,
// ranked by descending cosine similarity. An empty store yields no matches.
func (s *Store) SearchNearest(ctx context.Context, vector []float64, limit int) ([]Match, error) {
	if len(vector) == 0 {
		return nil, errors.New("query vector must not be empty")
	}
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, url, title, summary, entities, vector, created_at FROM knowledge_records`,
	)
	if err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		similarity, err := CosineSimilarity(vector, record.Vector)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", record.ID, err)
		}
		matches = append(matches, Match{Record: record, Similarity: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var (
		record       Record
		entitiesJSON string
		vectorJSON   string
		createdRaw   string
	)
	if err := rows.Scan(
		&record.ID,
		&record.URL,
		&record.Title,
		&record.Summary,
		&entitiesJSON,
		&vectorJSON,
		&createdRaw,
	); err != nil {
		return Record{}, err
	}
	if err := json.Unmarshal([]byte(entitiesJSON), &record.Entities); err != nil {
		return Record{}, fmt.Errorf("decode entities for %s: %w", record.ID, err)
	}
	if err := json.Unmarshal([]byte(vectorJSON), &record.Vector); err != nil {
		return Record{}, fmt.Errorf("decode vector for %s: %w", record.ID, err)
	}
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		record.CreatedAt = created
	}
	return record, nil
}

// CosineSimilarity computes the cosine of the angle between two vectors of
// equal dimension. A zero-magnitude vector yields zero similarity.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimension mismatch: %d vs %d", len(a), len(b))
	}

	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB)), nil
}
