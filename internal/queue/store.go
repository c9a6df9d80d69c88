package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"foundry/internal/config"
	"foundry/internal/services"
)

// ErrNotFound indicates a status write addressed an id that does not exist.
// It carries the services marker so callers can classify it generically.
var ErrNotFound = fmt.Errorf("queue: item %w", services.ErrNotFound)

// Store manages work-queue persistence backed by SQLite. It is the only
// state shared between the fetch and processing stage processes, so every
// mutating operation here must be safe for concurrent cross-process callers.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the queue database and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.QueueDatabasePath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the location of the queue database file.
func (s *Store) Path() string {
	return s.path
}

// Reinitialize destructively recreates the queue schema, then seeds the
// provided crawl targets. Used by 'foundry init'.
func (s *Store) Reinitialize(ctx context.Context, seedURLs []string) error {
	if err := s.dropSchema(ctx); err != nil {
		return err
	}
	if err := s.createSchema(ctx); err != nil {
		return err
	}
	_, err := s.SeedTargets(ctx, seedURLs)
	return err
}

// AddTarget enqueues a URL for crawling. The insert is idempotent: adding a
// URL that already exists is a no-op that returns the existing target's id.
func (s *Store) AddTarget(ctx context.Context, url string) (int64, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return 0, errors.New("target url must not be empty")
	}

	if _, err := s.db.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO crawl_targets (url, status) VALUES (?, ?)`,
		url,
		StatusPending,
	); err != nil {
		return 0, fmt.Errorf("insert target: %w", err)
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM crawl_targets WHERE url = ?`, url).Scan(&id); err != nil {
		return 0, fmt.Errorf("select target id: %w", err)
	}
	return id, nil
}

// SeedTargets enqueues every URL and reports how many were newly inserted.
func (s *Store) SeedTargets(ctx context.Context, urls []string) (int, error) {
	inserted := 0
	for _, url := range urls {
		url = strings.TrimSpace(url)
		if url == "" {
			continue
		}
		res, err := s.db.ExecContext(
			ctx,
			`INSERT OR IGNORE INTO crawl_targets (url, status) VALUES (?, ?)`,
			url,
			StatusPending,
		)
		if err != nil {
			return inserted, fmt.Errorf("seed target %q: %w", url, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("rows affected: %w", err)
		}
		inserted += int(affected)
	}
	return inserted, nil
}

// GetTarget fetches a crawl target by identifier, or nil when absent.
func (s *Store) GetTarget(ctx context.Context, id int64) (*Target, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+targetColumns+` FROM crawl_targets WHERE id = ?`, id)
	target, err := scanTarget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get target: %w", err)
	}
	return target, nil
}

// ClaimNextTarget atomically selects the oldest pending target (never
// attempted first, then by last attempt time, ties broken by id), marks it
// active, and returns it. The update-with-returning statement is a single
// transaction, so concurrent pollers never claim the same row. Returns nil
// when no pending target exists.
func (s *Store) ClaimNextTarget(ctx context.Context) (*Target, error) {
	row := s.db.QueryRowContext(
		ctx,
		`UPDATE crawl_targets SET status = ?
         WHERE id = (
             SELECT id FROM crawl_targets WHERE status = ?
             ORDER BY last_attempt_at ASC, id ASC LIMIT 1
         )
         RETURNING `+targetColumns,
		StatusActive,
		StatusPending,
	)
	target, err := scanTarget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim target: %w", err)
	}
	return target, nil
}

// SetTargetStatus writes a target's status and refreshes its last attempt
// timestamp. Returns ErrNotFound when the id does not exist.
func (s *Store) SetTargetStatus(ctx context.Context, id int64, status Status) error {
	if !IsTargetStatus(status) {
		return fmt.Errorf("invalid target status %q", status)
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE crawl_targets SET status = ?, last_attempt_at = ? WHERE id = ?`,
		status,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("update target status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("target %d: %w", id, ErrNotFound)
	}
	return nil
}

// AddContent enqueues fetched raw text for processing. Unlike AddTarget this
// always inserts; deduplication happens later, at admission control. A
// targetID of zero or less records no originating target.
func (s *Store) AddContent(ctx context.Context, targetID int64, url, rawText string) (int64, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return 0, errors.New("content url must not be empty")
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO raw_content (target_id, url, raw_text, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		nullableID(targetID),
		url,
		rawText,
		StatusPending,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("insert content: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// GetContent fetches a content item by identifier, or nil when absent.
func (s *Store) GetContent(ctx context.Context, id int64) (*Content, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+contentColumns+` FROM raw_content WHERE id = ?`, id)
	content, err := scanContent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get content: %w", err)
	}
	return content, nil
}

// ClaimNextContent returns the oldest pending content item, ordered by
// creation time then id, or nil when none is pending.
//
// Unlike targets, a claimed content item stays in pending until the caller
// finalizes it with SetContentStatus. This asymmetry is deliberate: there is
// no intermediate claimed status for content, so a processing run that dies
// mid-item leaves the item indistinguishable from never-claimed. With one
// processing poller that only costs a reprocess after a crash.
func (s *Store) ClaimNextContent(ctx context.Context) (*Content, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+contentColumns+` FROM raw_content WHERE status = ?
         ORDER BY created_at ASC, id ASC LIMIT 1`,
		StatusPending,
	)
	content, err := scanContent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim content: %w", err)
	}
	return content, nil
}

// SetContentStatus writes a content item's terminal status. Returns
// ErrNotFound when the id does not exist.
func (s *Store) SetContentStatus(ctx context.Context, id int64, status Status) error {
	if !IsContentStatus(status) {
		return fmt.Errorf("invalid content status %q", status)
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE raw_content SET status = ? WHERE id = ?`,
		status,
		id,
	)
	if err != nil {
		return fmt.Errorf("update content status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("content %d: %w", id, ErrNotFound)
	}
	return nil
}

// ListTargets returns crawl targets filtered by status set (or all targets
// when no status is provided), in claim order.
func (s *Store) ListTargets(ctx context.Context, statuses ...Status) ([]*Target, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + targetColumns + ` FROM crawl_targets`
	orderClause := ` ORDER BY last_attempt_at ASC, id ASC`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()

	var targets []*Target
	for rows.Next() {
		target, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}
	return targets, rows.Err()
}

// TargetStats returns a count of crawl targets grouped by status.
func (s *Store) TargetStats(ctx context.Context) (map[Status]int, error) {
	return s.statusCounts(ctx, "crawl_targets")
}

// ContentStats returns a count of content items grouped by status.
func (s *Store) ContentStats(ctx context.Context) (map[Status]int, error) {
	return s.statusCounts(ctx, "raw_content")
}

// Health aggregates queue state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	targets, err := s.TargetStats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	content, err := s.ContentStats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	return HealthSummary{Targets: targets, Content: content}, nil
}

func (s *Store) statusCounts(ctx context.Context, table string) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM `+table+` GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("%s stats: %w", table, err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

const targetColumns = "id, url, status, last_attempt_at"

const contentColumns = "id, target_id, url, raw_text, status, created_at"

func scanTarget(scanner interface{ Scan(dest ...any) error }) (*Target, error) {
	var (
		id         int64
		url        string
		statusStr  string
		attemptRaw sql.NullString
	)
	if err := scanner.Scan(&id, &url, &statusStr, &attemptRaw); err != nil {
		return nil, err
	}

	status, ok := ParseStatus(statusStr)
	if !ok {
		return nil, fmt.Errorf("target %d has unknown status %q", id, statusStr)
	}
	target := &Target{ID: id, URL: url, Status: status}
	if attemptRaw.Valid {
		if attempt, err := parseTimeString(attemptRaw.String); err == nil {
			target.LastAttemptAt = &attempt
		}
	}
	return target, nil
}

func scanContent(scanner interface{ Scan(dest ...any) error }) (*Content, error) {
	var (
		id         int64
		targetID   sql.NullInt64
		url        string
		rawText    string
		statusStr  string
		createdRaw sql.NullString
	)
	if err := scanner.Scan(&id, &targetID, &url, &rawText, &statusStr, &createdRaw); err != nil {
		return nil, err
	}

	status, ok := ParseStatus(statusStr)
	if !ok {
		return nil, fmt.Errorf("content %d has unknown status %q", id, statusStr)
	}
	content := &Content{ID: id, URL: url, RawText: rawText, Status: status}
	if targetID.Valid {
		value := targetID.Int64
		content.TargetID = &value
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		content.CreatedAt = created
	}
	return content, nil
}

func nullableID(value int64) any {
	if value <= 0 {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
