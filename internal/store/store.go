// Package store keeps a local SQLite history of translation requests and the
// per-provider results the hosts received for them.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"

	"github.com/valpere/perekladach/internal/translator"
)

var ErrNotFound = errors.New("history entry not found")

// timeLayout is fixed width so created_at sorts correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type Store struct {
	db *sql.DB
	sq sq.StatementBuilderType
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, sq: sq.StatementBuilder}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS translation_requests (
		id TEXT PRIMARY KEY,
		source_text TEXT NOT NULL,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		services TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS translation_results (
		request_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		service_name TEXT NOT NULL,
		translated_text TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		latency_ms INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (request_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_requests_created ON translation_requests(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Entry is one recorded request with a summary of its outcome.
type Entry struct {
	ID         string
	SourceText string
	SourceLang string
	TargetLang string
	Services   []string
	CreatedAt  time.Time
	Succeeded  int
	Failed     int
}

// Record stores a request together with its results in one transaction and
// returns the new history id.
func (s *Store) Record(ctx context.Context, req translator.Request, results []translator.Result) (string, error) {
	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if err := s.saveRequest(ctx, tx, id, req, time.Now()); err != nil {
		return "", fmt.Errorf("failed to save request: %w", err)
	}
	if err := s.saveResults(ctx, tx, id, 0, results); err != nil {
		return "", fmt.Errorf("failed to save results: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// SaveRequest stores a request under a caller-chosen id, typically a stream
// request id, before its results are known.
func (s *Store) SaveRequest(ctx context.Context, id string, req translator.Request) error {
	return s.saveRequest(ctx, s.db, id, req, time.Now())
}

// SaveResults appends results to an existing request.
func (s *Store) SaveResults(ctx context.Context, requestID string, results []translator.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query, args, err := s.sq.Select("COALESCE(MAX(position) + 1, 0)").
		From("translation_results").
		Where(sq.Eq{"request_id": requestID}).
		ToSql()
	if err != nil {
		return err
	}
	var next int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&next); err != nil {
		return err
	}
	if err := s.saveResults(ctx, tx, requestID, next, results); err != nil {
		return err
	}
	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) saveRequest(ctx context.Context, db execer, id string, req translator.Request, at time.Time) error {
	services, err := encodeServices(req.Services)
	if err != nil {
		return err
	}
	query, args, err := s.sq.Insert("translation_requests").
		Columns("id", "source_text", "source_lang", "target_lang", "services", "created_at").
		Values(id, normalizeText(req.Text), req.SourceLang, req.TargetLang, services, at.UTC().Format(timeLayout)).
		ToSql()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, query, args...)
	return err
}

func (s *Store) saveResults(ctx context.Context, db execer, requestID string, offset int, results []translator.Result) error {
	if len(results) == 0 {
		return nil
	}
	q := s.sq.Insert("translation_results").
		Columns("request_id", "position", "service_name", "translated_text", "error", "latency_ms")
	for i, r := range results {
		q = q.Values(requestID, offset+i, r.Name, r.Text, r.Error, r.Latency.Milliseconds())
	}
	query, args, err := q.ToSql()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, query, args...)
	return err
}

// entries selects requests with their success and failure counts.
func (s *Store) entries() sq.SelectBuilder {
	return s.sq.Select(
		"r.id", "r.source_text", "r.source_lang", "r.target_lang", "r.services", "r.created_at",
		"COALESCE(SUM(CASE WHEN t.error = '' AND t.translated_text <> '' THEN 1 ELSE 0 END), 0)",
		"COALESCE(SUM(CASE WHEN t.error <> '' OR t.translated_text = '' THEN 1 ELSE 0 END), 0)",
	).
		From("translation_requests r").
		LeftJoin("translation_results t ON t.request_id = r.id").
		GroupBy("r.id")
}

// ListHistory returns the most recent requests first. limit <= 0 means no
// limit.
func (s *Store) ListHistory(ctx context.Context, limit int) ([]Entry, error) {
	q := s.entries().OrderBy("r.created_at DESC", "r.rowid DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetRequest returns one request by id, or ErrNotFound.
func (s *Store) GetRequest(ctx context.Context, id string) (*Entry, error) {
	query, args, err := s.entries().Where(sq.Eq{"r.id": id}).ToSql()
	if err != nil {
		return nil, err
	}

	e, err := scanEntry(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var e Entry
	var services, created string
	if err := row.Scan(&e.ID, &e.SourceText, &e.SourceLang, &e.TargetLang, &services, &created, &e.Succeeded, &e.Failed); err != nil {
		return Entry{}, err
	}
	at, err := time.Parse(timeLayout, created)
	if err != nil {
		return Entry{}, fmt.Errorf("invalid created_at %q: %w", created, err)
	}
	e.CreatedAt = at
	if services != "" {
		if err := json.Unmarshal([]byte(services), &e.Services); err != nil {
			return Entry{}, fmt.Errorf("invalid services %q: %w", services, err)
		}
	}
	return e, nil
}

// encodeServices stores requested names as a JSON array, since provider
// names are free-form. An empty list is stored as "".
func encodeServices(services []string) (string, error) {
	if len(services) == 0 {
		return "", nil
	}
	b, err := json.Marshal(services)
	if err != nil {
		return "", fmt.Errorf("failed to encode services: %w", err)
	}
	return string(b), nil
}

// GetResults returns the results of a request in the order they were saved.
func (s *Store) GetResults(ctx context.Context, requestID string) ([]translator.Result, error) {
	query, args, err := s.sq.Select("service_name", "translated_text", "error", "latency_ms").
		From("translation_results").
		Where(sq.Eq{"request_id": requestID}).
		OrderBy("position").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []translator.Result
	for rows.Next() {
		var r translator.Result
		var latencyMs int64
		if err := rows.Scan(&r.Name, &r.Text, &r.Error, &latencyMs); err != nil {
			return nil, err
		}
		r.Latency = time.Duration(latencyMs) * time.Millisecond
		results = append(results, r)
	}
	return results, rows.Err()
}

// Clear removes every request and result and reports how many requests
// were deleted.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var n int64
	for _, table := range []string{"translation_results", "translation_requests"} {
		query, args, err := s.sq.Delete(table).ToSql()
		if err != nil {
			return 0, err
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, err
		}
		if table == "translation_requests" {
			if n, err = res.RowsAffected(); err != nil {
				return 0, err
			}
		}
	}
	return n, tx.Commit()
}

func (s *Store) Close() error {
	return s.db.Close()
}

// normalizeText trims whitespace and applies Unicode NFC normalization so
// the same text typed on different systems is stored identically.
func normalizeText(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}
