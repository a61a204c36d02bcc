// Package results accumulates test outcomes for the current session and
// exports them on demand.
//
// The store is SQLite, in-memory by default: results survive regime churn
// and display resets within a session, but nothing persists across sessions.
// Writes are idempotent on result ID, so a result re-delivered by a display
// refresh never duplicates a row.
package results

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/text/unicode/norm"
)

//go:embed schema.sql
var schemaSQL string

// MemoryPath opens the store without a backing file.
const MemoryPath = ":memory:"

// Status is the outcome of one test or walkthrough step.
type Status string

const (
	StatusPass  Status = "pass"
	StatusFail  Status = "fail"
	StatusError Status = "error"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusPass || s == StatusFail || s == StatusError
}

// Suite names. The schema only admits these two; validating before the
// INSERT keeps a bad suite from surfacing as a raw constraint error.
const (
	SuiteSystematic  = "systematic"
	SuiteWalkthrough = "walkthrough"
)

// ValidSuite reports whether suite is a known suite name.
func ValidSuite(suite string) bool {
	return suite == SuiteSystematic || suite == SuiteWalkthrough
}

// Result is one accumulated outcome. Name is NFC-normalized on write so
// exports compare stably regardless of how the producer spelled it.
type Result struct {
	ID         string `json:"id"`
	RunToken   string `json:"run_token"`
	Suite      string `json:"suite"`
	Name       string `json:"name"`
	Tier       string `json:"tier,omitempty"`
	Status     Status `json:"status"`
	DurationMs int64  `json:"duration_ms"`
	Detail     string `json:"detail,omitempty"`
	Seq        int64  `json:"seq"`
}

// Store is the session results accumulator.
type Store struct {
	db  *sql.DB
	seq atomic.Int64
}

// Open creates or opens the results database. Use MemoryPath for the
// default session-scoped store. The schema is applied idempotently.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open results db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect results db: %w", err)
	}

	// SQLite allows one writer; a single connection avoids SQLITE_BUSY
	// and, for :memory:, keeps every query on the same database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// NextSeq returns the next logical sequence number for a result. Ordering
// within a session comes from this counter, never from wall time.
func (s *Store) NextSeq() int64 {
	return s.seq.Add(1)
}

// Write inserts a result. Idempotent: a duplicate ID is silently ignored.
// The result's Seq must already be stamped (NextSeq or a producer clock).
func (s *Store) Write(ctx context.Context, r Result) error {
	if r.ID == "" {
		return fmt.Errorf("write result: empty id")
	}
	if !r.Status.Valid() {
		return fmt.Errorf("write result %s: invalid status %q", r.ID, r.Status)
	}
	if !ValidSuite(r.Suite) {
		return fmt.Errorf("write result %s: invalid suite %q", r.ID, r.Suite)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO results
		(id, run_token, suite, name, tier, status, duration_ms, detail, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		r.ID,
		r.RunToken,
		r.Suite,
		norm.NFC.String(r.Name),
		r.Tier,
		string(r.Status),
		r.DurationMs,
		r.Detail,
		r.Seq,
	)
	if err != nil {
		return fmt.Errorf("write result %s: %w", r.ID, err)
	}
	return nil
}

// All returns every result in seq order.
func (s *Store) All(ctx context.Context) ([]Result, error) {
	return s.query(ctx, `
		SELECT id, run_token, suite, name, tier, status, duration_ms, detail, seq
		FROM results ORDER BY seq, id
	`)
}

// BySuite returns the results for one suite in seq order.
func (s *Store) BySuite(ctx context.Context, suite string) ([]Result, error) {
	return s.query(ctx, `
		SELECT id, run_token, suite, name, tier, status, duration_ms, detail, seq
		FROM results WHERE suite = ? ORDER BY seq, id
	`, suite)
}

// Count returns the total number of accumulated results.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM results`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count results: %w", err)
	}
	return n, nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var r Result
		var status string
		if err := rows.Scan(&r.ID, &r.RunToken, &r.Suite, &r.Name, &r.Tier,
			&status, &r.DurationMs, &r.Detail, &r.Seq); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.Status = Status(status)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return out, nil
}
