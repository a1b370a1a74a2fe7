package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazz-dev/healthwatch/internal/scheduler"
)

const schema = `
CREATE TABLE IF NOT EXISTS checks (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    round_id    TEXT    NOT NULL DEFAULT '',
    target      TEXT    NOT NULL,
    url         TEXT    NOT NULL DEFAULT '',
    up          INTEGER NOT NULL CHECK(up IN (0, 1)),
    status_code INTEGER,
    response_ms INTEGER,
    error       TEXT    NOT NULL DEFAULT '',
    checked_at  TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_checks_target ON checks(target);
CREATE INDEX IF NOT EXISTS idx_checks_target_id ON checks(target, id DESC);
`

// Check is a journaled probe outcome. StatusCode and ResponseMs are nil
// when the probe got no response.
type Check struct {
	ID         int64     `json:"id"`
	RoundID    string    `json:"roundId"`
	Target     string    `json:"target"`
	URL        string    `json:"url"`
	Up         bool      `json:"up"`
	StatusCode *int      `json:"statusCode"`
	ResponseMs *int64    `json:"responseTimeMs"`
	Error      string    `json:"error,omitempty"`
	CheckedAt  time.Time `json:"checkedAt"`
}

// DB is an append-only journal of probe outcomes backed by SQLite. It is
// history for operators; nothing reads it back into the live state.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and applies the schema.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite at %q: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared and serializes
	// writers, which SQLite would do anyway.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// InsertCheck appends a check to the journal.
func (d *DB) InsertCheck(ctx context.Context, c Check) error {
	var code, ms sql.NullInt64
	if c.StatusCode != nil {
		code = sql.NullInt64{Int64: int64(*c.StatusCode), Valid: true}
	}
	if c.ResponseMs != nil {
		ms = sql.NullInt64{Int64: *c.ResponseMs, Valid: true}
	}
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO checks (round_id, target, url, up, status_code, response_ms, error, checked_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.RoundID,
		c.Target,
		c.URL,
		c.Up,
		code,
		ms,
		c.Error,
		c.CheckedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting check for %q: %w", c.Target, err)
	}
	return nil
}

// RecordEvent journals an applied scheduler result.
func (d *DB) RecordEvent(ctx context.Context, ev scheduler.Event) error {
	rec := ev.Current
	c := Check{
		RoundID:    ev.RoundID,
		Target:     ev.Target.Name,
		URL:        ev.Target.URL,
		Up:         rec.IsUp(),
		StatusCode: rec.StatusCode,
		ResponseMs: rec.ResponseTimeMs,
		Error:      rec.LastError,
	}
	if rec.LastCheckedAt != nil {
		c.CheckedAt = *rec.LastCheckedAt
	}
	return d.InsertCheck(ctx, c)
}

// LatestCheck returns the most recent check for the given target, or nil if none.
func (d *DB) LatestCheck(ctx context.Context, target string) (*Check, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT id, round_id, target, url, up, status_code, response_ms, error, checked_at FROM checks WHERE target = ? ORDER BY id DESC LIMIT 1`,
		target,
	)
	c, err := scanCheck(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest check for %q: %w", target, err)
	}
	return c, nil
}

// History returns paginated check history for a target, newest first,
// plus the total count.
func (d *DB) History(ctx context.Context, target string, limit, offset int) ([]Check, int, error) {
	var total int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM checks WHERE target = ?`, target,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting checks for %q: %w", target, err)
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT id, round_id, target, url, up, status_code, response_ms, error, checked_at FROM checks WHERE target = ? ORDER BY id DESC LIMIT ? OFFSET ?`,
		target, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("querying history for %q: %w", target, err)
	}
	defer rows.Close()

	checks, err := scanChecks(rows)
	if err != nil {
		return nil, 0, err
	}
	return checks, total, nil
}

// AllLatest returns the most recent check for each target.
func (d *DB) AllLatest(ctx context.Context) ([]Check, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, round_id, target, url, up, status_code, response_ms, error, checked_at
		FROM checks
		WHERE id IN (
			SELECT MAX(id) FROM checks GROUP BY target
		)
		ORDER BY target
	`)
	if err != nil {
		return nil, fmt.Errorf("querying all latest: %w", err)
	}
	defer rows.Close()
	return scanChecks(rows)
}

// UptimePercent returns the percentage of successful checks among the
// last N checks for a target.
func (d *DB) UptimePercent(ctx context.Context, target string, last int) (float64, error) {
	var total int
	var upCount sql.NullInt64
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*), SUM(up)
		FROM (
			SELECT up FROM checks WHERE target = ? ORDER BY id DESC LIMIT ?
		)
	`, target, last).Scan(&total, &upCount)
	if err != nil {
		return 0, fmt.Errorf("calculating uptime for %q: %w", target, err)
	}
	if total == 0 {
		return 0, nil
	}
	return float64(upCount.Int64) / float64(total) * 100, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCheck(row scanner) (*Check, error) {
	var (
		c         Check
		code, ms  sql.NullInt64
		checkedAt string
	)
	err := row.Scan(&c.ID, &c.RoundID, &c.Target, &c.URL, &c.Up, &code, &ms, &c.Error, &checkedAt)
	if err != nil {
		return nil, err
	}
	if code.Valid {
		v := int(code.Int64)
		c.StatusCode = &v
	}
	if ms.Valid {
		v := ms.Int64
		c.ResponseMs = &v
	}
	t, err := time.Parse(time.RFC3339Nano, checkedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing checked_at %q: %w", checkedAt, err)
	}
	c.CheckedAt = t
	return &c, nil
}

func scanChecks(rows *sql.Rows) ([]Check, error) {
	var checks []Check
	for rows.Next() {
		c, err := scanCheck(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning check row: %w", err)
		}
		checks = append(checks, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating check rows: %w", err)
	}
	return checks, nil
}
