// Package storage keeps a log of scheduled checks and closed outages in SQLite.
// The default database lives in memory and disappears with the process.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazz-dev/statusbot/internal/checker"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// timeFormat is fixed width so timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS checks (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    service     TEXT    NOT NULL,
    outcome     TEXT    NOT NULL CHECK(outcome IN ('healthy', 'unhealthy', 'unreachable', 'error')),
    status_code INTEGER,
    latency_ms  INTEGER,
    error       TEXT    NOT NULL DEFAULT '',
    checked_at  TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_checks_service ON checks(service);
CREATE INDEX IF NOT EXISTS idx_checks_service_checked ON checks(service, checked_at DESC);

CREATE TABLE IF NOT EXISTS outages (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    service      TEXT    NOT NULL,
    down_since   TEXT    NOT NULL,
    recovered_at TEXT    NOT NULL,
    duration_ms  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_outages_recovered ON outages(recovered_at DESC);
`

// Check is a stored probe result. StatusCode and LatencyMs are nil when the
// endpoint did not respond.
type Check struct {
	ID         int64     `json:"id"`
	Service    string    `json:"service"`
	Outcome    string    `json:"outcome"`
	StatusCode *int      `json:"status_code"`
	LatencyMs  *int64    `json:"latency_ms"`
	Error      string    `json:"error"`
	CheckedAt  time.Time `json:"checked_at"`
}

// Outage is a closed outage: a service that went down and later recovered.
type Outage struct {
	ID          int64     `json:"id"`
	Service     string    `json:"service"`
	DownSince   time.Time `json:"down_since"`
	RecoveredAt time.Time `json:"recovered_at"`
	DurationMs  int64     `json:"duration_ms"`
}

// DB wraps a SQLite database.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and applies the schema.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite at %q: %w", path, err)
	}
	if path == MemoryPath {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=5000",
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

// InsertCheck persists a probe result.
func (d *DB) InsertCheck(ctx context.Context, r checker.Result) error {
	var status, latency sql.NullInt64
	if r.Responded() {
		status = sql.NullInt64{Int64: int64(r.StatusCode), Valid: true}
		latency = sql.NullInt64{Int64: r.Latency.Milliseconds(), Valid: true}
	}
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO checks (service, outcome, status_code, latency_ms, error, checked_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ServiceName,
		string(r.Outcome),
		status,
		latency,
		r.Error,
		r.CheckedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting check for %q: %w", r.ServiceName, err)
	}
	return nil
}

// InsertOutage records a closed outage.
func (d *DB) InsertOutage(ctx context.Context, service string, downSince, recoveredAt time.Time) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO outages (service, down_since, recovered_at, duration_ms) VALUES (?, ?, ?, ?)`,
		service,
		downSince.UTC().Format(timeFormat),
		recoveredAt.UTC().Format(timeFormat),
		recoveredAt.Sub(downSince).Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("inserting outage for %q: %w", service, err)
	}
	return nil
}

const checkColumns = `id, service, outcome, status_code, latency_ms, error, checked_at`

// LatestCheck returns the most recent check for the given service, or nil if none.
func (d *DB) LatestCheck(ctx context.Context, service string) (*Check, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+checkColumns+` FROM checks WHERE service = ? ORDER BY checked_at DESC, id DESC LIMIT 1`,
		service,
	)
	c, err := scanCheck(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest check for %q: %w", service, err)
	}
	return c, nil
}

// ServiceHistory returns paginated check history for a service plus the total count.
func (d *DB) ServiceHistory(ctx context.Context, service string, limit, offset int) ([]Check, int, error) {
	var total int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM checks WHERE service = ?`, service,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting checks for %q: %w", service, err)
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT `+checkColumns+` FROM checks WHERE service = ? ORDER BY checked_at DESC, id DESC LIMIT ? OFFSET ?`,
		service, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("querying history for %q: %w", service, err)
	}
	defer rows.Close()

	checks, err := scanChecks(rows)
	if err != nil {
		return nil, 0, err
	}
	return checks, total, nil
}

// AllLatest returns the most recent check for each service.
func (d *DB) AllLatest(ctx context.Context) ([]Check, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+checkColumns+`
		FROM checks
		WHERE id IN (
			SELECT MAX(id) FROM checks GROUP BY service
		)
		ORDER BY service
	`)
	if err != nil {
		return nil, fmt.Errorf("querying all latest: %w", err)
	}
	defer rows.Close()
	return scanChecks(rows)
}

// UptimePercent returns the percentage of healthy checks in the last N checks for a service.
func (d *DB) UptimePercent(ctx context.Context, service string, last int) (float64, error) {
	var total int
	var upCount sql.NullInt64
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*), SUM(CASE WHEN outcome = 'healthy' THEN 1 ELSE 0 END)
		FROM (
			SELECT outcome FROM checks WHERE service = ? ORDER BY checked_at DESC, id DESC LIMIT ?
		)
	`, service, last).Scan(&total, &upCount)
	if err != nil {
		return 0, fmt.Errorf("calculating uptime for %q: %w", service, err)
	}
	if total == 0 {
		return 0, nil
	}
	return float64(upCount.Int64) / float64(total) * 100, nil
}

// RecentOutages returns up to limit closed outages, most recently recovered first.
func (d *DB) RecentOutages(ctx context.Context, limit int) ([]Outage, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, service, down_since, recovered_at, duration_ms FROM outages ORDER BY recovered_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying outages: %w", err)
	}
	defer rows.Close()

	var outages []Outage
	for rows.Next() {
		var o Outage
		var downSince, recoveredAt string
		if err := rows.Scan(&o.ID, &o.Service, &downSince, &recoveredAt, &o.DurationMs); err != nil {
			return nil, fmt.Errorf("scanning outage row: %w", err)
		}
		if o.DownSince, err = parseTime(downSince); err != nil {
			return nil, err
		}
		if o.RecoveredAt, err = parseTime(recoveredAt); err != nil {
			return nil, err
		}
		outages = append(outages, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating outage rows: %w", err)
	}
	return outages, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCheck(row scanner) (*Check, error) {
	var c Check
	var status, latency sql.NullInt64
	var checkedAt string
	err := row.Scan(&c.ID, &c.Service, &c.Outcome, &status, &latency, &c.Error, &checkedAt)
	if err != nil {
		return nil, err
	}
	if status.Valid {
		code := int(status.Int64)
		c.StatusCode = &code
	}
	if latency.Valid {
		ms := latency.Int64
		c.LatencyMs = &ms
	}
	if c.CheckedAt, err = parseTime(checkedAt); err != nil {
		return nil, err
	}
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

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		// Fallback to RFC3339 without sub-second precision.
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
		}
	}
	return t, nil
}
