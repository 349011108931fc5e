// Package history keeps a SQLite log of switch transitions, learn
// assignments and connection changes.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	defaultLimit  = 50
	maxLimit      = 200
	pingTimeout   = 5 * time.Second
	msPerSecond   = 1000
	timeLayout    = "2006-01-02T15:04:05.000000Z"
	dirPermission = 0750
)

// Event kinds stored in the kind column.
const (
	KindState      = "state"
	KindLearning   = "learning"
	KindConnection = "connection"
)

// ErrInvalid is returned for arguments the store cannot record.
var ErrInvalid = errors.New("history: invalid argument")

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	kind       TEXT NOT NULL,
	control_id TEXT NOT NULL DEFAULT '',
	value      TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_control ON events (control_id, id);
CREATE INDEX IF NOT EXISTS idx_events_created ON events (created_at);
`

// Entry is one recorded event. Value is "on"/"off" for state and
// connection events and "<field>:<status>" for learning.
type Entry struct {
	ID        int64
	Kind      string
	ControlID string
	Value     string
	CreatedAt time.Time
}

// On reports whether a state or connection entry records the on value.
func (e Entry) On() bool {
	return e.Value == "on"
}

// Store is the SQLite event log. Safe for concurrent use.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates the database file and its directory if needed and applies
// the schema. busyTimeout is in seconds.
func Open(path string, busyTimeout int) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty database path", ErrInvalid)
	}
	if err := os.MkdirAll(filepath.Dir(path), dirPermission); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL",
		path, busyTimeout*msPerSecond)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("verifying history database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("applying history schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing history database: %w", err)
	}
	return nil
}

func (s *Store) insert(ctx context.Context, kind, controlID, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO events (kind, control_id, value, created_at) VALUES (?, ?, ?, ?)",
		kind, controlID, value, s.now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("inserting %s event: %w", kind, err)
	}
	return nil
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// RecordStateChange logs a switch transition.
func (s *Store) RecordStateChange(ctx context.Context, controlID string, on bool) error {
	if controlID == "" {
		return fmt.Errorf("%w: control id is required", ErrInvalid)
	}
	return s.insert(ctx, KindState, controlID, onOff(on))
}

// RecordLearning logs a learn progress step.
func (s *Store) RecordLearning(ctx context.Context, controlID, field, status string) error {
	if controlID == "" {
		return fmt.Errorf("%w: control id is required", ErrInvalid)
	}
	return s.insert(ctx, KindLearning, controlID, field+":"+status)
}

// RecordConnection logs a MIDI connect or disconnect.
func (s *Store) RecordConnection(ctx context.Context, connected bool) error {
	return s.insert(ctx, KindConnection, "", onOff(connected))
}

// GetHistory returns the state transitions of one switch, newest first.
// limit defaults to 50 and is capped at 200.
func (s *Store) GetHistory(ctx context.Context, controlID string, limit int) ([]Entry, error) {
	if controlID == "" {
		return nil, fmt.Errorf("%w: control id is required", ErrInvalid)
	}
	return s.query(ctx,
		`SELECT id, kind, control_id, value, created_at FROM events
		 WHERE kind = ? AND control_id = ?
		 ORDER BY id DESC LIMIT ?`,
		KindState, controlID, clampLimit(limit))
}

// Recent returns the latest events of every kind, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return s.query(ctx,
		`SELECT id, kind, control_id, value, created_at FROM events
		 ORDER BY id DESC LIMIT ?`,
		clampLimit(limit))
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return min(limit, maxLimit)
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.Kind, &e.ControlID, &e.Value, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning history: %w", err)
		}
		ts, err := time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
		}
		e.CreatedAt = ts
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history: %w", err)
	}
	return entries, nil
}

// Prune deletes events older than olderThan and returns how many went.
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("%w: retention must be positive", ErrInvalid)
	}
	cutoff := s.now().UTC().Add(-olderThan).Format(timeLayout)
	res, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}
