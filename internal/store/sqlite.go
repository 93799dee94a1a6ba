// ABOUTME: SQLite implementation of DispatchLog using modernc.org/sqlite.
// ABOUTME: Creates its schema on open; parent directories are created as needed.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// timeFormat is fixed-width so text comparison orders timestamps.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements DispatchLog on SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens or creates the ledger at path. ":memory:" gives a
// private in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A second pooled connection to ":memory:" would see an empty database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite dispatch ledger initialized", "path", path)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS dispatches (
			id            TEXT PRIMARY KEY,
			invocation_id TEXT NOT NULL,
			request_id    TEXT NOT NULL,
			client_id     TEXT NOT NULL,
			tool          TEXT NOT NULL,
			args          TEXT NOT NULL,
			outcome       TEXT NOT NULL,
			error         TEXT,
			enqueued_at   TEXT NOT NULL,
			created_at    TEXT NOT NULL,

			CHECK (outcome IN ('delivered', 'dropped', 'failed', 'stale'))
		);

		CREATE INDEX IF NOT EXISTS idx_dispatches_client_created
			ON dispatches(client_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_dispatches_request
			ON dispatches(request_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordDispatch implements DispatchLog.
func (s *SQLiteStore) RecordDispatch(ctx context.Context, d *Dispatch) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	var errText *string
	if d.Error != "" {
		errText = &d.Error
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dispatches (id, invocation_id, request_id, client_id, tool, args, outcome, error, enqueued_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID,
		d.InvocationID,
		d.RequestID,
		d.ClientID,
		d.Tool,
		d.Args,
		string(d.Outcome),
		errText,
		d.EnqueuedAt.UTC().Format(timeFormat),
		d.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting dispatch: %w", err)
	}

	s.logger.Debug("recorded dispatch",
		"id", d.ID,
		"client_id", d.ClientID,
		"tool", d.Tool,
		"outcome", d.Outcome,
	)
	return nil
}

const dispatchQuery = `
	SELECT id, invocation_id, request_id, client_id, tool, args, outcome, error, enqueued_at, created_at
	FROM dispatches
	WHERE (? IS NULL OR client_id = ?)
	  AND (? IS NULL OR request_id = ?)
	  AND (? IS NULL OR outcome = ?)
	  AND (? IS NULL OR created_at >= ?)
	ORDER BY created_at DESC, rowid DESC
	LIMIT ?
`

// ListDispatches implements DispatchLog.
func (s *SQLiteStore) ListDispatches(ctx context.Context, f DispatchFilter) ([]*Dispatch, error) {
	var outcome, since *string
	if f.Outcome != nil {
		o := string(*f.Outcome)
		outcome = &o
	}
	if f.Since != nil {
		ts := f.Since.UTC().Format(timeFormat)
		since = &ts
	}

	rows, err := s.db.QueryContext(ctx, dispatchQuery,
		f.ClientID, f.ClientID,
		f.RequestID, f.RequestID,
		outcome, outcome,
		since, since,
		normalizeLimit(f.Limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying dispatches: %w", err)
	}
	defer rows.Close()

	var out []*Dispatch
	for rows.Next() {
		d, err := scanDispatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating dispatches: %w", err)
	}
	return out, nil
}

func scanDispatch(scanner interface{ Scan(dest ...any) error }) (*Dispatch, error) {
	var d Dispatch
	var outcome, enqueuedAt, createdAt string
	var errText sql.NullString

	if err := scanner.Scan(
		&d.ID,
		&d.InvocationID,
		&d.RequestID,
		&d.ClientID,
		&d.Tool,
		&d.Args,
		&outcome,
		&errText,
		&enqueuedAt,
		&createdAt,
	); err != nil {
		return nil, fmt.Errorf("scanning dispatch: %w", err)
	}

	d.Outcome = Outcome(outcome)
	d.Error = errText.String

	var err error
	if d.EnqueuedAt, err = time.Parse(timeFormat, enqueuedAt); err != nil {
		return nil, fmt.Errorf("parsing enqueued_at: %w", err)
	}
	if d.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &d, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
