package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on events(batch_id, seq)
const currentSchemaVersion = 1

// Kind names a lifecycle event.
type Kind string

const (
	KindInitialized     Kind = "initialized"
	KindHITTypeCreated  Kind = "hittype_created"
	KindHITCreated      Kind = "hit_created"
	KindUploaded        Kind = "uploaded"
	KindReviewed        Kind = "reviewed"
	KindSaved           Kind = "saved"
	KindDeleted         Kind = "deleted"
	KindExpired         Kind = "expired"
	KindQualTypeCreated Kind = "qualtype_created"
)

// Recorder appends lifecycle events. Batch operations depend on this
// interface so that a disabled ledger costs nothing.
type Recorder interface {
	Record(ctx context.Context, batchID string, kind Kind, payload map[string]any) error
}

// Event is one stored ledger entry.
type Event struct {
	Seq        int64           `json:"seq"`
	BatchID    string          `json:"batch_id"`
	Kind       Kind            `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	Hash       string          `json:"hash"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// Verify recomputes the event hash from its stored fields.
func (e Event) Verify() error {
	if got := EventHash(e.BatchID, e.Kind, e.Payload); got != e.Hash {
		return fmt.Errorf("event %d: hash mismatch: stored %s, computed %s", e.Seq, e.Hash, got)
	}
	return nil
}

// Ledger stores events in SQLite.
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock sets the time source for recorded_at.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// Open creates or opens a ledger database at path.
// Applies required pragmas and migrations automatically.
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to ledger: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	l := &Ledger{db: db, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Record appends an event. A nil payload is stored as {}.
func (l *Ledger) Record(ctx context.Context, batchID string, kind Kind, payload map[string]any) error {
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := MarshalCanonical(payload)
	if err != nil {
		return fmt.Errorf("record %s: %w", kind, err)
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO events (batch_id, kind, payload, hash, recorded_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		batchID,
		string(kind),
		string(data),
		EventHash(batchID, kind, data),
		l.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record %s: %w", kind, err)
	}
	return nil
}

// History returns a batch's events in the order they were recorded.
func (l *Ledger) History(ctx context.Context, batchID string) ([]Event, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT seq, batch_id, kind, payload, hash, recorded_at
		FROM events
		WHERE batch_id = ?
		ORDER BY seq ASC
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e        Event
			kind     string
			payload  string
			recorded string
		)
		if err := rows.Scan(&e.Seq, &e.BatchID, &kind, &payload, &e.Hash, &recorded); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Kind = Kind(kind)
		e.Payload = json.RawMessage(payload)
		e.RecordedAt, err = time.Parse(time.RFC3339Nano, recorded)
		if err != nil {
			return nil, fmt.Errorf("event %d: parse recorded_at: %w", e.Seq, err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return events, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_events_batch ON events(batch_id, seq)`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// Nop discards every event.
type Nop struct{}

func (Nop) Record(context.Context, string, Kind, map[string]any) error { return nil }

var (
	_ Recorder = (*Ledger)(nil)
	_ Recorder = Nop{}
)
