// ABOUTME: SQLite implementation of the conversation log using modernc.org/sqlite
// ABOUTME: Turn appends assign a per-session sequence atomically; rows are never updated

package history

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

// SQLiteLog stores conversation turns in SQLite. The default ":memory:" path
// keeps the log process-local; a file path survives restarts.
type SQLiteLog struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteLog opens (or creates) a conversation log at the given path.
// Parent directories are created if needed.
func NewSQLiteLog(path string) (*SQLiteLog, error) {
	logger := slog.Default().With("component", "history")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// In-memory databases must not be shared across multiple connections:
	// each connection would get its own empty database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	l := &SQLiteLog{
		db:     db,
		logger: logger,
	}

	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("conversation log initialized", "path", path)
	return l, nil
}

// createSchema creates the turns table if it doesn't exist
func (l *SQLiteLog) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS turns (
			id           TEXT PRIMARY KEY,
			session_id   TEXT NOT NULL,
			seq          INTEGER NOT NULL,
			from_agent   TEXT NOT NULL,
			to_agent     TEXT NOT NULL,
			message      TEXT NOT NULL,
			execution_id TEXT,
			created_at   DATETIME NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_turns_session_seq
			ON turns(session_id, seq);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Append records a turn at the end of a session's log, assigning the next
// sequence number atomically. The stored turn (with ID, Seq, and CreatedAt
// populated) is returned.
func (l *SQLiteLog) Append(ctx context.Context, turn *Turn) (*Turn, error) {
	if turn.SessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM turns WHERE session_id = ?`,
		turn.SessionID,
	).Scan(&seq)
	if err != nil {
		return nil, fmt.Errorf("assigning sequence: %w", err)
	}

	stored := *turn
	stored.ID = uuid.New().String()
	stored.Seq = seq
	stored.CreatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO turns (id, session_id, seq, from_agent, to_agent, message, execution_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		stored.ID, stored.SessionID, stored.Seq, stored.FromAgent, stored.ToAgent,
		stored.Message, nullable(stored.ExecutionID), stored.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting turn: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing turn: %w", err)
	}

	l.logger.Debug("turn appended",
		"session_id", stored.SessionID,
		"seq", stored.Seq,
		"from_agent", stored.FromAgent,
		"to_agent", stored.ToAgent)

	return &stored, nil
}

// List returns all turns for a session in sequence order. A session with no
// turns yields an empty slice, not an error.
func (l *SQLiteLog) List(ctx context.Context, sessionID string) ([]*Turn, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, session_id, seq, from_agent, to_agent, message, execution_id, created_at
		 FROM turns WHERE session_id = ? ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer rows.Close()

	turns := make([]*Turn, 0)
	for rows.Next() {
		var t Turn
		var execID sql.NullString
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Seq, &t.FromAgent, &t.ToAgent,
			&t.Message, &execID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		t.ExecutionID = execID.String
		turns = append(turns, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating turns: %w", err)
	}

	return turns, nil
}

// Ping verifies the underlying database is reachable.
func (l *SQLiteLog) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

// Close releases the underlying database handle.
func (l *SQLiteLog) Close() error {
	return l.db.Close()
}

// nullable maps an empty string to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
