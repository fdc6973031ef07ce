package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// SQLiteSessionLog is an embedded SQLite implementation of SessionLog.
type SQLiteSessionLog struct {
	db *sql.DB
}

// Open opens (or creates) the session log database at path.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open session log: %w", err)
	}
	return db, nil
}

func NewSQLiteSessionLog(db *sql.DB) (*SQLiteSessionLog, error) {
	s := &SQLiteSessionLog{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSessionLog) migrate() error {
	query := `
    CREATE TABLE IF NOT EXISTS session_events (
        event_id   TEXT PRIMARY KEY,
        session_id TEXT NOT NULL DEFAULT '',
        agent_did  TEXT NOT NULL,
        event      TEXT NOT NULL,
        detail     TEXT NOT NULL DEFAULT '',
        timestamp  DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_session_events_agent
        ON session_events(agent_did, timestamp);`
	_, err := s.db.ExecContext(context.Background(), query)
	if err != nil {
		return fmt.Errorf("store: migrate session log: %w", err)
	}
	return nil
}

// Record implements SessionLog. A zero EventID or Timestamp is filled in.
func (s *SQLiteSessionLog) Record(ctx context.Context, ev SessionEvent) error {
	if ev.EventID == "" {
		ev.EventID = uuid.New().String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	query := `
        INSERT INTO session_events (event_id, session_id, agent_did, event, detail, timestamp)
        VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		ev.EventID, ev.SessionID, ev.AgentDID, ev.Event, ev.Detail, ev.Timestamp)
	if err != nil {
		return fmt.Errorf("store: record session event: %w", err)
	}
	return nil
}

// Latest returns the most recent event for an agent, or nil when the log has
// no history for it.
func (s *SQLiteSessionLog) Latest(ctx context.Context, agentDID string) (*SessionEvent, error) {
	query := `
        SELECT event_id, session_id, agent_did, event, detail, timestamp
        FROM session_events
        WHERE agent_did = ?
        ORDER BY timestamp DESC, rowid DESC
        LIMIT 1`

	var ev SessionEvent
	err := s.db.QueryRowContext(ctx, query, agentDID).Scan(
		&ev.EventID, &ev.SessionID, &ev.AgentDID, &ev.Event, &ev.Detail, &ev.Timestamp)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: latest session event: %w", err)
	}
	return &ev, nil
}

// List returns up to limit events for an agent, most recent first.
func (s *SQLiteSessionLog) List(ctx context.Context, agentDID string, limit int) ([]SessionEvent, error) {
	query := `
        SELECT event_id, session_id, agent_did, event, detail, timestamp
        FROM session_events
        WHERE agent_did = ?
        ORDER BY timestamp DESC, rowid DESC
        LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, agentDID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list session events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []SessionEvent
	for rows.Next() {
		var ev SessionEvent
		if err := rows.Scan(&ev.EventID, &ev.SessionID, &ev.AgentDID, &ev.Event, &ev.Detail, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("store: scan session event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate session events: %w", err)
	}
	return events, nil
}
