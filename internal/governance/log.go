package governance

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// #region schema

const schema = `
CREATE TABLE IF NOT EXISTS audit_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	action        TEXT NOT NULL,
	version_id    TEXT,
	status        TEXT NOT NULL,
	triggered_by  TEXT NOT NULL,
	details_json  TEXT,
	created_at    TEXT NOT NULL
);
`

// #endregion schema

// #region event

// AuditEvent is one append-only governance record. Events are never updated
// or deleted.
type AuditEvent struct {
	ID          int64                  `json:"id"`
	Action      string                 `json:"action"`
	VersionID   string                 `json:"version"`
	Status      string                 `json:"status"`
	TriggeredBy string                 `json:"triggered_by"`
	Details     map[string]interface{} `json:"details,omitempty"`
	CreatedAt   time.Time              `json:"timestamp"`
}

// #endregion event

// #region log

// Log is the append-only audit trail backed by SQLite.
type Log struct {
	db *sql.DB
}

// NewLog opens a SQLite database and runs migrations.
func NewLog(dbPath string) (*Log, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	return NewLogWithDB(db)
}

// NewLogWithDB runs migrations on an existing connection.
func NewLogWithDB(db *sql.DB) (*Log, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Log{db: db}, nil
}

// Close closes the underlying database connection.
func (l *Log) Close() error {
	return l.db.Close()
}

// #endregion log

// #region record

// Record appends one audit event. Satisfies the orchestrator's audit sink.
func (l *Log) Record(action, version, status, triggeredBy string, details map[string]interface{}) error {
	var detailsPtr interface{}
	if len(details) > 0 {
		data, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("marshal details: %w", err)
		}
		detailsPtr = string(data)
	}

	_, err := l.db.Exec(
		`INSERT INTO audit_log (action, version_id, status, triggered_by, details_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		action, version, status, triggeredBy, detailsPtr, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// #endregion record

// #region recent

// Recent returns the newest events first, up to limit.
func (l *Log) Recent(limit int) ([]AuditEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.Query(
		`SELECT id, action, version_id, status, triggered_by, details_json, created_at
		 FROM audit_log ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var e AuditEvent
		var versionID, detailsJSON sql.NullString
		var createdStr string
		if err := rows.Scan(&e.ID, &e.Action, &versionID, &e.Status, &e.TriggeredBy, &detailsJSON, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if versionID.Valid {
			e.VersionID = versionID.String
		}
		if detailsJSON.Valid {
			// Malformed details degrade to nil rather than failing the read.
			_ = json.Unmarshal([]byte(detailsJSON.String), &e.Details)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		events = append(events, e)
	}
	return events, rows.Err()
}

// #endregion recent
