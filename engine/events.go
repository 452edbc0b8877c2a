package engine

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/TheLab-ms/formcheckout/engine/db"
)

const integrationEventsMigration = `
CREATE TABLE IF NOT EXISTS integration_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    created INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
    source TEXT NOT NULL,
    event_type TEXT NOT NULL,
    external_id TEXT,
    success INTEGER NOT NULL DEFAULT 1,
    details TEXT NOT NULL DEFAULT ''
) STRICT;

CREATE INDEX IF NOT EXISTS integration_events_source_created_idx
    ON integration_events (source, created);
`

// EventLogger records notable integration events (captured forms, fees, payment handoffs).
type EventLogger struct {
	db *sql.DB
}

// NewEventLogger creates an EventLogger and applies the integration_events table migration.
func NewEventLogger(d *sql.DB) *EventLogger {
	db.MustMigrate(d, integrationEventsMigration)
	return &EventLogger{db: d}
}

// LogEvent inserts an integration event into the database.
// A nil logger is valid and drops every event.
func (e *EventLogger) LogEvent(ctx context.Context, source, eventType, externalID string, success bool, details string) {
	if e == nil || e.db == nil {
		return
	}

	successInt := 0
	if success {
		successInt = 1
	}

	var extID any
	if externalID != "" {
		extID = externalID
	}

	_, err := e.db.ExecContext(ctx,
		`INSERT INTO integration_events (source, event_type, external_id, success, details) VALUES (?, ?, ?, ?, ?)`,
		source, eventType, extID, successInt, details)
	if err != nil {
		slog.Error("failed to log integration event", "error", err, "source", source, "eventType", eventType)
	}
}
