// Package pruning deletes rows once they outlive their retention period.
package pruning

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/TheLab-ms/formcheckout/engine"
	"github.com/TheLab-ms/formcheckout/engine/db"
)

const migration = `
CREATE TABLE IF NOT EXISTS pruning_jobs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    table_name TEXT NOT NULL UNIQUE,
    column TEXT NOT NULL DEFAULT 'created',
    ttl INTEGER NOT NULL DEFAULT (365 * 86400) -- 1 year
);

INSERT OR IGNORE INTO pruning_jobs (table_name, ttl) VALUES ('submissions', 365 * 86400);
INSERT OR IGNORE INTO pruning_jobs (table_name, ttl) VALUES ('integration_events', 90 * 86400);
`

type Module struct {
	db *sql.DB
}

func New(d *sql.DB) *Module {
	db.MustMigrate(d, migration)
	return &Module{db: d}
}

func (m *Module) AttachWorkers(mgr *engine.ProcMgr) {
	mgr.Add(engine.Poll(time.Hour, m.runPruneJobs))
}

// SetRetention changes (or adds) the retention period of a table.
func (m *Module) SetRetention(ctx context.Context, table string, ttl time.Duration) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO pruning_jobs (table_name, ttl) VALUES ($1, $2)
		ON CONFLICT (table_name) DO UPDATE SET ttl = $2`, table, int64(ttl.Seconds()))
	if err != nil {
		return fmt.Errorf("setting retention of %s: %w", table, err)
	}
	return nil
}

func (m *Module) runPruneJobs(ctx context.Context) bool {
	jobs, err := m.listPruneJobs(ctx)
	if err != nil {
		slog.Error("failed to list prune jobs", "error", err)
		return false
	}
	for table, job := range jobs {
		m.runPruneJob(ctx, table, job)
	}
	return false
}

func (m *Module) listPruneJobs(ctx context.Context) (map[string]string, error) {
	query, err := m.db.QueryContext(ctx, "SELECT table_name, column, ttl FROM pruning_jobs")
	if err != nil {
		return nil, err
	}
	defer query.Close()

	queries := map[string]string{}
	for query.Next() {
		var table, column string
		var ttl int64 // seconds
		if err := query.Scan(&table, &column, &ttl); err != nil {
			return nil, err
		}
		queries[table] = fmt.Sprintf("DELETE FROM %q WHERE %q < strftime('%%s', 'now') - %d", table, column, ttl)
	}
	return queries, query.Err()
}

func (m *Module) runPruneJob(ctx context.Context, table, query string) {
	start := time.Now()
	result, err := m.db.ExecContext(ctx, query)
	if err != nil {
		slog.Error("failed to run prune job", "table", table, "error", err)
		return
	}

	if rowsAffected, _ := result.RowsAffected(); rowsAffected > 0 {
		slog.Info("prune job completed", "table", table, "duration", time.Since(start), "rows", rowsAffected)
	}
}
