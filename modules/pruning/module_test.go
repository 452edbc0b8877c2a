package pruning

import (
	"testing"
	"time"

	"github.com/TheLab-ms/formcheckout/engine"
	"github.com/TheLab-ms/formcheckout/engine/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasics(t *testing.T) {
	ctx := t.Context()
	ts := time.Now()
	db := db.OpenTest(t)
	m := New(db)

	_, err := db.ExecContext(ctx, `CREATE TABLE test_items (id INTEGER PRIMARY KEY, created INTEGER)`)
	require.NoError(t, err)
	require.NoError(t, m.SetRetention(ctx, "test_items", time.Hour*24*365*2))

	for id, offset := range map[int]time.Duration{
		1: time.Hour * 24 * 365 * 3,    // 3 years in the future
		2: -(time.Hour * 24 * 365 * 3), // 3 years in the past
		3: time.Hour * 24 * 365,        // 1 year in the future
		4: -(time.Hour * 24 * 365),     // 1 year in the past
	} {
		_, err = db.ExecContext(ctx, `INSERT INTO test_items (id, created) VALUES (?, ?)`, id, ts.Add(offset).Unix())
		require.NoError(t, err)
	}

	m.runPruneJobs(ctx)
	m.runPruneJobs(ctx)

	rows, err := db.Query("SELECT id FROM test_items")
	require.NoError(t, err)
	defer rows.Close()

	ids := []int{}
	for rows.Next() {
		var id int
		rows.Scan(&id)
		ids = append(ids, id)
	}
	assert.ElementsMatch(t, []int{1, 3, 4}, ids)

	// Shortening the retention prunes more
	require.NoError(t, m.SetRetention(ctx, "test_items", time.Hour*24*180))
	m.runPruneJobs(ctx)

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM test_items").Scan(&n))
	assert.Equal(t, 2, n)
}

func TestDefaultJobs(t *testing.T) {
	ctx := t.Context()
	d := db.OpenTest(t)
	events := engine.NewEventLogger(d)
	m := New(d)
	New(d) // migrations are idempotent

	var jobs int
	require.NoError(t, d.QueryRow("SELECT COUNT(*) FROM pruning_jobs").Scan(&jobs))
	assert.Equal(t, 2, jobs)

	events.LogEvent(ctx, "stripe", "CheckoutCreated", "cs_new", true, "")
	events.LogEvent(ctx, "stripe", "CheckoutCreated", "cs_old", true, "")
	_, err := d.Exec("UPDATE integration_events SET created = strftime('%s', 'now') - 100 * 86400 WHERE external_id = 'cs_old'")
	require.NoError(t, err)

	// The submissions table doesn't exist here, which only fails that job
	m.runPruneJobs(ctx)

	var ids []string
	rows, err := d.Query("SELECT external_id FROM integration_events")
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var id string
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	assert.Equal(t, []string{"cs_new"}, ids)
}
