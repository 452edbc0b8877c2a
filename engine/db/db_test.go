package db

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDB(t *testing.T) {
	file := filepath.Join(t.TempDir(), "test.db")
	db1, err := Open(file)
	require.NoError(t, err)
	db1.Close()

	db2, err := Open(file)
	require.NoError(t, err)
	db2.Close()
}

func TestForeignKeys(t *testing.T) {
	db := OpenTest(t)
	MustMigrate(db, `
		CREATE TABLE parents (id INTEGER PRIMARY KEY);
		CREATE TABLE children (id INTEGER PRIMARY KEY, parent INTEGER NOT NULL REFERENCES parents(id) ON DELETE CASCADE);
		INSERT INTO parents (id) VALUES (1);
		INSERT INTO children (id, parent) VALUES (1, 1);
	`)

	_, err := db.Exec("INSERT INTO children (id, parent) VALUES (2, 404)")
	assert.Error(t, err, "orphaned rows are rejected")

	_, err = db.Exec("DELETE FROM parents WHERE id = 1")
	require.NoError(t, err)

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM children").Scan(&n))
	assert.Equal(t, 0, n)
}

func TestMustMigratePanics(t *testing.T) {
	db := OpenTest(t)
	assert.Panics(t, func() { MustMigrate(db, "NOT SQL") })
}

func TestWithTx(t *testing.T) {
	ctx := t.Context()
	db := OpenTest(t)
	MustMigrate(db, `CREATE TABLE items (id INTEGER PRIMARY KEY)`)

	err := WithTx(ctx, db, func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO items (id) VALUES (1)")
		return err
	})
	require.NoError(t, err)

	err = WithTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO items (id) VALUES (2)"); err != nil {
			return err
		}
		return errors.New("changed my mind")
	})
	assert.EqualError(t, err, "changed my mind")

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM items").Scan(&n))
	assert.Equal(t, 1, n, "the failed transaction was rolled back")
}
