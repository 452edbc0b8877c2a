package settings

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/TheLab-ms/formcheckout/engine/db"
)

const migration = `
CREATE TABLE IF NOT EXISTS form_settings (
    form_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    value TEXT NOT NULL DEFAULT '',
    updated INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
    PRIMARY KEY (form_id, name)
) STRICT;
`

// Store persists settings values per form.
type Store struct {
	db *sql.DB
}

func NewStore(d *sql.DB) *Store {
	db.MustMigrate(d, migration)
	return &Store{db: d}
}

// All returns every stored setting of a form. Unknown forms have no settings.
func (s *Store) All(ctx context.Context, formID int64) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, value FROM form_settings WHERE form_id = ?", formID)
	if err != nil {
		return nil, fmt.Errorf("querying form settings: %w", err)
	}
	defer rows.Close()

	values := map[string]string{}
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		values[name] = value
	}
	return values, rows.Err()
}

// Save upserts the given values for a form in a single transaction.
func (s *Store) Save(ctx context.Context, formID int64, values map[string]string) error {
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		for name, value := range values {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO form_settings (form_id, name, value) VALUES (?, ?, ?)
				ON CONFLICT(form_id, name) DO UPDATE SET value = excluded.value, updated = strftime('%s', 'now')
			`, formID, name, value)
			if err != nil {
				return fmt.Errorf("saving form setting %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.Info("form settings updated", "formID", formID, "count", len(values))
	return nil
}

// MetaboxWithValues is a Metabox with the current values of one form.
type MetaboxWithValues struct {
	Metabox
	Fields []FieldWithValue
}

// FieldWithValue is a Field with its current value.
type FieldWithValue struct {
	Field
	Value   string
	Checked bool
}

// Values pairs the given metaboxes with a form's stored values for the admin UI.
func (s *Store) Values(ctx context.Context, formID int64, boxes []Metabox) ([]MetaboxWithValues, error) {
	values, err := s.All(ctx, formID)
	if err != nil {
		return nil, err
	}

	result := make([]MetaboxWithValues, 0, len(boxes))
	for _, box := range boxes {
		mwv := MetaboxWithValues{Metabox: box}
		for _, f := range box.Settings {
			v := values[f.Name]
			mwv.Fields = append(mwv.Fields, FieldWithValue{Field: f, Value: v, Checked: f.Type == FieldTypeCheckbox && Truthy(v)})
		}
		result = append(result, mwv)
	}
	return result, nil
}

// ParseForm extracts the values of the given fields from a submitted admin form.
// Unchecked checkboxes aren't sent by browsers so they're stored as empty strings.
func ParseForm(fields []Field, form url.Values) map[string]string {
	values := make(map[string]string, len(fields))
	for _, f := range fields {
		v := form.Get(f.Name)
		if f.Type == FieldTypeCheckbox {
			if Truthy(v) {
				v = "1"
			} else {
				v = ""
			}
		}
		values[f.Name] = v
	}
	return values
}
