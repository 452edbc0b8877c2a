// Package settings is the per-form settings framework.
//
// Modules describe their settings as metaboxes (a group of fields shown on one tab of an
// admin page) and register them with a Registry, usually from an AdminInit hook.
// The values entered for each form are persisted by the Store.
package settings

import "fmt"

// FieldType represents the input type of a settings field.
type FieldType string

const (
	FieldTypeCheckbox FieldType = "checkbox"
	FieldTypeText     FieldType = "text"
	FieldTypeTextArea FieldType = "textarea"
)

// Field describes a single settings field for the admin UI.
type Field struct {
	Name     string
	Type     FieldType
	Label    string
	Desc     string
	HelpText string
}

// Metabox is a group of fields registered into a page/tab of the admin UI.
type Metabox struct {
	Page     string
	Tab      string
	Slug     string
	Title    string
	Settings []Field
}

func (m *Metabox) validate() error {
	if m.Page == "" || m.Tab == "" || m.Slug == "" {
		return fmt.Errorf("metabox page, tab, and slug are required (got %q/%q/%q)", m.Page, m.Tab, m.Slug)
	}
	for _, f := range m.Settings {
		if f.Name == "" {
			return fmt.Errorf("metabox %q has a field without a name", m.Slug)
		}
		switch f.Type {
		case FieldTypeCheckbox, FieldTypeText, FieldTypeTextArea:
		default:
			return fmt.Errorf("field %q has unknown type %q", f.Name, f.Type)
		}
	}
	return nil
}

// Truthy reports whether a stored setting value should be treated as enabled.
// Empty strings and "0" are falsy, like unchecked checkboxes.
func Truthy(v string) bool { return v != "" && v != "0" }
