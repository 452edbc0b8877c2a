// Package templates adapts html/template to a small renderable component interface.
package templates

import (
	"context"
	"embed"
	"html/template"
	"io"
)

// Component represents a template component that can be rendered
type Component interface {
	Render(ctx context.Context, w io.Writer) error
}

// ComponentFunc adapts a plain function to the Component interface.
type ComponentFunc func(ctx context.Context, w io.Writer) error

func (f ComponentFunc) Render(ctx context.Context, w io.Writer) error { return f(ctx, w) }

// TemplateComponent implements Component interface for html/template rendering
type TemplateComponent struct {
	Template *template.Template
	Name     string // optional: execute a named template within Template
	Data     any
}

// Render renders the template component to the writer
func (tc *TemplateComponent) Render(ctx context.Context, w io.Writer) error {
	if tc.Name != "" {
		return tc.Template.ExecuteTemplate(w, tc.Name, tc.Data)
	}
	return tc.Template.Execute(w, tc.Data)
}

// Execute creates a component that renders the named template of t with the given data.
func Execute(t *template.Template, name string, data any) Component {
	return &TemplateComponent{Template: t, Name: name, Data: data}
}

// MustParseFS parses every template matching the patterns, panicking on error.
// Modules call this from package-level vars so broken templates fail at startup.
func MustParseFS(fsys embed.FS, patterns ...string) *template.Template {
	return template.Must(template.New("").ParseFS(fsys, patterns...))
}
