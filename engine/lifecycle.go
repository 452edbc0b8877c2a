package engine

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"io"
	"net/http"
	"sync"

	"github.com/TheLab-ms/formcheckout/engine/settings"
	"github.com/TheLab-ms/formcheckout/internal/templates"
)

// Page describes the page currently being rendered.
type Page struct {
	Request *http.Request
	Name    string

	// Response can be set by a TemplateRedirect hook to replace the page entirely.
	Response Response
}

func (p *Page) Is(name string) bool { return p != nil && p.Name == name }

// Footer is passed to Footer hooks, anything written to it ends up right before </body>.
// Writes are treated as trusted markup so hooks are responsible for escaping.
type Footer struct {
	io.Writer
	Page *Page
}

// Lifecycle holds the hooks fired while pages are rendered and the admin is initialized.
type Lifecycle struct {
	TemplateRedirect Hook[*Page]
	Footer           Hook[*Footer]
	AdminInit        Hook[*settings.Registry]

	adminOnce sync.Once
	adminErr  error
}

// InitAdmin fires AdminInit exactly once per process.
// Admin handlers call it before touching the settings registry.
func (l *Lifecycle) InitAdmin(ctx context.Context, reg *settings.Registry) error {
	l.adminOnce.Do(func() {
		l.adminErr = l.AdminInit.Fire(ctx, reg)
		if errors.Is(l.adminErr, ErrHalt) {
			l.adminErr = nil
		}
	})
	return l.adminErr
}

type layoutData struct {
	Title   string
	Page    string
	Content template.HTML
	Footer  template.HTML
}

// Render wraps body in the shared page layout, firing the TemplateRedirect hook
// before anything is rendered and the Footer hook after the body.
func (l *Lifecycle) Render(r *http.Request, name, title string, body templates.Component) Response {
	ctx := r.Context()
	page := &Page{Request: r, Name: name}

	err := l.TemplateRedirect.Fire(ctx, page)
	if err != nil && !errors.Is(err, ErrHalt) {
		return Errorf("running template redirect hooks: %s", err)
	}
	if page.Response != nil {
		return page.Response
	}

	content := &bytes.Buffer{}
	if err := body.Render(ctx, content); err != nil {
		return Errorf("rendering page %q: %s", name, err)
	}

	footer := &bytes.Buffer{}
	err = l.Footer.Fire(ctx, &Footer{Writer: footer, Page: page})
	if err != nil && !errors.Is(err, ErrHalt) {
		return Errorf("running footer hooks: %s", err)
	}

	return layout(name, title, content, footer)
}

// RenderAdmin wraps body in the shared page layout without firing any front-end hooks.
func (l *Lifecycle) RenderAdmin(r *http.Request, name, title string, body templates.Component) Response {
	content := &bytes.Buffer{}
	if err := body.Render(r.Context(), content); err != nil {
		return Errorf("rendering admin page %q: %s", name, err)
	}
	return layout(name, title, content, &bytes.Buffer{})
}

func layout(name, title string, content, footer *bytes.Buffer) Response {
	return Component(templates.Execute(engineTemplates, "layout.html", &layoutData{
		Title:   title,
		Page:    name,
		Content: template.HTML(content.String()),
		Footer:  template.HTML(footer.String()),
	}))
}
