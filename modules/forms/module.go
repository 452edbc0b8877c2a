// Package forms hosts simple forms and fires a hook for every saved submission.
//
// Forms only collect a first name, an email address and a computed total. What happens
// with a submission is up to the observers of OnSubmission.
package forms

import (
	"bytes"
	"context"
	"crypto/subtle"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/TheLab-ms/formcheckout/engine"
	"github.com/TheLab-ms/formcheckout/engine/db"
	"github.com/TheLab-ms/formcheckout/engine/settings"
	"github.com/TheLab-ms/formcheckout/internal/templates"
	"github.com/julienschmidt/httprouter"
	"golang.org/x/time/rate"
)

const migration = `
CREATE TABLE IF NOT EXISTS forms (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    created INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
    title TEXT NOT NULL,
    ajax INTEGER NOT NULL DEFAULT 0
) STRICT;

CREATE TABLE IF NOT EXISTS submissions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    created INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
    form_id INTEGER NOT NULL REFERENCES forms(id) ON DELETE CASCADE,
    fields TEXT NOT NULL DEFAULT '{}'
) STRICT;
`

// The admin page and tab that form-level settings are registered into.
const (
	SettingsPage = "ninja-forms"
	SettingsTab  = "form_settings"
)

//go:embed templates/*.html
var templateFS embed.FS

var views = templates.MustParseFS(templateFS, "templates/*.html")

type Module struct {
	db        *sql.DB
	lifecycle *engine.Lifecycle
	settings  *settings.Store
	registry  *settings.Registry
	limiter   *rate.Limiter

	// AdminPassword protects the admin routes with HTTP basic auth when set.
	AdminPassword string

	// OnSubmission is fired after a submission has been saved.
	OnSubmission engine.Hook[*Submission]
}

func New(d *sql.DB, lc *engine.Lifecycle, store *settings.Store, registry *settings.Registry, submitRPS int) *Module {
	db.MustMigrate(d, migration)
	if submitRPS < 1 {
		submitRPS = 1
	}
	return &Module{
		db:        d,
		lifecycle: lc,
		settings:  store,
		registry:  registry,
		limiter:   rate.NewLimiter(rate.Limit(submitRPS), submitRPS*2),
	}
}

func (m *Module) AttachRoutes(router *engine.Router) {
	router.Handle("GET", "/forms/:id", router.WithSession(m.renderForm))
	router.Handle("POST", "/forms/:id", router.WithSession(engine.WithRateLimit(m.limiter, m.handleSubmit)))

	router.Handle("GET", "/admin/forms", m.withAdmin(m.renderAdminList))
	router.Handle("POST", "/admin/forms", m.withAdmin(m.handleCreateForm))
	router.Handle("GET", "/admin/forms/:id/settings", m.withAdmin(m.renderAdminSettings))
	router.Handle("POST", "/admin/forms/:id/settings", m.withAdmin(m.handleSaveSettings))
}

// Form is a stored form definition.
type Form struct {
	ID    int64
	Title string
	Ajax  bool
}

// CreateForm stores a new form and returns its ID.
func (m *Module) CreateForm(ctx context.Context, title string, ajax bool) (int64, error) {
	var id int64
	err := m.db.QueryRowContext(ctx, "INSERT INTO forms (title, ajax) VALUES (?, ?) RETURNING id", title, boolToInt(ajax)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting form: %w", err)
	}
	slog.Info("created form", "formID", id, "title", title, "ajax", ajax)
	return id, nil
}

func (m *Module) loadForm(r *http.Request, ps httprouter.Params) (*Form, engine.Response) {
	id, err := strconv.ParseInt(ps.ByName("id"), 10, 64)
	if err != nil {
		return nil, engine.ClientErrorf(http.StatusBadRequest, "Invalid form ID")
	}

	form := &Form{}
	err = m.db.QueryRowContext(r.Context(), "SELECT id, title, ajax FROM forms WHERE id = ?", id).Scan(&form.ID, &form.Title, &form.Ajax)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engine.ClientErrorf(http.StatusNotFound, "Form not found")
	}
	if err != nil {
		return nil, engine.Errorf("querying form: %s", err)
	}
	return form, nil
}

func (m *Module) renderForm(r *http.Request, ps httprouter.Params) engine.Response {
	form, resp := m.loadForm(r, ps)
	if resp != nil {
		return resp
	}
	return m.lifecycle.Render(r, "form", form.Title, templates.Execute(views, "form.html", form))
}

func (m *Module) handleSubmit(r *http.Request, ps httprouter.Params) engine.Response {
	form, resp := m.loadForm(r, ps)
	if resp != nil {
		return resp
	}
	ctx := r.Context()

	formSettings, err := m.settings.All(ctx, form.ID)
	if err != nil {
		return engine.Error(err)
	}

	sub := &Submission{
		Request:   r,
		FormID:    form.ID,
		FormTitle: form.Title,
		Ajax:      form.Ajax,
		Settings:  formSettings,
		UserInfo:  map[string]string{},
		Total:     parseCalcTotal(r.PostFormValue("_calc")),
	}
	for _, key := range []string{"first_name", "email"} {
		if v := strings.TrimSpace(r.PostFormValue(key)); v != "" {
			sub.UserInfo[key] = v
		}
	}

	fields, _ := json.Marshal(map[string]any{"user_info": sub.UserInfo, "calc": sub.Total})
	err = m.db.QueryRowContext(ctx, "INSERT INTO submissions (form_id, fields) VALUES (?, ?) RETURNING id", form.ID, string(fields)).Scan(&sub.ID)
	if err != nil {
		return engine.Errorf("saving submission: %s", err)
	}
	slog.Info("saved form submission", "formID", form.ID, "submissionID", sub.ID)

	err = m.OnSubmission.Fire(ctx, sub)
	if errors.Is(err, engine.ErrHalt) && sub.Response != nil {
		return sub.Response
	}
	if err != nil && !errors.Is(err, engine.ErrHalt) {
		return engine.Errorf("running submission hooks: %s", err)
	}

	if form.Ajax {
		reply := map[string]any{"success": true, "submission": sub.ID}
		if sub.RedirectURL != "" {
			reply["redirect"] = sub.RedirectURL
		}
		return engine.JSON(reply)
	}
	return m.lifecycle.Render(r, "form-submitted", form.Title, templates.Execute(views, "thanks.html", form))
}

// parseCalcTotal returns JSON objects as a structured breakdown and everything else as the raw scalar.
func parseCalcTotal(raw string) any {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "{") {
		dec := json.NewDecoder(bytes.NewBufferString(raw))
		dec.UseNumber()
		breakdown := map[string]any{}
		if err := dec.Decode(&breakdown); err == nil {
			return breakdown
		}
	}
	return raw
}

func (m *Module) withAdmin(next engine.Handler) engine.Handler {
	return func(r *http.Request, ps httprouter.Params) engine.Response {
		if m.AdminPassword != "" {
			_, pass, ok := r.BasicAuth()
			if !ok || subtle.ConstantTimeCompare([]byte(pass), []byte(m.AdminPassword)) != 1 {
				return engine.Unauthorized("formcheckout admin")
			}
		}
		if err := m.lifecycle.InitAdmin(r.Context(), m.registry); err != nil {
			return engine.Errorf("initializing admin: %s", err)
		}
		return next(r, ps)
	}
}

func (m *Module) renderAdminList(r *http.Request, ps httprouter.Params) engine.Response {
	rows, err := m.db.QueryContext(r.Context(), "SELECT id, title, ajax FROM forms ORDER BY id")
	if err != nil {
		return engine.Errorf("querying forms: %s", err)
	}
	defer rows.Close()

	var forms []*Form
	for rows.Next() {
		f := &Form{}
		if err := rows.Scan(&f.ID, &f.Title, &f.Ajax); err != nil {
			return engine.Error(err)
		}
		forms = append(forms, f)
	}
	if err := rows.Err(); err != nil {
		return engine.Error(err)
	}

	return m.lifecycle.RenderAdmin(r, "admin-forms", "Forms", templates.Execute(views, "admin_list.html", forms))
}

func (m *Module) handleCreateForm(r *http.Request, ps httprouter.Params) engine.Response {
	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		return engine.ClientErrorf(http.StatusBadRequest, "A title is required")
	}

	id, err := m.CreateForm(r.Context(), title, r.FormValue("ajax") != "")
	if err != nil {
		return engine.Error(err)
	}
	return engine.Redirect(fmt.Sprintf("/admin/forms/%d/settings", id), http.StatusSeeOther)
}

type adminSettingsView struct {
	Form      *Form
	Metaboxes []settings.MetaboxWithValues
}

func (m *Module) renderAdminSettings(r *http.Request, ps httprouter.Params) engine.Response {
	form, resp := m.loadForm(r, ps)
	if resp != nil {
		return resp
	}

	boxes, err := m.settings.Values(r.Context(), form.ID, m.registry.Metaboxes(SettingsPage, SettingsTab))
	if err != nil {
		return engine.Error(err)
	}

	return m.lifecycle.RenderAdmin(r, "admin-form-settings", form.Title+" settings", templates.Execute(views, "admin_settings.html", &adminSettingsView{Form: form, Metaboxes: boxes}))
}

func (m *Module) handleSaveSettings(r *http.Request, ps httprouter.Params) engine.Response {
	form, resp := m.loadForm(r, ps)
	if resp != nil {
		return resp
	}
	if err := r.ParseForm(); err != nil {
		return engine.ClientErrorf(http.StatusBadRequest, "Invalid form body")
	}

	values := settings.ParseForm(m.registry.Fields(SettingsPage, SettingsTab), r.PostForm)
	if err := m.settings.Save(r.Context(), form.ID, values); err != nil {
		return engine.Error(err)
	}
	return engine.Redirect(fmt.Sprintf("/admin/forms/%d/settings", form.ID), http.StatusSeeOther)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
