package engine

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/TheLab-ms/formcheckout/engine/settings"
	"github.com/TheLab-ms/formcheckout/internal/templates"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBody = template.Must(template.New("body").Parse(`<p>{{.}}</p>`))

func renderToRecorder(t *testing.T, resp Response) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	resp.write(w, httptest.NewRequest("GET", "/", nil))
	return w
}

func TestLifecycleRender(t *testing.T) {
	l := &Lifecycle{}

	var seen []string
	l.TemplateRedirect.Add(DefaultPriority, func(ctx context.Context, p *Page) error {
		seen = append(seen, "redirect:"+p.Name)
		return nil
	})
	l.Footer.Add(DefaultPriority, func(ctx context.Context, f *Footer) error {
		seen = append(seen, "footer:"+f.Page.Name)
		fmt.Fprint(f, "<script>/* footer */</script>")
		return nil
	})

	r := httptest.NewRequest("GET", "/checkout", nil)
	resp := l.Render(r, "checkout", "Checkout", templates.Execute(testBody, "body", "<hello>"))
	w := renderToRecorder(t, resp)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"redirect:checkout", "footer:checkout"}, seen)

	body := w.Body.String()
	assert.Contains(t, body, "<title>Checkout</title>")
	assert.Contains(t, body, "<p>&lt;hello&gt;</p>")
	assert.Contains(t, body, "<script>/* footer */</script>\n</body>")
	assert.Less(t, strings.Index(body, "&lt;hello&gt;"), strings.Index(body, "/* footer */"))
}

func TestLifecycleRenderReplacedByHook(t *testing.T) {
	l := &Lifecycle{}
	l.TemplateRedirect.Add(DefaultPriority, func(ctx context.Context, p *Page) error {
		p.Response = Redirect("/login", http.StatusFound)
		return ErrHalt
	})
	l.Footer.Add(DefaultPriority, func(ctx context.Context, f *Footer) error {
		t.Fatal("footer should not run for replaced pages")
		return nil
	})

	r := httptest.NewRequest("GET", "/", nil)
	w := renderToRecorder(t, l.Render(r, "home", "Home", templates.Execute(testBody, "body", "x")))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestLifecycleRenderHookFailure(t *testing.T) {
	l := &Lifecycle{}
	l.Footer.Add(DefaultPriority, func(ctx context.Context, f *Footer) error {
		return fmt.Errorf("footer broke")
	})

	r := httptest.NewRequest("GET", "/", nil)
	w := renderToRecorder(t, l.Render(r, "home", "Home", templates.Execute(testBody, "body", "x")))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestLifecycleInitAdminOnce(t *testing.T) {
	l := &Lifecycle{}
	reg := settings.NewRegistry()

	calls := 0
	l.AdminInit.Add(100, func(ctx context.Context, r *settings.Registry) error {
		calls++
		assert.Same(t, reg, r)
		return nil
	})

	require.NoError(t, l.InitAdmin(context.Background(), reg))
	require.NoError(t, l.InitAdmin(context.Background(), reg))
	assert.Equal(t, 1, calls)
}

func TestLifecycleRenderAdmin(t *testing.T) {
	l := &Lifecycle{}
	l.TemplateRedirect.Add(DefaultPriority, func(ctx context.Context, p *Page) error {
		t.Fatal("front-end hooks should not run on admin pages")
		return nil
	})
	l.Footer.Add(DefaultPriority, func(ctx context.Context, f *Footer) error {
		t.Fatal("front-end hooks should not run on admin pages")
		return nil
	})

	r := httptest.NewRequest("GET", "/admin", nil)
	w := renderToRecorder(t, l.RenderAdmin(r, "admin", "Admin", templates.Execute(testBody, "body", "settings")))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<p>settings</p>")
	assert.Contains(t, w.Body.String(), `class="page-admin"`)
}
