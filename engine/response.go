package engine

import (
	"bytes"
	"embed"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/TheLab-ms/formcheckout/internal/templates"
)

//go:embed templates/*.html
var templateFS embed.FS

var engineTemplates = templates.MustParseFS(templateFS, "templates/*.html")

// Response is the result of a Handler.
type Response interface {
	write(w http.ResponseWriter, r *http.Request)
}

type componentResponse struct {
	component templates.Component
	status    int
}

// Component renders an HTML component with a 200 status.
func Component(c templates.Component) Response {
	return &componentResponse{component: c, status: http.StatusOK}
}

func (c *componentResponse) write(w http.ResponseWriter, r *http.Request) {
	// Render into a buffer first so template errors still produce a clean 500
	buf := &bytes.Buffer{}
	if err := c.component.Render(r.Context(), buf); err != nil {
		Errorf("rendering component: %s", err).write(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(c.status)
	w.Write(buf.Bytes())
}

type redirectResponse struct {
	url  string
	code int
}

func Redirect(url string, code int) Response { return &redirectResponse{url: url, code: code} }

func (rr *redirectResponse) write(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, rr.url, rr.code)
}

type jsonResponse struct {
	status int
	value  any
}

// JSON encodes v as the response body with a 200 status.
func JSON(v any) Response { return &jsonResponse{status: http.StatusOK, value: v} }

func (j *jsonResponse) write(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(j.status)
	if err := json.NewEncoder(w).Encode(j.value); err != nil {
		slog.Error("encoding json response", "error", err)
	}
}

type cookieResponse struct {
	cookie *http.Cookie
	next   Response
}

// WithCookie sets a cookie before writing the wrapped response.
func WithCookie(c *http.Cookie, next Response) Response {
	return &cookieResponse{cookie: c, next: next}
}

func (c *cookieResponse) write(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, c.cookie)
	if c.next != nil {
		c.next.write(w, r)
	}
}
