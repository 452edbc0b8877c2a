package engine

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/TheLab-ms/formcheckout/engine/db"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
)

func TestNewRouter(t *testing.T) {
	router := NewRouter(nil)
	assert.NotNil(t, router)
	assert.NotNil(t, router.router)
	assert.NotNil(t, router.Sessioner)

	// Test with custom handler
	customHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not found"))
	})
	router = NewRouter(customHandler)
	req := httptest.NewRequest("GET", "/missing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "not found", w.Body.String())
}

func TestRouter_Handle(t *testing.T) {
	router := NewRouter(nil)

	// Basic request handling
	router.Handle("GET", "/test", func(r *http.Request, ps httprouter.Params) Response {
		return JSON(map[string]string{"ok": "true"})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), `"ok":"true"`)

	// Path parameters
	router.Handle("GET", "/users/:id", func(r *http.Request, ps httprouter.Params) Response {
		return JSON(map[string]string{"id": ps.ByName("id")})
	})

	req = httptest.NewRequest("GET", "/users/123", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), `"id":"123"`)

	// Error handling - JSON
	router.Handle("GET", "/error", func(r *http.Request, ps httprouter.Params) Response {
		return ClientErrorf(http.StatusBadRequest, "bad request")
	})

	req = httptest.NewRequest("GET", "/error", nil)
	req.Header.Set("Accept", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "bad request")

	// Error handling - HTML
	req = httptest.NewRequest("GET", "/error", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "bad request")

	// Server errors don't leak details
	router.Handle("GET", "/boom", func(r *http.Request, ps httprouter.Params) Response {
		return Error(errors.New("secret database detail"))
	})

	req = httptest.NewRequest("GET", "/boom", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "secret database detail")
	assert.Contains(t, w.Body.String(), genericErrorMessage)

	// Redirects
	router.Handle("POST", "/go", func(r *http.Request, ps httprouter.Params) Response {
		return Redirect("/elsewhere", http.StatusSeeOther)
	})

	req = httptest.NewRequest("POST", "/go", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/elsewhere", w.Header().Get("Location"))
}

func TestHealthProbe(t *testing.T) {
	router := NewRouter(nil)
	router.Handle("GET", "/healthz", ServeHealthProbe(db.OpenTest(t)))

	server := httptest.NewServer(router)
	defer server.Close()

	assert.NoError(t, CheckHealthProbe(server.URL+"/healthz"))
	assert.Error(t, CheckHealthProbe(server.URL+"/nope"))
}

func TestRouterServeFiles(t *testing.T) {
	router := NewRouter(nil)
	router.ServeFiles("/static/*filepath", fstest.MapFS{
		"site.css": &fstest.MapFile{Data: []byte("body {}")},
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/static/site.css", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "body {}", w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/static/missing.css", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
