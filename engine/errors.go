package engine

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/TheLab-ms/formcheckout/internal/templates"
)

const genericErrorMessage = "Internal error - please try again later"

type httpError struct {
	StatusCode int
	Message    string
	cause      error
}

func (e *httpError) Error() string { return e.Message }

// ClientErrorf returns a response that shows the formatted message to the client.
func ClientErrorf(status int, msg string, args ...any) Response {
	return &httpError{StatusCode: status, Message: fmt.Sprintf(msg, args...)}
}

// Errorf logs the formatted message and returns a generic 500 to the client.
func Errorf(msg string, args ...any) Response {
	return Error(fmt.Errorf(msg, args...))
}

// Error logs err and returns a generic 500 to the client.
func Error(err error) Response {
	return &httpError{StatusCode: 500, Message: genericErrorMessage, cause: err}
}

func (e *httpError) write(w http.ResponseWriter, r *http.Request) {
	if e.cause != nil {
		slog.Error("error while handling request", "url", r.URL.Path, "error", e.cause)
	}

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		(&jsonResponse{status: e.StatusCode, value: map[string]string{"error": e.Message}}).write(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(e.StatusCode)
	renderError(e).Render(r.Context(), w)
}

func renderError(e *httpError) templates.Component {
	return templates.Execute(engineTemplates, "error.html", e)
}

type unauthorizedResponse string

// Unauthorized asks the client for HTTP basic auth credentials.
func Unauthorized(realm string) Response { return unauthorizedResponse(realm) }

func (u unauthorizedResponse) write(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", string(u)))
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}
