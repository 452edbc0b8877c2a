package engine

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
)

// Handler is the signature of every route registered with the router.
// Handlers describe their result as a Response instead of writing to the client directly.
type Handler func(*http.Request, httprouter.Params) Response

// Sessioner gives handlers access to a visitor session.
// The session module provides the real implementation.
type Sessioner interface {
	WithSession(Handler) Handler
}

type noopSessioner struct{}

func (noopSessioner) WithSession(fn Handler) Handler { return fn }

type Router struct {
	router *httprouter.Router

	// Sessioner can be used to pass a session implementation to other handlers.
	Sessioner
}

// NewRouter returns a router that falls back to notFound (if not nil) for unknown routes.
func NewRouter(notFound http.Handler) *Router {
	r := httprouter.New()
	r.NotFound = notFound
	r.HandleMethodNotAllowed = false
	r.PanicHandler = func(w http.ResponseWriter, r *http.Request, val any) {
		slog.Error("panic while handling request", "url", r.URL.Path, "panic", val)
		http.Error(w, "Internal error - please try again later", 500)
	}
	return &Router{router: r, Sessioner: noopSessioner{}}
}

// Serve wires up the stdlib http server to the engine.
func (r *Router) Serve(addr string) Proc {
	return func(ctx context.Context) error {
		svr := &http.Server{Handler: r, Addr: addr}
		go func() {
			<-ctx.Done()
			slog.Warn("gracefully shutting down http server...")
			svr.Shutdown(context.Background())
		}()
		if err := svr.ListenAndServe(); err != nil {
			return err
		}
		slog.Info("the http server has shut down")
		return nil
	}
}

// ServeFiles serves fsys under path, which must end with "/*filepath".
func (r *Router) ServeFiles(path string, fsys fs.FS) { r.router.ServeFiles(path, http.FS(fsys)) }

func (r *Router) ServeHTTP(w http.ResponseWriter, rr *http.Request) { r.router.ServeHTTP(w, rr) }

func (r *Router) Handle(method, path string, fn Handler) {
	r.router.Handle(method, path, func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		start := time.Now()

		ww := &responseWrapper{ResponseWriter: w, status: 200}
		resp := fn(r, p)
		if resp != nil {
			resp.write(ww, r)
		}
		slog.Info("http request", "url", r.URL.Path, "method", r.Method, "userAgent", r.UserAgent(), "latencyMS", time.Since(start).Milliseconds(), "status", ww.status)
	})
}

type responseWrapper struct {
	http.ResponseWriter
	status int
}

func (w *responseWrapper) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
