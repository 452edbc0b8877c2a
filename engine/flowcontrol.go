package engine

import (
	"context"
	"database/sql"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"golang.org/x/time/rate"
)

type PollingFunc func(context.Context) bool

// Poll is a Proc that polls a given function regularly.
// If the function returns true, it will be called again immediately.
func Poll(interval time.Duration, fn PollingFunc) Proc {
	return func(ctx context.Context) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			if fn(ctx) {
				continue // take possible next item immediately
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
			ticker.Reset(time.Duration(float64(interval) * (0.9 + 0.2*rand.Float64())))
		}
	}
}

// Cleanup returns a PollingFunc that periodically runs a DELETE query.
// It logs errors and successful cleanups (when rows are affected).
func Cleanup(db *sql.DB, name, query string, args ...any) PollingFunc {
	return func(ctx context.Context) bool {
		start := time.Now()
		result, err := db.ExecContext(ctx, query, args...)
		if err != nil {
			slog.Error("failed to cleanup "+name, "error", err)
			return false
		}
		rowsAffected, _ := result.RowsAffected()
		if rowsAffected > 0 {
			slog.Info("cleaned up "+name, "duration", time.Since(start), "rows", rowsAffected)
		}
		return false
	}
}

// WithRateLimit rejects requests with a 429 once the limiter runs out of tokens.
// The limiter is shared by every caller of the returned handler.
func WithRateLimit(limiter *rate.Limiter, next Handler) Handler {
	return func(r *http.Request, ps httprouter.Params) Response {
		if !limiter.Allow() {
			slog.Warn("rate limited request", "url", r.URL.Path)
			return ClientErrorf(http.StatusTooManyRequests, "Too many requests - please wait a moment and try again")
		}
		return next(r, ps)
	}
}
