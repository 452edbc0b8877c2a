// Package session stores small key/value slots per visitor.
//
// Visitors are identified by a signed cookie holding a random session ID.
// Values live in sqlite so they survive restarts and are shared by every request of the visitor.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/TheLab-ms/formcheckout/engine"
	"github.com/TheLab-ms/formcheckout/engine/db"
	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
)

const migration = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    created INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
    last_seen INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
) STRICT;

CREATE TABLE IF NOT EXISTS session_values (
    session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    key TEXT NOT NULL,
    value TEXT NOT NULL,
    PRIMARY KEY (session_id, key)
) STRICT;

CREATE INDEX IF NOT EXISTS sessions_last_seen_idx ON sessions (last_seen);
`

const (
	CookieName = "formcheckout_session"
	ttl        = time.Hour * 48
	audience   = "formcheckout-session"
)

type Module struct {
	db   *sql.DB
	self *url.URL
	iss  *engine.TokenIssuer
}

func New(d *sql.DB, self *url.URL, iss *engine.TokenIssuer) *Module {
	db.MustMigrate(d, migration)
	return &Module{db: d, self: self, iss: iss}
}

func (m *Module) AttachWorkers(mgr *engine.ProcMgr) {
	mgr.Add(engine.Poll(time.Hour, engine.Cleanup(m.db, "idle sessions",
		"DELETE FROM sessions WHERE last_seen < strftime('%s', 'now') - ?", int64(ttl.Seconds()))))
}

// WithSession makes sure the request has a session, creating one (and setting the cookie) when needed.
func (m *Module) WithSession(next engine.Handler) engine.Handler {
	return func(r *http.Request, p httprouter.Params) engine.Response {
		sess, renew, err := m.load(r)
		if err != nil {
			return engine.Errorf("loading session: %s", err)
		}

		resp := next(r.WithContext(NewContext(r.Context(), sess)), p)
		if !renew {
			return resp
		}

		cook, err := m.cookie(sess.ID)
		if err != nil {
			return engine.Errorf("signing session cookie: %s", err)
		}
		return engine.WithCookie(cook, resp)
	}
}

// load returns the request's existing session, or a new one.
// renew is true when the cookie needs to be (re)issued.
func (m *Module) load(r *http.Request) (sess *Session, renew bool, err error) {
	if cook, err := r.Cookie(CookieName); err == nil {
		claims, err := m.iss.VerifyFor(cook.Value, audience)
		if err == nil {
			sess, err := m.touch(r.Context(), claims.Subject)
			if err != nil {
				return nil, false, err
			}
			if sess != nil {
				// Sliding expiration: reissue once half of the cookie's lifetime has passed
				renew := claims.ExpiresAt != nil && time.Until(claims.ExpiresAt.Time) < ttl/2
				return sess, renew, nil
			}
		}
	}

	sess, err = m.Create(r.Context())
	return sess, true, err
}

func (m *Module) touch(ctx context.Context, id string) (*Session, error) {
	res, err := m.db.ExecContext(ctx, "UPDATE sessions SET last_seen = strftime('%s', 'now') WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("touching session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil // pruned
	}
	return m.Open(id), nil
}

// Create starts a new session.
func (m *Module) Create(ctx context.Context) (*Session, error) {
	id := uuid.NewString()
	if _, err := m.db.ExecContext(ctx, "INSERT INTO sessions (id) VALUES (?)", id); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	slog.Debug("created visitor session", "session", id)
	return m.Open(id), nil
}

// Open returns a handle for an existing session ID without checking that it exists.
func (m *Module) Open(id string) *Session { return &Session{ID: id, db: m.db} }

func (m *Module) cookie(id string) (*http.Cookie, error) {
	tok, exp, err := m.iss.Issue(id, audience, ttl)
	if err != nil {
		return nil, err
	}
	return &http.Cookie{
		Name:     CookieName,
		Value:    tok,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  exp,
		Secure:   m.self != nil && strings.Contains(m.self.Scheme, "s"),
	}, nil
}

// Session is a handle to one visitor's key/value slots.
type Session struct {
	ID string
	db *sql.DB
}

// Get returns the value of key, or an empty string when the slot is empty.
func (s *Session) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM session_values WHERE session_id = ? AND key = ?", s.ID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading session value %q: %w", key, err)
	}
	return value, nil
}

// Set writes a slot. Setting an empty value clears it.
func (s *Session) Set(ctx context.Context, key, value string) error {
	var err error
	if value == "" {
		_, err = s.db.ExecContext(ctx, "DELETE FROM session_values WHERE session_id = ? AND key = ?", s.ID, key)
	} else {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO session_values (session_id, key, value) VALUES (?, ?, ?)
			ON CONFLICT(session_id, key) DO UPDATE SET value = excluded.value
		`, s.ID, key, value)
	}
	if err != nil {
		return fmt.Errorf("writing session value %q: %w", key, err)
	}
	return nil
}

// Consume reads and clears the given slots in a single statement, so a value can only be consumed once.
// Empty slots are missing from the returned map.
func (s *Session) Consume(ctx context.Context, keys ...string) (map[string]string, error) {
	values := map[string]string{}
	if len(keys) == 0 {
		return values, nil
	}

	args := []any{s.ID}
	for _, k := range keys {
		args = append(args, k)
	}
	q := fmt.Sprintf("DELETE FROM session_values WHERE session_id = ? AND key IN (?%s) RETURNING key, value", strings.Repeat(", ?", len(keys)-1))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("consuming session values: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		values[k] = v
	}
	return values, rows.Err()
}

type sessionKey struct{}

// NewContext returns a copy of ctx carrying s.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session set by WithSession, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}
