// Package trace is the structured logging collaborator the node package
// logs session events through: a thin wrapper
// over cosmossdk.io/log tagging every line with the session that produced
// it, the way build.go tags its own logger lines with "path"/"count"
// key-value pairs.
package trace

import (
	"io"

	"cosmossdk.io/log"
	"github.com/google/uuid"
)

// Session is a correlation id for one supervision tree, node, or remote
// connection's worth of log lines. NewSession mints one; the zero value
// is never used once logging starts.
type Session struct {
	id string
}

// NewSession mints a fresh session id.
func NewSession() Session {
	return Session{id: uuid.NewString()}
}

// String returns the session's id, for embedding in a Pid's node field or
// similar non-logging uses.
func (s Session) String() string { return s.id }

// Logger is the event sink the session handshake and session supervisor
// log through (gen.Supervisor does not log). It wraps a cosmossdk.io/log.Logger bound
// to a session id, the same leveled-logger-plus-key/values shape
// build.go's package-level logger uses.
type Logger struct {
	base    log.Logger
	session Session
}

// New builds a Logger writing to w, tagged with session.
func New(w io.Writer, session Session) Logger {
	return Logger{base: log.NewLogger(w), session: session}
}

// With returns a derived Logger carrying the additional key/value pairs
// on every subsequent line, same semantics as cosmossdk.io/log.Logger.With.
func (l Logger) With(keyvals ...any) Logger {
	return Logger{base: l.base.With(keyvals...), session: l.session}
}

// Info logs at info level with the session id attached.
func (l Logger) Info(msg string, keyvals ...any) {
	l.base.Info(msg, append([]any{"session", l.session.String()}, keyvals...)...)
}

// Error logs at error level with the session id attached.
func (l Logger) Error(msg string, keyvals ...any) {
	l.base.Error(msg, append([]any{"session", l.session.String()}, keyvals...)...)
}

// Debug logs at debug level with the session id attached.
func (l Logger) Debug(msg string, keyvals ...any) {
	l.base.Debug(msg, append([]any{"session", l.session.String()}, keyvals...)...)
}
