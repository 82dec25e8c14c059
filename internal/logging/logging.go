// Package logging builds the structured logger used by bandsdb and adapts
// it to the orm query hook.
package logging

import (
	"context"
	"io"
	"log/slog"

	"github.com/SJBM1876/Musicians-and-Bands-Database/orm"
)

// Category groups related log messages.
type Category string

const (
	CatDB     Category = "db"     // connection lifecycle and schema sync
	CatSQL    Category = "sql"    // statements issued by the orm
	CatConfig Category = "config" // configuration loading
	CatCLI    Category = "cli"    // command execution
)

// New returns a logger writing to w. format is "json" or "text"; debug
// lowers the level so that SQL statements are emitted.
func New(w io.Writer, format string, debug bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if debug {
		opts.Level = slog.LevelDebug
	}
	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// With returns a child logger tagged with cat.
func With(l *slog.Logger, cat Category) *slog.Logger {
	return l.With(slog.String("cat", string(cat)))
}

// QueryLogger logs every statement at debug level. Install it with
// orm.DB.Debug.
type QueryLogger struct {
	l *slog.Logger
}

// NewQueryLogger returns a QueryLogger writing to l.
func NewQueryLogger(l *slog.Logger) *QueryLogger {
	return &QueryLogger{l: With(l, CatSQL)}
}

// Log implements orm.Logger.
func (q *QueryLogger) Log(ctx context.Context, query string, args ...any) {
	q.l.LogAttrs(ctx, slog.LevelDebug, "query",
		slog.String("sql", query),
		slog.Any("args", args),
	)
}

var _ orm.Logger = (*QueryLogger)(nil)
