package tarantool

import (
	"context"
	"log/slog"
)

// Logger receives connection events, see Opts.Logger.
type Logger interface {
	Report(event LogEvent, conn *Connection)
}

// SlogLogger reports connection events to a slog.Logger. A record has the
// attributes of the event and a "connection" group with the state and the
// options of the connection.
type SlogLogger struct {
	logger *slog.Logger
	ctx    context.Context
}

// NewSlogLogger wraps the logger, slog.Default() is used for nil.
func NewSlogLogger(logger *slog.Logger) SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return SlogLogger{logger: logger, ctx: context.Background()}
}

// WithContext returns a copy of the logger that passes ctx to the handler.
func (l SlogLogger) WithContext(ctx context.Context) SlogLogger {
	l.ctx = ctx
	return l
}

func (l SlogLogger) Report(event LogEvent, conn *Connection) {
	level := event.LogLevel()
	if !l.logger.Enabled(l.ctx, level) {
		return
	}

	attrs := event.LogAttrs()
	if conn != nil {
		attrs = append(attrs, connectionAttrs(conn))
	}
	l.logger.LogAttrs(l.ctx, level, event.Message(), attrs...)
}

func connectionAttrs(conn *Connection) slog.Attr {
	attrs := []any{slog.String("state", conn.stateToString())}
	if conn.opts.Timeout > 0 {
		attrs = append(attrs, slog.Duration("request_timeout", conn.opts.Timeout))
	}
	if conn.opts.Reconnect > 0 {
		attrs = append(attrs, slog.Duration("reconnect_interval", conn.opts.Reconnect))
		attrs = append(attrs, slog.Uint64("max_reconnects", uint64(conn.opts.MaxReconnects)))
	}
	return slog.Group("connection", attrs...)
}
