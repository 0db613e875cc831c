package tarantool

import (
	"fmt"
	"log/slog"
	"net"
	"time"
)

// LogEvent is a structured connection event passed to a Logger.
type LogEvent interface {
	EventName() string
	Message() string
	LogLevel() slog.Level
	LogAttrs() []slog.Attr
}

type baseEvent struct {
	addr      net.Addr
	EventTime time.Time
}

func newBaseEvent(addr net.Addr) baseEvent {
	return baseEvent{addr: addr, EventTime: time.Now()}
}

// attrs returns the attributes shared by every event followed by extra.
// A nil err adds nothing.
func (e baseEvent) attrs(name string, err error, extra ...slog.Attr) []slog.Attr {
	attrs := make([]slog.Attr, 0, 5+len(extra))
	attrs = append(attrs,
		slog.String("component", "tarantool.connection"),
		slog.Time("event_time", e.EventTime),
		slog.String("event", name),
	)
	if e.addr != nil {
		attrs = append(attrs, slog.String("addr", e.addr.String()))
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	return append(attrs, extra...)
}

// ConnectedEvent: a connection is established.
type ConnectedEvent struct {
	baseEvent
}

func (e ConnectedEvent) EventName() string     { return "connected" }
func (e ConnectedEvent) Message() string       { return "Connected to Tarantool" }
func (e ConnectedEvent) LogLevel() slog.Level  { return slog.LevelInfo }
func (e ConnectedEvent) LogAttrs() []slog.Attr { return e.attrs(e.EventName(), nil) }

// ReconnectFailedEvent: a reconnect attempt failed, more will follow.
type ReconnectFailedEvent struct {
	baseEvent
	Attempt uint
	Error   error
}

func (e ReconnectFailedEvent) EventName() string    { return "reconnect_failed" }
func (e ReconnectFailedEvent) LogLevel() slog.Level { return slog.LevelWarn }

func (e ReconnectFailedEvent) Message() string {
	return fmt.Sprintf("Reconnect attempt %d failed", e.Attempt)
}

func (e ReconnectFailedEvent) LogAttrs() []slog.Attr {
	return e.attrs(e.EventName(), e.Error, slog.Uint64("attempt", uint64(e.Attempt)))
}

// LastReconnectFailedEvent: Opts.MaxReconnects is reached, the connection
// is closed.
type LastReconnectFailedEvent struct {
	baseEvent
	Error error
}

func (e LastReconnectFailedEvent) EventName() string     { return "last_reconnect_failed" }
func (e LastReconnectFailedEvent) Message() string       { return "Last reconnect failed, giving up" }
func (e LastReconnectFailedEvent) LogLevel() slog.Level  { return slog.LevelError }
func (e LastReconnectFailedEvent) LogAttrs() []slog.Attr { return e.attrs(e.EventName(), e.Error) }

// ConnectionFailedEvent: an established connection broke.
type ConnectionFailedEvent struct {
	baseEvent
	Error error
}

func (e ConnectionFailedEvent) EventName() string     { return "connection_failed" }
func (e ConnectionFailedEvent) Message() string       { return "Connection failed" }
func (e ConnectionFailedEvent) LogLevel() slog.Level  { return slog.LevelError }
func (e ConnectionFailedEvent) LogAttrs() []slog.Attr { return e.attrs(e.EventName(), e.Error) }

// SchemaLoadFailedEvent: the schema could not be fetched after a
// reconnect, the previous one is kept.
type SchemaLoadFailedEvent struct {
	baseEvent
	Error error
}

func (e SchemaLoadFailedEvent) EventName() string     { return "schema_load_failed" }
func (e SchemaLoadFailedEvent) Message() string       { return "Unable to load schema" }
func (e SchemaLoadFailedEvent) LogLevel() slog.Level  { return slog.LevelError }
func (e SchemaLoadFailedEvent) LogAttrs() []slog.Attr { return e.attrs(e.EventName(), e.Error) }

// UnexpectedResultIdEvent: a response came for no pending request, most
// likely one that timed out.
type UnexpectedResultIdEvent struct {
	baseEvent
	RequestId uint32
}

func (e UnexpectedResultIdEvent) EventName() string    { return "unexpected_result_id" }
func (e UnexpectedResultIdEvent) LogLevel() slog.Level { return slog.LevelWarn }

func (e UnexpectedResultIdEvent) Message() string {
	return fmt.Sprintf("Received response with unexpected request ID %d", e.RequestId)
}

func (e UnexpectedResultIdEvent) LogAttrs() []slog.Attr {
	return e.attrs(e.EventName(), nil, slog.Uint64("request_id", uint64(e.RequestId)))
}

// TimeoutEvent: a request was cancelled by Opts.Timeout.
type TimeoutEvent struct {
	baseEvent
	RequestId uint32
	Timeout   time.Duration
}

func (e TimeoutEvent) EventName() string    { return "timeout" }
func (e TimeoutEvent) LogLevel() slog.Level { return slog.LevelWarn }

func (e TimeoutEvent) Message() string {
	return fmt.Sprintf("Request %d timed out after %s", e.RequestId, e.Timeout)
}

func (e TimeoutEvent) LogAttrs() []slog.Attr {
	return e.attrs(e.EventName(), nil,
		slog.Uint64("request_id", uint64(e.RequestId)),
		slog.String("timeout", e.Timeout.String()))
}

// ClosedEvent: Close was called.
type ClosedEvent struct {
	baseEvent
}

func (e ClosedEvent) EventName() string     { return "closed" }
func (e ClosedEvent) Message() string       { return "Connection closed" }
func (e ClosedEvent) LogLevel() slog.Level  { return slog.LevelInfo }
func (e ClosedEvent) LogAttrs() []slog.Attr { return e.attrs(e.EventName(), nil) }
