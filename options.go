package tarantool

import "time"

// Opts configures a Connection.
type Opts struct {
	// Timeout bounds every request and is the read and write deadline of
	// the socket, zero means no limit. A request context is not affected
	// by it.
	Timeout time.Duration
	// Reconnect is the pause between reconnect attempts. A broken
	// connection is closed at once when it is zero.
	Reconnect time.Duration
	// MaxReconnects closes the connection after that many failed attempts
	// in a row, zero retries forever.
	MaxReconnects uint
	// RateLimit bounds the count of requests waiting for a response, zero
	// disables the limit.
	RateLimit uint
	// RLimitAction is RLimitDrop or RLimitWait, it is required with
	// RateLimit. RLimitWait waits up to Timeout for a free slot.
	RLimitAction uint
	// SkipSchema disables schema loading, spaces and indexes may be passed
	// by number only then.
	SkipSchema bool
	// DefaultReturnTuple is used by a Space when a caller does not say
	// whether the affected tuple should be returned.
	DefaultReturnTuple bool
	// Notify receives connection state changes. A send never blocks, events
	// are dropped when the channel is full.
	Notify chan<- ConnEvent
	// Logger receives connection events, a SlogLogger over slog.Default()
	// is used if nil.
	Logger Logger
}

// ConnEventKind is the kind of a connection state change.
type ConnEventKind int

const (
	// Connected: the connection is established or reestablished.
	Connected ConnEventKind = iota + 1
	// Disconnected: the connection broke.
	Disconnected
	// ReconnectFailed: a reconnect attempt failed.
	ReconnectFailed
	// Closed: Close was called or reconnects are exhausted.
	Closed
)

// ConnEvent is sent to Opts.Notify.
type ConnEvent struct {
	Conn *Connection
	Kind ConnEventKind
	When time.Time
}

// OptBool is an optional bool. The zero value is an absent bool.
type OptBool struct {
	value bool
	exist bool
}

// MakeOptBool creates an optional bool from value.
func MakeOptBool(value bool) OptBool {
	return OptBool{
		value: value,
		exist: true,
	}
}

// Get returns the boolean value and whether it is present.
func (opt OptBool) Get() (bool, bool) {
	return opt.value, opt.exist
}

// getOr returns the value if present or def otherwise.
func (opt OptBool) getOr(def bool) bool {
	if opt.exist {
		return opt.value
	}
	return def
}

// OptUint32 is an optional uint32. The zero value is an absent uint32.
type OptUint32 struct {
	value uint32
	exist bool
}

// MakeOptUint32 creates an optional uint32 from value.
func MakeOptUint32(value uint32) OptUint32 {
	return OptUint32{
		value: value,
		exist: true,
	}
}

// Get returns the integer value and whether it is present.
func (opt OptUint32) Get() (uint32, bool) {
	return opt.value, opt.exist
}

func (opt OptUint32) getOr(def uint32) uint32 {
	if opt.exist {
		return opt.value
	}
	return def
}

// SelectOpts describes options for Space.Select. Fields are set by name:
//
//	space.Select(keys, tarantool.SelectOpts{Index: "secondary", Limit: tarantool.MakeOptUint32(10)})
type SelectOpts struct {
	_ struct{}
	// Index is an index number or name, the primary index is used if nil.
	Index interface{}
	// Offset is a number of matched tuples to skip, 0 if absent.
	Offset OptUint32
	// Limit is a maximum number of tuples to return, DefaultLimit if absent.
	Limit OptUint32
}

// CallOpts describes options for a call of a stored function. Fields are
// set by name.
type CallOpts struct {
	_ struct{}
	// ReturnTuple set to false drops the result of the function.
	ReturnTuple OptBool
	// Result, if not nil, receives the result of the function decoded
	// from MessagePack, Response.Data stays empty then.
	Result interface{}
}
