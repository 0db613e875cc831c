// Package tarantool is a client for Tarantool with a space-scoped facade
// over the binary protocol.
package tarantool

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tarantool/go-iproto"
	"github.com/vmihailenco/msgpack/v5"
)

// Connection states, stored in Connection.state.
const (
	connDisconnected uint32 = iota
	connConnected
	connClosed
)

var epoch = time.Now()

// Connection multiplexes requests over a single connection to a Tarantool
// instance. It is safe for concurrent use.
//
// A disconnected Connection fails requests with ErrConnectionNotReady and
// reconnects in background if Opts.Reconnect is set. A closed one fails
// them with ErrConnectionClosed, it gets closed by Close, by a network error
// without Opts.Reconnect or when Opts.MaxReconnects attempts failed.
//
// Spaces and indexes are passed either by number or by name, names are
// resolved with the loaded schema. Tuples, keys, operations and arguments
// must encode to MessagePack arrays.
type Connection struct {
	dialer Dialer
	c      Conn
	mutex  sync.Mutex

	schemaMutex sync.RWMutex
	schema      *Schema

	// requestId is the last used IPROTO_SYNC.
	requestId uint32
	greeting  Greeting

	rmut     sync.Mutex
	requests map[uint32]*Future

	bufmut sync.Mutex
	buf    smallWBuf
	enc    *msgpack.Encoder
	dirty  chan struct{}

	// control is closed once the connection is closed for good.
	control chan struct{}
	rlimit  chan struct{}
	opts    Opts
	state   uint32
}

var (
	_ Connector = (*Connection)(nil)
	_ Doer      = (*Connection)(nil)
)

// Connect creates and configures a new Connection. The first connection
// attempt is bounded by ctx, reconnects happen in background afterwards.
//
// The schema is loaded unless opts.SkipSchema is set, a failure to load it
// closes the connection.
func Connect(ctx context.Context, dialer Dialer, opts Opts) (conn *Connection, err error) {
	conn = &Connection{
		dialer:   dialer,
		schema:   NewSchema(),
		requests: make(map[uint32]*Future),
		dirty:    make(chan struct{}, 1),
		control:  make(chan struct{}),
		opts:     opts,
	}
	conn.enc = newEncoder(&conn.buf)

	if conn.opts.RateLimit > 0 {
		conn.rlimit = make(chan struct{}, conn.opts.RateLimit)
		if conn.opts.RLimitAction != RLimitDrop && conn.opts.RLimitAction != RLimitWait {
			return nil, errors.New("RLimitAction should be RLimitDrop or RLimitWait")
		}
	}

	if conn.opts.Logger == nil {
		conn.opts.Logger = NewSlogLogger(nil)
	}

	conn.mutex.Lock()
	err = conn.connect(ctx)
	conn.mutex.Unlock()
	if err != nil {
		return nil, err
	}

	go conn.pinger()
	if conn.opts.Timeout > 0 {
		go conn.timeouts()
	}

	if !conn.opts.SkipSchema {
		schema, err := GetSchema(conn)
		if err != nil {
			conn.mutex.Lock()
			defer conn.mutex.Unlock()
			conn.closeConnection(err, true)
			return nil, err
		}
		conn.SetSchema(schema)
	}

	return conn, nil
}

// ConnectedNow reports if connection is established at the moment.
func (conn *Connection) ConnectedNow() bool {
	return atomic.LoadUint32(&conn.state) == connConnected
}

// ClosedNow reports if connection is closed by user or after reconnect.
func (conn *Connection) ClosedNow() bool {
	return atomic.LoadUint32(&conn.state) == connClosed
}

// Close closes Connection.
// After this method called, there is no way to reopen this Connection.
// Every pending request fails with ErrConnectionClosed.
func (conn *Connection) Close() error {
	err := ClientError{ErrConnectionClosed, "connection closed by client"}
	conn.mutex.Lock()
	defer conn.mutex.Unlock()
	return conn.closeConnection(err, true)
}

// Greeting returns the greeting of the current connection.
func (conn *Connection) Greeting() Greeting {
	conn.mutex.Lock()
	defer conn.mutex.Unlock()
	return conn.greeting
}

// RemoteAddr returns an address of Tarantool socket.
func (conn *Connection) RemoteAddr() string {
	conn.mutex.Lock()
	defer conn.mutex.Unlock()
	if conn.c == nil {
		return ""
	}
	return conn.c.RemoteAddr().String()
}

// LocalAddr returns an address of outgoing socket.
func (conn *Connection) LocalAddr() string {
	conn.mutex.Lock()
	defer conn.mutex.Unlock()
	if conn.c == nil {
		return ""
	}
	return conn.c.LocalAddr().String()
}

// ConfiguredTimeout returns a timeout from connection config.
func (conn *Connection) ConfiguredTimeout() time.Duration {
	return conn.opts.Timeout
}

// Schema returns the resolver of space and index names of the connection.
func (conn *Connection) Schema() SchemaResolver {
	conn.schemaMutex.RLock()
	defer conn.schemaMutex.RUnlock()
	return conn.schema
}

// SetSchema sets Schema for the connection.
func (conn *Connection) SetSchema(s *Schema) {
	if s != nil {
		conn.schemaMutex.Lock()
		defer conn.schemaMutex.Unlock()
		conn.schema = s
	}
}

// DefaultReturnTuple returns Opts.DefaultReturnTuple.
func (conn *Connection) DefaultReturnTuple() bool {
	return conn.opts.DefaultReturnTuple
}

func (conn *Connection) stateToString() string {
	switch atomic.LoadUint32(&conn.state) {
	case connDisconnected:
		return "disconnected"
	case connConnected:
		return "connected"
	case connClosed:
		return "closed"
	default:
		return "unknown"
	}
}

func (conn *Connection) cancelFuture(fut *Future, err error) {
	if fut = conn.fetchFuture(fut.requestId); fut != nil {
		fut.SetError(err)
		conn.markDone(fut)
	}
}

// connect dials once. It must be called with conn.mutex held.
func (conn *Connection) connect(ctx context.Context) error {
	c, err := conn.dialer.Dial(ctx, DialOpts{IoTimeout: conn.opts.Timeout})
	if err != nil {
		return err
	}

	// Only if connected and authenticated.
	conn.lockAll()
	conn.c = c
	conn.greeting = c.Greeting()
	atomic.StoreUint32(&conn.state, connConnected)
	conn.unlockAll()

	go conn.writer(c)
	go conn.reader(c)

	conn.opts.Logger.Report(ConnectedEvent{baseEvent: newBaseEvent(c.RemoteAddr())}, conn)
	conn.notify(Connected)
	return nil
}

// dialTimeout bounds a single reconnect attempt.
func (conn *Connection) dialTimeout() time.Duration {
	timeout := conn.opts.Reconnect / 2
	if timeout == 0 {
		timeout = 500 * time.Millisecond
	} else if timeout > 5*time.Second {
		timeout = 5 * time.Second
	}
	return timeout
}

// createConnection reconnects until it succeeds, MaxReconnects is reached or
// the connection is closed. It must be called with conn.mutex held.
func (conn *Connection) createConnection() error {
	var reconnects uint
	for conn.c == nil && atomic.LoadUint32(&conn.state) == connDisconnected {
		now := time.Now()

		ctx, cancel := context.WithTimeout(context.Background(), conn.dialTimeout())
		err := conn.connect(ctx)
		cancel()
		if err == nil {
			if !conn.opts.SkipSchema {
				go conn.reloadSchema()
			}
			return nil
		}

		reconnects++
		if conn.opts.MaxReconnects > 0 && reconnects >= conn.opts.MaxReconnects {
			conn.opts.Logger.Report(LastReconnectFailedEvent{
				baseEvent: newBaseEvent(nil),
				Error:     err,
			}, conn)
			return ClientError{ErrConnectionClosed, "last reconnect failed"}
		}
		conn.opts.Logger.Report(ReconnectFailedEvent{
			baseEvent: newBaseEvent(nil),
			Attempt:   reconnects,
			Error:     err,
		}, conn)
		conn.notify(ReconnectFailed)

		conn.mutex.Unlock()
		select {
		case <-time.After(time.Until(now.Add(conn.opts.Reconnect))):
		case <-conn.control:
		}
		conn.mutex.Lock()
	}
	if atomic.LoadUint32(&conn.state) == connClosed {
		return ClientError{ErrConnectionClosed, "using closed connection"}
	}
	return nil
}

func (conn *Connection) reloadSchema() {
	schema, err := GetSchema(conn)
	if err != nil {
		conn.opts.Logger.Report(SchemaLoadFailedEvent{
			baseEvent: newBaseEvent(nil),
			Error:     err,
		}, conn)
		return
	}
	conn.SetSchema(schema)
}

// closeConnection fails every pending request with neterr. It must be
// called with conn.mutex held.
func (conn *Connection) closeConnection(neterr error, forever bool) (err error) {
	conn.lockAll()
	defer conn.unlockAll()
	if forever {
		if atomic.LoadUint32(&conn.state) != connClosed {
			close(conn.control)
			atomic.StoreUint32(&conn.state, connClosed)
			conn.opts.Logger.Report(ClosedEvent{baseEvent: newBaseEvent(nil)}, conn)
			conn.notify(Closed)
		}
	} else {
		atomic.StoreUint32(&conn.state, connDisconnected)
		conn.opts.Logger.Report(ConnectionFailedEvent{
			baseEvent: newBaseEvent(nil),
			Error:     neterr,
		}, conn)
		conn.notify(Disconnected)
	}
	if conn.c != nil {
		err = conn.c.Close()
		conn.c = nil
	}
	conn.buf.Reset()
	for reqid, fut := range conn.requests {
		delete(conn.requests, reqid)
		fut.SetError(neterr)
		conn.markDone(fut)
	}
	return
}

func (conn *Connection) reconnect(neterr error, c Conn) {
	conn.mutex.Lock()
	defer conn.mutex.Unlock()
	if conn.opts.Reconnect > 0 {
		if c == conn.c {
			conn.closeConnection(neterr, false)
			if err := conn.createConnection(); err != nil {
				conn.closeConnection(err, true)
			}
		}
	} else {
		conn.closeConnection(neterr, true)
	}
}

func (conn *Connection) lockAll() {
	conn.rmut.Lock()
	conn.bufmut.Lock()
}

func (conn *Connection) unlockAll() {
	conn.bufmut.Unlock()
	conn.rmut.Unlock()
}

func (conn *Connection) pinger() {
	to := conn.opts.Timeout
	if to == 0 {
		to = 3 * time.Second
	}
	t := time.NewTicker(to / 3)
	defer t.Stop()
	for {
		select {
		case <-conn.control:
			return
		case <-t.C:
		}
		conn.Ping()
	}
}

func (conn *Connection) notify(kind ConnEventKind) {
	if conn.opts.Notify != nil {
		select {
		case conn.opts.Notify <- ConnEvent{Kind: kind, Conn: conn, When: time.Now()}:
		default:
		}
	}
}

func (conn *Connection) signalDirty() {
	select {
	case conn.dirty <- struct{}{}:
	default:
	}
}

// writer sends the accumulated requests and flushes the connection when
// there is nothing more to send.
func (conn *Connection) writer(c Conn) {
	var packet smallWBuf
	for atomic.LoadUint32(&conn.state) != connClosed {
		select {
		case <-conn.dirty:
		case <-conn.control:
			return
		}

		conn.bufmut.Lock()
		if conn.c != c {
			conn.bufmut.Unlock()
			conn.signalDirty()
			return
		}
		packet, conn.buf = conn.buf, packet
		conn.bufmut.Unlock()
		if packet.Len() == 0 {
			continue
		}
		if err := write(c, packet.b); err != nil {
			conn.reconnect(err, c)
			return
		}
		packet.Reset()

		runtime.Gosched()
		if len(conn.dirty) == 0 {
			if err := c.Flush(); err != nil {
				conn.reconnect(err, c)
				return
			}
		}
	}
}

func (conn *Connection) reader(c Conn) {
	var lenbuf [packetLengthBytes]byte
	dec := newDecoder(&smallBuf{})
	for atomic.LoadUint32(&conn.state) != connClosed {
		respBytes, err := read(c, lenbuf[:])
		if err != nil {
			conn.reconnect(err, c)
			return
		}
		resp := &Response{buf: smallBuf{b: respBytes}}
		if err = resp.decodeHeader(dec); err != nil {
			conn.reconnect(err, c)
			return
		}

		// box.session.push() messages are not delivered.
		if resp.Code == PushCode {
			continue
		}
		if fut := conn.fetchFuture(resp.RequestId); fut != nil {
			fut.SetResponse(resp)
			conn.markDone(fut)
		} else {
			conn.opts.Logger.Report(UnexpectedResultIdEvent{
				baseEvent: newBaseEvent(c.RemoteAddr()),
				RequestId: resp.RequestId,
			}, conn)
		}
	}
}

// acquireRateLimit takes a slot of Opts.RateLimit.
func (conn *Connection) acquireRateLimit(ctx context.Context) error {
	if conn.rlimit == nil {
		return nil
	}
	limited := ClientError{ErrRateLimited, "Request is rate limited on client"}

	select {
	case conn.rlimit <- struct{}{}:
		return nil
	default:
	}
	if conn.opts.RLimitAction == RLimitDrop {
		return limited
	}

	var timeout <-chan time.Time
	if ctx == nil && conn.opts.Timeout > 0 {
		t := time.NewTimer(conn.opts.Timeout)
		defer t.Stop()
		timeout = t.C
	}
	var done <-chan struct{}
	if ctx != nil {
		done = ctx.Done()
	}
	select {
	case conn.rlimit <- struct{}{}:
		return nil
	case <-timeout:
		return limited
	case <-done:
		return fmt.Errorf("context is done")
	case <-conn.control:
		return ClientError{ErrConnectionClosed, "using closed connection"}
	}
}

func (conn *Connection) newFuture(ctx context.Context) *Future {
	if err := conn.acquireRateLimit(ctx); err != nil {
		return NewErrorFuture(err)
	}

	fut := NewFuture()
	fut.requestId = atomic.AddUint32(&conn.requestId, 1)

	conn.rmut.Lock()
	defer conn.rmut.Unlock()
	switch atomic.LoadUint32(&conn.state) {
	case connClosed:
		conn.markDone(fut)
		fut.SetError(ClientError{ErrConnectionClosed, "using closed connection"})
		return fut
	case connDisconnected:
		conn.markDone(fut)
		fut.SetError(ClientError{ErrConnectionNotReady, "client connection is not ready"})
		return fut
	}
	if ctx == nil && conn.opts.Timeout > 0 {
		fut.deadline = time.Since(epoch) + conn.opts.Timeout
	}
	conn.requests[fut.requestId] = fut
	return fut
}

// contextWatchdog removes a future from the requests if the context
// is done before the response is come.
func (conn *Connection) contextWatchdog(fut *Future, ctx context.Context) {
	select {
	case <-fut.WaitChan():
	case <-ctx.Done():
		conn.cancelFuture(fut, fmt.Errorf("context is done"))
	}
}

func (conn *Connection) send(req Request) *Future {
	fut := conn.newFuture(req.Ctx())
	if fut.isDone() {
		return fut
	}
	conn.putFuture(fut, req)
	if req.Ctx() != nil {
		go conn.contextWatchdog(fut, req.Ctx())
	}
	return fut
}

func (conn *Connection) putFuture(fut *Future, req Request) {
	conn.bufmut.Lock()
	if fut.isDone() {
		conn.bufmut.Unlock()
		return
	}
	firstWritten := conn.buf.Len() == 0
	blen := conn.buf.Len()
	if err := pack(&conn.buf, conn.enc, fut.requestId, req, conn.Schema()); err != nil {
		conn.buf.Trunc(blen)
		conn.bufmut.Unlock()
		if f := conn.fetchFuture(fut.requestId); f != nil {
			f.SetError(err)
			conn.markDone(f)
		}
		return
	}
	conn.bufmut.Unlock()
	if firstWritten {
		conn.signalDirty()
	}
}

// markDone releases a rate limit slot of a finished request.
func (conn *Connection) markDone(fut *Future) {
	if conn.rlimit != nil {
		<-conn.rlimit
	}
}

func (conn *Connection) fetchFuture(reqid uint32) (fut *Future) {
	conn.rmut.Lock()
	defer conn.rmut.Unlock()
	if fut = conn.requests[reqid]; fut != nil {
		delete(conn.requests, reqid)
	}
	return fut
}

// timeouts fails requests without a response after Opts.Timeout.
func (conn *Connection) timeouts() {
	timeout := conn.opts.Timeout
	t := time.NewTimer(timeout)
	defer t.Stop()
	for {
		select {
		case <-conn.control:
			return
		case <-t.C:
		}

		nowepoch := time.Since(epoch)
		minNext := nowepoch + timeout
		conn.rmut.Lock()
		for reqid, fut := range conn.requests {
			if fut.deadline == 0 {
				continue
			}
			if fut.deadline < nowepoch {
				delete(conn.requests, reqid)
				fut.SetError(ClientError{
					Code: ErrTimeouted,
					Msg:  fmt.Sprintf("client timeout for request %d", reqid),
				})
				conn.markDone(fut)
				conn.opts.Logger.Report(TimeoutEvent{
					baseEvent: newBaseEvent(nil),
					RequestId: reqid,
					Timeout:   timeout,
				}, conn)
			} else if fut.deadline < minNext {
				minNext = fut.deadline
			}
		}
		conn.rmut.Unlock()

		nowepoch = time.Since(epoch)
		if nowepoch+time.Microsecond < minNext {
			t.Reset(minNext - nowepoch)
		} else {
			t.Reset(time.Microsecond)
		}
	}
}

// mpUint32 prefixes the packet length, it is always 4 bytes long.
const mpUint32 = 0xce

// pack appends a packet with the header {REQUEST_TYPE, SYNC} and the body
// of the request to the buffer.
func pack(h *smallWBuf, enc *msgpack.Encoder, reqid uint32,
	req Request, res SchemaResolver) error {
	start := h.Len()

	var header [packetLengthBytes + 9]byte
	header[0] = mpUint32
	header[5] = 0x82
	header[6] = byte(iproto.IPROTO_REQUEST_TYPE)
	header[7] = byte(req.Type())
	header[8] = byte(iproto.IPROTO_SYNC)
	header[9] = mpUint32
	binary.BigEndian.PutUint32(header[10:], reqid)
	h.Write(header[:])

	if err := req.Body(res, enc); err != nil {
		return err
	}

	length := uint32(h.Len() - start - packetLengthBytes)
	binary.BigEndian.PutUint32(h.b[start+1:], length)
	return nil
}

func write(w io.Writer, data []byte) error {
	n, err := w.Write(data)
	if err == nil && n != len(data) {
		err = io.ErrShortWrite
	}
	return err
}

// read reads a single packet. lenbuf must be packetLengthBytes long.
func read(r io.Reader, lenbuf []byte) ([]byte, error) {
	if _, err := io.ReadFull(r, lenbuf); err != nil {
		return nil, err
	}
	if lenbuf[0] != mpUint32 {
		return nil, ClientError{ErrProtocolError, "wrong response header"}
	}
	length := binary.BigEndian.Uint32(lenbuf[1:])
	if length == 0 {
		return nil, ClientError{ErrProtocolError, "response should not be 0 length"}
	}

	packet := make([]byte, length)
	if _, err := io.ReadFull(r, packet); err != nil {
		return nil, err
	}
	return packet, nil
}

// Do performs a request asynchronously on the connection.
func (conn *Connection) Do(req Request) *Future {
	if ctx := req.Ctx(); ctx != nil {
		select {
		case <-ctx.Done():
			return NewErrorFuture(fmt.Errorf("context is done"))
		default:
		}
	}
	return conn.send(req)
}
