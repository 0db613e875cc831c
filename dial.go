package tarantool

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

const (
	transportPlain = ""
	transportSsl   = "ssl"
)

const (
	greetingSize    = 128
	greetingLine    = 64
	greetingSaltLen = 44
	connBufferSize  = 128 * 1024
)

// Greeting is the first message of a Tarantool instance.
type Greeting struct {
	// Version is the first line of the greeting, like
	// "Tarantool 2.11.1 (Binary) 7b7e5e4c-...".
	Version string
	// Salt is the base64 encoded scramble salt.
	Salt string
}

// Conn is a stream connection to a Tarantool instance that already passed
// the greeting and authentication.
type Conn interface {
	io.ReadWriteCloser
	// Flush writes buffered data.
	Flush() error
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
	// Greeting returns the greeting read on dial.
	Greeting() Greeting
}

// DialOpts are passed by Connect to Dialer.Dial.
type DialOpts struct {
	// IoTimeout is a deadline of every network read and write.
	IoTimeout time.Duration
}

// Dialer opens connections for a Connection, initially and on reconnect.
// A custom dialer can add a transport or a handshake NetDialer does not
// support.
type Dialer interface {
	Dial(ctx context.Context, opts DialOpts) (Conn, error)
}

// NetDialer dials TCP and unix sockets, optionally over SSL, and logs in
// when User is set.
type NetDialer struct {
	// Address is "host:port" or a unix socket path. A "tcp://", "tcp:",
	// "unix://", "unix:" or "unix/:" prefix selects the network
	// explicitly, a path starting with '/' or '.' is a unix socket.
	Address string
	// User and Password are the credentials, no login happens without a
	// user.
	User     string
	Password string
	// Auth is the authentication method.
	Auth Auth
	// Transport is "" for a plain connection or "ssl".
	Transport string
	// Ssl configures the "ssl" transport.
	Ssl SslOpts
}

// Dial connects, reads the greeting and authenticates.
func (d NetDialer) Dial(ctx context.Context, opts DialOpts) (Conn, error) {
	nc, err := dial(ctx, d.Address, d.Transport, d.Ssl)
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %w", err)
	}

	timed := &deadlineIO{to: opts.IoTimeout, c: nc}
	conn := &tntConn{
		net:    nc,
		reader: bufio.NewReaderSize(timed, connBufferSize),
		writer: bufio.NewWriterSize(timed, connBufferSize),
	}

	if conn.greeting, err = readGreeting(ctx, conn); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to read greeting: %w", err)
	}
	if d.User == "" {
		return conn, nil
	}
	if err = authenticate(ctx, conn, d); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	return conn, nil
}

type tntConn struct {
	net      net.Conn
	reader   *bufio.Reader
	writer   *bufio.Writer
	greeting Greeting
}

func (c *tntConn) Read(p []byte) (int, error) {
	return c.reader.Read(p)
}

func (c *tntConn) Write(p []byte) (int, error) {
	n, err := c.writer.Write(p)
	if err == nil && n != len(p) {
		err = io.ErrShortWrite
	}
	return n, err
}

func (c *tntConn) Flush() error         { return c.writer.Flush() }
func (c *tntConn) Close() error         { return c.net.Close() }
func (c *tntConn) LocalAddr() net.Addr  { return c.net.LocalAddr() }
func (c *tntConn) RemoteAddr() net.Addr { return c.net.RemoteAddr() }
func (c *tntConn) Greeting() Greeting   { return c.greeting }

// deadlineIO moves the deadline of the connection before every read and
// write.
type deadlineIO struct {
	to time.Duration
	c  net.Conn
}

func (d *deadlineIO) Write(b []byte) (int, error) {
	if d.to > 0 {
		d.c.SetWriteDeadline(time.Now().Add(d.to))
	}
	return d.c.Write(b)
}

func (d *deadlineIO) Read(b []byte) (int, error) {
	if d.to > 0 {
		d.c.SetReadDeadline(time.Now().Add(d.to))
	}
	return d.c.Read(b)
}

func dial(ctx context.Context, address, transport string, ssl SslOpts) (net.Conn, error) {
	network, address := parseAddress(address)
	switch transport {
	case transportPlain:
		var d net.Dialer
		return d.DialContext(ctx, network, address)
	case transportSsl:
		return sslDialContext(ctx, network, address, ssl)
	}
	return nil, fmt.Errorf("unsupported transport type: %s", transport)
}

var addressPrefixes = []struct {
	prefix  string
	network string
}{
	{"unix://", "unix"},
	{"unix/:", "unix"},
	{"unix:", "unix"},
	{"tcp://", "tcp"},
	{"tcp:", "tcp"},
}

// parseAddress splits an address into a network and an address for
// net.Dial.
func parseAddress(address string) (string, string) {
	if strings.HasPrefix(address, "/") || strings.HasPrefix(address, ".") {
		return "unix", address
	}
	for _, p := range addressPrefixes {
		if strings.HasPrefix(address, p.prefix) {
			return p.network, address[len(p.prefix):]
		}
	}
	return "tcp", address
}

// withContext runs fn and closes the connection if ctx is done first, so a
// blocked read or write returns.
func withContext(ctx context.Context, conn Conn, fn func() error) error {
	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		conn.Close()
		if err := <-done; err != nil {
			return err
		}
		return ctx.Err()
	}
}

func readGreeting(ctx context.Context, conn Conn) (Greeting, error) {
	var greeting Greeting
	err := withContext(ctx, conn, func() error {
		data := make([]byte, greetingSize)
		if _, err := io.ReadFull(conn, data); err != nil {
			return err
		}
		greeting.Version = strings.TrimSpace(string(data[:greetingLine]))
		greeting.Salt = strings.TrimSpace(string(data[greetingLine : greetingLine+greetingSaltLen]))
		return nil
	})
	return greeting, err
}

func authenticate(ctx context.Context, conn Conn, d NetDialer) error {
	var req Request
	switch d.Auth {
	case AutoAuth, ChapSha1Auth:
		var err error
		if req, err = newChapSha1AuthRequest(d.User, d.Password, conn.Greeting().Salt); err != nil {
			return err
		}
	case PapSha256Auth:
		if d.Transport != transportSsl {
			return fmt.Errorf("forbidden to use %s unless SSL is enabled for the connection", d.Auth)
		}
		req = newPapSha256AuthRequest(d.User, d.Password)
	default:
		return fmt.Errorf("unsupported method %s", d.Auth)
	}

	return withContext(ctx, conn, func() error {
		if err := writeRequest(conn, req); err != nil {
			return err
		}
		_, err := readResponse(conn)
		return err
	})
}

// writeRequest packs a request with sync 0 and flushes it.
func writeRequest(conn Conn, req Request) error {
	var packet smallWBuf
	if err := pack(&packet, newEncoder(&packet), 0, req, nil); err != nil {
		return fmt.Errorf("pack error: %w", err)
	}
	if _, err := conn.Write(packet.b); err != nil {
		return fmt.Errorf("write error: %w", err)
	}
	if err := conn.Flush(); err != nil {
		return fmt.Errorf("flush error: %w", err)
	}
	return nil
}

// readResponse reads and decodes a single response. A server error is
// returned as is.
func readResponse(r io.Reader) (*Response, error) {
	var lenbuf [packetLengthBytes]byte
	body, err := read(r, lenbuf[:])
	if err != nil {
		return nil, fmt.Errorf("read error: %w", err)
	}

	resp := &Response{buf: smallBuf{b: body}}
	if err := resp.decodeHeader(newDecoder(&smallBuf{})); err != nil {
		return resp, fmt.Errorf("decode response header error: %w", err)
	}
	if err := resp.decodeBody(); err != nil {
		var tntErr Error
		if errors.As(err, &tntErr) {
			return resp, err
		}
		return resp, fmt.Errorf("decode response body error: %w", err)
	}
	return resp, nil
}
