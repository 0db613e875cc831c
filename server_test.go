package tarantool_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/tarantool/go-iproto"
	"github.com/vmihailenco/msgpack/v5"

	. "github.com/JeffCarpenter/go-tarantool"
)

// fakeRequest is a request received by a fakeServer.
type fakeRequest struct {
	Type iproto.Type
	Sync uint64
	Body map[iproto.Key]interface{}
}

// fakeReply is an answer of a fakeServer. A nil reply is never sent.
type fakeReply struct {
	Data    []interface{}
	ErrCode iproto.Error
	ErrMsg  string
}

type fakeHandler func(req fakeRequest) *fakeReply

// fakeServer speaks the binary protocol over in-memory pipes. Every Dial
// starts a new session served by the handler.
type fakeServer struct {
	t       testing.TB
	handler fakeHandler

	mutex    sync.Mutex
	requests []fakeRequest
	sessions []net.Conn
	dialErr  error
	dials    int
}

func newFakeServer(t testing.TB, handler fakeHandler) *fakeServer {
	t.Helper()

	srv := &fakeServer{t: t, handler: handler}
	t.Cleanup(srv.dropSessions)
	return srv
}

func (srv *fakeServer) Dial(ctx context.Context, _ DialOpts) (Conn, error) {
	srv.mutex.Lock()
	defer srv.mutex.Unlock()

	srv.dials++
	if srv.dialErr != nil {
		return nil, srv.dialErr
	}

	client, server := net.Pipe()
	srv.sessions = append(srv.sessions, server)
	go srv.serve(server)

	return &fakeConn{
		Conn:   client,
		writer: bufio.NewWriter(client),
		greeting: Greeting{
			Version: "Tarantool 2.11.0 (Binary)",
			Salt:    "JDW2YTZgqFuk3DGjWCZVVm0Qbl8vNVTDXWjE0h1Lcss=",
		},
	}, nil
}

func (srv *fakeServer) setDialError(err error) {
	srv.mutex.Lock()
	defer srv.mutex.Unlock()
	srv.dialErr = err
}

func (srv *fakeServer) dialCount() int {
	srv.mutex.Lock()
	defer srv.mutex.Unlock()
	return srv.dials
}

// dropSessions breaks every established session.
func (srv *fakeServer) dropSessions() {
	srv.mutex.Lock()
	defer srv.mutex.Unlock()
	for _, s := range srv.sessions {
		s.Close()
	}
	srv.sessions = nil
}

// received returns the requests of the type.
func (srv *fakeServer) received(rtype iproto.Type) []fakeRequest {
	srv.mutex.Lock()
	defer srv.mutex.Unlock()

	var reqs []fakeRequest
	for _, req := range srv.requests {
		if req.Type == rtype {
			reqs = append(reqs, req)
		}
	}
	return reqs
}

func (srv *fakeServer) serve(c net.Conn) {
	defer c.Close()

	var wmutex sync.Mutex
	r := bufio.NewReader(c)
	for {
		req, err := readFakeRequest(r)
		if err != nil {
			return
		}
		srv.mutex.Lock()
		srv.requests = append(srv.requests, req)
		srv.mutex.Unlock()

		go func() {
			reply := srv.handler(req)
			if reply == nil {
				return
			}
			packet, err := encodeFakeReply(req.Sync, reply)
			if err != nil {
				srv.t.Errorf("failed to encode a reply: %s", err)
				return
			}
			wmutex.Lock()
			defer wmutex.Unlock()
			c.Write(packet)
		}()
	}
}

func readFakeRequest(r io.Reader) (fakeRequest, error) {
	var req fakeRequest

	var lenbuf [5]byte
	if _, err := io.ReadFull(r, lenbuf[:]); err != nil {
		return req, err
	}
	if lenbuf[0] != 0xce {
		return req, errors.New("wrong packet header")
	}
	packet := make([]byte, binary.BigEndian.Uint32(lenbuf[1:]))
	if _, err := io.ReadFull(r, packet); err != nil {
		return req, err
	}

	dec := msgpack.NewDecoder(bytes.NewReader(packet))
	dec.UseLooseInterfaceDecoding(true)
	header, err := decodeFakeMap(dec)
	if err != nil {
		return req, err
	}
	rtype, _ := header[iproto.IPROTO_REQUEST_TYPE].(uint64)
	req.Type = iproto.Type(rtype)
	req.Sync, _ = header[iproto.IPROTO_SYNC].(uint64)

	req.Body, err = decodeFakeMap(dec)
	return req, err
}

// decodeFakeMap decodes a map with integer keys. Non-negative integers are
// decoded as uint64.
func decodeFakeMap(dec *msgpack.Decoder) (map[iproto.Key]interface{}, error) {
	l, err := dec.DecodeMapLen()
	if err != nil {
		return nil, err
	}
	m := make(map[iproto.Key]interface{}, l)
	for ; l > 0; l-- {
		key, err := dec.DecodeInt()
		if err != nil {
			return nil, err
		}
		value, err := dec.DecodeInterfaceLoose()
		if err != nil {
			return nil, err
		}
		m[iproto.Key(key)] = unsignedInts(value)
	}
	return m, nil
}

// unsignedInts converts non-negative integers to uint64 recursively.
func unsignedInts(v interface{}) interface{} {
	switch v := v.(type) {
	case int64:
		if v >= 0 {
			return uint64(v)
		}
	case []interface{}:
		for i := range v {
			v[i] = unsignedInts(v[i])
		}
	}
	return v
}

func encodeFakeReply(sync uint64, reply *fakeReply) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)

	code := uint64(iproto.IPROTO_OK)
	if reply.ErrCode != 0 {
		code = uint64(iproto.IPROTO_TYPE_ERROR) | uint64(reply.ErrCode)
	}
	header := map[iproto.Key]interface{}{
		iproto.IPROTO_REQUEST_TYPE: code,
		iproto.IPROTO_SYNC:         sync,
	}
	if err := enc.Encode(header); err != nil {
		return nil, err
	}

	body := map[iproto.Key]interface{}{}
	if reply.ErrCode != 0 {
		body[iproto.IPROTO_ERROR_24] = reply.ErrMsg
	} else {
		data := reply.Data
		if data == nil {
			data = []interface{}{}
		}
		body[iproto.IPROTO_DATA] = data
	}
	if err := enc.Encode(body); err != nil {
		return nil, err
	}

	packet := make([]byte, 5, 5+buf.Len())
	packet[0] = 0xce
	binary.BigEndian.PutUint32(packet[1:], uint32(buf.Len()))
	return append(packet, buf.Bytes()...), nil
}

type fakeConn struct {
	net.Conn
	writer   *bufio.Writer
	greeting Greeting
}

func (c *fakeConn) Write(p []byte) (int, error) {
	return c.writer.Write(p)
}

func (c *fakeConn) Flush() error {
	return c.writer.Flush()
}

func (c *fakeConn) Greeting() Greeting {
	return c.greeting
}

// fakeSchemaHandler answers the schema requests with a "test" space 617 with
// the "primary" and "secondary" indexes.
func fakeSchemaHandler(next fakeHandler) fakeHandler {
	return func(req fakeRequest) *fakeReply {
		if req.Type == iproto.IPROTO_SELECT {
			switch req.Body[iproto.IPROTO_SPACE_ID] {
			case uint64(281):
				return &fakeReply{Data: []interface{}{
					[]interface{}{uint64(617), uint64(1), "test", "memtx", uint64(0), map[string]interface{}{},
						[]interface{}{map[string]interface{}{"name": "id", "type": "unsigned"}}},
				}}
			case uint64(289):
				return &fakeReply{Data: []interface{}{
					[]interface{}{uint64(617), uint64(0), "primary", "tree",
						map[string]interface{}{"unique": true},
						[]interface{}{[]interface{}{uint64(0), "unsigned"}}},
					[]interface{}{uint64(617), uint64(1), "secondary", "hash",
						map[string]interface{}{"unique": false},
						[]interface{}{map[string]interface{}{"field": uint64(1), "type": "string"}}},
				}}
			}
		}
		return next(req)
	}
}

// okHandler answers every request with empty data.
func okHandler(fakeRequest) *fakeReply {
	return &fakeReply{}
}

// silentHandler never answers.
func silentHandler(fakeRequest) *fakeReply {
	return nil
}

// pingOnlyHandler answers pings only.
func pingOnlyHandler(req fakeRequest) *fakeReply {
	if req.Type == iproto.IPROTO_PING {
		return &fakeReply{}
	}
	return nil
}
