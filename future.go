package tarantool

import (
	"io"
	"sync"
	"time"
)

// Future is the result of a request sent with Connection.Do. It becomes
// ready once a response or an error is set.
type Future struct {
	requestId uint32
	// deadline is measured since epoch, zero means no deadline.
	deadline time.Duration
	resp     *Response
	err      error
	mutex    sync.Mutex
	ready    chan struct{}
	decoded  bool
}

// NewFuture creates a Future that is not ready yet.
func NewFuture() *Future {
	return &Future{ready: make(chan struct{})}
}

// NewErrorFuture returns a ready Future with the error.
func NewErrorFuture(err error) *Future {
	fut := NewFuture()
	fut.SetError(err)
	return fut
}

// NewFutureWithResponse returns a ready Future with a response made of the
// header and the MessagePack encoded body read from the reader.
func NewFutureWithResponse(header Header, body io.Reader) (*Future, error) {
	resp := &Response{Header: header}
	if body != nil {
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, err
		}
		resp.buf.b = data
	}
	fut := NewFuture()
	fut.requestId = header.RequestId
	fut.SetResponse(resp)
	return fut, nil
}

// finish makes the future ready. Only the first call has an effect.
func (fut *Future) finish(resp *Response, err error) {
	fut.mutex.Lock()
	defer fut.mutex.Unlock()

	if fut.isDone() {
		return
	}
	fut.resp, fut.err = resp, err
	close(fut.ready)
}

func (fut *Future) isDone() bool {
	select {
	case <-fut.ready:
		return true
	default:
		return false
	}
}

// SetResponse makes the future ready with the response. It does nothing for
// a ready future.
func (fut *Future) SetResponse(resp *Response) {
	fut.finish(resp, nil)
}

// SetError makes the future ready with the error. It does nothing for a
// ready future.
func (fut *Future) SetError(err error) {
	fut.finish(nil, err)
}

// wait blocks until the future is ready and returns with the mutex held.
func (fut *Future) wait() func() {
	<-fut.ready
	fut.mutex.Lock()
	return fut.mutex.Unlock
}

// Get waits for the future and decodes the response body into
// Response.Data on the first call.
//
// The error is an Error for a server error and a ClientError for a client
// side failure, the response is nil in the latter case.
func (fut *Future) Get() (*Response, error) {
	defer fut.wait()()

	if fut.err == nil && !fut.decoded {
		fut.decoded = true
		fut.err = fut.resp.decodeBody()
	}
	return fut.resp, fut.err
}

// GetTyped waits for the future and decodes IPROTO_DATA into result with
// msgpack. Tarantool returns an array of tuples for everything except Eval
// and Call requests.
func (fut *Future) GetTyped(result interface{}) error {
	defer fut.wait()()

	if fut.err != nil {
		return fut.err
	}
	return fut.resp.decodeBodyTyped(result)
}

// WaitChan returns a channel that is closed once the future is ready.
func (fut *Future) WaitChan() <-chan struct{} {
	return fut.ready
}

// Err waits for the future and returns the error it was finished with. The
// body is not decoded, so decoding errors are not reported.
func (fut *Future) Err() error {
	defer fut.wait()()
	return fut.err
}
