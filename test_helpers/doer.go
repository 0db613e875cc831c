package test_helpers

import (
	"bytes"
	"testing"

	"github.com/tarantool/go-iproto"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/JeffCarpenter/go-tarantool"
)

// MockResponse is a response a MockDoer replies with.
type MockResponse struct {
	code uint32
	body []byte
}

func newMockResponse(t testing.TB, code uint32, body map[iproto.Key]interface{}) *MockResponse {
	t.Helper()

	encoded, err := msgpack.Marshal(body)
	if err != nil {
		t.Fatalf("failed to encode mock response body: %s", err)
	}
	return &MockResponse{code: code, body: encoded}
}

// NewMockResponse returns a successful response with data as IPROTO_DATA.
func NewMockResponse(t testing.TB, data interface{}) *MockResponse {
	t.Helper()
	return newMockResponse(t, tarantool.OkCode,
		map[iproto.Key]interface{}{iproto.IPROTO_DATA: data})
}

// NewMockErrorResponse returns a Tarantool error response.
func NewMockErrorResponse(t testing.TB, code iproto.Error, msg string) *MockResponse {
	t.Helper()
	return newMockResponse(t, uint32(iproto.IPROTO_TYPE_ERROR)|uint32(code),
		map[iproto.Key]interface{}{iproto.IPROTO_ERROR_24: msg})
}

// Future returns a ready future with the response.
func (resp *MockResponse) Future(requestId uint32) *tarantool.Future {
	header := tarantool.Header{RequestId: requestId, Code: resp.code}
	fut, err := tarantool.NewFutureWithResponse(header, bytes.NewReader(resp.body))
	if err != nil {
		return tarantool.NewErrorFuture(err)
	}
	return fut
}

// MockDoer is a tarantool.Doer that replies with prepared responses in
// order.
type MockDoer struct {
	// Requests are the received requests in order.
	Requests []tarantool.Request

	replies []interface{}
	t       testing.TB
}

// NewMockDoer returns a doer replying with the responses. A response is
// either a *MockResponse or an error.
func NewMockDoer(t testing.TB, responses ...interface{}) *MockDoer {
	t.Helper()

	for _, r := range responses {
		switch r.(type) {
		case *MockResponse, error:
		default:
			t.Fatalf("unsupported mock response type: %T", r)
		}
	}
	return &MockDoer{replies: responses, t: t}
}

// Do records the request and replies with the next response. The test
// fails when the responses are exhausted.
func (doer *MockDoer) Do(req tarantool.Request) *tarantool.Future {
	doer.Requests = append(doer.Requests, req)

	if len(doer.replies) == 0 {
		doer.t.Fatalf("no mock response for request %d", len(doer.Requests))
	}
	reply := doer.replies[0]
	doer.replies = doer.replies[1:]

	if err, ok := reply.(error); ok {
		return tarantool.NewErrorFuture(err)
	}
	return reply.(*MockResponse).Future(uint32(len(doer.Requests)))
}
