package test_helpers

import (
	"context"

	"github.com/tarantool/go-iproto"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/JeffCarpenter/go-tarantool"
)

// MockRequest is a mock request used for testing purposes. Its body is an
// empty map or the configured error.
type MockRequest struct {
	// BodyErr is returned by Body if set.
	BodyErr error
	ctx     context.Context
}

// NewMockRequest creates an empty MockRequest.
func NewMockRequest() *MockRequest {
	return &MockRequest{}
}

// Type returns an iproto type for MockRequest.
func (req *MockRequest) Type() iproto.Type {
	return iproto.IPROTO_PING
}

// Body fills an msgpack.Encoder with an empty map.
func (req *MockRequest) Body(_ tarantool.SchemaResolver, enc *msgpack.Encoder) error {
	if req.BodyErr != nil {
		return req.BodyErr
	}
	return enc.EncodeMapLen(0)
}

// Ctx returns a context of the MockRequest.
func (req *MockRequest) Ctx() context.Context {
	return req.ctx
}

// Context sets a passed context to the request.
func (req *MockRequest) Context(ctx context.Context) *MockRequest {
	req.ctx = ctx
	return req
}
