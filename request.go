package tarantool

import (
	"context"
	"fmt"

	"github.com/tarantool/go-iproto"
	"github.com/vmihailenco/msgpack/v5"
)

// Request is an IPROTO request that a Connection can send.
type Request interface {
	// Type returns the IPROTO request type.
	Type() iproto.Type
	// Body encodes the request body. Space and index names are resolved
	// with the resolver.
	Body(resolver SchemaResolver, enc *msgpack.Encoder) error
	// Ctx returns the context of the request, it may be nil.
	Ctx() context.Context
}

// A context set on a request limits the request lifetime on its own, the
// Opts.Timeout of the connection is applied too. Every builder below has a
// Context method with this semantics.

type baseRequest struct {
	rtype iproto.Type
	ctx   context.Context
}

func (req *baseRequest) Type() iproto.Type {
	return req.rtype
}

func (req *baseRequest) Ctx() context.Context {
	return req.ctx
}

// spaceRequest is a request to a space given by a name or a number. The
// index is used by requests that search.
type spaceRequest struct {
	baseRequest
	space interface{}
	index interface{}
}

func (req *spaceRequest) resolve(res SchemaResolver) (spaceNo, indexNo uint32, err error) {
	if res == nil {
		return 0, 0, fmt.Errorf("unable to resolve space %v: no schema", req.space)
	}
	if spaceNo, err = res.ResolveSpace(req.space); err != nil {
		return 0, 0, err
	}
	if req.index == nil {
		return spaceNo, 0, nil
	}
	if indexNo, err = res.ResolveIndex(req.index, spaceNo); err != nil {
		return 0, 0, err
	}
	return spaceNo, indexNo, nil
}

func encodeKeyUint(enc *msgpack.Encoder, key iproto.Key, value uint64) error {
	if err := enc.EncodeUint(uint64(key)); err != nil {
		return err
	}
	return enc.EncodeUint(value)
}

// encodeKeyValue encodes nil values as an empty array.
func encodeKeyValue(enc *msgpack.Encoder, key iproto.Key, value interface{}) error {
	if err := enc.EncodeUint(uint64(key)); err != nil {
		return err
	}
	if value == nil {
		return enc.EncodeArrayLen(0)
	}
	return enc.Encode(value)
}

func encodeSearch(enc *msgpack.Encoder, spaceNo, indexNo uint32, key interface{}) error {
	if err := encodeKeyUint(enc, iproto.IPROTO_SPACE_ID, uint64(spaceNo)); err != nil {
		return err
	}
	if err := encodeKeyUint(enc, iproto.IPROTO_INDEX_ID, uint64(indexNo)); err != nil {
		return err
	}
	return encodeKeyValue(enc, iproto.IPROTO_KEY, key)
}

// encodeProcedure encodes the body of a call or an eval.
func encodeProcedure(enc *msgpack.Encoder, key iproto.Key, name string, args interface{}) error {
	if err := enc.EncodeMapLen(2); err != nil {
		return err
	}
	if err := enc.EncodeUint(uint64(key)); err != nil {
		return err
	}
	if err := enc.EncodeString(name); err != nil {
		return err
	}
	return encodeKeyValue(enc, iproto.IPROTO_TUPLE, args)
}

// authRequest is an IPROTO_AUTH request. The pass is a scramble for
// chap-sha1 and the plain password for pap-sha256.
type authRequest struct {
	auth       Auth
	user, pass string
}

func newChapSha1AuthRequest(user, password, salt string) (authRequest, error) {
	scr, err := scramble(salt, password)
	if err != nil {
		return authRequest{}, fmt.Errorf("scrambling failure: %w", err)
	}
	return authRequest{auth: ChapSha1Auth, user: user, pass: string(scr)}, nil
}

func newPapSha256AuthRequest(user, password string) authRequest {
	return authRequest{auth: PapSha256Auth, user: user, pass: password}
}

func (req authRequest) Type() iproto.Type {
	return iproto.IPROTO_AUTH
}

func (req authRequest) Ctx() context.Context {
	return nil
}

func (req authRequest) Body(_ SchemaResolver, enc *msgpack.Encoder) error {
	if err := enc.EncodeMapLen(2); err != nil {
		return err
	}
	if err := encodeKeyValue(enc, iproto.IPROTO_USER_NAME, req.user); err != nil {
		return err
	}
	return encodeKeyValue(enc, iproto.IPROTO_TUPLE, []interface{}{req.auth.String(), req.pass})
}

// PingRequest checks that the connection is alive.
type PingRequest struct {
	baseRequest
}

// NewPingRequest returns a new PingRequest.
func NewPingRequest() *PingRequest {
	req := new(PingRequest)
	req.rtype = iproto.IPROTO_PING
	return req
}

// Body encodes an empty body.
func (req *PingRequest) Body(_ SchemaResolver, enc *msgpack.Encoder) error {
	return enc.EncodeMapLen(0)
}

func (req *PingRequest) Context(ctx context.Context) *PingRequest {
	req.ctx = ctx
	return req
}

// SelectRequest selects tuples from an index. By default it selects every
// tuple of the primary index: index 0, offset 0, limit DefaultLimit, an
// empty key and IterAll. Setting a key switches the iterator to IterEq
// unless an iterator is set explicitly.
type SelectRequest struct {
	spaceRequest
	isIteratorSet bool
	offset, limit uint32
	iterator      Iter
	key           interface{}
}

// NewSelectRequest returns a new SelectRequest to the space.
func NewSelectRequest(space interface{}) *SelectRequest {
	req := new(SelectRequest)
	req.rtype = iproto.IPROTO_SELECT
	req.space = space
	req.iterator = IterAll
	req.key = []interface{}{}
	req.limit = DefaultLimit
	return req
}

func (req *SelectRequest) Index(index interface{}) *SelectRequest {
	req.index = index
	return req
}

func (req *SelectRequest) Offset(offset uint32) *SelectRequest {
	req.offset = offset
	return req
}

func (req *SelectRequest) Limit(limit uint32) *SelectRequest {
	req.limit = limit
	return req
}

func (req *SelectRequest) Iterator(iterator Iter) *SelectRequest {
	req.iterator = iterator
	req.isIteratorSet = true
	return req
}

func (req *SelectRequest) Key(key interface{}) *SelectRequest {
	req.key = key
	if !req.isIteratorSet {
		req.iterator = IterEq
	}
	return req
}

func (req *SelectRequest) Body(res SchemaResolver, enc *msgpack.Encoder) error {
	spaceNo, indexNo, err := req.resolve(res)
	if err != nil {
		return err
	}

	if err := enc.EncodeMapLen(6); err != nil {
		return err
	}
	if err := encodeKeyUint(enc, iproto.IPROTO_ITERATOR, uint64(req.iterator)); err != nil {
		return err
	}
	if err := encodeKeyUint(enc, iproto.IPROTO_OFFSET, uint64(req.offset)); err != nil {
		return err
	}
	if err := encodeKeyUint(enc, iproto.IPROTO_LIMIT, uint64(req.limit)); err != nil {
		return err
	}
	return encodeSearch(enc, spaceNo, indexNo, req.key)
}

func (req *SelectRequest) Context(ctx context.Context) *SelectRequest {
	req.ctx = ctx
	return req
}

// tupleRequest is a request that carries a whole tuple.
type tupleRequest struct {
	spaceRequest
	tuple interface{}
}

func newTupleRequest(rtype iproto.Type, space interface{}) tupleRequest {
	req := tupleRequest{tuple: []interface{}{}}
	req.rtype = rtype
	req.space = space
	return req
}

func (req *tupleRequest) Body(res SchemaResolver, enc *msgpack.Encoder) error {
	spaceNo, _, err := req.resolve(res)
	if err != nil {
		return err
	}
	if err := enc.EncodeMapLen(2); err != nil {
		return err
	}
	if err := encodeKeyUint(enc, iproto.IPROTO_SPACE_ID, uint64(spaceNo)); err != nil {
		return err
	}
	return encodeKeyValue(enc, iproto.IPROTO_TUPLE, req.tuple)
}

// InsertRequest inserts a tuple, the server fails with ER_TUPLE_FOUND if
// the primary key exists.
type InsertRequest struct {
	tupleRequest
}

// NewInsertRequest returns a new InsertRequest of an empty tuple.
func NewInsertRequest(space interface{}) *InsertRequest {
	return &InsertRequest{newTupleRequest(iproto.IPROTO_INSERT, space)}
}

func (req *InsertRequest) Tuple(tuple interface{}) *InsertRequest {
	req.tuple = tuple
	return req
}

func (req *InsertRequest) Context(ctx context.Context) *InsertRequest {
	req.ctx = ctx
	return req
}

// ReplaceRequest replaces a tuple with the same primary key or inserts a
// new one.
type ReplaceRequest struct {
	tupleRequest
}

// NewReplaceRequest returns a new ReplaceRequest of an empty tuple.
func NewReplaceRequest(space interface{}) *ReplaceRequest {
	return &ReplaceRequest{newTupleRequest(iproto.IPROTO_REPLACE, space)}
}

func (req *ReplaceRequest) Tuple(tuple interface{}) *ReplaceRequest {
	req.tuple = tuple
	return req
}

func (req *ReplaceRequest) Context(ctx context.Context) *ReplaceRequest {
	req.ctx = ctx
	return req
}

// DeleteRequest deletes a tuple by a unique key.
type DeleteRequest struct {
	spaceRequest
	key interface{}
}

// NewDeleteRequest returns a new DeleteRequest by the primary index.
func NewDeleteRequest(space interface{}) *DeleteRequest {
	req := new(DeleteRequest)
	req.rtype = iproto.IPROTO_DELETE
	req.space = space
	req.key = []interface{}{}
	return req
}

func (req *DeleteRequest) Index(index interface{}) *DeleteRequest {
	req.index = index
	return req
}

func (req *DeleteRequest) Key(key interface{}) *DeleteRequest {
	req.key = key
	return req
}

func (req *DeleteRequest) Body(res SchemaResolver, enc *msgpack.Encoder) error {
	spaceNo, indexNo, err := req.resolve(res)
	if err != nil {
		return err
	}
	if err := enc.EncodeMapLen(3); err != nil {
		return err
	}
	return encodeSearch(enc, spaceNo, indexNo, req.key)
}

func (req *DeleteRequest) Context(ctx context.Context) *DeleteRequest {
	req.ctx = ctx
	return req
}

// UpdateRequest applies operations to a tuple found by a unique key. Nil
// operations are sent as an empty list.
type UpdateRequest struct {
	spaceRequest
	key interface{}
	ops *Operations
}

// NewUpdateRequest returns a new UpdateRequest by the primary index.
func NewUpdateRequest(space interface{}) *UpdateRequest {
	req := new(UpdateRequest)
	req.rtype = iproto.IPROTO_UPDATE
	req.space = space
	req.key = []interface{}{}
	return req
}

func (req *UpdateRequest) Index(index interface{}) *UpdateRequest {
	req.index = index
	return req
}

func (req *UpdateRequest) Key(key interface{}) *UpdateRequest {
	req.key = key
	return req
}

func (req *UpdateRequest) Operations(ops *Operations) *UpdateRequest {
	req.ops = ops
	return req
}

func (req *UpdateRequest) Body(res SchemaResolver, enc *msgpack.Encoder) error {
	spaceNo, indexNo, err := req.resolve(res)
	if err != nil {
		return err
	}
	if err := enc.EncodeMapLen(4); err != nil {
		return err
	}
	if err := encodeSearch(enc, spaceNo, indexNo, req.key); err != nil {
		return err
	}
	// Update operations are sent under the tuple key.
	if err := enc.EncodeUint(uint64(iproto.IPROTO_TUPLE)); err != nil {
		return err
	}
	return req.ops.encodeOrEmpty(enc)
}

func (req *UpdateRequest) Context(ctx context.Context) *UpdateRequest {
	req.ctx = ctx
	return req
}

// UpsertRequest inserts a tuple or applies operations to the existing one.
type UpsertRequest struct {
	tupleRequest
	ops *Operations
}

// NewUpsertRequest returns a new UpsertRequest of an empty tuple.
func NewUpsertRequest(space interface{}) *UpsertRequest {
	return &UpsertRequest{tupleRequest: newTupleRequest(iproto.IPROTO_UPSERT, space)}
}

func (req *UpsertRequest) Tuple(tuple interface{}) *UpsertRequest {
	req.tuple = tuple
	return req
}

func (req *UpsertRequest) Operations(ops *Operations) *UpsertRequest {
	req.ops = ops
	return req
}

func (req *UpsertRequest) Body(res SchemaResolver, enc *msgpack.Encoder) error {
	spaceNo, _, err := req.resolve(res)
	if err != nil {
		return err
	}
	if err := enc.EncodeMapLen(3); err != nil {
		return err
	}
	if err := encodeKeyUint(enc, iproto.IPROTO_SPACE_ID, uint64(spaceNo)); err != nil {
		return err
	}
	if err := encodeKeyValue(enc, iproto.IPROTO_TUPLE, req.tuple); err != nil {
		return err
	}
	if err := enc.EncodeUint(uint64(iproto.IPROTO_OPS)); err != nil {
		return err
	}
	return req.ops.encodeOrEmpty(enc)
}

func (req *UpsertRequest) Context(ctx context.Context) *UpsertRequest {
	req.ctx = ctx
	return req
}

// CallRequest calls a stored function. The result is returned as the
// function returned it, it is not converted to a list of tuples.
type CallRequest struct {
	baseRequest
	function string
	args     interface{}
}

// NewCallRequest returns a new CallRequest without arguments.
func NewCallRequest(function string) *CallRequest {
	req := new(CallRequest)
	req.rtype = iproto.IPROTO_CALL
	req.function = function
	return req
}

func (req *CallRequest) Args(args interface{}) *CallRequest {
	req.args = args
	return req
}

func (req *CallRequest) Body(_ SchemaResolver, enc *msgpack.Encoder) error {
	return encodeProcedure(enc, iproto.IPROTO_FUNCTION_NAME, req.function, req.args)
}

func (req *CallRequest) Context(ctx context.Context) *CallRequest {
	req.ctx = ctx
	return req
}

// EvalRequest evaluates a Lua expression, the arguments are available to
// it as "...".
type EvalRequest struct {
	baseRequest
	expr string
	args interface{}
}

// NewEvalRequest returns a new EvalRequest without arguments.
func NewEvalRequest(expr string) *EvalRequest {
	req := new(EvalRequest)
	req.rtype = iproto.IPROTO_EVAL
	req.expr = expr
	req.args = []interface{}{}
	return req
}

func (req *EvalRequest) Args(args interface{}) *EvalRequest {
	req.args = args
	return req
}

func (req *EvalRequest) Body(_ SchemaResolver, enc *msgpack.Encoder) error {
	return encodeProcedure(enc, iproto.IPROTO_EXPR, req.expr, req.args)
}

func (req *EvalRequest) Context(ctx context.Context) *EvalRequest {
	req.ctx = ctx
	return req
}
