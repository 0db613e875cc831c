package test_helpers

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"github.com/tarantool/go-iproto"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/JeffCarpenter/go-tarantool"
)

// MockCall is a recorded call of a MockConnector method.
type MockCall struct {
	Method      string
	Space       uint32
	Tuple       interface{}
	Key         interface{}
	Keys        []interface{}
	Ops         *tarantool.Operations
	Flags       uint32
	ReturnTuple bool
	Index       interface{}
	Offset      uint32
	Limit       uint32
	Function    string
	Args        interface{}
	CallOpts    tarantool.CallOpts
}

type mockSpace struct {
	order  []string
	tuples map[string][]interface{}
}

// MockConnector is an in-memory tarantool.Connector. Every space has a
// unique primary index over the first field, the index is used for every
// select. Updates do not change tuples. Every call is recorded.
type MockConnector struct {
	mutex       sync.Mutex
	schema      *tarantool.Schema
	spaces      map[uint32]*mockSpace
	returnTuple bool
	results     map[string][]interface{}

	// Calls contains the recorded calls in order.
	Calls []MockCall
}

var _ tarantool.Connector = (*MockConnector)(nil)

// NewMockConnector creates a connector with the spaces given by names and
// numbers.
func NewMockConnector(spaces map[string]uint32) *MockConnector {
	conn := &MockConnector{
		schema:  tarantool.NewSchema(),
		spaces:  make(map[uint32]*mockSpace),
		results: make(map[string][]interface{}),
	}
	for name, id := range spaces {
		primary := &tarantool.IndexInfo{Id: 0, SpaceId: id, Name: "primary", Type: "TREE", Unique: true}
		info := &tarantool.SpaceInfo{
			Id:          id,
			Name:        name,
			Engine:      "memtx",
			Fields:      map[string]*tarantool.FieldInfo{},
			FieldsById:  map[uint32]*tarantool.FieldInfo{},
			Indexes:     map[string]*tarantool.IndexInfo{"primary": primary},
			IndexesById: map[uint32]*tarantool.IndexInfo{0: primary},
		}
		conn.schema.Spaces[name] = info
		conn.schema.SpacesById[id] = info
		conn.spaces[id] = &mockSpace{tuples: make(map[string][]interface{})}
	}
	return conn
}

// SetDefaultReturnTuple sets the value returned by DefaultReturnTuple.
func (conn *MockConnector) SetDefaultReturnTuple(returnTuple bool) {
	conn.mutex.Lock()
	defer conn.mutex.Unlock()
	conn.returnTuple = returnTuple
}

// SetCallResult sets the data returned by a call of the function.
func (conn *MockConnector) SetCallResult(function string, data ...interface{}) {
	conn.mutex.Lock()
	defer conn.mutex.Unlock()
	conn.results[function] = data
}

// LastCall returns the last recorded call.
func (conn *MockConnector) LastCall() (MockCall, bool) {
	conn.mutex.Lock()
	defer conn.mutex.Unlock()
	if len(conn.Calls) == 0 {
		return MockCall{}, false
	}
	return conn.Calls[len(conn.Calls)-1], true
}

// Schema returns the schema of the configured spaces.
func (conn *MockConnector) Schema() tarantool.SchemaResolver {
	return conn.schema
}

// DefaultReturnTuple returns the value set by SetDefaultReturnTuple.
func (conn *MockConnector) DefaultReturnTuple() bool {
	conn.mutex.Lock()
	defer conn.mutex.Unlock()
	return conn.returnTuple
}

func (conn *MockConnector) record(call MockCall) {
	conn.Calls = append(conn.Calls, call)
}

// Ping does nothing.
func (conn *MockConnector) Ping() (*tarantool.Response, error) {
	conn.mutex.Lock()
	defer conn.mutex.Unlock()
	conn.record(MockCall{Method: "Ping"})
	return okResponse(nil), nil
}

// InsertWithFlags stores the tuple with the semantics of the flags.
func (conn *MockConnector) InsertWithFlags(space uint32, tuple interface{},
	flags uint32) (*tarantool.Response, error) {
	conn.mutex.Lock()
	defer conn.mutex.Unlock()
	conn.record(MockCall{Method: "InsertWithFlags", Space: space, Tuple: tuple, Flags: flags})

	if flags&tarantool.BoxAdd != 0 && flags&tarantool.BoxReplace != 0 {
		return nil, tarantool.ClientError{
			Code: tarantool.ErrInvalidFlags,
			Msg:  "BoxAdd and BoxReplace are mutually exclusive",
		}
	}
	sp, err := conn.space(space)
	if err != nil {
		return nil, err
	}
	fields, err := toArray(tuple)
	if err != nil || len(fields) == 0 {
		return nil, tarantool.Error{Code: iproto.ER_ILLEGAL_PARAMS, Msg: "tuple should be a non-empty array"}
	}

	pk := primaryKey(fields[0])
	_, exists := sp.tuples[pk]
	switch {
	case flags&tarantool.BoxAdd != 0 && exists:
		return nil, tarantool.Error{
			Code: iproto.ER_TUPLE_FOUND,
			Msg:  fmt.Sprintf("Duplicate key exists in unique index \"primary\" in space %d", space),
		}
	case flags&tarantool.BoxReplace != 0 && !exists:
		return nil, tarantool.Error{
			Code: iproto.ER_TUPLE_NOT_FOUND,
			Msg:  fmt.Sprintf("Tuple doesn't exist in index 'primary' in space %d", space),
		}
	}
	if !exists {
		sp.order = append(sp.order, pk)
	}
	sp.tuples[pk] = fields

	if flags&tarantool.BoxReturnTuple != 0 {
		return okResponse([]interface{}{fields}), nil
	}
	return okResponse(nil), nil
}

// Delete removes a tuple by the primary key.
func (conn *MockConnector) Delete(space uint32, key interface{},
	returnTuple bool) (*tarantool.Response, error) {
	conn.mutex.Lock()
	defer conn.mutex.Unlock()
	conn.record(MockCall{Method: "Delete", Space: space, Key: key, ReturnTuple: returnTuple})

	sp, err := conn.space(space)
	if err != nil {
		return nil, err
	}
	pk, err := keyOf(key)
	if err != nil {
		return nil, err
	}
	tuple, ok := sp.tuples[pk]
	if !ok {
		return okResponse(nil), nil
	}
	delete(sp.tuples, pk)
	for i, k := range sp.order {
		if k == pk {
			sp.order = append(sp.order[:i], sp.order[i+1:]...)
			break
		}
	}
	if returnTuple {
		return okResponse([]interface{}{tuple}), nil
	}
	return okResponse(nil), nil
}

// Update returns the tuple found by the primary key, the operations are
// only recorded.
func (conn *MockConnector) Update(space uint32, key interface{}, ops *tarantool.Operations,
	returnTuple bool) (*tarantool.Response, error) {
	conn.mutex.Lock()
	defer conn.mutex.Unlock()
	conn.record(MockCall{Method: "Update", Space: space, Key: key, Ops: ops, ReturnTuple: returnTuple})

	sp, err := conn.space(space)
	if err != nil {
		return nil, err
	}
	pk, err := keyOf(key)
	if err != nil {
		return nil, err
	}
	tuple, ok := sp.tuples[pk]
	if !ok || !returnTuple {
		return okResponse(nil), nil
	}
	return okResponse([]interface{}{tuple}), nil
}

// Upsert inserts the tuple if there is no tuple with the same key.
func (conn *MockConnector) Upsert(space uint32, tuple interface{},
	ops *tarantool.Operations) (*tarantool.Response, error) {
	conn.mutex.Lock()
	defer conn.mutex.Unlock()
	conn.record(MockCall{Method: "Upsert", Space: space, Tuple: tuple, Ops: ops})

	sp, err := conn.space(space)
	if err != nil {
		return nil, err
	}
	fields, err := toArray(tuple)
	if err != nil || len(fields) == 0 {
		return nil, tarantool.Error{Code: iproto.ER_ILLEGAL_PARAMS, Msg: "tuple should be a non-empty array"}
	}
	pk := primaryKey(fields[0])
	if _, ok := sp.tuples[pk]; !ok {
		sp.order = append(sp.order, pk)
		sp.tuples[pk] = fields
	}
	return okResponse(nil), nil
}

// Select returns the tuples of the keys in the key order, every tuple for
// an empty batch.
func (conn *MockConnector) Select(space uint32, keys []interface{}, index interface{},
	offset, limit uint32) (*tarantool.Response, error) {
	conn.mutex.Lock()
	defer conn.mutex.Unlock()
	conn.record(MockCall{
		Method: "Select",
		Space:  space,
		Keys:   keys,
		Index:  index,
		Offset: offset,
		Limit:  limit,
	})

	sp, err := conn.space(space)
	if err != nil {
		return nil, err
	}
	if _, err := conn.schema.ResolveIndex(index, space); err != nil {
		return nil, err
	}

	found := []interface{}{}
	if len(keys) == 0 {
		for _, pk := range sp.order {
			found = append(found, sp.tuples[pk])
		}
	}
	for _, key := range keys {
		pk, err := keyOf(key)
		if err != nil {
			return nil, err
		}
		if tuple, ok := sp.tuples[pk]; ok {
			found = append(found, tuple)
		}
	}

	if uint64(offset) >= uint64(len(found)) {
		return okResponse(nil), nil
	}
	found = found[offset:]
	if uint64(limit) < uint64(len(found)) {
		found = found[:limit]
	}
	return okResponse(found), nil
}

// Call returns the data set by SetCallResult. With CallOpts.Result the data
// is decoded into it through MessagePack as a real connection does.
func (conn *MockConnector) Call(function string, args interface{},
	opts tarantool.CallOpts) (*tarantool.Response, error) {
	conn.mutex.Lock()
	defer conn.mutex.Unlock()
	conn.record(MockCall{Method: "Call", Function: function, Args: args, CallOpts: opts})

	data, ok := conn.results[function]
	if !ok {
		return nil, tarantool.Error{
			Code: iproto.ER_NO_SUCH_PROC,
			Msg:  fmt.Sprintf("Procedure '%s' is not defined", function),
		}
	}
	if returnTuple, set := opts.ReturnTuple.Get(); set && !returnTuple {
		return okResponse(nil), nil
	}
	if opts.Result != nil {
		buf, err := msgpack.Marshal(data)
		if err != nil {
			return nil, err
		}
		if err := msgpack.Unmarshal(buf, opts.Result); err != nil {
			return nil, err
		}
		return okResponse(nil), nil
	}
	return okResponse(data), nil
}

func (conn *MockConnector) space(space uint32) (*mockSpace, error) {
	sp, ok := conn.spaces[space]
	if !ok {
		return nil, tarantool.Error{
			Code: iproto.ER_NO_SUCH_SPACE,
			Msg:  fmt.Sprintf("Space '%d' does not exist", space),
		}
	}
	return sp, nil
}

func okResponse(data []interface{}) *tarantool.Response {
	if data == nil {
		data = []interface{}{}
	}
	return &tarantool.Response{
		Header: tarantool.Header{Code: tarantool.OkCode},
		Data:   data,
	}
}

func toArray(v interface{}) ([]interface{}, error) {
	if arr, ok := v.([]interface{}); ok {
		return arr, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("%T is not an array", v)
	}
	arr := make([]interface{}, rv.Len())
	for i := range arr {
		arr[i] = rv.Index(i).Interface()
	}
	return arr, nil
}

// keyOf returns the primary key of a scalar or a single part key.
func keyOf(key interface{}) (string, error) {
	if err := tarantool.CheckKey(key); err != nil {
		return "", err
	}
	switch key.(type) {
	case []byte, uuid.UUID, msgpack.Marshaler:
		return primaryKey(key), nil
	}
	parts, err := toArray(key)
	if err != nil {
		return primaryKey(key), nil
	}
	if len(parts) != 1 {
		return "", tarantool.Error{
			Code: iproto.ER_EXACT_MATCH,
			Msg:  fmt.Sprintf("Invalid key part count in an exact match (expected 1, got %d)", len(parts)),
		}
	}
	return primaryKey(parts[0]), nil
}

func primaryKey(v interface{}) string {
	return fmt.Sprintf("%v", v)
}
