package tarantool

// replaceExistingExpr replaces a tuple only if a tuple with the same primary
// key already exists.
const replaceExistingExpr = `
local space_no, tuple = ...
local sp = box.space[space_no]
if sp == nil then
    box.error(box.error.NO_SUCH_SPACE, tostring(space_no))
end
local pk = sp.index[0]
local key = {}
for i, part in ipairs(pk.parts) do
    key[i] = tuple[part.fieldno]
end
if pk:get(key) == nil then
    box.error(box.error.TUPLE_NOT_FOUND, pk.name, sp.name)
end
return sp:replace(tuple)
`

// Ping sends empty request to Tarantool to check connection.
func (conn *Connection) Ping() (*Response, error) {
	return conn.Do(NewPingRequest()).Get()
}

// InsertWithFlags stores a tuple into the space:
//
// - with BoxAdd it fails with ER_TUPLE_FOUND if the primary key exists;
//
// - with BoxReplace it fails with ER_TUPLE_NOT_FOUND if the primary key
// does not exist;
//
// - without both it inserts or replaces the tuple.
//
// The stored tuple is returned in Response.Data only with BoxReturnTuple.
func (conn *Connection) InsertWithFlags(space uint32, tuple interface{},
	flags uint32) (*Response, error) {
	var req Request
	switch flags & (BoxAdd | BoxReplace) {
	case BoxAdd | BoxReplace:
		return nil, ClientError{ErrInvalidFlags, "BoxAdd and BoxReplace are mutually exclusive"}
	case BoxAdd:
		req = NewInsertRequest(space).Tuple(tuple)
	case BoxReplace:
		req = NewEvalRequest(replaceExistingExpr).Args([]interface{}{space, tuple})
	default:
		req = NewReplaceRequest(space).Tuple(tuple)
	}

	resp, err := conn.Do(req).Get()
	if err != nil {
		return resp, err
	}
	return resp.discardTuples(flags&BoxReturnTuple != 0), nil
}

// Delete deletes a tuple by the primary key. A missing tuple is not an
// error, Response.Data is empty then.
func (conn *Connection) Delete(space uint32, key interface{},
	returnTuple bool) (*Response, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return nil, err
	}

	resp, err := conn.Do(NewDeleteRequest(space).Key(key)).Get()
	if err != nil {
		return resp, err
	}
	return resp.discardTuples(returnTuple), nil
}

// Update applies the operations to a tuple found by the primary key.
func (conn *Connection) Update(space uint32, key interface{}, ops *Operations,
	returnTuple bool) (*Response, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return nil, err
	}

	req := NewUpdateRequest(space).Key(key).Operations(ops)
	resp, err := conn.Do(req).Get()
	if err != nil {
		return resp, err
	}
	return resp.discardTuples(returnTuple), nil
}

// Upsert inserts the tuple or applies the operations to an existing one.
func (conn *Connection) Upsert(space uint32, tuple interface{},
	ops *Operations) (*Response, error) {
	return conn.Do(NewUpsertRequest(space).Tuple(tuple).Operations(ops)).Get()
}

// Select looks up every key of the batch in the index and returns the
// found tuples in the order of the keys. The offset and the limit are
// applied to the combined result. An empty batch selects every tuple of
// the index.
func (conn *Connection) Select(space uint32, keys []interface{}, index interface{},
	offset, limit uint32) (*Response, error) {
	if len(keys) == 0 {
		req := NewSelectRequest(space).
			Index(index).
			Offset(offset).
			Limit(limit).
			Iterator(IterAll)
		return conn.Do(req).Get()
	}

	normalized := make([]interface{}, len(keys))
	for i, key := range keys {
		var err error
		if normalized[i], err = normalizeKey(key); err != nil {
			return nil, err
		}
	}

	if len(normalized) == 1 {
		req := NewSelectRequest(space).
			Index(index).
			Offset(offset).
			Limit(limit).
			Key(normalized[0])
		return conn.Do(req).Get()
	}

	// A single key never contributes more than offset+limit tuples.
	perKey := limit
	if offset > DefaultLimit-limit {
		perKey = DefaultLimit
	} else {
		perKey += offset
	}

	futures := make([]*Future, len(normalized))
	for i, key := range normalized {
		req := NewSelectRequest(space).
			Index(index).
			Limit(perKey).
			Key(key)
		futures[i] = conn.Do(req)
	}

	var header Header
	data := []interface{}{}
	for _, fut := range futures {
		resp, err := fut.Get()
		if err != nil {
			return resp, err
		}
		header = resp.Header
		data = append(data, resp.Data...)
	}
	return &Response{Header: header, Data: paginate(data, offset, limit)}, nil
}

func paginate(data []interface{}, offset, limit uint32) []interface{} {
	if uint64(offset) >= uint64(len(data)) {
		return []interface{}{}
	}
	data = data[offset:]
	if uint64(limit) < uint64(len(data)) {
		data = data[:limit]
	}
	return data
}

// Call calls a registered Tarantool function. The result is decoded into
// opts.Result if it is set.
func (conn *Connection) Call(function string, args interface{},
	opts CallOpts) (*Response, error) {
	fut := conn.Do(NewCallRequest(function).Args(args))

	if opts.Result != nil {
		if err := fut.GetTyped(opts.Result); err != nil {
			return nil, err
		}
		resp := fut.resp
		resp.Data = []interface{}{}
		return resp, nil
	}

	resp, err := fut.Get()
	if err != nil {
		return resp, err
	}
	return resp.discardTuples(opts.ReturnTuple.getOr(true)), nil
}
