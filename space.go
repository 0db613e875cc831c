package tarantool

import (
	"github.com/hashicorp/go-multierror"
)

// Space is a handle of a single space of a Connector. The space number is
// resolved once on creation, every operation is forwarded to the connector
// with the number and the defaults filled in.
//
// Errors of the connector are returned as is.
type Space struct {
	conn Connector
	id   uint32
}

// NewSpace resolves the space by a name or a number and returns a handle
// bound to it.
func NewSpace(conn Connector, space interface{}) (*Space, error) {
	id, err := conn.Schema().ResolveSpace(space)
	if err != nil {
		return nil, err
	}
	return &Space{conn: conn, id: id}, nil
}

// OpenSpaces resolves several spaces at once. The returned map is keyed by
// the passed names and numbers. Every unresolved space is reported in the
// returned error.
func OpenSpaces(conn Connector, spaces ...interface{}) (map[interface{}]*Space, error) {
	var errs *multierror.Error
	opened := make(map[interface{}]*Space, len(spaces))
	for _, s := range spaces {
		space, err := NewSpace(conn, s)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		opened[s] = space
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return opened, nil
}

// Space returns a handle of the space of the connection.
func (conn *Connection) Space(space interface{}) (*Space, error) {
	return NewSpace(conn, space)
}

// Id returns the space number.
func (space *Space) Id() uint32 {
	return space.id
}

func (space *Space) insertFlags(returnTuple OptBool) uint32 {
	if returnTuple.getOr(space.conn.DefaultReturnTuple()) {
		return BoxReturnTuple
	}
	return 0
}

func (space *Space) returnTuple(returnTuple OptBool) bool {
	return returnTuple.getOr(space.conn.DefaultReturnTuple())
}

// Ping checks the connection of the space.
func (space *Space) Ping() (*Response, error) {
	return space.conn.Ping()
}

// Replace replaces a tuple with the same primary key. It fails with
// ER_TUPLE_NOT_FOUND if there is no such tuple.
func (space *Space) Replace(tuple interface{}, returnTuple OptBool) (*Response, error) {
	return space.conn.InsertWithFlags(space.id, tuple, space.insertFlags(returnTuple)|BoxReplace)
}

// Store inserts a tuple or replaces a tuple with the same primary key.
func (space *Space) Store(tuple interface{}, returnTuple OptBool) (*Response, error) {
	return space.conn.InsertWithFlags(space.id, tuple, space.insertFlags(returnTuple))
}

// Insert inserts a tuple. It fails with ER_TUPLE_FOUND if a tuple with the
// same primary key exists.
func (space *Space) Insert(tuple interface{}, returnTuple OptBool) (*Response, error) {
	return space.conn.InsertWithFlags(space.id, tuple, space.insertFlags(returnTuple)|BoxAdd)
}

// Delete deletes a tuple by the primary key.
func (space *Space) Delete(key interface{}, returnTuple OptBool) (*Response, error) {
	return space.conn.Delete(space.id, key, space.returnTuple(returnTuple))
}

// Update applies the operations to a tuple found by the primary key.
func (space *Space) Update(key interface{}, ops *Operations, returnTuple OptBool) (*Response, error) {
	return space.conn.Update(space.id, key, ops, space.returnTuple(returnTuple))
}

// Upsert inserts the tuple or applies the operations to an existing one.
func (space *Space) Upsert(tuple interface{}, ops *Operations) (*Response, error) {
	return space.conn.Upsert(space.id, tuple, ops)
}

// Select looks up the keys in an index of the space. By default the
// primary index is used, no tuples are skipped and the result is not
// limited.
func (space *Space) Select(keys []interface{}, opts SelectOpts) (*Response, error) {
	var index interface{} = uint32(0)
	if opts.Index != nil {
		index = opts.Index
	}
	return space.conn.Select(space.id, keys, index,
		opts.Offset.getOr(0), opts.Limit.getOr(DefaultLimit))
}

// Call calls a stored function. The space is not passed to the function.
func (space *Space) Call(function string, args interface{}, opts CallOpts) (*Response, error) {
	return space.conn.Call(function, args, opts)
}
