// Package box provides helpers for the box.* functions of a Tarantool
// instance.
package box

import (
	"errors"

	"github.com/JeffCarpenter/go-tarantool"
)

// Box is a helper that wraps box.* calls.
type Box struct {
	conn tarantool.Connector
}

// New returns a new Box over the connector.
func New(conn tarantool.Connector) (*Box, error) {
	if conn == nil {
		return nil, errors.New("tarantool connection cannot be nil")
	}
	return &Box{conn: conn}, nil
}

// MustNew returns a new Box or panics on a nil connector.
func MustNew(conn tarantool.Connector) *Box {
	b, err := New(conn)
	if err != nil {
		panic(err)
	}
	return b
}

// Info retrieves the current information of the Tarantool instance.
func (b *Box) Info() (Info, error) {
	var resp InfoResponse
	if _, err := b.conn.Call(infoFunction, []interface{}{},
		tarantool.CallOpts{Result: &resp}); err != nil {
		return Info{}, err
	}
	return resp.Info, nil
}

// IsReadOnly reports whether the instance does not accept writes.
func (b *Box) IsReadOnly() (bool, error) {
	info, err := b.Info()
	if err != nil {
		return false, err
	}
	return info.RO, nil
}
