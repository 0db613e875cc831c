package tarantool

import (
	"errors"
	"fmt"

	"github.com/tarantool/go-iproto"
)

// Error is an error returned by Tarantool. ExtendedInfo is set when the
// server sends the error stack (IPROTO_ERROR).
type Error struct {
	Code         iproto.Error
	Msg          string
	ExtendedInfo *BoxError
}

func (tnterr Error) Error() string {
	if tnterr.ExtendedInfo != nil {
		return tnterr.ExtendedInfo.Error()
	}
	return fmt.Sprintf("%s (0x%x)", tnterr.Msg, uint32(tnterr.Code))
}

// Codes of ClientError. They start at 0x4000 to stay apart from server
// codes.
const (
	ErrConnectionNotReady = 0x4000 + iota
	ErrConnectionClosed
	ErrProtocolError
	ErrTimeouted
	ErrRateLimited
	ErrInvalidFlags
	ErrInvalidKey
)

// ClientError is an error detected by the client itself.
type ClientError struct {
	Code uint32
	Msg  string
}

func (clierr ClientError) Error() string {
	return fmt.Sprintf("%s (0x%x)", clierr.Msg, clierr.Code)
}

// Temporary reports whether a retry of the request may succeed.
func (clierr ClientError) Temporary() bool {
	return clierr.Code == ErrConnectionNotReady ||
		clierr.Code == ErrTimeouted ||
		clierr.Code == ErrRateLimited
}

// UnknownSpaceError is returned when a space can not be found in the schema.
type UnknownSpaceError struct {
	// Space is the name or the number that failed to resolve.
	Space interface{}
}

// Error converts an UnknownSpaceError to a string.
func (e UnknownSpaceError) Error() string {
	switch s := e.Space.(type) {
	case string:
		return fmt.Sprintf("there is no space with name %s", s)
	default:
		return fmt.Sprintf("there is no space with id %v", s)
	}
}

// UnknownIndexError is returned when an index can not be found in the schema.
type UnknownIndexError struct {
	Space uint32
	Index interface{}
}

// Error converts an UnknownIndexError to a string.
func (e UnknownIndexError) Error() string {
	return fmt.Sprintf("space %d has no index %v", e.Space, e.Index)
}

// IsDuplicateKey reports whether err is a Tarantool error about an already
// existing primary key.
func IsDuplicateKey(err error) bool {
	return hasServerCode(err, iproto.ER_TUPLE_FOUND)
}

// IsNoSuchKey reports whether err is a Tarantool error about a missing
// tuple.
func IsNoSuchKey(err error) bool {
	return hasServerCode(err, iproto.ER_TUPLE_NOT_FOUND)
}

func hasServerCode(err error, code iproto.Error) bool {
	var tnterr Error
	if errors.As(err, &tnterr) {
		return tnterr.Code == code
	}
	return false
}
