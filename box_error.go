package tarantool

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"
)

// errorExtID is the MP_ERROR extension type.
const errorExtID = 3

// Keys of MP_ERROR.
const (
	keyErrorStack = 0x00

	keyErrorType    = 0x00
	keyErrorFile    = 0x01
	keyErrorLine    = 0x02
	keyErrorMessage = 0x03
	keyErrorErrno   = 0x04
	keyErrorErrcode = 0x05
	keyErrorFields  = 0x06
)

// BoxError is a box.error object sent by Tarantool 2.4.1 and newer as the
// extended information of an error, see
// https://www.tarantool.io/en/doc/latest/reference/reference_lua/box_error/error/
//
// Errors of the stack are linked by Prev, the first one is the last raised.
type BoxError struct {
	// Type is the error class, "ClientError" for example.
	Type string
	File string
	Line uint64
	Msg  string
	// Errno is the system errno, 0 if the error is not a system one.
	Errno uint64
	// Code is the same code as Error.Code.
	Code uint64
	// Fields holds the payload of some error types: "object_type",
	// "object_name" and "access_type" of an AccessDeniedError for example.
	Fields map[string]interface{}
	Prev   *BoxError
}

// Error formats the error and every previous one.
func (e *BoxError) Error() string {
	s := fmt.Sprintf("%s (%s, code 0x%x), see %s line %d",
		e.Msg, e.Type, e.Code, e.File, e.Line)
	if e.Prev != nil {
		return s + ": " + e.Prev.Error()
	}
	return s
}

// Unwrap returns the previous error of the stack.
func (e *BoxError) Unwrap() error {
	if e.Prev == nil {
		return nil
	}
	return e.Prev
}

// Depth returns the size of the stack starting with the error.
func (e *BoxError) Depth() int {
	depth := 0
	for cur := e; cur != nil; cur = cur.Prev {
		depth++
	}
	return depth
}

// decodeMap calls fn for every key of a map with integer keys.
func decodeMap(d *msgpack.Decoder, fn func(key int) error) error {
	l, err := d.DecodeMapLen()
	if err != nil {
		return err
	}
	for ; l > 0; l-- {
		key, err := d.DecodeInt()
		if err != nil {
			return err
		}
		if err := fn(key); err != nil {
			return err
		}
	}
	return nil
}

func (e *BoxError) decodeEntry(d *msgpack.Decoder) error {
	return decodeMap(d, func(key int) (err error) {
		switch key {
		case keyErrorType:
			e.Type, err = d.DecodeString()
		case keyErrorFile:
			e.File, err = d.DecodeString()
		case keyErrorLine:
			e.Line, err = d.DecodeUint64()
		case keyErrorMessage:
			e.Msg, err = d.DecodeString()
		case keyErrorErrno:
			e.Errno, err = d.DecodeUint64()
		case keyErrorErrcode:
			e.Code, err = d.DecodeUint64()
		case keyErrorFields:
			e.Fields, err = decodeErrorFields(d)
		default:
			err = d.Skip()
		}
		return err
	})
}

func decodeErrorFields(d *msgpack.Decoder) (map[string]interface{}, error) {
	l, err := d.DecodeMapLen()
	if err != nil {
		return nil, err
	}
	fields := make(map[string]interface{}, l)
	for ; l > 0; l-- {
		k, err := d.DecodeString()
		if err != nil {
			return nil, err
		}
		if fields[k], err = d.DecodeInterface(); err != nil {
			return nil, err
		}
	}
	return fields, nil
}

func decodeBoxError(d *msgpack.Decoder) (*BoxError, error) {
	var stack []BoxError

	err := decodeMap(d, func(key int) error {
		if key != keyErrorStack {
			return d.Skip()
		}
		n, err := d.DecodeArrayLen()
		if err != nil {
			return err
		}
		stack = make([]BoxError, n)
		for i := range stack {
			if err := stack[i].decodeEntry(d); err != nil {
				return err
			}
			if i > 0 {
				stack[i-1].Prev = &stack[i]
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(stack) == 0 {
		return nil, errors.New("msgpack: unexpected empty BoxError stack on decode")
	}
	return &stack[0], nil
}

// UnmarshalMsgpack decodes the payload of an MP_ERROR extension.
func (e *BoxError) UnmarshalMsgpack(b []byte) error {
	if e == nil {
		return errors.New("msgpack: cannot unmarshal BoxError to a nil pointer")
	}
	val, err := decodeBoxError(msgpack.NewDecoder(bytes.NewReader(b)))
	if err != nil {
		return err
	}
	*e = *val
	return nil
}

func decodeBoxErrorExt(d *msgpack.Decoder, v reflect.Value, extLen int) error {
	b := make([]byte, extLen)
	if _, err := io.ReadFull(d.Buffered(), b); err != nil {
		return err
	}
	return v.Addr().Interface().(*BoxError).UnmarshalMsgpack(b)
}

func init() {
	msgpack.RegisterExtDecoder(errorExtID, BoxError{}, decodeBoxErrorExt)
}
