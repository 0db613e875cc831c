package tarantool

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// CheckKey reports whether key could be sent as an index key: nil, a scalar
// (a number, a boolean, a string, a byte slice, a UUID or a msgpack.Marshaler
// like a decimal), a flat array of scalars and nils or a
// msgpack.CustomEncoder that encodes the whole key. Whether the parts match
// the index is checked by the server.
func CheckKey(key interface{}) error {
	_, err := normalizeKey(key)
	return err
}

// normalizeKey validates the key and wraps a scalar into an array.
func normalizeKey(key interface{}) (interface{}, error) {
	if key == nil {
		return []interface{}{}, nil
	}
	if _, ok := key.(msgpack.CustomEncoder); ok {
		return key, nil
	}
	if isScalarKey(key) {
		return []interface{}{key}, nil
	}

	v := reflect.ValueOf(key)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, invalidKeyError(key)
	}
	for i := 0; i < v.Len(); i++ {
		part := v.Index(i).Interface()
		if part == nil {
			// A nullable part.
			continue
		}
		if _, ok := part.(msgpack.CustomEncoder); !ok && !isScalarKey(part) {
			return nil, invalidKeyError(key)
		}
	}
	return key, nil
}

func invalidKeyError(key interface{}) error {
	return ClientError{
		Code: ErrInvalidKey,
		Msg:  fmt.Sprintf("key should be a scalar or an array of scalars, got %T", key),
	}
}

func isScalarKey(v interface{}) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, bool, string, []byte, uuid.UUID, msgpack.Marshaler:
		return true
	}
	return false
}
