// Package uuid lets github.com/google/uuid values travel as the Tarantool
// UUID type (MP_UUID, Tarantool 2.4.1 and newer).
//
// Import the package for its side effect to use uuid.UUID in tuples, keys
// and call arguments and to receive it in responses:
//
//	import _ "github.com/JeffCarpenter/go-tarantool/uuid"
//
// See https://www.tarantool.io/en/doc/latest/reference/reference_lua/uuid/.
package uuid

import (
	"fmt"
	"io"
	"reflect"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// ExtID is the MessagePack extension type of a UUID.
const ExtID = 2

// EncodeExt writes the 16 bytes of the UUID.
func EncodeExt(_ *msgpack.Encoder, v reflect.Value) ([]byte, error) {
	id := v.Interface().(uuid.UUID)
	return id[:], nil
}

// DecodeExt reads an extension payload of exactly 16 bytes.
func DecodeExt(d *msgpack.Decoder, v reflect.Value, extLen int) error {
	var id uuid.UUID
	if extLen != len(id) {
		return fmt.Errorf("msgpack: unexpected uuid length %d", extLen)
	}
	if _, err := io.ReadFull(d.Buffered(), id[:]); err != nil {
		return fmt.Errorf("msgpack: can't read bytes on uuid decode: %w", err)
	}
	v.Set(reflect.ValueOf(id))
	return nil
}

func init() {
	msgpack.RegisterExtEncoder(ExtID, uuid.UUID{}, EncodeExt)
	msgpack.RegisterExtDecoder(ExtID, uuid.UUID{}, DecodeExt)
}
