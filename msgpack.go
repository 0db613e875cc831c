package tarantool

import (
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

func newEncoder(w io.Writer) *msgpack.Encoder {
	return msgpack.NewEncoder(w)
}

// newDecoder returns a decoder that decodes maps as map[interface{}]interface{}.
// Integers in the uint 8..64 formats decode as uint64, other integers as
// int64 and floats as float64.
func newDecoder(r io.Reader) *msgpack.Decoder {
	dec := msgpack.NewDecoder(r)
	dec.SetMapDecoder(func(dec *msgpack.Decoder) (interface{}, error) {
		return dec.DecodeUntypedMap()
	})
	dec.UseLooseInterfaceDecoding(true)
	return dec
}
