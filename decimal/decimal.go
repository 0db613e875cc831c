// Package decimal provides support for Tarantool's decimal data type.
//
// Decimal data type supported in Tarantool since 2.2. Import the package to
// pass Decimal values in tuples and keys and to receive them in responses.
// Values are backed by github.com/shopspring/decimal.
//
// # See also
//
//   - Tarantool MessagePack extensions:
//     https://www.tarantool.io/en/doc/latest/dev_guide/internals/msgpack_extensions/#the-decimal-type
//
//   - Tarantool module decimal:
//     https://www.tarantool.io/en/doc/latest/reference/reference_lua/decimal/
package decimal

import (
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"
)

// ExtID represents the decimal MessagePack extension type identifier.
const ExtID = 1

// Tarantool decimals have 38 digits of precision.
const decimalPrecision = 38

var (
	one = decimal.NewFromInt(1)
	// 10^decimalPrecision - 1
	maxSupportedDecimal = decimal.New(1, decimalPrecision).Sub(one)
	// -10^decimalPrecision + 1
	minSupportedDecimal = maxSupportedDecimal.Neg()
)

var (
	ErrDecimalOverflow = fmt.Errorf("msgpack: decimal number is bigger than"+
		" maximum supported number (10^%d - 1)", decimalPrecision)
	ErrDecimalUnderflow = fmt.Errorf("msgpack: decimal number is lesser than"+
		" minimum supported number (-10^%d + 1)", decimalPrecision)
)

// Decimal is a Tarantool decimal.
type Decimal struct {
	decimal.Decimal
}

// MakeDecimal creates a new Decimal from a decimal.Decimal.
func MakeDecimal(d decimal.Decimal) Decimal {
	return Decimal{Decimal: d}
}

// MakeDecimalFromString creates a new Decimal from a string.
func MakeDecimalFromString(src string) (Decimal, error) {
	d, err := decimal.NewFromString(src)
	if err != nil {
		return Decimal{}, err
	}
	return MakeDecimal(d), nil
}

// MarshalMsgpack returns the payload of the MessagePack extension.
func (d Decimal) MarshalMsgpack() ([]byte, error) {
	switch {
	case d.GreaterThan(maxSupportedDecimal):
		return nil, ErrDecimalOverflow
	case d.LessThan(minSupportedDecimal):
		return nil, ErrDecimalUnderflow
	}

	buf, err := encodeBCD(d.Decimal)
	if err != nil {
		return nil, fmt.Errorf("msgpack: can't encode %s: %w", d.String(), err)
	}
	return buf, nil
}

// UnmarshalMsgpack decodes the payload of the MessagePack extension.
func (d *Decimal) UnmarshalMsgpack(data []byte) error {
	dec, err := decodeBCD(data)
	if err != nil {
		return fmt.Errorf("msgpack: can't decode decimal %x: %w", data, err)
	}
	*d = MakeDecimal(dec)
	return nil
}

// EncodeExt encodes a Decimal into a MessagePack extension.
func EncodeExt(_ *msgpack.Encoder, v reflect.Value) ([]byte, error) {
	return v.Interface().(Decimal).MarshalMsgpack()
}

// DecodeExt decodes a MessagePack extension into a Decimal.
func DecodeExt(d *msgpack.Decoder, v reflect.Value, extLen int) error {
	if extLen < 2 {
		return errors.New("msgpack: decimal is too short")
	}

	b := make([]byte, extLen)
	if _, err := io.ReadFull(d.Buffered(), b); err != nil {
		return fmt.Errorf("msgpack: can't read bytes on decimal decode: %w", err)
	}

	ptr := v.Addr().Interface().(*Decimal)
	return ptr.UnmarshalMsgpack(b)
}

func init() {
	msgpack.RegisterExtEncoder(ExtID, Decimal{}, EncodeExt)
	msgpack.RegisterExtDecoder(ExtID, Decimal{}, DecodeExt)
}
