package decimal

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"
)

// Tarantool packs a decimal as a MessagePack integer scale followed by the
// digits, two per byte. The last nibble is the sign, the first one is a
// padding zero when the count of digits is even.
const (
	bcdPlus  = 0x0c
	bcdMinus = 0x0d
)

var ten = big.NewInt(10)

// encodeBCD packs a decimal without trailing zeros of the fraction.
func encodeBCD(d decimal.Decimal) ([]byte, error) {
	coef := d.Coefficient()
	negative := coef.Sign() < 0
	coef.Abs(coef)

	scale := -int64(d.Exponent())
	if scale < 0 {
		coef.Mul(coef, new(big.Int).Exp(ten, big.NewInt(-scale), nil))
		scale = 0
	}

	digits := coef.String()
	if coef.Sign() == 0 {
		digits, scale, negative = "0", 0, false
	}
	for scale > 0 && strings.HasSuffix(digits, "0") {
		digits = digits[:len(digits)-1]
		scale--
	}
	if len(digits) > decimalPrecision {
		return nil, fmt.Errorf("%d digits exceed precision %d", len(digits), decimalPrecision)
	}

	var buf bytes.Buffer
	if err := msgpack.NewEncoder(&buf).EncodeInt(scale); err != nil {
		return nil, err
	}

	nibbles := make([]byte, 0, len(digits)+2)
	if len(digits)%2 == 0 {
		nibbles = append(nibbles, 0)
	}
	for i := 0; i < len(digits); i++ {
		nibbles = append(nibbles, digits[i]-'0')
	}
	if negative {
		nibbles = append(nibbles, bcdMinus)
	} else {
		nibbles = append(nibbles, bcdPlus)
	}
	for i := 0; i < len(nibbles); i += 2 {
		buf.WriteByte(nibbles[i]<<4 | nibbles[i+1])
	}
	return buf.Bytes(), nil
}

// decodeBCD unpacks a decimal, every sign nibble allowed by Tarantool is
// accepted.
func decodeBCD(data []byte) (decimal.Decimal, error) {
	r := bytes.NewReader(data)
	scale, err := msgpack.NewDecoder(r).DecodeInt64()
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("scale: %w", err)
	}
	packed := data[len(data)-r.Len():]
	if len(packed) == 0 {
		return decimal.Decimal{}, fmt.Errorf("no digits")
	}

	coef := new(big.Int)
	negative := false
	for i, b := range packed {
		high, low := b>>4, b&0x0f
		if high > 9 {
			return decimal.Decimal{}, fmt.Errorf("invalid digit 0x%x", high)
		}
		coef.Mul(coef, ten).Add(coef, big.NewInt(int64(high)))

		if i < len(packed)-1 {
			if low > 9 {
				return decimal.Decimal{}, fmt.Errorf("invalid digit 0x%x", low)
			}
			coef.Mul(coef, ten).Add(coef, big.NewInt(int64(low)))
			continue
		}
		switch low {
		case 0x0a, 0x0c, 0x0e, 0x0f:
		case 0x0b, 0x0d:
			negative = true
		default:
			return decimal.Decimal{}, fmt.Errorf("invalid sign 0x%x", low)
		}
	}
	if negative {
		coef.Neg(coef)
	}
	return decimal.NewFromBigInt(coef, -int32(scale)), nil
}
