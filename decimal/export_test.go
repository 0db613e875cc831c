package decimal

import (
	"github.com/shopspring/decimal"
)

func EncodeBCD(d decimal.Decimal) ([]byte, error) {
	return encodeBCD(d)
}

func DecodeBCD(data []byte) (decimal.Decimal, error) {
	return decodeBCD(data)
}

const DecimalPrecision = decimalPrecision
