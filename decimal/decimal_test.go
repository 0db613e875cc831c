package decimal_test

import (
	"encoding/hex"
	"log"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"pgregory.net/rapid"

	"github.com/JeffCarpenter/go-tarantool"
	. "github.com/JeffCarpenter/go-tarantool/decimal"
	"github.com/JeffCarpenter/go-tarantool/test_helpers"
)

var isDecimalSupported = false

var server = "127.0.0.1:3013"
var opts = tarantool.Opts{
	Timeout: 5 * time.Second,
}
var dialer = tarantool.NetDialer{
	Address:  server,
	User:     "test",
	Password: "test",
}

var space = "testDecimal"

func skipIfDecimalUnsupported(t *testing.T) {
	t.Helper()

	if !isDecimalSupported {
		t.Skip("Skipping test for Tarantool without decimal support in msgpack")
	}
}

var correctnessSamples = []struct {
	numString string
	mpBuf     string
}{
	{"100", "c7030100100c"},
	{"0.1", "d501011c"},
	{"-0.1", "d501011d"},
	{"0.0000000000000000000000000000000000001", "d501251c"},
	{"-0.00000000000000000000000000000000000001", "d501261d"},
	{"1", "d501001c"},
	{"-1", "d501001d"},
	{"0", "d501000c"},
	{"-0", "d501000c"},
	{"0.01", "d501021c"},
	{"99999999999999999999999999999999999999", "c7150100099999999999999999999999999999999999999c"},
	{"-99999999999999999999999999999999999999", "c7150100099999999999999999999999999999999999999d"},
	{"-12.34", "d6010201234d"},
	{"1.4", "c7030101014c"},
	{"-108.123456789", "d701090108123456789d"},
	{"3.141592653589793", "c70a010f03141592653589793c"},
	{"1234567891234567890.0987654321987654321", "c7150113012345678912345678900987654321987654321c"},
}

// Trailing zeros of the fraction are not encoded.
var trimmedSamples = []struct {
	numString string
	mpBuf     string
}{
	{"0.000000000000000000000000000000000010", "d501231c"},
	{"0.010", "d501021c"},
	{"123.456789000000000", "c7060106123456789c"},
	{"1e2", "c7030100100c"},
}

func TestEncode(t *testing.T) {
	samples := append(correctnessSamples, trimmedSamples...)
	for _, testcase := range samples {
		t.Run(testcase.numString, func(t *testing.T) {
			number, err := MakeDecimalFromString(testcase.numString)
			require.NoError(t, err)

			buf, err := msgpack.Marshal(number)
			require.NoError(t, err)
			assert.Equal(t, testcase.mpBuf, hex.EncodeToString(buf))
		})
	}
}

func TestDecode(t *testing.T) {
	for _, testcase := range correctnessSamples {
		t.Run(testcase.numString, func(t *testing.T) {
			expected, err := decimal.NewFromString(testcase.numString)
			require.NoError(t, err)
			buf, err := hex.DecodeString(testcase.mpBuf)
			require.NoError(t, err)

			var number Decimal
			require.NoError(t, msgpack.Unmarshal(buf, &number))
			assert.Truef(t, expected.Equal(number.Decimal), "%s != %s", expected, number)

			var value interface{}
			require.NoError(t, msgpack.Unmarshal(buf, &value))
			require.IsType(t, Decimal{}, value)
			assert.True(t, expected.Equal(value.(Decimal).Decimal))
		})
	}
}

func TestDecodeBCDSigns(t *testing.T) {
	cases := map[byte]string{
		0x0a: "1.2",
		0x0b: "-1.2",
		0x0c: "1.2",
		0x0d: "-1.2",
		0x0e: "1.2",
		0x0f: "1.2",
	}
	for sign, expected := range cases {
		number, err := DecodeBCD([]byte{0x01, 0x01, 0x20 | sign})
		require.NoError(t, err)
		assert.Equal(t, expected, number.String())
	}
}

func TestDecodeBCDInvalid(t *testing.T) {
	cases := map[string][]byte{
		"no digits":     {0x01},
		"empty":         {},
		"invalid sign":  {0x00, 0x11},
		"invalid digit": {0x00, 0xa1, 0x1c},
		"invalid low":   {0x00, 0x1a, 0x1c},
	}
	for name, buf := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeBCD(buf)
			assert.Error(t, err)
		})
	}
}

func TestEncodeMaxNumber(t *testing.T) {
	maxNumber := decimal.New(1, DecimalPrecision)
	_, err := MakeDecimal(maxNumber).MarshalMsgpack()
	assert.ErrorIs(t, err, ErrDecimalOverflow)

	_, err = MakeDecimal(maxNumber.Sub(decimal.NewFromInt(1))).MarshalMsgpack()
	assert.NoError(t, err)
}

func TestEncodeMinNumber(t *testing.T) {
	minNumber := decimal.New(-1, DecimalPrecision)
	_, err := MakeDecimal(minNumber).MarshalMsgpack()
	assert.ErrorIs(t, err, ErrDecimalUnderflow)
}

func TestEncodeTooPrecise(t *testing.T) {
	number, err := MakeDecimalFromString("0.123456789012345678901234567890123456789")
	require.NoError(t, err)

	_, err = number.MarshalMsgpack()
	assert.Error(t, err)
}

func TestBCDRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		coef := rapid.Int64().Draw(t, "coef")
		scale := rapid.Int32Range(-5, 18).Draw(t, "scale")
		expected := decimal.New(coef, -scale)

		buf, err := EncodeBCD(expected)
		if err != nil {
			t.Fatalf("encode %s: %s", expected, err)
		}
		number, err := DecodeBCD(buf)
		if err != nil {
			t.Fatalf("decode %x: %s", buf, err)
		}
		if !expected.Equal(number) {
			t.Fatalf("%s != %s", expected, number)
		}
	})
}

func TestMakeDecimalFromStringInvalid(t *testing.T) {
	_, err := MakeDecimalFromString("not a number")
	assert.Error(t, err)
}

func TestCheckKey(t *testing.T) {
	number, err := MakeDecimalFromString("-12.34")
	require.NoError(t, err)

	assert.NoError(t, tarantool.CheckKey(number))
	assert.NoError(t, tarantool.CheckKey([]interface{}{number, 1}))
}

func tupleValueIsDecimal(t *testing.T, tuples []interface{}, number decimal.Decimal) {
	t.Helper()

	require.Len(t, tuples, 1)
	tpl, ok := tuples[0].([]interface{})
	require.Truef(t, ok, "unexpected tuple %v", tuples[0])
	require.NotEmpty(t, tpl)
	val, ok := tpl[0].(Decimal)
	require.Truef(t, ok, "unexpected field %v", tpl[0])
	assert.Truef(t, number.Equal(val.Decimal), "%s != %s", number, val)
}

func TestSpaceInsertSelect(t *testing.T) {
	skipIfDecimalUnsupported(t)

	conn := test_helpers.ConnectWithValidation(t, dialer, opts)
	defer conn.Close()

	sp, err := conn.Space(space)
	require.NoError(t, err)

	for _, numString := range []string{"-12.34", "0.1", "1234567891234567890.0987654321987654321"} {
		number, err := MakeDecimalFromString(numString)
		require.NoError(t, err)

		resp, err := sp.Insert([]interface{}{number}, tarantool.MakeOptBool(true))
		require.NoError(t, err)
		tupleValueIsDecimal(t, resp.Data, number.Decimal)

		resp, err = sp.Select([]interface{}{number}, tarantool.SelectOpts{})
		require.NoError(t, err)
		tupleValueIsDecimal(t, resp.Data, number.Decimal)

		_, err = sp.Insert([]interface{}{number}, tarantool.OptBool{})
		assert.True(t, tarantool.IsDuplicateKey(err), "unexpected error %v", err)

		resp, err = sp.Delete(number, tarantool.MakeOptBool(true))
		require.NoError(t, err)
		tupleValueIsDecimal(t, resp.Data, number.Decimal)
	}
}

func TestSpaceReplace(t *testing.T) {
	skipIfDecimalUnsupported(t)

	conn := test_helpers.ConnectWithValidation(t, dialer, opts)
	defer conn.Close()

	sp, err := conn.Space(space)
	require.NoError(t, err)

	number, err := MakeDecimalFromString("-22.804")
	require.NoError(t, err)

	_, err = sp.Replace([]interface{}{number}, tarantool.OptBool{})
	assert.True(t, tarantool.IsNoSuchKey(err), "unexpected error %v", err)

	resp, err := sp.Store([]interface{}{number}, tarantool.MakeOptBool(true))
	require.NoError(t, err)
	tupleValueIsDecimal(t, resp.Data, number.Decimal)

	resp, err = sp.Replace([]interface{}{number}, tarantool.MakeOptBool(true))
	require.NoError(t, err)
	tupleValueIsDecimal(t, resp.Data, number.Decimal)
}

// runTestMain is a body of TestMain function
// (see https://pkg.go.dev/testing#hdr-Main).
// Using defer + os.Exit is not works so TestMain body
// is a separate function, see
// https://stackoverflow.com/questions/27629380/how-to-exit-a-go-program-honoring-deferred-calls
func runTestMain(m *testing.M) int {
	if !test_helpers.IsTarantoolAvailable() {
		log.Println("Skipping decimal integration tests: tarantool is not found")
		return m.Run()
	}

	isLess, err := test_helpers.IsTarantoolVersionLess(2, 2, 0)
	if err != nil {
		log.Fatalf("Failed to extract Tarantool version: %s", err)
	}
	if isLess {
		log.Println("Skipping decimal tests...")
		return m.Run()
	}
	isDecimalSupported = true

	inst, err := test_helpers.StartTarantool(test_helpers.StartOpts{
		Dialer:       dialer,
		InitScript:   "config.lua",
		Listen:       server,
		WaitStart:    100 * time.Millisecond,
		ConnectRetry: 10,
		RetryTimeout: 500 * time.Millisecond,
	})
	defer test_helpers.StopTarantoolWithCleanup(inst)

	if err != nil {
		log.Printf("Failed to prepare test Tarantool: %s", err)
		return 1
	}

	return m.Run()
}

func TestMain(m *testing.M) {
	code := runTestMain(m)
	os.Exit(code)
}
