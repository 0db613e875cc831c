package tarantool_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	. "github.com/JeffCarpenter/go-tarantool"
)

func assertSameEncoding(t *testing.T, expected, actual interface{}) {
	t.Helper()

	expectedBuf, err := msgpack.Marshal(expected)
	require.NoError(t, err)
	actualBuf, err := msgpack.Marshal(actual)
	require.NoError(t, err)
	assert.Equal(t, expectedBuf, actualBuf)
}

func TestOperations_EncodeMsgpack(t *testing.T) {
	ops := NewOperations().
		Add(1, 2).
		Subtract(2, 3).
		BitwiseAnd(3, 4).
		BitwiseOr(4, 5).
		BitwiseXor(5, 6).
		Splice(6, 1, 2, "abc").
		Insert(7, "x").
		Delete(8, 1).
		Assign(9, []interface{}{"y"})
	assert.Equal(t, 9, ops.Len())

	assertSameEncoding(t, []interface{}{
		[]interface{}{"+", 1, 2},
		[]interface{}{"-", 2, 3},
		[]interface{}{"&", 3, 4},
		[]interface{}{"|", 4, 5},
		[]interface{}{"^", 5, 6},
		[]interface{}{":", 6, 1, 2, "abc"},
		[]interface{}{"!", 7, "x"},
		[]interface{}{"#", 8, 1},
		[]interface{}{"=", 9, []interface{}{"y"}},
	}, ops)
}

func TestOperations_empty(t *testing.T) {
	var ops *Operations
	assert.Equal(t, 0, ops.Len())

	var buf bytes.Buffer
	require.NoError(t, ops.EncodeMsgpack(msgpack.NewEncoder(&buf)))
	assert.Equal(t, []byte{0x90}, buf.Bytes())
	assertSameEncoding(t, []interface{}{}, NewOperations())
}

func TestOperations_negativeField(t *testing.T) {
	assertSameEncoding(t,
		[]interface{}{[]interface{}{"=", -1, "last"}},
		NewOperations().Assign(-1, "last"))
}

func TestKeys_EncodeMsgpack(t *testing.T) {
	assertSameEncoding(t, []interface{}{-1}, IntKey{-1})
	assertSameEncoding(t, []interface{}{uint(7)}, UintKey{7})
	assertSameEncoding(t, []interface{}{"a"}, StringKey{"a"})
	assertSameEncoding(t, []interface{}{1, -2}, IntIntKey{1, -2})
}
