package tarantool_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	. "github.com/JeffCarpenter/go-tarantool"
)

func TestOptBool(t *testing.T) {
	value, ok := OptBool{}.Get()
	assert.False(t, ok)
	assert.False(t, value)

	value, ok = MakeOptBool(false).Get()
	assert.True(t, ok)
	assert.False(t, value)

	value, ok = MakeOptBool(true).Get()
	assert.True(t, ok)
	assert.True(t, value)
}

func TestOptUint32(t *testing.T) {
	_, ok := OptUint32{}.Get()
	assert.False(t, ok)

	rapid.Check(t, func(t *rapid.T) {
		expected := rapid.Uint32().Draw(t, "value")
		value, ok := MakeOptUint32(expected).Get()
		if !ok || value != expected {
			t.Fatalf("%d, %t != %d, true", value, ok, expected)
		}
	})
}
