package tarantool_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tarantool/go-iproto"

	. "github.com/JeffCarpenter/go-tarantool"
)

func TestError_Error(t *testing.T) {
	err := Error{Code: iproto.ER_NO_SUCH_SPACE, Msg: "Space '1' does not exist"}
	assert.Equal(t, "Space '1' does not exist (0x24)", err.Error())

	err.ExtendedInfo = &BoxError{Type: "ClientError", Msg: "extended"}
	assert.Equal(t, err.ExtendedInfo.Error(), err.Error())
}

func TestClientError_Temporary(t *testing.T) {
	cases := []struct {
		code      uint32
		temporary bool
	}{
		{ErrConnectionNotReady, true},
		{ErrConnectionClosed, false},
		{ErrProtocolError, false},
		{ErrTimeouted, true},
		{ErrRateLimited, true},
		{ErrInvalidFlags, false},
		{ErrInvalidKey, false},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("0x%x", tc.code), func(t *testing.T) {
			err := ClientError{Code: tc.code, Msg: "msg"}
			assert.Equal(t, tc.temporary, err.Temporary())
			assert.Equal(t, fmt.Sprintf("msg (0x%x)", tc.code), err.Error())
		})
	}
}

func TestIsDuplicateKey(t *testing.T) {
	dup := Error{Code: iproto.ER_TUPLE_FOUND, Msg: "Duplicate key exists"}

	assert.True(t, IsDuplicateKey(dup))
	assert.True(t, IsDuplicateKey(fmt.Errorf("insert: %w", dup)))
	assert.False(t, IsDuplicateKey(Error{Code: iproto.ER_TUPLE_NOT_FOUND}))
	assert.False(t, IsDuplicateKey(ClientError{Code: uint32(iproto.ER_TUPLE_FOUND)}))
	assert.False(t, IsDuplicateKey(errors.New("Duplicate key exists")))
	assert.False(t, IsDuplicateKey(nil))
}

func TestIsNoSuchKey(t *testing.T) {
	missing := Error{Code: iproto.ER_TUPLE_NOT_FOUND, Msg: "Tuple doesn't exist"}

	assert.True(t, IsNoSuchKey(missing))
	assert.True(t, IsNoSuchKey(fmt.Errorf("replace: %w", missing)))
	assert.False(t, IsNoSuchKey(Error{Code: iproto.ER_TUPLE_FOUND}))
	assert.False(t, IsNoSuchKey(nil))
}

func TestUnknownIndexError(t *testing.T) {
	assert.Equal(t, "space 617 has no index idx",
		UnknownIndexError{Space: 617, Index: "idx"}.Error())
	assert.Equal(t, "space 617 has no index 3",
		UnknownIndexError{Space: 617, Index: 3}.Error())
}
