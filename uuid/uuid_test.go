package uuid_test

import (
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"pgregory.net/rapid"

	"github.com/JeffCarpenter/go-tarantool"
	"github.com/JeffCarpenter/go-tarantool/test_helpers"
	_ "github.com/JeffCarpenter/go-tarantool/uuid"
)

// There is no way to skip tests in testing.M,
// so we use this variable to pass info
// to each testing.T that it should skip.
var isUUIDSupported = false

var server = "127.0.0.1:3013"
var opts = tarantool.Opts{
	Timeout: 5 * time.Second,
}
var dialer = tarantool.NetDialer{
	Address:  server,
	User:     "test",
	Password: "test",
}

var space = "testUUID"

func skipIfUUIDUnsupported(t *testing.T) {
	t.Helper()

	if !isUUIDSupported {
		t.Skip("Skipping test for Tarantool without UUID support in msgpack")
	}
}

func TestEncode(t *testing.T) {
	id := uuid.MustParse("c8f0fa1f-da29-438c-a040-393f1126ad39")

	buf, err := msgpack.Marshal(id)
	require.NoError(t, err)

	expected := append([]byte{0xd8, 0x02}, id[:]...)
	assert.Equal(t, expected, buf)
}

func TestDecodeInvalidLength(t *testing.T) {
	// fixext 8 of the UUID type.
	buf := []byte{0xd7, 0x02, 1, 2, 3, 4, 5, 6, 7, 8}

	var value interface{}
	assert.Error(t, msgpack.Unmarshal(buf, &value))
}

func TestEncodeDecode(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var id uuid.UUID
		copy(id[:], rapid.SliceOfN(rapid.Byte(), 16, 16).Draw(t, "bytes"))

		buf, err := msgpack.Marshal([]interface{}{id})
		if err != nil {
			t.Fatalf("encode %s: %s", id, err)
		}
		var tuple []interface{}
		if err := msgpack.Unmarshal(buf, &tuple); err != nil {
			t.Fatalf("decode %x: %s", buf, err)
		}
		if len(tuple) != 1 || tuple[0] != id {
			t.Fatalf("%v != [%s]", tuple, id)
		}
	})
}

func TestCheckKey(t *testing.T) {
	id := uuid.New()

	assert.NoError(t, tarantool.CheckKey(id))
	assert.NoError(t, tarantool.CheckKey([]interface{}{id}))
}

func tupleValueIsId(t *testing.T, tuples []interface{}, id uuid.UUID) {
	t.Helper()

	require.Len(t, tuples, 1)
	tpl, ok := tuples[0].([]interface{})
	require.Truef(t, ok, "unexpected tuple %v", tuples[0])
	require.Len(t, tpl, 1)
	assert.Equal(t, id, tpl[0])
}

func TestSelect(t *testing.T) {
	skipIfUUIDUnsupported(t)

	conn := test_helpers.ConnectWithValidation(t, dialer, opts)
	defer conn.Close()

	sp, err := conn.Space(space)
	require.NoError(t, err)

	id := uuid.MustParse("c8f0fa1f-da29-438c-a040-393f1126ad39")
	_, err = sp.Store([]interface{}{id}, tarantool.OptBool{})
	require.NoError(t, err)

	resp, err := sp.Select([]interface{}{id}, tarantool.SelectOpts{
		Index: "primary",
		Limit: tarantool.MakeOptUint32(1),
	})
	require.NoError(t, err)
	tupleValueIsId(t, resp.Data, id)

	var result [][][]uuid.UUID
	_, err = sp.Call("box.space.testUUID:select", []interface{}{id}, tarantool.CallOpts{
		Result: &result,
	})
	require.NoError(t, err)
	require.Len(t, result, 1)
	require.Len(t, result[0], 1)
	require.Len(t, result[0][0], 1)
	assert.Equal(t, id, result[0][0][0])
}

func TestInsertReplaceDelete(t *testing.T) {
	skipIfUUIDUnsupported(t)

	conn := test_helpers.ConnectWithValidation(t, dialer, opts)
	defer conn.Close()

	sp, err := conn.Space(space)
	require.NoError(t, err)

	id := uuid.MustParse("64d22e4d-ac92-4a23-899a-e59f34af5479")

	_, err = sp.Replace([]interface{}{id}, tarantool.OptBool{})
	assert.True(t, tarantool.IsNoSuchKey(err), "unexpected error %v", err)

	resp, err := sp.Insert([]interface{}{id}, tarantool.MakeOptBool(true))
	require.NoError(t, err)
	tupleValueIsId(t, resp.Data, id)

	resp, err = sp.Replace([]interface{}{id}, tarantool.MakeOptBool(true))
	require.NoError(t, err)
	tupleValueIsId(t, resp.Data, id)

	resp, err = sp.Delete(id, tarantool.MakeOptBool(true))
	require.NoError(t, err)
	tupleValueIsId(t, resp.Data, id)

	resp, err = sp.Delete(id, tarantool.MakeOptBool(true))
	require.NoError(t, err)
	assert.Empty(t, resp.Data)
}

// runTestMain is a body of TestMain function
// (see https://pkg.go.dev/testing#hdr-Main).
// Using defer + os.Exit is not works so TestMain body
// is a separate function, see
// https://stackoverflow.com/questions/27629380/how-to-exit-a-go-program-honoring-deferred-calls
func runTestMain(m *testing.M) int {
	if !test_helpers.IsTarantoolAvailable() {
		log.Println("Skipping UUID integration tests: tarantool is not found")
		return m.Run()
	}

	isLess, err := test_helpers.IsTarantoolVersionLess(2, 4, 1)
	if err != nil {
		log.Fatalf("Failed to extract tarantool version: %s", err)
	}

	if isLess {
		log.Println("Skipping UUID tests...")
		return m.Run()
	}
	isUUIDSupported = true

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
		log.Printf("Failed to prepare test tarantool: %s", err)
		return 1
	}

	return m.Run()
}

func TestMain(m *testing.M) {
	code := runTestMain(m)
	os.Exit(code)
}
