package test_helpers

import (
	"testing"

	"github.com/JeffCarpenter/go-tarantool"
)

// ConnectWithValidation connects to a test instance or fails the test.
func ConnectWithValidation(t testing.TB, dialer tarantool.Dialer,
	opts tarantool.Opts) *tarantool.Connection {
	t.Helper()

	ctx, cancel := GetConnectContext()
	defer cancel()

	conn, err := tarantool.Connect(ctx, dialer, opts)
	if err != nil {
		t.Fatalf("failed to connect: %s", err)
	}
	return conn
}

// SkipIfTarantoolUnavailable skips a test without a tarantool executable.
func SkipIfTarantoolUnavailable(t testing.TB) {
	t.Helper()

	if !IsTarantoolAvailable() {
		t.Skip("tarantool executable is not found")
	}
}
