//go:build go_tarantool_ssl_disable
// +build go_tarantool_ssl_disable

package tarantool

import (
	"context"
	"errors"
	"net"
)

var errSslDisabled = errors.New("SSL support is disabled")

// SslOpts configures the "ssl" transport. The package is built without SSL
// support, so any attempt to use the transport fails.
type SslOpts struct {
	KeyFile  string
	CertFile string
	CaFile   string
	Ciphers  string
}

func sslDialContext(context.Context, string, string, SslOpts) (net.Conn, error) {
	return nil, errSslDisabled
}

func sslCreateContext(SslOpts) (interface{}, error) {
	return nil, errSslDisabled
}
