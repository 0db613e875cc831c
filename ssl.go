//go:build !go_tarantool_ssl_disable
// +build !go_tarantool_ssl_disable

package tarantool

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/tarantool/go-openssl"
)

// SslOpts configures the "ssl" transport.
type SslOpts struct {
	// KeyFile is a path to a PEM private key.
	KeyFile string
	// CertFile is a path to a PEM certificate, optionally followed by its
	// chain.
	CertFile string
	// CaFile is a path to trusted certificate authorities. The server
	// certificate is verified only when it is set.
	CaFile string
	// Ciphers is a colon-separated list of cipher suites. Only TLSv1.2 is
	// used, GOST ciphers need an OpenSSL configured for them.
	Ciphers string
}

// sslDialContext turns the context deadline into a connect timeout, the
// OpenSSL dialer does not accept a context.
func sslDialContext(ctx context.Context, network, address string,
	opts SslOpts) (net.Conn, error) {
	sslCtx, err := sslCreateContext(opts)
	if err != nil {
		return nil, err
	}

	var timeout time.Duration
	if deadline, ok := ctx.Deadline(); ok {
		if timeout = time.Until(deadline); timeout <= 0 {
			return nil, context.DeadlineExceeded
		}
	}
	return openssl.DialTimeout(network, address, timeout, sslCtx.(*openssl.Ctx), 0)
}

// sslCreateContext returns *openssl.Ctx as interface{}, so code built with
// go_tarantool_ssl_disable does not depend on go-openssl.
func sslCreateContext(opts SslOpts) (interface{}, error) {
	// GOST ciphers are not available with other protocol versions.
	sslCtx, err := openssl.NewCtxWithVersion(openssl.TLSv1_2)
	if err != nil {
		return nil, err
	}
	sslCtx.SetMinProtoVersion(openssl.TLS1_2_VERSION)
	sslCtx.SetMaxProtoVersion(openssl.TLS1_2_VERSION)

	if opts.CertFile != "" {
		if err := sslLoadCert(sslCtx, opts.CertFile); err != nil {
			return sslCtx, err
		}
	}
	if opts.KeyFile != "" {
		if err := sslLoadKey(sslCtx, opts.KeyFile); err != nil {
			return sslCtx, err
		}
	}
	if opts.CaFile != "" {
		if err := sslCtx.LoadVerifyLocations(opts.CaFile, ""); err != nil {
			return sslCtx, err
		}
		sslCtx.SetVerify(openssl.VerifyPeer|openssl.VerifyFailIfNoPeerCert, nil)
	}
	if opts.Ciphers != "" {
		if err := sslCtx.SetCipherList(opts.Ciphers); err != nil {
			return sslCtx, err
		}
	}
	return sslCtx, nil
}

// sslLoadCert uses the first PEM block as the certificate and the rest as
// its chain.
func sslLoadCert(ctx *openssl.Ctx, certFile string) error {
	pem, err := os.ReadFile(certFile)
	if err != nil {
		return err
	}

	blocks := openssl.SplitPEM(pem)
	if len(blocks) == 0 {
		return fmt.Errorf("no PEM certificate found in %s", certFile)
	}
	for i, block := range blocks {
		cert, err := openssl.LoadCertificateFromPEM(block)
		if err != nil {
			return err
		}
		if i == 0 {
			err = ctx.UseCertificate(cert)
		} else {
			err = ctx.AddChainCertificate(cert)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func sslLoadKey(ctx *openssl.Ctx, keyFile string) error {
	pem, err := os.ReadFile(keyFile)
	if err != nil {
		return err
	}
	key, err := openssl.LoadPrivateKeyFromPEM(pem)
	if err != nil {
		return err
	}
	return ctx.UsePrivateKey(key)
}
