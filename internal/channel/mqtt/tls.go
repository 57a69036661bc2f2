package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// errNoCertificates is returned when the CA file holds no PEM certificate.
var errNoCertificates = errors.New("no certificates found")

// TLSOptions point at the PEM files used to authenticate with the broker.
type TLSOptions struct {
	// CACertFile verifies the broker; empty uses the system pool.
	CACertFile string
	// CertFile is the client certificate.
	CertFile string
	// KeyFile is the client private key.
	KeyFile string
	// InsecureSkipVerify disables broker verification.
	InsecureSkipVerify bool
}

// Config loads the files into a TLS 1.2+ configuration.
func (o TLSOptions) Config() (*tls.Config, error) {
	//nolint:exhaustruct // Remaining fields keep crypto/tls defaults.
	config := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: o.InsecureSkipVerify, //nolint:gosec // Opt-in for self-signed lab brokers.
	}

	if o.CACertFile != "" {
		pem, err := os.ReadFile(o.CACertFile)
		if err != nil {
			return nil, fmt.Errorf("read CA certificate: %w", err)
		}

		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("parse CA certificate %s: %w", o.CACertFile, errNoCertificates)
		}

		config.RootCAs = pool
	}

	if o.CertFile != "" || o.KeyFile != "" {
		certificate, err := tls.LoadX509KeyPair(o.CertFile, o.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}

		config.Certificates = []tls.Certificate{certificate}
	}

	return config, nil
}
