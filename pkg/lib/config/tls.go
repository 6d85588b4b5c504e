package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
)

// ServerTLS builds the mTLS config of the command endpoint. Clients must
// present a certificate signed by the configured CA.
func (t TransportConfig) ServerTLS() (*tls.Config, error) {
	cert, pool, err := t.keyMaterial()
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		ClientCAs:    pool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// ClientTLS builds the mTLS config used by tunnelctl.
func (t TransportConfig) ClientTLS() (*tls.Config, error) {
	cert, pool, err := t.keyMaterial()
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS13,
	}, nil
}

func (t TransportConfig) keyMaterial() (tls.Certificate, *x509.CertPool, error) {
	certPEM, err := ReadPEM(t.TLSCert)
	if err != nil {
		return tls.Certificate{}, nil, fmt.Errorf("transport.tls_cert: %w", err)
	}
	keyPEM, err := ReadPEM(t.TLSKey)
	if err != nil {
		return tls.Certificate{}, nil, fmt.Errorf("transport.tls_key: %w", err)
	}
	caPEM, err := ReadPEM(t.CACert)
	if err != nil {
		return tls.Certificate{}, nil, fmt.Errorf("transport.ca_cert: %w", err)
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, nil, fmt.Errorf("failed to load key pair: %w", err)
	}

	pool := x509.NewCertPool()
	if ok := pool.AppendCertsFromPEM(caPEM); !ok {
		return tls.Certificate{}, nil, fmt.Errorf("failed to append CA certificate to pool")
	}
	return cert, pool, nil
}
