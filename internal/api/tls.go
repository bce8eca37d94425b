package api

import (
	"crypto/tls"
	"fmt"
)

// TLSFiles holds the certificate paths from the server config.
type TLSFiles struct {
	CertFile string
	KeyFile  string
}

// Enabled returns true if both files are configured.
func (f TLSFiles) Enabled() bool {
	return f.CertFile != "" && f.KeyFile != ""
}

// LoadTLSConfig loads a tls.Config from the cert and key files.
func LoadTLSConfig(f TLSFiles) (*tls.Config, error) {
	if !f.Enabled() {
		return nil, fmt.Errorf("tls: certificate and key required")
	}

	cert, err := tls.LoadX509KeyPair(f.CertFile, f.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("tls: load key pair: %w", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
