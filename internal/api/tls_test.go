package api

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestTLSFilesEnabled(t *testing.T) {
	cases := []struct {
		name  string
		files TLSFiles
		want  bool
	}{
		{"none", TLSFiles{}, false},
		{"only cert", TLSFiles{CertFile: "/path/to/cert.pem"}, false},
		{"only key", TLSFiles{KeyFile: "/path/to/key.pem"}, false},
		{"both", TLSFiles{CertFile: "/path/to/cert.pem", KeyFile: "/path/to/key.pem"}, true},
	}
	for _, tc := range cases {
		if got := tc.files.Enabled(); got != tc.want {
			t.Errorf("%s: Enabled() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestLoadTLSConfig_NotEnabled(t *testing.T) {
	if _, err := LoadTLSConfig(TLSFiles{}); err == nil {
		t.Error("LoadTLSConfig should fail when TLS is not configured")
	}
}

func TestLoadTLSConfig_InvalidFiles(t *testing.T) {
	cfg, err := LoadTLSConfig(TLSFiles{
		CertFile: "/nonexistent/cert.pem",
		KeyFile:  "/nonexistent/key.pem",
	})
	if err == nil {
		t.Error("LoadTLSConfig should fail when cert files don't exist")
	}
	if cfg != nil {
		t.Error("LoadTLSConfig should return nil config on failure")
	}
}

func TestLoadTLSConfig_SelfSigned(t *testing.T) {
	files := writeSelfSigned(t)

	cfg, err := LoadTLSConfig(files)
	if err != nil {
		t.Fatalf("LoadTLSConfig: %v", err)
	}
	if len(cfg.Certificates) != 1 {
		t.Errorf("expected 1 certificate, got %d", len(cfg.Certificates))
	}
	if cfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %x, want TLS 1.2", cfg.MinVersion)
	}
}

func writeSelfSigned(t *testing.T) TLSFiles {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		DNSNames:     []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}

	dir := t.TempDir()
	files := TLSFiles{
		CertFile: filepath.Join(dir, "cert.pem"),
		KeyFile:  filepath.Join(dir, "key.pem"),
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	if err := os.WriteFile(files.CertFile, certPEM, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(files.KeyFile, keyPEM, 0o600); err != nil {
		t.Fatal(err)
	}
	return files
}
