package tls

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupDisabled(t *testing.T) {
	cfg, err := Setup(Config{})
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"disabled", Config{}, true},
		{"files", Config{Enabled: true, CertFile: "a", KeyFile: "b"}, true},
		{"dir", Config{Enabled: true, Dir: "x"}, true},
		{"cert only", Config{Enabled: true, CertFile: "a"}, false},
		{"nothing", Config{Enabled: true}, false},
		{"bad version", Config{Enabled: true, Dir: "x", MinVersion: "1.0"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestSetupAutoGenerate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "certs")
	cfg, err := Setup(Config{Enabled: true, Dir: dir, AutoGenerate: true, MinVersion: "1.2"})
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)

	cert, err := cfg.GetCertificate(&tls.ClientHelloInfo{})
	require.NoError(t, err)
	require.NotEmpty(t, cert.Certificate)

	parsed, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	assert.Contains(t, parsed.DNSNames, "localhost")
	require.Len(t, parsed.IPAddresses, 1)
	assert.Equal(t, "127.0.0.1", parsed.IPAddresses[0].String())

	info, err := os.Stat(filepath.Join(dir, keyName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSetupMissingFiles(t *testing.T) {
	dir := t.TempDir()
	_, err := Setup(Config{Enabled: true, Dir: dir})
	assert.Error(t, err)
}

func TestGenerateSelfSignedHosts(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "c.pem")
	keyPath := filepath.Join(dir, "k.pem")
	require.NoError(t, GenerateSelfSigned(Config{Hosts: []string{"krishi.local", "10.0.0.5"}, ValidDays: 2}, certPath, keyPath))

	b, err := os.ReadFile(certPath)
	require.NoError(t, err)
	block, _ := pem.Decode(b)
	require.NotNil(t, block)
	parsed, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	assert.Equal(t, "krishi.local", parsed.Subject.CommonName)
	assert.Equal(t, []string{"krishi.local"}, parsed.DNSNames)
	assert.Equal(t, "10.0.0.5", parsed.IPAddresses[0].String())

	_, err = tls.LoadX509KeyPair(certPath, keyPath)
	assert.NoError(t, err)
}
