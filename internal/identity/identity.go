// Package identity persists the daemon's node key pair and certificate to
// disk, loading them back on subsequent starts instead of re-registering
// every time the process restarts.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/relaycorp/relaynet-poweb-go/poweb"
)

const (
	privateKeyFile  = "node.key"
	certificateFile = "node.crt"
)

// Signer is the daemon's persisted poweb.NonceSigner.
type Signer struct {
	privateKey  ed25519.PrivateKey
	certificate []byte
}

// LoadOrGenerate loads the node key and certificate from dataDir, generating
// and persisting a new pair if none exists yet.
func LoadOrGenerate(dataDir, commonName string) (*Signer, error) {
	keyPath := filepath.Join(dataDir, privateKeyFile)
	certPath := filepath.Join(dataDir, certificateFile)

	key, keyErr := os.ReadFile(keyPath)
	cert, certErr := os.ReadFile(certPath)
	if keyErr == nil && certErr == nil {
		return &Signer{privateKey: ed25519.PrivateKey(key), certificate: cert}, nil
	}

	return generate(dataDir, commonName, keyPath, certPath)
}

func generate(dataDir, commonName, keyPath, certPath string) (*Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating node key pair: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("generating certificate serial number: %w", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.AddDate(1, 0, 0),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, pub, priv)
	if err != nil {
		return nil, fmt.Errorf("self-signing node certificate: %w", err)
	}

	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.WriteFile(keyPath, priv, 0o600); err != nil {
		return nil, fmt.Errorf("writing node key: %w", err)
	}
	if err := os.WriteFile(certPath, der, 0o644); err != nil {
		return nil, fmt.Errorf("writing node certificate: %w", err)
	}

	return &Signer{privateKey: priv, certificate: der}, nil
}

// Sign implements poweb.NonceSigner.
func (s *Signer) Sign(nonce []byte, purpose poweb.SignaturePurpose) ([]byte, error) {
	return ed25519.Sign(s.privateKey, nonce), nil
}

// Certificate implements poweb.NonceSigner.
func (s *Signer) Certificate() []byte {
	return s.certificate
}

var _ poweb.NonceSigner = (*Signer)(nil)
