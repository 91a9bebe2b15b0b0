// Package powebtest provides a ready-made NonceSigner for exercising a
// poweb.Client's parcel collection without wiring up real node
// cryptography. It is meant for this module's own tests and for consumers
// writing tests against their own PoWeb integrations.
package powebtest

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"time"

	"github.com/relaycorp/relaynet-poweb-go/poweb"
)

// Ed25519Signer is a poweb.NonceSigner backed by a freshly generated Ed25519
// key pair and a self-signed certificate. It is safe for concurrent use.
type Ed25519Signer struct {
	privateKey  ed25519.PrivateKey
	certificate []byte
}

// NewEd25519Signer generates a new Ed25519 key pair and a self-signed
// certificate for commonName, valid for one year from now.
func NewEd25519Signer(commonName string) (*Ed25519Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating Ed25519 key pair: %w", err)
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
		return nil, fmt.Errorf("self-signing certificate: %w", err)
	}

	return &Ed25519Signer{privateKey: priv, certificate: der}, nil
}

// Sign returns an Ed25519 signature over nonce. purpose is accepted but not
// mixed into the signed payload; Ed25519 over the raw nonce is sufficient
// for the collection handshake's threat model.
func (s *Ed25519Signer) Sign(nonce []byte, purpose poweb.SignaturePurpose) ([]byte, error) {
	return ed25519.Sign(s.privateKey, nonce), nil
}

// Certificate returns the DER-encoded self-signed certificate for this
// signer's public key.
func (s *Ed25519Signer) Certificate() []byte {
	return s.certificate
}

var _ poweb.NonceSigner = (*Ed25519Signer)(nil)
