package poweb

// SignaturePurpose distinguishes the different contexts in which a detached
// signature may be requested. The collection handshake always signs for
// NonceSignaturePurpose.
type SignaturePurpose string

// NonceSignaturePurpose is the purpose passed to NonceSigner.Sign during the
// parcel collection handshake.
const NonceSignaturePurpose SignaturePurpose = "nonce"

// NonceSigner is a capability, supplied by the caller, that proves possession
// of a private key associated with a certificate. Given the nonce sent by the
// gateway during the collection handshake, it produces a detached signature
// over that nonce. The certificate is the trust anchor for any parcel
// collected under this signer.
//
// Implementations may be stateless or stateful, and must be safe to call
// from the collection engine's goroutine; the engine never calls a signer
// concurrently with itself but multiple sessions on the same client may each
// hold a reference to the same signer.
type NonceSigner interface {
	// Sign returns a detached signature over nonce for the given purpose.
	Sign(nonce []byte, purpose SignaturePurpose) ([]byte, error)

	// Certificate returns the DER-encoded X.509 certificate bound to this
	// signer.
	Certificate() []byte
}
