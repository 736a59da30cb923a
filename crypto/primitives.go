// Package crypto wires the EDHOC key schedule, signature-or-MAC
// construction, and ciphertext codecs to concrete cryptographic
// primitives behind narrow ports. The primitives themselves (hash,
// HKDF, ECDH, AEAD, signature) are selected by suite through an
// interface, not a switch statement sprinkled through the protocol
// logic; ECDHGroup/AEADCipher/Signer below are that boundary.
package crypto

import "io"

// ECDHGroup performs ephemeral/static Diffie-Hellman on one curve.
type ECDHGroup interface {
	// GenerateKey returns a fresh private/public keypair.
	GenerateKey(rand io.Reader) (priv, pub []byte, err error)
	// SharedSecret computes ECDH(priv, peerPub).
	SharedSecret(priv, peerPub []byte) ([]byte, error)
	// PublicKeyLen is the encoded length of a public key on this curve.
	PublicKeyLen() int
}

// AEADCipher seals/opens with a suite-specific AEAD construction.
type AEADCipher interface {
	Seal(key, iv, aad, plaintext []byte) ([]byte, error)
	Open(key, iv, aad, ciphertext []byte) ([]byte, error)
	KeyLen() int
	IVLen() int
	Overhead() int
}

// Signer signs/verifies with a suite-specific signature curve.
type Signer interface {
	Sign(rand io.Reader, priv, msg []byte) ([]byte, error)
	Verify(pub, msg, sig []byte) bool
}
